// Package cmd implements the command-line interface of imuipc. It provides
// one binary with a subcommand per process role.
//
// The package is organized into several subpackages:
//
//   - publish: Starts a publisher streaming emulated samples on a unix socket
//   - consume: Starts a consumer reconstructing the motion of the device
//   - perf: Benchmarks the serializers, the motion processor and the socket round trip
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as an environment variable IMUIPC_<FLAG> (e.g. IMUIPC_SOCKET_PATH),
// .env and .env.local in the working directory are loaded on start.
//
// See imuipc -help for a list of all commands.
package cmd
