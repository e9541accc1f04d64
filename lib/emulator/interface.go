package emulator

import "github.com/ValentinKolb/imuipc/rpc/common"

// ISampleSource produces the samples the publisher streams. Implementations are
// called from a single goroutine and need not be safe for concurrent use.
type ISampleSource interface {
	// Next returns the next sample, it never blocks
	Next() common.Sample

	// Name returns the name of the source used in logs and on the command line
	Name() string
}
