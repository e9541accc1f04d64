package cmd

import (
	"fmt"
	"github.com/ValentinKolb/imuipc/cmd/consume"
	"github.com/ValentinKolb/imuipc/cmd/perf"
	"github.com/ValentinKolb/imuipc/cmd/publish"
	"github.com/ValentinKolb/imuipc/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "imuipc",
		Short: "stream IMU samples between processes",
		Long: fmt.Sprintf(`imuipc (v%s)

A publisher streams (emulated) IMU samples over a local unix domain socket,
consumers reconstruct orientation, velocity and position from the stream.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of imuipc",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("imuipc v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(publish.PublishCmd)
	RootCmd.AddCommand(consume.ConsumeCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "proto", util.WrapString("serializer to use for samples on the wire (proto, json, gob). Publisher and consumers must agree"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
