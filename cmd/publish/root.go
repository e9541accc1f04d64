package publish

import (
	"context"
	"errors"
	"fmt"
	cmdUtil "github.com/ValentinKolb/imuipc/cmd/util"
	"github.com/ValentinKolb/imuipc/lib/emulator"
	"github.com/ValentinKolb/imuipc/rpc/common"
	"github.com/ValentinKolb/imuipc/rpc/publisher"
	"github.com/ValentinKolb/imuipc/rpc/transport"
	"github.com/ValentinKolb/imuipc/rpc/transport/unix"
	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"net/http"
	"os"
	"strconv"
	"time"
)

var (
	publishCmdConfig = common.DefaultPublisherConfig()
	PublishCmd       = &cobra.Command{
		Use:     "publish",
		Short:   "Start an IMU publisher",
		Long:    `Start a publisher that streams emulated IMU samples to all consumers connected to the unix socket. The configuration can be set via command line flags or environment variables. The format of the environment variables is IMUIPC_<flag> (e.g. IMUIPC_FREQUENCY=1000)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	defaults := common.DefaultPublisherConfig()

	// add flags
	cmdUtil.SetupCommonFlags(PublishCmd, defaults.Endpoint, defaults.LogLevel, int(defaults.MaxFrameSize))

	key := "frequency"
	PublishCmd.Flags().IntP(key, "f", defaults.RateHz, cmdUtil.WrapString(fmt.Sprintf("Publish rate in Hz (1..%d)", common.MaxRateHz)))

	key = "samples"
	PublishCmd.Flags().Int(key, 0, cmdUtil.WrapString("Stop after this many samples (0 = run until interrupted)"))

	key = "min-consumers"
	PublishCmd.Flags().Int(key, defaults.MinConsumers, cmdUtil.WrapString("Wait until this many consumers are connected before publishing the first sample (0 = start immediately)"))

	key = "queue-size"
	PublishCmd.Flags().Int(key, defaults.SessionQueueSize, cmdUtil.WrapString("Frames buffered per consumer. When a consumer falls behind, its oldest frames are dropped"))

	key = "write-timeout"
	PublishCmd.Flags().Int64(key, defaults.WriteTimeout.Milliseconds(), cmdUtil.WrapString("Timeout in milliseconds for writing one frame to a consumer (0 = none). A consumer that times out is disconnected"))

	key = "flush-timeout"
	PublishCmd.Flags().Int64(key, defaults.FlushTimeout.Milliseconds(), cmdUtil.WrapString("Time in milliseconds each consumer queue may take to drain on shutdown (0 = abandon queued frames)"))

	key = "socket-mode"
	PublishCmd.Flags().String(key, "", cmdUtil.WrapString("File mode of the socket in octal (e.g. 0660). Empty keeps the mode set by the umask"))

	key = "source"
	PublishCmd.Flags().String(key, "random", cmdUtil.WrapString("Sample source (random, steady)"))

	key = "seed"
	PublishCmd.Flags().Uint64(key, 0, cmdUtil.WrapString("Seed of the random source (0 = random seed)"))

	key = "steady-gyro-x"
	PublishCmd.Flags().Int32(key, 0, cmdUtil.WrapString("Constant x rotation rate of the steady source in mdeg/s"))
	key = "steady-gyro-y"
	PublishCmd.Flags().Int32(key, 0, cmdUtil.WrapString("Constant y rotation rate of the steady source in mdeg/s"))
	key = "steady-gyro-z"
	PublishCmd.Flags().Int32(key, 0, cmdUtil.WrapString("Constant z rotation rate of the steady source in mdeg/s"))

	key = "metrics-endpoint"
	PublishCmd.Flags().String(key, "", cmdUtil.WrapString("Address for the Prometheus /metrics endpoint (e.g. localhost:9090). Empty disables it"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the publisher configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	publishCmdConfig.Endpoint = viper.GetString("socket-path")
	publishCmdConfig.RateHz = viper.GetInt("frequency")
	publishCmdConfig.SampleLimit = viper.GetInt("samples")
	publishCmdConfig.MinConsumers = viper.GetInt("min-consumers")
	publishCmdConfig.SessionQueueSize = viper.GetInt("queue-size")
	publishCmdConfig.MaxFrameSize = viper.GetUint32("max-frame-size")
	publishCmdConfig.WriteTimeout = cmdUtil.GetMillis("write-timeout")
	publishCmdConfig.FlushTimeout = cmdUtil.GetMillis("flush-timeout")
	publishCmdConfig.LogLevel = viper.GetString("log-level")

	// parse socket mode
	publishCmdConfig.SocketMode = 0
	if mode := viper.GetString("socket-mode"); mode != "" {
		parsed, err := strconv.ParseUint(mode, 8, 32)
		if err != nil {
			return fmt.Errorf("invalid socket mode %q: %w", mode, err)
		}
		publishCmdConfig.SocketMode = os.FileMode(parsed)
	}

	if err := common.InitLoggers(publishCmdConfig.LogLevel); err != nil {
		return err
	}

	return publishCmdConfig.Validate()
}

// run starts the publisher and blocks until it is interrupted or the sample limit is reached
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	source, err := getSource()
	if err != nil {
		return err
	}

	t := unix.NewUnixPublisherTransport()
	p := publisher.NewPublisher(publishCmdConfig, t, s, source)

	ctx, cancel := cmdUtil.SignalContext()
	defer cancel()

	if endpoint := viper.GetString("metrics-endpoint"); endpoint != "" {
		stop := serveMetrics(endpoint, t)
		defer stop()
	}

	return p.Run(ctx)
}

// getSource creates the sample source selected with --source
func getSource() (emulator.ISampleSource, error) {
	switch viper.GetString("source") {
	case "random":
		return emulator.NewRandomWalk(viper.GetUint64("seed")), nil
	case "steady":
		cfg := emulator.DefaultSteadyConfig()
		cfg.RateHz = publishCmdConfig.RateHz
		cfg.Gyro = common.Vector3i{
			X: viper.GetInt32("steady-gyro-x"),
			Y: viper.GetInt32("steady-gyro-y"),
			Z: viper.GetInt32("steady-gyro-z"),
		}
		return emulator.NewSteady(cfg)
	default:
		return nil, fmt.Errorf("invalid source %s", viper.GetString("source"))
	}
}

// serveMetrics exposes the transport and process metrics in the Prometheus text format.
// The returned function shuts the endpoint down
func serveMetrics(endpoint string, t transport.IPublisherTransport) func() {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		t.WritePrometheus(w)
		metrics.WritePrometheus(w, true)
	})

	server := &http.Server{
		Addr:              endpoint,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		publisher.Logger.Infof("Serving metrics on http://%s/metrics", endpoint)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			publisher.Logger.Errorf("Metrics endpoint failed: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
