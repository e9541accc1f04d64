package consume

import (
	"fmt"
	cmdUtil "github.com/ValentinKolb/imuipc/cmd/util"
	"github.com/ValentinKolb/imuipc/lib/motion"
	"github.com/ValentinKolb/imuipc/rpc/common"
	"github.com/ValentinKolb/imuipc/rpc/consumer"
	"github.com/ValentinKolb/imuipc/rpc/transport/unix"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// maxConnectTimeoutMs is the upper bound of --timeout
	maxConnectTimeoutMs = 60 * 1000
)

var (
	consumeCmdConfig = common.DefaultConsumerConfig()
	motionCmdConfig  = motion.DefaultConfig()
	ConsumeCmd       = &cobra.Command{
		Use:     "consume",
		Short:   "Start an IMU consumer",
		Long:    `Start a consumer that connects to the publisher socket and reconstructs orientation, velocity and position from the received samples. The consumer reconnects when the publisher goes away. The configuration can be set via command line flags or environment variables. The format of the environment variables is IMUIPC_<flag> (e.g. IMUIPC_MAG_WEIGHT=0.05)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	defaults := common.DefaultConsumerConfig()
	motionDefaults := motion.DefaultConfig()

	// add flags
	cmdUtil.SetupCommonFlags(ConsumeCmd, defaults.Endpoint, defaults.LogLevel, int(defaults.MaxFrameSize))

	// connection
	key := "timeout"
	ConsumeCmd.Flags().Int64P(key, "t", defaults.ConnectTimeout.Milliseconds(), cmdUtil.WrapString(fmt.Sprintf("Timeout in milliseconds of a single connect attempt (1..%d)", maxConnectTimeoutMs)))

	key = "max-attempts"
	ConsumeCmd.Flags().Int(key, defaults.MaxAttempts, cmdUtil.WrapString("Consecutive failed connect attempts before giving up (0 = retry forever)"))

	key = "backoff"
	ConsumeCmd.Flags().Int64(key, defaults.BackoffInitial.Milliseconds(), cmdUtil.WrapString("Wait in milliseconds after the first failed attempt, doubled on every further failure"))

	key = "backoff-max"
	ConsumeCmd.Flags().Int64(key, defaults.BackoffMax.Milliseconds(), cmdUtil.WrapString("Upper bound in milliseconds of the wait between attempts"))

	key = "read-timeout"
	ConsumeCmd.Flags().Int64(key, 0, cmdUtil.WrapString("Reconnect when no frame arrives within this many milliseconds (0 = wait forever)"))

	key = "report-interval"
	ConsumeCmd.Flags().Int64(key, 1000, cmdUtil.WrapString("Log the current pose every this many milliseconds (0 = every sample, negative = never)"))

	// motion processing
	key = "mag-weight"
	ConsumeCmd.Flags().Float64(key, motionDefaults.MagCorrectionWeight, cmdUtil.WrapString("Blend weight of the magnetometer heading correction per reading (0 disables it)"))

	key = "tilt-weight"
	ConsumeCmd.Flags().Float64(key, motionDefaults.TiltCorrectionWeight, cmdUtil.WrapString("Blend weight of the accelerometer tilt correction per reading (0 disables it)"))

	key = "gravity"
	ConsumeCmd.Flags().Float64(key, motionDefaults.Gravity, cmdUtil.WrapString("Gravity in m/s^2 removed from the accelerometer reading"))

	key = "tick-seconds"
	ConsumeCmd.Flags().Float64(key, motionDefaults.TickSeconds, cmdUtil.WrapString("Duration of one device timestamp tick in seconds"))

	key = "max-dt"
	ConsumeCmd.Flags().Float64(key, motionDefaults.MaxDeltaSeconds, cmdUtil.WrapString("Largest step in seconds that is integrated, longer steps are skipped as gaps"))

	key = "velocity-decay"
	ConsumeCmd.Flags().Float64(key, motionDefaults.VelocityDecay, cmdUtil.WrapString("Factor applied to the velocity after every accelerometer step (1 = no decay)"))

	key = "accel-deadband"
	ConsumeCmd.Flags().Float64(key, motionDefaults.AccelDeadband, cmdUtil.WrapString("Linear acceleration components below this value in m/s^2 are treated as zero"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the consumer configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	if timeout := viper.GetInt64("timeout"); timeout < 1 || timeout > maxConnectTimeoutMs {
		return fmt.Errorf("timeout must be between 1 and %d ms, got %d", maxConnectTimeoutMs, timeout)
	}

	consumeCmdConfig.Endpoint = viper.GetString("socket-path")
	consumeCmdConfig.ConnectTimeout = cmdUtil.GetMillis("timeout")
	consumeCmdConfig.MaxAttempts = viper.GetInt("max-attempts")
	consumeCmdConfig.BackoffInitial = cmdUtil.GetMillis("backoff")
	consumeCmdConfig.BackoffMax = cmdUtil.GetMillis("backoff-max")
	consumeCmdConfig.ReadTimeout = cmdUtil.GetMillis("read-timeout")
	consumeCmdConfig.MaxFrameSize = viper.GetUint32("max-frame-size")
	consumeCmdConfig.LogLevel = viper.GetString("log-level")

	motionCmdConfig.MagCorrectionWeight = viper.GetFloat64("mag-weight")
	motionCmdConfig.TiltCorrectionWeight = viper.GetFloat64("tilt-weight")
	motionCmdConfig.Gravity = viper.GetFloat64("gravity")
	motionCmdConfig.TickSeconds = viper.GetFloat64("tick-seconds")
	motionCmdConfig.MaxDeltaSeconds = viper.GetFloat64("max-dt")
	motionCmdConfig.VelocityDecay = viper.GetFloat64("velocity-decay")
	motionCmdConfig.AccelDeadband = viper.GetFloat64("accel-deadband")

	if err := common.InitLoggers(consumeCmdConfig.LogLevel); err != nil {
		return err
	}

	if err := consumeCmdConfig.Validate(); err != nil {
		return err
	}
	return motionCmdConfig.Validate()
}

// run starts the consumer and blocks until it is interrupted or gives up connecting
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	processor, err := motion.NewProcessor(motionCmdConfig)
	if err != nil {
		return err
	}

	c := consumer.NewConsumer(
		consumeCmdConfig,
		unix.NewUnixConsumerTransport(),
		s,
		processor,
		consumer.WithReportInterval(cmdUtil.GetMillis("report-interval")),
	)

	ctx, cancel := cmdUtil.SignalContext()
	defer cancel()

	if err := c.Run(ctx); err != nil {
		return err
	}
	consumer.Logger.Infof("Stats: %s", c.Stats())
	return nil
}
