package util

import (
	"context"
	"github.com/ValentinKolb/imuipc/rpc/serializer"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (e.g. IMUIPC_SOCKET_PATH)
	EnvPrefix = "imuipc"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupCommonFlags adds the flags shared by the publish and consume commands
func SetupCommonFlags(cmd *cobra.Command, defaultSocketPath, defaultLogLevel string, defaultMaxFrameSize int) {
	key := "socket-path"
	cmd.Flags().StringP(key, "s", defaultSocketPath, WrapString("Filesystem path of the unix domain socket"))

	key = "max-frame-size"
	cmd.Flags().Int(key, defaultMaxFrameSize, WrapString("Largest frame payload in bytes"))

	key = "log-level"
	cmd.Flags().StringP(key, "l", defaultLogLevel, WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// InitConfig loads .env files and configures viper to read IMUIPC_ prefixed environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetSerializer creates the serializer selected with the global --serializer flag
func GetSerializer() (serializer.ISampleSerializer, error) {
	return serializer.FromName(viper.GetString("serializer"))
}

// GetMillis reads an integer flag holding milliseconds as a duration
func GetMillis(key string) time.Duration {
	return time.Duration(viper.GetInt64(key)) * time.Millisecond
}

// SignalContext returns a context that is cancelled on SIGINT or SIGTERM
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
