package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultSocketPath       = "/tmp/imu-ipc.sock"
	DefaultRateHz           = 500
	DefaultMaxFrameSize     = 64 * 1024 // 64 KB, a sample is ~60 bytes
	DefaultSessionQueueSize = 64
	DefaultWriteTimeout     = time.Second
	DefaultFlushTimeout     = 500 * time.Millisecond
	DefaultConnectTimeout   = time.Second
	DefaultBackoffInitial   = 100 * time.Millisecond
	DefaultBackoffMax       = 2 * time.Second
	DefaultLogLevel         = "info"

	// MaxRateHz is the highest accepted publish rate
	MaxRateHz = 1000
)

// --------------------------------------------------------------------------
// Publisher configuration struct
// --------------------------------------------------------------------------

// PublisherConfig holds all parameters of the publishing side
type PublisherConfig struct {
	// Endpoint is the filesystem path of the unix socket
	Endpoint string
	// SocketMode is applied to the socket file after binding (0 = leave the umask default)
	SocketMode os.FileMode

	// RateHz is the number of samples emitted per second
	RateHz int
	// SampleLimit stops the publisher after this many samples (0 = run until cancelled)
	SampleLimit int
	// MinConsumers delays the first sample until this many consumers are connected
	MinConsumers int

	// SessionQueueSize is the capacity of the per consumer drop-oldest queue
	SessionQueueSize int
	// MaxFrameSize is the largest payload the publisher will put on the wire
	MaxFrameSize uint32
	// WriteTimeout bounds a single frame write to a consumer socket (0 = no deadline)
	WriteTimeout time.Duration
	// FlushTimeout is how long sessions may drain their queues on shutdown (0 = abandon)
	FlushTimeout time.Duration

	// Logging configuration
	LogLevel string
}

// DefaultPublisherConfig returns a PublisherConfig with all defaults applied
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		Endpoint:         DefaultSocketPath,
		RateHz:           DefaultRateHz,
		MinConsumers:     1,
		SessionQueueSize: DefaultSessionQueueSize,
		MaxFrameSize:     DefaultMaxFrameSize,
		WriteTimeout:     DefaultWriteTimeout,
		FlushTimeout:     DefaultFlushTimeout,
		LogLevel:         DefaultLogLevel,
	}
}

// Validate checks the configuration for values the publisher cannot work with
func (c *PublisherConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("socket path must not be empty")
	}
	if c.RateHz < 1 || c.RateHz > MaxRateHz {
		return fmt.Errorf("rate must be between 1 and %d Hz, got %d", MaxRateHz, c.RateHz)
	}
	if c.SessionQueueSize < 1 {
		return fmt.Errorf("session queue size must be at least 1, got %d", c.SessionQueueSize)
	}
	if c.MaxFrameSize == 0 {
		return fmt.Errorf("max frame size must be greater than 0")
	}
	if c.SampleLimit < 0 || c.MinConsumers < 0 {
		return fmt.Errorf("sample limit and min consumers must not be negative")
	}
	return nil
}

// Interval returns the time between two published samples
func (c *PublisherConfig) Interval() time.Duration {
	return time.Second / time.Duration(c.RateHz)
}

// String returns a formatted string representation of the configuration
func (c *PublisherConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Endpoint
	addSection("Publisher")
	addField("Socket Path", c.Endpoint)
	if c.SocketMode != 0 {
		addField("Socket Mode", fmt.Sprintf("%#o", c.SocketMode))
	}
	addField("Frequency", fmt.Sprintf("%d Hz", c.RateHz))
	if c.SampleLimit > 0 {
		addField("Sample Limit", strconv.Itoa(c.SampleLimit))
	} else {
		addField("Sample Limit", "unlimited")
	}
	addField("Min Consumers", strconv.Itoa(c.MinConsumers))

	// Backpressure
	addSection("Sessions")
	addField("Queue Size", strconv.Itoa(c.SessionQueueSize))
	addField("Max Frame Size", fmt.Sprintf("%d bytes", c.MaxFrameSize))
	addField("Write Timeout", c.WriteTimeout.String())
	addField("Flush Timeout", c.FlushTimeout.String())

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Consumer configuration struct
// --------------------------------------------------------------------------

// ConsumerConfig holds all parameters of the consuming side
type ConsumerConfig struct {
	// Endpoint is the filesystem path of the unix socket
	Endpoint string

	// ConnectTimeout bounds a single connect attempt
	ConnectTimeout time.Duration
	// MaxAttempts is the number of consecutive failed connect attempts before giving up (0 = retry forever)
	MaxAttempts int
	// BackoffInitial is the wait after the first failed attempt
	BackoffInitial time.Duration
	// BackoffMax caps the exponentially growing wait (0 or below BackoffInitial = constant backoff)
	BackoffMax time.Duration

	// ReadTimeout tears the connection down when no frame arrives in time (0 = wait forever)
	ReadTimeout time.Duration
	// MaxFrameSize is the largest length prefix accepted before the connection is dropped
	MaxFrameSize uint32

	// OnStateChange is called synchronously on every client state transition (optional)
	OnStateChange func(from, to ConnectionState) `json:"-"`

	// Logging configuration
	LogLevel string
}

// DefaultConsumerConfig returns a ConsumerConfig with all defaults applied
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Endpoint:       DefaultSocketPath,
		ConnectTimeout: DefaultConnectTimeout,
		BackoffInitial: DefaultBackoffInitial,
		BackoffMax:     DefaultBackoffMax,
		MaxFrameSize:   DefaultMaxFrameSize,
		LogLevel:       DefaultLogLevel,
	}
}

// Validate checks the configuration for values the consumer cannot work with
func (c *ConsumerConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("socket path must not be empty")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be greater than 0")
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must not be negative, got %d", c.MaxAttempts)
	}
	if c.BackoffInitial < 0 || c.BackoffMax < 0 {
		return fmt.Errorf("backoff must not be negative")
	}
	if c.MaxFrameSize == 0 {
		return fmt.Errorf("max frame size must be greater than 0")
	}
	return nil
}

// String returns a formatted string representation of the consumer configuration
func (c *ConsumerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Connection
	addSection("Consumer")
	addField("Socket Path", c.Endpoint)
	addField("Connect Timeout", c.ConnectTimeout.String())
	if c.MaxAttempts > 0 {
		addField("Max Attempts", strconv.Itoa(c.MaxAttempts))
	} else {
		addField("Max Attempts", "unlimited")
	}
	addField("Backoff", fmt.Sprintf("%s .. %s", c.BackoffInitial, c.BackoffMax))
	if c.ReadTimeout > 0 {
		addField("Read Timeout", c.ReadTimeout.String())
	}
	addField("Max Frame Size", fmt.Sprintf("%d bytes", c.MaxFrameSize))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
