package perf

import (
	"context"
	"encoding/csv"
	"fmt"
	cmdUtil "github.com/ValentinKolb/imuipc/cmd/util"
	"github.com/ValentinKolb/imuipc/lib/emulator"
	"github.com/ValentinKolb/imuipc/lib/motion"
	"github.com/ValentinKolb/imuipc/rpc/common"
	"github.com/ValentinKolb/imuipc/rpc/serializer"
	"github.com/ValentinKolb/imuipc/rpc/transport/unix"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var (
	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for imuipc",
		Long:    "Benchmarks the sample serializers, the motion processor and a publisher to consumer round trip over a temporary unix socket",
		PreRunE: processPerfConfig,
		RunE:    run,
	}
	perfSkip      = make([]string, 0)
	perfFrameSize = 64
	perfQueueSize = 1024
)

func init() {
	// add flags
	key := "skip"
	PerfCmd.Flags().String(key, "", cmdUtil.WrapString("Benchmarks to skip (comma separated - e.g. encode-json,loopback)"))
	key = "loopback-frame-size"
	PerfCmd.Flags().Int(key, 64, cmdUtil.WrapString("Payload size in bytes of the loopback benchmark"))
	key = "queue-size"
	PerfCmd.Flags().Int(key, 1024, cmdUtil.WrapString("Session queue size of the loopback benchmark"))
	key = "csv"
	PerfCmd.Flags().String(key, "", cmdUtil.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfFrameSize = viper.GetInt("loopback-frame-size")
	perfQueueSize = viper.GetInt("queue-size")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfFrameSize < 1 || perfFrameSize > common.DefaultMaxFrameSize {
		return fmt.Errorf("loopback frame size must be between 1 and %d bytes", common.DefaultMaxFrameSize)
	}

	// benchmarks would drown in debug logs
	return common.InitLoggers("error")
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for imuipc")
	fmt.Println()
	fmt.Println("staring tests...")

	// Create results map
	results := make(map[string]testing.BenchmarkResult)
	record := func(name string, result testing.BenchmarkResult) {
		results[name] = result
		printResult(name, result)
	}

	// Codecs
	walk := emulator.NewRandomWalk(1)
	samples := make([]common.Sample, 1024)
	for i := range samples {
		samples[i] = walk.Next()
	}

	for _, name := range []string{"proto", "json", "gob"} {
		codec, err := serializer.FromName(name)
		if err != nil {
			return err
		}

		record("encode-"+name, testing.Benchmark(func(b *testing.B) {
			if shouldSkip("encode-" + name) {
				return
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := codec.Serialize(samples[i%len(samples)]); err != nil {
					log.Printf("(encode-%s) - error: %v\n", name, err)
				}
			}
		}))

		payloads := make([][]byte, len(samples))
		for i, s := range samples {
			if payloads[i], err = codec.Serialize(s); err != nil {
				return err
			}
		}

		record("decode-"+name, testing.Benchmark(func(b *testing.B) {
			if shouldSkip("decode-" + name) {
				return
			}
			var s common.Sample
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := codec.Deserialize(payloads[i%len(payloads)], &s); err != nil {
					log.Printf("(decode-%s) - error: %v\n", name, err)
				}
			}
		}))
	}

	// Motion processor
	processor, err := motion.NewProcessor(motion.DefaultConfig())
	if err != nil {
		return err
	}
	record("motion-update", testing.Benchmark(func(b *testing.B) {
		if shouldSkip("motion-update") {
			return
		}
		steady, _ := emulator.NewSteady(emulator.DefaultSteadyConfig())
		state := motion.NewState()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			state, _ = processor.Update(state, steady.Next())
		}
	}))

	// Socket round trip
	record("loopback", testing.Benchmark(func(b *testing.B) {
		if shouldSkip("loopback") {
			return
		}
		if err := benchmarkLoopback(b); err != nil {
			log.Printf("(loopback) - error: %v\n", err)
		}
	}))

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return err
		}
		fmt.Printf("\nresults written to %s\n", csvPath)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// benchmarkLoopback publishes b.N frames to one consumer on a temporary socket and waits until all arrived.
// At most queue-size frames are in flight, so no frame is dropped
func benchmarkLoopback(b *testing.B) error {
	dir, err := os.MkdirTemp("", "imuperf")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	pubConfig := common.DefaultPublisherConfig()
	pubConfig.Endpoint = filepath.Join(dir, "perf.sock")
	pubConfig.SessionQueueSize = perfQueueSize

	pub := unix.NewUnixPublisherTransport()
	if err := pub.Bind(pubConfig); err != nil {
		return err
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pub.Serve(ctx) }()

	var received atomic.Int64
	conConfig := common.DefaultConsumerConfig()
	conConfig.Endpoint = pubConfig.Endpoint
	con := unix.NewUnixConsumerTransport()
	go func() {
		_ = con.Run(ctx, conConfig, func([]byte) error {
			received.Add(1)
			return nil
		})
	}()

	if err := pub.WaitForSessions(ctx, 1); err != nil {
		return err
	}

	payload := make([]byte, perfFrameSize)
	target := int64(b.N)
	inFlight := int64(perfQueueSize)

	b.ResetTimer()
	for sent := int64(0); received.Load() < target; {
		if sent < target && sent-received.Load() < inFlight {
			if pub.Publish(payload) == 0 {
				return fmt.Errorf("consumer disconnected after %d frames", received.Load())
			}
			sent++
			continue
		}
		if pub.Sessions() == 0 {
			return fmt.Errorf("consumer disconnected after %d frames", received.Load())
		}
		time.Sleep(time.Microsecond)
	}
	b.StopTimer()
	return nil
}

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\t%d allocs/op\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec, result.AllocsPerOp())
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "AllocsPerOp", "Skipped",
		"Serializer", "LoopbackFrameSize", "QueueSize",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			strconv.FormatInt(result.AllocsPerOp(), 10),
			skipped,
			viper.GetString("serializer"),
			strconv.Itoa(perfFrameSize),
			strconv.Itoa(perfQueueSize),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
