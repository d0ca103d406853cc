package main

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/1F47E/fieldmap/pkg/field"
	"github.com/1F47E/fieldmap/pkg/field/synth"
)

var (
	benchRuns    int
	benchWorkers int
	benchRows    int
	benchLength  float64
	benchSeed    int64
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Time reconstruction of generated fields",
	Long: `Generates serpentine fields with overlapping images and reconstructs them
concurrently, one independent field per run.`,
	Args: cobra.NoArgs,
	RunE: runBenchmark,
}

func init() {
	f := benchmarkCmd.Flags()
	f.IntVarP(&benchRuns, "runs", "n", 20, "Number of reconstructions")
	f.IntVarP(&benchWorkers, "workers", "w", runtime.NumCPU(), "Number of concurrent workers")
	f.IntVar(&benchRows, "rows", 20, "Rows per generated field")
	f.Float64Var(&benchLength, "length", 100, "Row length in meters")
	f.Int64Var(&benchSeed, "seed", 1, "Seed of the first field, incremented per run")
}

type BenchmarkResult struct {
	Runs          int
	Failed        int64
	TotalDuration time.Duration
	AvgDuration   time.Duration
	RunsPerSec    float64
	MinDuration   time.Duration
	MaxDuration   time.Duration
	Detections    int64
	Canonical     int64
	Groups        int64
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	if benchRuns <= 0 || benchWorkers <= 0 {
		return fmt.Errorf("runs and workers must be positive")
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opt := field.OptionsFromConfig(cfg)
	// generated images are taken without camera rotation
	opt.CameraRotation = 0

	params := synth.DefaultParams()
	params.Rows = benchRows
	params.RowLength = benchLength
	params.PlantSpacing = opt.PlantSpacing

	logger.Infof("Running %d reconstructions of %d x %.0f m fields with %d workers", benchRuns, benchRows, benchLength, benchWorkers)

	var (
		failed, detections, canonical, groups int64
		durations                            []time.Duration
		firstErr                             error
		mu                                   sync.Mutex
		wg                                   sync.WaitGroup
	)
	result := BenchmarkResult{Runs: benchRuns, MinDuration: time.Hour}
	runCh := make(chan int, benchRuns)
	quiet := silentLog{logger}
	startTime := time.Now()

	wg.Add(benchWorkers)
	for w := 0; w < benchWorkers; w++ {
		go func() {
			defer wg.Done()
			for run := range runCh {
				p := params
				p.Seed = benchSeed + int64(run)
				in, err := synth.Field(p)
				if err == nil {
					atomic.AddInt64(&detections, int64(len(in.Detections)))
				}

				runStart := time.Now()
				var f *field.Field
				if err == nil {
					f, err = field.Reconstruct(quiet, in, opt)
				}
				runDuration := time.Since(runStart)

				if err != nil {
					atomic.AddInt64(&failed, 1)
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				atomic.AddInt64(&canonical, int64(len(f.Canonical)))
				atomic.AddInt64(&groups, int64(len(f.Groups)))

				mu.Lock()
				durations = append(durations, runDuration)
				if runDuration < result.MinDuration {
					result.MinDuration = runDuration
				}
				if runDuration > result.MaxDuration {
					result.MaxDuration = runDuration
				}
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < benchRuns; i++ {
		runCh <- i
	}
	close(runCh)

	wg.Wait()
	result.TotalDuration = time.Since(startTime)
	result.Failed, result.Detections, result.Canonical, result.Groups = failed, detections, canonical, groups

	if len(durations) == 0 {
		return fmt.Errorf("every run failed: %w", firstErr)
	}
	var totalDur time.Duration
	for _, d := range durations {
		totalDur += d
	}
	result.AvgDuration = totalDur / time.Duration(len(durations))
	result.RunsPerSec = float64(len(durations)) / result.TotalDuration.Seconds()
	if firstErr != nil {
		logger.Warnf("%d runs failed, first error: %v", result.Failed, firstErr)
	}

	fmt.Println("\n=== Benchmark Results ===")
	fmt.Printf("Runs: %d (%d failed)\n", result.Runs, result.Failed)
	fmt.Printf("Total Duration: %v\n", result.TotalDuration)
	fmt.Printf("Average Duration: %v\n", result.AvgDuration)
	fmt.Printf("Runs/Second: %.2f\n", result.RunsPerSec)
	fmt.Printf("Min Duration: %v\n", result.MinDuration)
	fmt.Printf("Max Duration: %v\n", result.MaxDuration)
	fmt.Printf("Detections: %d\n", result.Detections)
	fmt.Printf("Unique Items: %d\n", result.Canonical)
	fmt.Printf("Plant Groups: %d\n", result.Groups)
	fmt.Printf("Workers Used: %d\n", benchWorkers)
	fmt.Printf("CPU Cores: %d\n", runtime.NumCPU())
	return nil
}
