package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/theimaginaryfoundation/density-scorer/scoring"
	"github.com/theimaginaryfoundation/density-scorer/scoring/fileutils"
	"github.com/theimaginaryfoundation/density-scorer/scoring/provider"
)

func main() {
	_ = godotenv.Load()

	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := scoring.OpenCorpus(cfg.DBPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	defer db.Close()

	store := scoring.CheckpointStore{Path: cfg.Checkpoint}

	// Resuming is advisory: an explicit -offset can skip further ahead,
	// but checkpoint data is never silently ignored when it is larger.
	offset := cfg.Offset
	if cfg.Resume {
		if last := store.Load(); last > offset {
			offset = last
			fmt.Fprintf(os.Stderr, "resuming from checkpoint: turn ID > %d\n", offset)
		}
	}

	turns, err := scoring.ReadTurns(ctx, db, scoring.TurnFilter{
		MinLength: cfg.MinLength,
		Role:      cfg.Role,
		AfterID:   offset,
		Limit:     cfg.Limit,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	batches := scoring.SplitBatches(turns, cfg.BatchSize)

	fmt.Printf("Corpus density scorer\n")
	fmt.Printf("  model:      %s @ %s\n", cfg.Model, cfg.BaseURL)
	fmt.Printf("  turns:      %d (role=%s, min-length=%d)\n", len(turns), cfg.Role, cfg.MinLength)
	fmt.Printf("  batch size: %d turns/request\n", cfg.BatchSize)
	fmt.Printf("  requests:   %d\n", len(batches))
	fmt.Printf("  parallel:   %d\n\n", cfg.Parallel)

	if cfg.DryRun {
		printDryRun(turns, cfg.BatchSize)
		return
	}
	if len(turns) == 0 {
		fmt.Println("nothing to score")
		return
	}

	client := provider.New(cfg.BaseURL, cfg.Model, cfg.requestTimeout())
	if err := client.Health(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	fmt.Println("service healthy, starting scoring")

	outPath := cfg.resultLogPath(time.Now())
	sink, err := scoring.NewResultSink(outPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	start := time.Now()
	dispatcher := &scoring.Dispatcher{
		Scorer:      &scoring.BatchScorer{LLM: client, MaxTokens: cfg.MaxTokens},
		Sink:        sink,
		Checkpoints: store,
		Parallelism: cfg.Parallel,
		RunID:       uuid.NewString(),
		OnProgress: func(p scoring.Progress) {
			printProgress(p, start)
		},
	}

	stats, runErr := dispatcher.Run(ctx, batches)
	fmt.Println()
	if err := sink.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr.Error())
		os.Exit(1)
	}

	printSummary(stats, outPath, time.Since(start))
}

func printDryRun(turns []scoring.Turn, batchSize int) {
	if len(turns) == 0 {
		fmt.Println("dry run: nothing to score")
		return
	}
	fmt.Println("dry run, first batch would be:")
	n := batchSize
	if n > len(turns) {
		n = len(turns)
	}
	for _, t := range turns[:n] {
		fmt.Printf("  [%d] %s (%s): %s\n", t.ID, t.Role, t.Channel, fileutils.Truncate(t.Content, 80))
	}
	if rest := len(turns) - n; rest > 0 {
		fmt.Printf("  ... and %d more\n", rest)
	}
}

func printProgress(p scoring.Progress, start time.Time) {
	elapsed := time.Since(start).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.Stats.Scored) / elapsed
	}
	pct := float64(p.BatchesDone) / float64(p.BatchesTotal) * 100
	d := p.Stats.Distribution
	fmt.Printf("\r  [%5.1f%%] batches %d/%d | scored %d | errors %d | %.1f turns/s | C:%d E:%d A:%d P:%d",
		pct, p.BatchesDone, p.BatchesTotal, p.Stats.Scored, p.Stats.Errors, rate,
		d[scoring.DensityCore], d[scoring.DensityEnriched], d[scoring.DensityActive], d[scoring.DensityPruned])
}

func printSummary(stats scoring.Stats, outPath string, elapsed time.Duration) {
	total := stats.Scored + stats.Errors
	errPct := 0.0
	if total > 0 {
		errPct = float64(stats.Errors) / float64(total) * 100
	}

	fmt.Printf("\nDone in %.0fs (%.1f min)\n", elapsed.Seconds(), elapsed.Minutes())
	fmt.Printf("  output: %s\n", outPath)
	fmt.Printf("  scored: %d | errors: %d (%.1f%%)\n", stats.Scored, stats.Errors, errPct)
	fmt.Println("  distribution:")

	labels := make([]string, 0, len(stats.Distribution))
	for label := range stats.Distribution {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		n := stats.Distribution[label]
		pct := float64(n) / float64(max(stats.Scored, 1)) * 100
		bar := strings.Repeat("█", int(pct/2))
		fmt.Printf("    %-10s: %5d (%5.1f%%) %s\n", label, n, pct, bar)
	}
}
