package main

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	DBPath     string
	OutDir     string
	OutputPath string // explicit result log path; empty = timestamped file under OutDir
	Checkpoint string
	BaseURL    string
	Model      string

	BatchSize int
	Offset    int64
	Limit     int
	MinLength int
	Role      string
	Parallel  int

	MaxTokens int64
	Timeout   time.Duration

	Resume bool
	DryRun bool
}

func defaultConfig() Config {
	return Config{
		DBPath:    envOr("DENSITY_DB", filepath.FromSlash("memory/corpus.db")),
		OutDir:    envOr("DENSITY_OUTPUT_DIR", "output"),
		BaseURL:   envOr("DENSITY_URL", "http://localhost:18080/v1"),
		Model:     envOr("DENSITY_MODEL", "MiniMax-M2.5-UD-TQ1_0.gguf"),
		BatchSize: 10,
		MinLength: 50,
		Role:      "user",
		Parallel:  2,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the corpus SQLite database")
	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "Output directory for the result log and checkpoint")
	fs.StringVar(&cfg.OutputPath, "output", "", "Explicit result log path (default: <out>/density_<timestamp>.jsonl)")
	fs.StringVar(&cfg.Checkpoint, "checkpoint", "", "Checkpoint file path (default: <out>/checkpoint.json)")
	fs.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "Classification service base URL (OpenAI-compatible, ending in /v1)")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Model identifier sent with each request")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Turns per request (1 = unbatched scoring)")
	fs.Int64Var(&cfg.Offset, "offset", 0, "Start from turn ID offset (exclusive)")
	fs.IntVar(&cfg.Limit, "limit", 0, "Max turns to process (0 = all)")
	fs.IntVar(&cfg.MinLength, "min-length", cfg.MinLength, "Skip content shorter than this")
	fs.StringVar(&cfg.Role, "role", cfg.Role, "Filter by role (user/assistant/both)")
	fs.IntVar(&cfg.Parallel, "parallel", cfg.Parallel, "Parallel batch requests (match the server's slots)")
	fs.Int64Var(&cfg.MaxTokens, "max-tokens", 0, "Max output tokens per request (0 = auto by batch size)")
	fs.DurationVar(&cfg.Timeout, "timeout", 0, "Per-attempt request timeout (0 = auto: 30s unbatched, 120s batched)")
	fs.BoolVar(&cfg.Resume, "resume", false, "Resume from the last checkpoint")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Show what would be processed without scoring or writing output")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.DBPath = filepath.Clean(cfg.DBPath)
	cfg.OutDir = filepath.Clean(cfg.OutDir)
	if cfg.OutputPath != "" {
		cfg.OutputPath = filepath.Clean(cfg.OutputPath)
	}
	if cfg.Checkpoint == "" {
		cfg.Checkpoint = filepath.Join(cfg.OutDir, "checkpoint.json")
	} else {
		cfg.Checkpoint = filepath.Clean(cfg.Checkpoint)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("missing -db")
	}
	if c.BaseURL == "" {
		return errors.New("missing -url")
	}
	if c.Model == "" {
		return errors.New("missing -model")
	}
	if c.BatchSize < 1 {
		return errors.New("batch-size must be >= 1")
	}
	if c.Parallel < 1 {
		return errors.New("parallel must be >= 1")
	}
	if c.Offset < 0 {
		return errors.New("offset must be >= 0")
	}
	if c.Limit < 0 {
		return errors.New("limit must be >= 0")
	}
	if c.MinLength < 0 {
		return errors.New("min-length must be >= 0")
	}
	switch c.Role {
	case "user", "assistant", "both":
	default:
		return errors.New(`role must be "user", "assistant", or "both"`)
	}
	if c.MaxTokens < 0 {
		return errors.New("max-tokens must be >= 0")
	}
	if c.Timeout < 0 {
		return errors.New("timeout must be >= 0")
	}
	return nil
}

// requestTimeout is the per-attempt transport timeout. Batched requests get
// the larger budget since a reply covers up to batch-size turns.
func (c Config) requestTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	if c.BatchSize == 1 {
		return 30 * time.Second
	}
	return 120 * time.Second
}

func (c Config) resultLogPath(now time.Time) string {
	if c.OutputPath != "" {
		return c.OutputPath
	}
	return filepath.Join(c.OutDir, "density_"+now.Format("20060102_150405")+".jsonl")
}
