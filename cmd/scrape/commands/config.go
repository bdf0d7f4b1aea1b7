package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"easypce-backend/lib/configutil"
	configlibsql "easypce-backend/lib/configutil/libsql"
	"easypce-backend/lib/restyutil"
	"easypce-backend/lib/scrapers/core"
	"easypce-backend/services/catalog/pipeline"
	"easypce-backend/services/catalog/report"
)

type HttpConfig struct {
	TimeoutSeconds    int     `json:"timeout_seconds"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	CloudflareBypass  bool    `json:"cloudflare_bypass"`
	// request/response dumps are written under it, --verbose defaults it
	// to <dev_state>/resty
	DumpDir string `json:"dump_dir"`
}

type PipelineConfig struct {
	Workers                  int  `json:"workers"`
	UnitTimeoutSeconds       int  `json:"unit_timeout_seconds"`
	MaxAttempts              int  `json:"max_attempts"`
	ClearMissingEnrollParams bool `json:"clear_missing_enroll_params"`
}

type Config struct {
	Database     configlibsql.Struct `json:"database"`
	FeedUrl      string              `json:"feed_url"`
	RegistrarUrl string              `json:"registrar_url"`
	EvalsUrl     string              `json:"evals_url"`
	Http         HttpConfig          `json:"http"`
	Pipeline     PipelineConfig      `json:"pipeline"`
	Report       report.Config       `json:"report"`
}

const (
	defaultDatabase     = "<dev_state>/catalog.db"
	defaultFeedUrl      = "http://etcweb.princeton.edu/webfeeds/courseofferings/"
	defaultRegistrarUrl = "https://registrar.princeton.edu/course-offerings/course_details.xml"
	defaultEvalsUrl     = "https://reg-captiva.princeton.edu/chart/index.php"
)

func (c *Config) applyDefaults() {
	if c.Database.File == "" && c.Database.Url == "" {
		c.Database.File = defaultDatabase
	}
	if c.FeedUrl == "" {
		c.FeedUrl = defaultFeedUrl
	}
	if c.RegistrarUrl == "" {
		c.RegistrarUrl = defaultRegistrarUrl
	}
	if c.EvalsUrl == "" {
		c.EvalsUrl = defaultEvalsUrl
	}
	if c.Http.RequestsPerSecond == 0 {
		c.Http.RequestsPerSecond = 8
	}
}

func loadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("config file not found, using defaults", "path", path)
		err = nil
	}
	if err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c Config) pipelineOptions() pipeline.Options {
	return pipeline.Options{
		Workers:     c.Pipeline.Workers,
		UnitTimeout: time.Duration(c.Pipeline.UnitTimeoutSeconds) * time.Second,
		MaxAttempts: c.Pipeline.MaxAttempts,
	}
}

// clientOptions gives each client its own dump directory so exchanges
// from different sources are not interleaved.
func (c Config) clientOptions(name string, verbose bool) (core.ClientOptions, error) {
	opts := core.ClientOptions{
		Timeout:           time.Duration(c.Http.TimeoutSeconds) * time.Second,
		RequestsPerSecond: c.Http.RequestsPerSecond,
		CloudflareBypass:  c.Http.CloudflareBypass,
	}

	dumpDir := c.Http.DumpDir
	if dumpDir == "" && verbose {
		dumpDir = "<dev_state>/resty"
	}
	if dumpDir == "" {
		return opts, nil
	}
	output, err := restyutil.NewFilesystemOutput(filepath.Join(dumpDir, name))
	if err != nil {
		return core.ClientOptions{}, fmt.Errorf("http dumps for %s: %w", name, err)
	}
	opts.Output = output
	return opts, nil
}
