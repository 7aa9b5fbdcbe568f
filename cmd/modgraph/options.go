package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kingrea/modgraph/internal/config"
)

// Options contains the command-line configuration shared by all commands.
// Empty values defer to .modgraph/config.yaml.
type Options struct {
	ProjectDir    string // Directory holding .modgraph/.
	Catalog       string // Module catalog file, overrides config.yaml.
	Configuration string // Thread configuration file, overrides config.yaml.
	LogLevel      string // info, verbose, debug, trace or a zap level name.
	LogFormat     string // console or json.
	HTTPAddr      string // serve: listen address for views and metrics.
	NATSURL       string // serve: publish snapshots to this NATS server.
	NoWatch       bool   // serve: do not reload on file changes.
	NoHTTP        bool   // serve: do not start the HTTP listener.
}

// NewOptions returns Options initialized with default values.
func NewOptions() *Options {
	return &Options{}
}

// AddFlags binds the Options fields to command-line flags on the given FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	if fs == nil {
		fs = pflag.CommandLine
	}
	fs.StringVarP(&o.ProjectDir, "project", "p", o.ProjectDir, "project directory (defaults to the working directory)")
	fs.StringVar(&o.Catalog, "catalog", o.Catalog, "module catalog YAML file")
	fs.StringVar(&o.Configuration, "configuration", o.Configuration, "thread configuration YAML file")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "log level: info, verbose, debug, trace")
	fs.StringVar(&o.LogFormat, "log-format", o.LogFormat, "log encoding: console or json")
	fs.StringVar(&o.HTTPAddr, "http-addr", o.HTTPAddr, "listen address for views and metrics")
	fs.StringVar(&o.NATSURL, "nats-url", o.NATSURL, "NATS server that receives new execution views")
	fs.BoolVar(&o.NoWatch, "no-watch", o.NoWatch, "do not reload when the configuration file changes")
	fs.BoolVar(&o.NoHTTP, "no-http", o.NoHTTP, "do not start the HTTP listener")
}

// Complete fills derived values and validates the flags.
func (o *Options) Complete() error {
	if strings.TrimSpace(o.ProjectDir) == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		o.ProjectDir = cwd
	}
	abs, err := filepath.Abs(o.ProjectDir)
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}
	o.ProjectDir = abs
	switch strings.ToLower(strings.TrimSpace(o.LogFormat)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", o.LogFormat)
	}
	return nil
}

// Apply overlays the flags on a loaded project configuration.
func (o *Options) Apply(cfg *config.Config) {
	if o.Catalog != "" {
		cfg.Project.Catalog = absFrom(o.ProjectDir, o.Catalog)
	}
	if o.Configuration != "" {
		cfg.Project.Configuration = absFrom(o.ProjectDir, o.Configuration)
	}
	if o.LogLevel != "" {
		cfg.Project.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Project.Logging.Format = o.LogFormat
	}
	if o.HTTPAddr != "" {
		cfg.Project.Metrics.Address = o.HTTPAddr
	}
	if o.NATSURL != "" {
		cfg.Project.Publish.NATSURL = o.NATSURL
	}
	if o.NoWatch {
		cfg.Project.Watch.Enabled = false
	}
}

func absFrom(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}
