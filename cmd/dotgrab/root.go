package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/benithors/dotgrab/internal/config"
	"github.com/benithors/dotgrab/internal/logging"
)

type options struct {
	Version string

	// Global flags.
	VersionFlag bool
	ConfigPath  string
	Format      string
	Timeout     time.Duration
	Quiet       bool
	Verbose     bool
	LogFile     string
	MetricsFile string

	// Derived runtime state.
	runID     string
	logger    *logging.Logger
	outFormat outputFormat
}

func newRootCmd(ver string) (*cobra.Command, *options) {
	o := &options{Version: ver}

	root := &cobra.Command{
		Use:           "dotgrab",
		Short:         "Buy watched domain names on OVH as soon as they drop",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return &cliError{Code: exitUsage, ShowUsage: true, Cmd: cmd}
		},
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SetFlagErrorFunc(usageErr)

	pf := root.PersistentFlags()
	pf.BoolVar(&o.VersionFlag, "version", false, "Print version and exit")
	pf.StringVar(&o.ConfigPath, "config", "", "Config file (default $"+config.EnvPath+" or "+config.DefaultPath()+")")
	pf.StringVar(&o.Format, "format", "auto", "Report format: auto|table|ndjson|json|plain")
	pf.DurationVar(&o.Timeout, "timeout", 30*time.Second, "Per-request timeout (e.g. 30s, 1m)")
	pf.BoolVarP(&o.Quiet, "quiet", "q", false, "No log output on stderr")
	pf.BoolVarP(&o.Verbose, "verbose", "v", false, "Debug log output on stderr")
	pf.StringVar(&o.LogFile, "log-file", logging.DefaultFilePath(), "Append JSON logs to this file (empty to disable)")
	pf.StringVar(&o.MetricsFile, "metrics-file", "", "Write run metrics in Prometheus text format to this file")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if o.VersionFlag {
			fmt.Fprintf(os.Stdout, "dotgrab %s (%s/%s)\n", o.Version, runtime.GOOS, runtime.GOARCH)
			return errExit0
		}
		if o.Quiet && o.Verbose {
			return usageErr(cmd, fmt.Errorf("flags are mutually exclusive: --quiet, --verbose"))
		}
		if o.Timeout <= 0 {
			return usageErr(cmd, fmt.Errorf("--timeout must be positive"))
		}

		f, ok := parseFormat(o.Format, os.Stdout)
		if !ok {
			return usageErr(cmd, fmt.Errorf("unknown format %q (use auto|table|ndjson|json|plain)", o.Format))
		}
		o.outFormat = f

		l, err := logging.New(logging.Options{
			Console:  os.Stderr,
			Verbose:  o.Verbose,
			Quiet:    o.Quiet,
			FilePath: strings.TrimSpace(o.LogFile),
		})
		if err != nil {
			return fatalErr(cmd, err)
		}
		o.logger = l
		o.runID = uuid.NewString()
		return nil
	}

	root.AddCommand(newRunCmd(o))
	root.AddCommand(newKeyCmd(o))

	return root, o
}

// entry returns a logger for one component of this run.
func (o *options) entry(component string) *log.Entry {
	if o.logger == nil {
		l := log.New()
		l.SetOutput(os.Stderr)
		return log.NewEntry(l).WithField("component", component)
	}
	return o.logger.Entry(o.runID, component)
}

// loadConfig reads and validates the config file. Bad or incomplete config
// is a usage error.
func (o *options) loadConfig(cmd *cobra.Command, needConsumerKey, notify bool) (*config.Config, error) {
	path, explicit := config.ResolvePath(o.ConfigPath)
	cfg, err := config.Load(path, explicit)
	if err != nil {
		return nil, &cliError{Code: exitUsage, Err: err, Cmd: cmd}
	}
	if err := cfg.Validate(needConsumerKey, notify); err != nil {
		return nil, &cliError{Code: exitUsage, Err: err, Cmd: cmd}
	}
	o.entry("config").WithField("path", cfg.Path).Debug("config loaded")
	return cfg, nil
}

func (o *options) close() {
	if o.logger != nil {
		_ = o.logger.Close()
	}
}
