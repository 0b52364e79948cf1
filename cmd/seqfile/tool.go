package main

import (
	"io"

	"github.com/aalhour/seqfile"
	"github.com/aalhour/seqfile/internal/logging"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// toolT holds the command tree and the state shared by all commands.
type toolT struct {
	Root *cobra.Command

	fs seqfile.FS

	logLevel  string
	logFormat string
	metrics   bool

	logger logging.Logger
	reg    *prometheus.Registry
	m      *seqfile.Metrics

	gen   generatorFlags
	write writeFlags
	sort  sortFlags
	dump  dumpFlags
	bench benchFlags
}

func newTool(fs seqfile.FS) *toolT {
	t := &toolT{fs: fs, logger: logging.Discard}
	t.Root = &cobra.Command{
		Use:               "seqfile [command] (flags)",
		Short:             "sequence file introspection and sorting tool",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: t.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !t.metrics {
				return nil
			}
			return t.printMetrics(cmd.OutOrStdout())
		},
	}
	t.Root.PersistentFlags().StringVar(
		&t.logLevel, "log-level", "warn", "log level: error, warn, info or debug")
	t.Root.PersistentFlags().StringVar(
		&t.logFormat, "log-format", "text", "log format: plain, text or json")
	t.Root.PersistentFlags().BoolVar(
		&t.metrics, "metrics", false, "print metrics in the Prometheus text format on exit")

	t.Root.AddCommand(
		t.writeCmd(),
		t.readCmd(),
		t.dumpCmd(),
		t.sortCmd(),
		t.mergeCmd(),
		t.checkCmd(),
		t.benchCmd(),
	)
	return t
}

// setup configures logging and metrics from the persistent flags.
func (t *toolT) setup(cmd *cobra.Command, args []string) error {
	level, err := logging.ParseLevel(t.logLevel)
	if err != nil {
		return err
	}
	l := logrus.New()
	l.SetOutput(cmd.ErrOrStderr())
	l.SetLevel(logging.LogrusLevel(level))
	switch t.logFormat {
	case "plain":
		t.logger = logging.NewLogger(cmd.ErrOrStderr(), level)
	case "text":
		l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
		t.logger = logging.NewLogrus(l)
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
		t.logger = logging.NewLogrus(l)
	default:
		return errors.Newf("unknown log format %q", t.logFormat)
	}

	if t.metrics {
		t.reg = prometheus.NewRegistry()
		t.m = seqfile.NewMetrics(t.reg)
	}
	return nil
}

func (t *toolT) printMetrics(w io.Writer) error {
	families, err := t.reg.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func (t *toolT) readerOptions() seqfile.ReaderOptions {
	return seqfile.ReaderOptions{Logger: t.logger, Metrics: t.m}
}
