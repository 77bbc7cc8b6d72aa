// Package cli is the command line front end of the suite
package cli

import (
	"fmt"
	"io"

	"oeb_automation/infrastructure/config"
	"oeb_automation/infrastructure/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// App carries what every command shares once the configuration is loaded
type App struct {
	configFile  string
	envFiles    []string
	logLevel    string
	dumpMetrics bool

	fs       afero.Fs
	cfg      *config.Config
	logger   *logrus.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collectors
}

// NewRootCommand - builds the oeb command tree on the local filesystem
func NewRootCommand() *cobra.Command {
	return newRootCommand(afero.NewOsFs())
}

func newRootCommand(fs afero.Fs) *cobra.Command {
	app := &App{fs: fs}

	root := &cobra.Command{
		Use:   "oeb",
		Short: "Open Educational Badges end-to-end automation",
		Long: `oeb drives the browser flows of the Open Educational Badges suite.

Backends:
  - playwright: Playwright Chromium (default)
  - selenium:   ChromeDriver
  - rod:        go-rod over CDP
  - chromedp:   chromedp over CDP`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !app.dumpMetrics {
				return nil
			}
			return app.writeMetrics(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&app.configFile, "config", "", "YAML config file")
	root.PersistentFlags().StringSliceVar(&app.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	root.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "override the configured log level")
	root.PersistentFlags().BoolVar(&app.dumpMetrics, "metrics", false, "print collected metrics to stderr when the command ends")

	root.AddCommand(
		newTeardownCommand(app),
		newWaitDownloadCommand(app),
		newQRCommand(app),
		newLocateCommand(app),
		newScreenshotCommand(app),
	)
	return root
}

func (a *App) setup(logOut io.Writer) error {
	cfg, err := config.Load(a.configFile, a.envFiles...)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger := logrus.New()
	logger.SetOutput(logOut)
	logger.SetLevel(cfg.Level())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	registry := prometheus.NewRegistry()
	collectors, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	a.registry = registry
	a.metrics = collectors
	return nil
}

func (a *App) writeMetrics(w io.Writer) error {
	families, err := a.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
