package cli

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"oeb_automation/application/download"
	"oeb_automation/application/teardown"
	"oeb_automation/domain/entities"
	"oeb_automation/infrastructure/api"
	"oeb_automation/infrastructure/browser"
	"oeb_automation/infrastructure/diagnostics"
	"oeb_automation/infrastructure/qr"
	"oeb_automation/infrastructure/storage"

	"github.com/spf13/cobra"
)

func newTeardownCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "teardown",
		Short: "Delete the fixture badges left by test runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg
			if cfg.Username == "" || cfg.Password == "" {
				return fmt.Errorf("teardown needs OEB_USERNAME and OEB_PASSWORD")
			}
			client := api.NewClient(cfg.BackendURL, cfg.ExtendedWait, app.logger)
			report, err := teardown.NewCleaner(client, cfg.Username, cfg.Password, app.logger).Run(cmd.Context())
			if report != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d badges, revoked %d assertions\n", report.Badges, report.Assertions)
			}
			return err
		},
	}
}

func newWaitDownloadCommand(app *App) *cobra.Command {
	var (
		pattern    string
		timeout    time.Duration
		dir        string
		clearFirst bool
	)
	cmd := &cobra.Command{
		Use:   "wait-download",
		Short: "Wait for a finished download matching a pattern",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return fmt.Errorf("invalid pattern: %w", err)
			}
			if dir == "" {
				dir = app.cfg.DownloadDir
			}
			if timeout <= 0 {
				timeout = app.cfg.ExtendedWait
			}

			downloads := storage.NewDownloadDir(app.fs, dir, app.logger)
			if clearFirst {
				if _, err := downloads.Clear(re); err != nil {
					return err
				}
			}

			watcher := download.NewWatcher(app.fs, app.logger,
				download.WithPartialSuffixes(app.cfg.PartialSuffixes...),
				download.WithObserver(app.metrics),
			)
			path, err := watcher.Wait(cmd.Context(), entities.DownloadExpectation{
				Directory:    downloads.Path(),
				Pattern:      re,
				Timeout:      timeout,
				PollInterval: app.cfg.PollInterval,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "", "regular expression the file name must match")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "how long to wait (default extended wait)")
	cmd.Flags().StringVar(&dir, "dir", "", "download directory (default configured download_dir)")
	cmd.Flags().BoolVar(&clearFirst, "clear", false, "remove matching files before waiting")
	_ = cmd.MarkFlagRequired("pattern")
	return cmd
}

func newQRCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "qr <pdf>",
		Short: "Print the QR code payload and request id of an exported PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), app.cfg.ExtendedWait)
			defer cancel()

			rasterizer := qr.PdftoppmRasterizer{Binary: app.cfg.Pdftoppm}
			payload, err := qr.NewExtractor(rasterizer, app.logger).FromPDF(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), payload)
			if id, err := qr.RequestID(payload); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "request id: %s\n", id)
			}
			return nil
		},
	}
}

func newScreenshotCommand(app *App) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "screenshot <url>",
		Short: "Open a page with the configured backend and save a screenshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, err := browser.Open(ctx, app.cfg.BrowserOptions(), app.logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := session.Close(); err != nil {
					app.logger.WithError(err).Warn("Failed to close browser")
				}
			}()

			if err := session.Navigate(ctx, args[0]); err != nil {
				return err
			}
			if title == "" {
				title = args[0]
			}
			path, err := diagnostics.NewCapturer(app.fs, app.cfg.ScreenshotDir, app.logger).Capture(ctx, session, title)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "name the screenshot is derived from (default the url)")
	return cmd
}
