package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/signview/signview/config"
	"github.com/signview/signview/logger"
	"github.com/signview/signview/staticfiles"
	"github.com/signview/signview/web"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "signview",
	Short: "Content aggregation server for signage displays",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the aggregation server",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.NewConsoleLogger(logger.GetLevelFromEnv())
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		app, err := web.NewApp(cfg, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := app.Start(ctx); err != nil {
			return err
		}
		go func() {
			if err := config.Watch(ctx, configPath, log, app.Reload); err != nil {
				log.Warn("config watch disabled: %v", err)
			}
		}()
		// A persist failure is unrecoverable; take the whole server down.
		go func() {
			if err := app.Fatal(); err != nil {
				log.Error("background refresh failed: %v", err)
				stop()
			}
		}()

		srv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           app.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		serveErr := make(chan error, 1)
		go func() { serveErr <- srv.ListenAndServe() }()
		log.Info("listening on %s", cfg.Listen)

		select {
		case <-ctx.Done():
		case err := <-serveErr:
			if err != nil && err != http.ErrServerClosed {
				app.Stop()
				return err
			}
		}

		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown: %v", err)
		}
		return app.Stop()
	},
}

var collectstaticCmd = &cobra.Command{
	Use:   "collectstatic <outdir>",
	Short: "Copy the static assets into a directory for external hosting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.NewConsoleLogger(logger.GetLevelFromEnv())
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return staticfiles.Collect(cfg.StaticDir, args[0], log)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "signview.yaml", "path to the configuration file")
	rootCmd.AddCommand(serveCmd, collectstaticCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
