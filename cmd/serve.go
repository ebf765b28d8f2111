package main

import (
	"context"
	"log"
	"time"

	"github.com/mohammad-safakhou/policylens/config"
	"github.com/mohammad-safakhou/policylens/internal/runtime"
	srv "github.com/mohammad-safakhou/policylens/internal/server"
	"github.com/spf13/cobra"
)

var version = "dev"

func serveCMD(cfgPath *string) *cobra.Command {
	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			ctx, cancel := runtime.SignalContext(cmd.Context(), cfg.General.ServiceName)
			defer cancel()

			tele, err := runtime.SetupTelemetry(ctx, cfg.Telemetry, runtime.TelemetryOptions{
				ServiceName:    cfg.General.ServiceName,
				ServiceVersion: version,
			})
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tele.Shutdown(shutdownCtx); err != nil {
					log.Printf("telemetry shutdown: %v", err)
				}
			}()

			if cfg.Server.AutoMigrate {
				dsn, err := runtime.BuildPostgresDSN(cfg)
				if err != nil {
					return err
				}
				if err := srv.Migrate(cfg.Server.MigrationsDir, dsn, "up", 0); err != nil {
					return err
				}
			}

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			addr := serveAddr
			if addr == "" {
				addr = cfg.Server.Address
			}
			return srv.Run(ctx, srv.New(a.services, tele.Handler()), addr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.address)")

	return serve
}
