package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/modelboard/internal/delivery"
	"github.com/Faultbox/modelboard/internal/logger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the asset delivery service",
		Long: `Serve local model files (GET /api/local?path=...) with byte range
support and relay remote assets (GET /api/proxy?url=...) with permissive
CORS headers. Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := delivery.NewServer(deliveryOptions())
			logger.Info("starting delivery service",
				zap.String("addr", cfg.Server.Addr),
				zap.Strings("roots", cfg.Delivery.LocalRoots))
			return srv.Run(ctx)
		},
	}
}

func deliveryOptions() delivery.Options {
	return delivery.Options{
		Addr:              cfg.Server.Addr,
		LocalRoots:        cfg.Delivery.LocalRoots,
		AllowOrigin:       cfg.Delivery.AllowOrigin,
		ProxyTimeout:      cfg.Delivery.ProxyTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		Logger:            logger.Named("delivery"),
	}
}
