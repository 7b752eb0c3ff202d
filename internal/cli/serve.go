package cli

import (
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/kestrel-sec/authgate/internal/config"
	"github.com/kestrel-sec/authgate/internal/di"
	"github.com/kestrel-sec/authgate/internal/server"
)

func cmdServe() *cobra.Command {
	var listenAddr string

	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}

			deps, err := di.BuildDeps(cfg)
			if err != nil {
				return err
			}
			h := server.BuildRouter(deps, server.Options{
				EnableCORS: cfg.EnableCORS,
				Env:        cfg.Env,
			})

			slog.Info("listening",
				"addr", cfg.ListenAddr,
				"backend", cfg.Backend,
			)
			return http.ListenAndServe(cfg.ListenAddr, h)
		},
	}

	c.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides config)")
	return c
}
