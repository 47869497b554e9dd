package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/IaSoC/sekai-pass-l10n/internal/auth/app"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the authorization server",
		Long: `Run the authorization server until SIGINT or SIGTERM.

Configuration comes from the environment: AUTH_ISSUER, AUTH_DATABASE_FILE,
AUTH_CLIENTS_FILE, AUTH_REPLAY_BACKEND (memory|redis), AUTH_REDIS_ADDR and
the token lifetimes AUTH_SESSION_TTL, AUTH_ACCESS_TOKEN_TTL, AUTH_CODE_TTL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			return application.Run(ctx)
		},
	}
}
