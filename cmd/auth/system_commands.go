package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/aussiebroadwan/crm/internal/auth/app"
	"github.com/aussiebroadwan/crm/internal/auth/service"
	"github.com/aussiebroadwan/crm/pkg/cryptox"
)

func getSystemCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "serve",
			Usage: "Start the HTTP server",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := app.LoadConfig()
				if err != nil {
					return err
				}

				application, err := app.New(cfg)
				if err != nil {
					return fmt.Errorf("failed to initialize application: %w", err)
				}
				defer func() { _ = application.Close() }()

				return application.Run(ctx)
			},
		},
		{
			Name:  "migrate",
			Usage: "Apply pending database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := app.LoadConfig()
				if err != nil {
					return err
				}
				logger := app.NewLogger(cfg)

				db, err := app.OpenStore(cfg)
				if err != nil {
					return err
				}
				defer func() { _ = db.Close() }()

				if err := db.ApplyMigrations(); err != nil {
					return fmt.Errorf("failed to apply database migrations: %w", err)
				}
				logger.Info("database migrations applied successfully", slog.String("driver", cfg.DBDriver))
				return nil
			},
		},
		{
			Name:  "sweep",
			Usage: "Delete expired refresh tokens and old audit entries once",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := app.LoadConfig()
				if err != nil {
					return err
				}
				logger := app.NewLogger(cfg)

				db, err := app.OpenStore(cfg)
				if err != nil {
					return err
				}
				defer func() { _ = db.Close() }()

				hk := service.NewHousekeepingService(
					service.NewSessionLedger(db),
					service.NewAuditor(db, cfg.AuditRetention),
					logger,
					cfg.HousekeepingInterval,
				)
				report := hk.RunOnce(ctx)

				fmt.Fprintf(out, "refresh tokens removed: %d\naudit entries removed: %d\n",
					report.RefreshTokens, report.AuditEntries)
				if report.Failures > 0 {
					return fmt.Errorf("%d cleanup task(s) failed", report.Failures)
				}
				return nil
			},
		},
		{
			Name:  "keygen",
			Usage: "Generate an RSA key pair for RS256 tokens",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "dir",
					Aliases: []string{"d"},
					Value:   "keys",
					Usage:   "Directory to write private.pem and public.pem into",
				},
				&cli.IntFlag{
					Name:    "bits",
					Aliases: []string{"b"},
					Value:   app.RSAKeyBits,
					Usage:   "RSA key size",
				},
				&cli.BoolFlag{
					Name:  "secrets",
					Usage: "Also print random JWT_SECRET, JWT_REFRESH_SECRET and JWE_SECRET values",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				priv, pub, err := app.WriteRSAKey(cmd.String("dir"), int(cmd.Int("bits")))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "private key: %s\npublic key:  %s\n", priv, pub)

				if !cmd.Bool("secrets") {
					return nil
				}
				for _, name := range []string{"JWT_SECRET", "JWT_REFRESH_SECRET", "JWE_SECRET"} {
					secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s=%s\n", name, secret)
				}
				return nil
			},
		},
	}
}
