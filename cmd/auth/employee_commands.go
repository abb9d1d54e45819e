package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/aussiebroadwan/crm/internal/auth/app"
	"github.com/aussiebroadwan/crm/internal/auth/domain"
	"github.com/aussiebroadwan/crm/internal/auth/service"
	"github.com/aussiebroadwan/crm/pkg/cryptox"
)

func getEmployeeCommands() *cli.Command {
	return &cli.Command{
		Name:  "employee",
		Usage: "Manage employee accounts",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create an employee account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true, Usage: "Login email"},
					&cli.StringFlag{Name: "first-name", Required: true, Usage: "First name"},
					&cli.StringFlag{Name: "last-name", Required: true, Usage: "Last name"},
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Job title"},
					&cli.StringFlag{
						Name:    "role",
						Aliases: []string{"r"},
						Usage:   "manager or staff (omit to derive from the title)",
					},
					&cli.StringFlag{
						Name:    "password",
						Aliases: []string{"p"},
						Usage:   "Initial password (omit to generate one)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					role, ok := domain.ParseRole(cmd.String("role"))
					if !ok {
						return fmt.Errorf("invalid role %q", cmd.String("role"))
					}

					password := cmd.String("password")
					generated := password == ""
					if generated {
						var err error
						if password, err = cryptox.GeneratePassword(service.PasswordMaxLength); err != nil {
							return err
						}
					}

					return withEmployees(func(employees *service.EmployeeService) error {
						e, err := employees.Create(ctx, service.NewEmployee{
							Email:     cmd.String("email"),
							FirstName: cmd.String("first-name"),
							LastName:  cmd.String("last-name"),
							Title:     cmd.String("title"),
							Role:      role,
							Password:  password,
						})
						if err != nil {
							return err
						}

						fmt.Fprintf(out, "created employee %d (%s)\n", e.ID, e.Email)
						if generated {
							fmt.Fprintf(out, "password: %s\n", password)
						}
						return nil
					})
				},
			},
			{
				Name:  "set-role",
				Usage: "Set the explicit role of an employee",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true, Usage: "Login email"},
					&cli.StringFlag{Name: "role", Aliases: []string{"r"}, Required: true, Usage: "manager or staff"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					role, ok := domain.ParseRole(cmd.String("role"))
					if !ok || role == domain.RoleUnset {
						return fmt.Errorf("invalid role %q", cmd.String("role"))
					}

					return withEmployees(func(employees *service.EmployeeService) error {
						e, err := employees.GetByEmail(ctx, cmd.String("email"))
						if err != nil {
							return fmt.Errorf("lookup %s: %w", cmd.String("email"), err)
						}
						if err := employees.SetRole(ctx, e.ID, role); err != nil {
							return err
						}
						fmt.Fprintf(out, "employee %d is now %s\n", e.ID, role)
						return nil
					})
				},
			},
			{
				Name:  "unlock",
				Usage: "Clear the lockout of an employee",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true, Usage: "Login email"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withEmployees(func(employees *service.EmployeeService) error {
						e, err := employees.GetByEmail(ctx, cmd.String("email"))
						if err != nil {
							return fmt.Errorf("lookup %s: %w", cmd.String("email"), err)
						}
						if err := employees.Unlock(ctx, e.ID); err != nil {
							return err
						}
						fmt.Fprintf(out, "employee %d unlocked\n", e.ID)
						return nil
					})
				},
			},
		},
	}
}

// withEmployees opens the configured store, migrated, for one command.
func withEmployees(fn func(*service.EmployeeService) error) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	cryptox.SetPepperPath(cfg.PepperFile)

	db, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.ApplyMigrations(); err != nil {
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return fn(&service.EmployeeService{Store: db})
}
