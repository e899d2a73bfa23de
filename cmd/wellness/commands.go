package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/aimd54/wellness-rewards/internal/api/middleware"
	"github.com/aimd54/wellness-rewards/internal/config"
	"github.com/aimd54/wellness-rewards/internal/repository"
	"github.com/aimd54/wellness-rewards/internal/service/challenge"
)

func commandMigrate() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply or roll back PostgreSQL schema migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: func(c *cli.Context) error {
					cfg, log, err := loadConfig(c)
					if err != nil {
						return err
					}
					if cfg.Database.Driver != config.DriverPostgres {
						return fmt.Errorf("migrations apply to postgres only, driver is %q", cfg.Database.Driver)
					}
					return repository.MigrateUp(cfg.Database.Postgres.URL(), log)
				},
			},
			{
				Name:  "down",
				Usage: "roll back migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "steps",
						Value: 1,
						Usage: "number of migrations to roll back",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, log, err := loadConfig(c)
					if err != nil {
						return err
					}
					if cfg.Database.Driver != config.DriverPostgres {
						return fmt.Errorf("migrations apply to postgres only, driver is %q", cfg.Database.Driver)
					}
					if c.Int("steps") < 1 {
						return fmt.Errorf("steps must be at least 1")
					}
					return repository.MigrateDown(cfg.Database.Postgres.URL(), c.Int("steps"), log)
				},
			},
		},
	}
}

func commandSeed() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "load rewards, challenges and users from a YAML file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "seed file, defaults to seed_file from the config",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, log, err := loadConfig(c)
			if err != nil {
				return err
			}
			if cfg.Database.Driver == config.DriverMemory {
				return fmt.Errorf("seeding the memory driver has no lasting effect, set seed_file for serve instead")
			}

			path := c.String("file")
			if path == "" {
				path = cfg.SeedFile
			}
			if path == "" {
				return fmt.Errorf("no seed file given")
			}

			st, err := openStorage(c.Context, cfg, log)
			if err != nil {
				return err
			}
			defer st.close()

			challenges := challenge.NewServiceWithInterfaces(st.uow, st.locks, nil, &cfg.Challenge, log)
			return applySeed(c.Context, path, st, challenges, log)
		},
	}
}

func commandToken() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "mint a bearer token for a user (development)",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:     "user-id",
				Required: true,
				Usage:    "user ID to embed in the token",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, _, err := loadConfig(c)
			if err != nil {
				return err
			}

			tokens := middleware.NewTokenManager(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTL)*time.Hour)
			token, err := tokens.Generate(c.Uint("user-id"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}
