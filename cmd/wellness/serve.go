package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/aimd54/wellness-rewards/internal/api"
	"github.com/aimd54/wellness-rewards/internal/api/middleware"
	"github.com/aimd54/wellness-rewards/internal/config"
	"github.com/aimd54/wellness-rewards/internal/mattermost"
	"github.com/aimd54/wellness-rewards/internal/seed"
	"github.com/aimd54/wellness-rewards/internal/service/challenge"
	"github.com/aimd54/wellness-rewards/internal/service/loyalty"
	"github.com/aimd54/wellness-rewards/internal/service/scheduler"
	"github.com/aimd54/wellness-rewards/pkg/logger"
)

func loadConfig(c *cli.Context) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	return cfg, log, nil
}

func commandServe() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "start the API server and the scheduler",
		Action: func(c *cli.Context) error {
			cfg, log, err := loadConfig(c)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st, err := openStorage(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer st.close()

			repos := st.uow.Repositories()

			loyaltyService := loyalty.NewServiceWithInterfaces(st.uow, st.locks, log)

			var leaderboardCache challenge.LeaderboardCache
			if st.cache != nil {
				leaderboardCache = st.cache
			}
			challengeService := challenge.NewServiceWithInterfaces(st.uow, st.locks, leaderboardCache, &cfg.Challenge, log)

			if cfg.SeedFile != "" {
				if err := applySeed(ctx, cfg.SeedFile, st, challengeService, log); err != nil {
					return err
				}
			}

			var notifier scheduler.Notifier
			if client := mattermost.NewClient(&cfg.Mattermost, log); client.Enabled() {
				notifier = client
			}
			jobs := scheduler.NewService(&cfg.Scheduler, loyaltyService, challengeService, repos.Users, notifier, log)
			if err := jobs.Start(); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}
			defer jobs.Stop()

			checks := map[string]api.HealthChecker{}
			if st.db != nil {
				checks["database"] = st.db
			}
			if st.cache != nil {
				checks["cache"] = st.cache
			}

			router := api.NewRouter(api.Deps{
				Config:     cfg,
				Tokens:     middleware.NewTokenManager(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTL)*time.Hour),
				Loyalty:    loyaltyService,
				Challenges: challengeService,
				Users:      repos.Users,
				Checks:     checks,
				Log:        log,
			})

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			group, groupCtx := errgroup.WithContext(ctx)

			group.Go(func() error {
				log.Info().
					Int("port", cfg.Server.Port).
					Str("environment", cfg.Server.Environment).
					Str("driver", cfg.Database.Driver).
					Msg("Starting HTTP server")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server failed: %w", err)
				}
				return nil
			})

			group.Go(func() error {
				<-groupCtx.Done()
				log.Info().Msg("Shutting down HTTP server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			return group.Wait()
		},
	}
}

func applySeed(ctx context.Context, path string, st *storage, challenges seed.ChallengeCreator, log *logger.Logger) error {
	file, err := seed.Load(path)
	if err != nil {
		return err
	}
	if _, err := seed.NewSeeder(st.uow.Repositories(), challenges, log).Apply(ctx, file); err != nil {
		return fmt.Errorf("failed to apply seed file: %w", err)
	}
	return nil
}
