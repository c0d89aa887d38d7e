package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lendloop/internal/app"
	"lendloop/internal/clock"
	"lendloop/internal/config"
	"lendloop/internal/database"
	"lendloop/internal/media"
	"lendloop/internal/notify"
	"lendloop/internal/repositories"
	"lendloop/internal/scheduler"
	"lendloop/pkg/logger"
	"lendloop/pkg/rabbitmq"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	notifyBuffer   = 1024
	shutdownPeriod = 15 * time.Second
	sweepTimeout   = 10 * time.Minute
)

func newRootCommand() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:          "lendloop",
		Short:        "Peer-to-peer lending service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file to load")

	load := func() (*runtime, error) { return newRuntime(envFile) }
	root.AddCommand(
		newServeCommand(load),
		newRemindersCommand(load),
		newWorkerCommand(load),
		newMigrateCommand(load),
	)
	return root
}

// runtime holds what every command needs: configuration, a logger and the
// database.
type runtime struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

func newRuntime(envFile string) (*runtime, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.AppEnv,
		ServiceName: "lendloop",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	zap.ReplaceGlobals(log)

	db, err := database.Open(cfg.Database())
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, log: log, db: db}, nil
}

func (r *runtime) close() {
	if sqlDB, err := r.db.DB(); err == nil {
		sqlDB.Close()
	}
	_ = r.log.Sync()
}

// notifier picks the notification sink: RabbitMQ when a URL is configured,
// otherwise the log. The returned func releases it.
func (r *runtime) notifier() (notify.Sink, func(), error) {
	if r.cfg.RabbitMQURL == "" {
		r.log.Info("RABBITMQ_URL not set, notifications go to the log")
		return notify.NewLogSink(r.log), func() {}, nil
	}
	mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: r.cfg.RabbitMQURL, Queue: r.cfg.RabbitQueue}, r.log)
	if err != nil {
		return nil, nil, err
	}
	async := notify.NewAsyncSink(notify.NewQueueSink(mq, mq.Queue()), notifyBuffer, r.log)
	return async, func() {
		async.Close()
		if err := mq.Close(); err != nil {
			r.log.Warn("failed to close RabbitMQ client", zap.Error(err))
		}
	}, nil
}

func (r *runtime) services(sink notify.Sink) *app.Services {
	return app.NewServices(app.Deps{
		Store:     repositories.NewGORMStore(r.db),
		Notifier:  sink,
		Media:     media.NewDiskStore(r.cfg.MediaRoot),
		Clock:     clock.Real{},
		JWTSecret: r.cfg.JWTSecret,
		Logger:    r.log,
	})
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newServeCommand(load func() (*runtime, error)) *cobra.Command {
	var noScheduler bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reminder scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := load()
			if err != nil {
				return err
			}
			defer rt.close()

			if err := database.Migrate(rt.db); err != nil {
				return err
			}
			sink, release, err := rt.notifier()
			if err != nil {
				return err
			}
			defer release()

			svc := rt.services(sink)
			server := app.New(svc, rt.log)

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			g, ctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				rt.log.Info("starting server", zap.String("addr", rt.cfg.AppPort))
				return server.Listen(rt.cfg.AppPort)
			})
			g.Go(func() error {
				<-ctx.Done()
				rt.log.Info("shutting down server")
				return server.ShutdownWithTimeout(shutdownPeriod)
			})
			if !noScheduler {
				sched, err := scheduler.New(rt.cfg.ReminderCron, svc.Reminders, sweepTimeout, rt.log)
				if err != nil {
					return err
				}
				g.Go(func() error { return sched.Run(ctx) })
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			rt.log.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not run the reminder scheduler in this process")
	return cmd
}

func newRemindersCommand(load func() (*runtime, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "reminders",
		Short: "Run one reminder sweep and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := load()
			if err != nil {
				return err
			}
			defer rt.close()

			sink, release, err := rt.notifier()
			if err != nil {
				return err
			}
			defer release()

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			stats, err := rt.services(sink).Reminders.Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "due soon: %d, due today: %d, overdue: %d, failed: %d\n",
				stats.DueSoon, stats.DueToday, stats.Overdue, stats.Failed)
			return nil
		},
	}
}

func newWorkerCommand(load func() (*runtime, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume queued notifications and deliver them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := load()
			if err != nil {
				return err
			}
			defer rt.close()

			if rt.cfg.RabbitMQURL == "" {
				return errors.New("worker requires RABBITMQ_URL")
			}
			mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: rt.cfg.RabbitMQURL, Queue: rt.cfg.RabbitQueue}, rt.log)
			if err != nil {
				return err
			}
			defer mq.Close()

			if err := mq.Consume(notify.DeliveryHandler(notify.NewLogMailer(rt.log))); err != nil {
				return err
			}
			rt.log.Info("notification worker started", zap.String("queue", mq.Queue()))

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			<-ctx.Done()
			rt.log.Info("notification worker stopped")
			return nil
		},
	}
}

func newMigrateCommand(load func() (*runtime, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := load()
			if err != nil {
				return err
			}
			defer rt.close()

			if err := database.Migrate(rt.db); err != nil {
				return err
			}
			rt.log.Info("database migrated", zap.String("driver", rt.cfg.DBDriver))
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
