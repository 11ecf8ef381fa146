// Worker drains the notification queue and delivers email and SMS with retries.
// Set DATABASE_URL and REDIS_URL; MAIL_* and TWILIO_* select real delivery, otherwise messages are logged.
// Run it when NOTIFY_INLINE_WORKER=false, or alongside the server to add delivery capacity.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"enterprise-api/backend/internal/config"
	"enterprise-api/backend/internal/db"
	"enterprise-api/backend/internal/logging"
	"enterprise-api/backend/internal/metrics"
	"enterprise-api/backend/internal/mfa/sms"
	"enterprise-api/backend/internal/notification/queue"
	notificationrepo "enterprise-api/backend/internal/notification/repository"
	"enterprise-api/backend/internal/notification/sender"
	"enterprise-api/backend/internal/notification/worker"
	verificationrepo "enterprise-api/backend/internal/verification/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.Options{}).WithError(err).Fatal("config")
	}
	log := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "notification-worker"})
	if cfg.DatabaseURL == "" {
		log.Fatal("worker: DATABASE_URL is required")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("database")
	}
	defer conn.Close()

	rdb, err := db.OpenRedis(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Fatal("redis")
	}
	defer rdb.Close()

	email, text, err := resolveSenders(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("notification senders")
	}

	q := queue.NewRedisQueue(rdb, cfg.NotifyQueuePrefix)
	w := worker.New(
		notificationrepo.NewPostgresRepository(conn),
		q,
		email, text, metrics.New(), log,
		worker.Options{MaxAttempts: cfg.NotifyMaxAttempts, BackoffBase: cfg.NotifyBackoffBase()},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("worker: shutting down...")
		cancel()
	}()

	go housekeeping(ctx, verificationrepo.NewPostgresRepository(conn), q, log)

	if err := w.Run(ctx); err != nil {
		log.WithError(err).Fatal("worker")
	}
}

// housekeepingInterval is how often expired verification and reset tokens are purged.
const housekeepingInterval = time.Hour

type tokenPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type depthReporter interface {
	Depth(ctx context.Context) (ready, delayed int64, err error)
}

// housekeeping purges expired single-use tokens and reports the queue backlog until ctx is cancelled.
func housekeeping(ctx context.Context, tokens tokenPurger, q depthReporter, log logrus.FieldLogger) {
	ticker := time.NewTicker(housekeepingInterval)
	defer ticker.Stop()
	for {
		if n, err := tokens.DeleteExpired(ctx, time.Now().UTC()); err != nil {
			log.WithError(err).Warn("purge expired tokens")
		} else if n > 0 {
			log.WithField("count", n).Info("purged expired tokens")
		}
		if ready, delayed, err := q.Depth(ctx); err == nil {
			log.WithFields(logrus.Fields{"ready": ready, "delayed": delayed}).Info("notification queue depth")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func resolveSenders(cfg *config.Config, log logrus.FieldLogger) (sender.EmailSender, sender.SMSSender, error) {
	return sender.Resolve(sender.SMTPConfig{
		Host:     cfg.MailHost,
		Port:     cfg.MailPort,
		Username: cfg.MailUser,
		Password: cfg.MailPassword,
		From:     cfg.MailFrom,
	}, sms.NewTwilioClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, cfg.TwilioBaseURL), log)
}
