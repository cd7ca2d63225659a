package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/redis"
	"github.com/wb-go/wbf/zlog"

	notifhandler "github.com/notifyhub/dispatcher/internal/api/handlers/notification"
	settingshandler "github.com/notifyhub/dispatcher/internal/api/handlers/settings"
	"github.com/notifyhub/dispatcher/internal/api/router"
	"github.com/notifyhub/dispatcher/internal/api/server"
	"github.com/notifyhub/dispatcher/internal/config"
	"github.com/notifyhub/dispatcher/internal/dispatch"
	"github.com/notifyhub/dispatcher/internal/model"
	"github.com/notifyhub/dispatcher/internal/policy"
	notifmsg "github.com/notifyhub/dispatcher/internal/rabbitmq/handlers/notification"
	"github.com/notifyhub/dispatcher/internal/rabbitmq/queue"
	notifrepo "github.com/notifyhub/dispatcher/internal/repository/notification"
	settingsrepo "github.com/notifyhub/dispatcher/internal/repository/settings"
	"github.com/notifyhub/dispatcher/internal/scheduler"
	notifsvc "github.com/notifyhub/dispatcher/internal/service/notification"
	"github.com/notifyhub/dispatcher/internal/settings"
	"github.com/notifyhub/dispatcher/pkg/email"
	"github.com/notifyhub/dispatcher/pkg/sms"
	"github.com/notifyhub/dispatcher/pkg/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()
	cfg := config.Must()
	val := validator.New()

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL(), cfg.RabbitMQ.Retries, cfg.RabbitMQ.Pause)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to open channel")
	}

	q, err := queue.NewNotificationQueue(ch)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to create notification queue")
	}

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	repo := notifrepo.NewRepository(db)
	usrSettingsRepo := settingsrepo.NewRepository(db)

	rdb := redis.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.Database)
	if err = rdb.Ping(ctx).Err(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	senders := map[model.DeliveryMethod]dispatch.Sender{
		model.MethodEmail: email.NewClient(
			cfg.Email.SMTPHost,
			cfg.Email.SMTPPort,
			cfg.Email.Username,
			cfg.Email.Password,
			cfg.Email.From,
		),
		model.MethodTelegram: telegram.NewClient(cfg.Telegram.Token),
		model.MethodSMS:      sms.NewClient(cfg.SMS.APIURL, cfg.SMS.APIKey, cfg.SMS.From),
	}

	service := notifsvc.NewService(repo, q, rdb)
	dispatcher := dispatch.New(repo, senders)
	resolver := settings.NewResolver(usrSettingsRepo)
	retryPolicy := policy.New(cfg.Policy.Strategy, cfg.Policy.MaxDelay)

	sched := scheduler.New(repo, dispatcher, resolver, retryPolicy, service, scheduler.Config{
		Workers:      cfg.Scheduler.Workers,
		PollInterval: cfg.Scheduler.PollInterval,
		BatchLimit:   cfg.Scheduler.BatchLimit,
		ClaimTTL:     cfg.Scheduler.ClaimTTL,
		Strategy:     cfg.Retry,
	})

	go sched.Run(ctx)

	messageHandler := notifmsg.NewHandler(repo, sched)
	go messageHandler.Run(ctx, q, cfg.Retry)

	notifHandler := notifhandler.NewHandler(service, val, cfg)
	settingsHandler := settingshandler.NewHandler(usrSettingsRepo, val)

	r := router.New(notifHandler, settingsHandler)
	s := server.New(cfg.Server.HTTPPort, r)

	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}

	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	if err := db.Master.Close(); err != nil {
		zlog.Logger.Printf("failed to close master DB: %v", err)
	}

	for i, slave := range db.Slaves {
		if err := slave.Close(); err != nil {
			zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
		}
	}

	if err := ch.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close RabbitMQ channel")
	}

	if err := conn.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close RabbitMQ connection")
	}
}
