package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gin-gonic/gin"

	"github.com/darasahq/darasa/internal/api"
	"github.com/darasahq/darasa/internal/app"
	iauth "github.com/darasahq/darasa/internal/auth"
	"github.com/darasahq/darasa/internal/database"
	"github.com/darasahq/darasa/internal/notify"
	"github.com/darasahq/darasa/internal/realtime"
	"github.com/darasahq/darasa/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Store   *notify.Store
	Engine  *notify.Engine
	Sweeper *notify.Sweeper
	Hub     *realtime.Hub
	Router  *gin.Engine
}

// bootstrapRuntime initialises the database, the notification stack, and the
// HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Store, err = notify.NewStore(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise preference store: %w", err)
	}

	resolver, err := notify.NewResolver(stack.Store, cfg.Notifications.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("initialise eligibility resolver: %w", err)
	}

	scheduler, err := notify.NewScheduler(stack.DB, cfg.Notifications.SchedulerConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise scheduler: %w", err)
	}

	stack.Hub = realtime.NewHub()

	transports, err := buildTransports(cfg, stack.Hub)
	if err != nil {
		return nil, err
	}

	opts := make([]notify.EngineOption, 0, len(transports))
	for _, t := range transports {
		opts = append(opts, notify.WithTransport(t))
	}

	stack.Engine, err = notify.NewEngine(stack.DB, stack.Store, resolver, scheduler, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialise notification engine: %w", err)
	}

	if err := stack.Engine.Start(ctx); err != nil {
		return nil, fmt.Errorf("recover scheduled notifications: %w", err)
	}

	stack.Sweeper, err = notify.NewSweeper(stack.Engine,
		notify.WithSweepSchedule(cfg.Notifications.SweepSchedule))
	if err != nil {
		return nil, fmt.Errorf("initialise digest sweeper: %w", err)
	}
	if err := stack.Sweeper.Start(); err != nil {
		return nil, fmt.Errorf("start digest sweeper: %w", err)
	}

	stack.Router, err = api.NewRouter(stack.DB, jwtSvc, cfg, stack.Engine, stack.Store, stack.Hub)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// buildTransports wires a delivery adapter for every supported channel. Email
// goes through SMTP when enabled; in_app and websocket ride the realtime hub;
// SMS and push log the hand-off until their gateways are integrated.
func buildTransports(cfg *app.Config, hub *realtime.Hub) ([]notify.Transport, error) {
	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise smtp mailer: %w", err)
	}

	email, err := notify.NewEmailTransport(mailer, cfg.Email.SMTP.From)
	if err != nil {
		return nil, err
	}

	inApp, err := notify.NewHubTransport(hub, notify.ChannelInApp)
	if err != nil {
		return nil, err
	}
	ws, err := notify.NewHubTransport(hub, notify.ChannelWebsocket)
	if err != nil {
		return nil, err
	}

	return []notify.Transport{
		email,
		inApp,
		ws,
		notify.NewLogTransport(notify.ChannelSMS),
		notify.NewLogTransport(notify.ChannelPush),
	}, nil
}

// Shutdown stops background jobs and closes the database.
func (s *runtimeStack) Shutdown(log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Sweeper != nil {
		<-s.Sweeper.Stop().Done()
	}

	if s.Engine != nil {
		s.Engine.Close()
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.Database.DatabaseConfig())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("database handle", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("database close", zap.Error(err))
	}
}
