package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/auth"
	"github.com/Freeeeeet/schoolrun/internal/config"
	"github.com/Freeeeeet/schoolrun/internal/controller"
	"github.com/Freeeeeet/schoolrun/internal/controller/handlers"
	"github.com/Freeeeeet/schoolrun/internal/email"
	"github.com/Freeeeeet/schoolrun/internal/httpapi"
	"github.com/Freeeeeet/schoolrun/internal/notify"
	"github.com/Freeeeeet/schoolrun/internal/repository"
	"github.com/Freeeeeet/schoolrun/internal/service"
	"github.com/Freeeeeet/schoolrun/internal/websocket"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

// App связывает хранилище, сервисы, доставку уведомлений и транспорты
type App struct {
	cfg        *config.Config
	pool       *pgxpool.Pool
	httpServer *http.Server
	dispatcher *notify.Dispatcher
	scheduler  *Scheduler
	bot        *controller.BotController
	logger     *zap.Logger
}

// New подключается к БД, применяет миграции и собирает зависимости
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	migrator, err := NewMigrator(pool, logger.Named("migrator"))
	if err != nil {
		pool.Close()
		return nil, err
	}
	defer migrator.Close()
	if err := migrator.Run(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	a := &App{cfg: cfg, pool: pool, logger: logger}
	if err := a.wire(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	// Repositories
	userRepo := repository.NewUserRepository(a.pool)
	groupRepo := repository.NewGroupRepository(a.pool)
	slotRepo := repository.NewSlotRepository(a.pool)
	vehicleRepo := repository.NewVehicleRepository(a.pool)
	childRepo := repository.NewChildRepository(a.pool)
	dashboardRepo := repository.NewDashboardRepository(a.pool)
	activityRepo := repository.NewActivityRepository(a.pool)

	// Transports for notifications
	hub := websocket.NewHub(logger.Named("websocket"))

	mailer, err := email.New(ctx, email.Config{
		Region:       cfg.AWSRegion,
		FromEmail:    cfg.SESFromEmail,
		FromName:     cfg.SESFromName,
		AppBaseURL:   cfg.AppBaseURL,
		NativeScheme: cfg.NativeScheme,
	}, logger.Named("email"))
	if err != nil {
		return fmt.Errorf("create email service: %w", err)
	}

	notifyLogger := logger.Named("notify")
	sinks := []notify.Sink{
		notify.NewWebsocketSink(hub),
		notify.NewActivitySink(activityRepo),
	}
	if mailer.IsEnabled() {
		sinks = append(sinks, notify.NewEmailSink(mailer, userRepo, groupRepo, userRepo, notifyLogger))
	}

	var botInstance *bot.Bot
	if cfg.TelegramEnabled() {
		botInstance, err = bot.New(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}
		sinks = append(sinks, notify.NewTelegramSink(botInstance, userRepo, groupRepo, notifyLogger))
	}

	a.dispatcher = notify.NewDispatcher(notify.DispatcherConfig{
		Workers:     cfg.NotifyWorkers,
		QueueSize:   cfg.NotifyQueueSize,
		MaxAttempts: cfg.NotifyMaxAttempts,
	}, notifyLogger, sinks...)
	notifier := notify.NewSlotNotifier(slotRepo, a.dispatcher, notifyLogger)

	// Services
	configService := service.NewScheduleConfigService(groupRepo, userRepo, slotRepo, notifier, logger.Named("schedule_config"))
	slotService := service.NewSlotService(slotRepo, groupRepo, userRepo, vehicleRepo, childRepo, configService, notifier, logger.Named("slots"))
	groupService := service.NewGroupService(groupRepo, userRepo, logger.Named("groups"))
	if mailer.IsEnabled() {
		groupService.WithInviter(notify.NewFamilyInviter(userRepo, userRepo, mailer, notifyLogger))
	}
	familyService := service.NewFamilyService(userRepo, childRepo, vehicleRepo, logger.Named("families"))
	userService := service.NewUserService(userRepo, logger.Named("users"))
	dashboardService := service.NewDashboardService(dashboardRepo, userRepo, logger.Named("dashboard"))

	// HTTP
	api := httpapi.NewServer(httpapi.Deps{
		ScheduleConfigs: configService,
		Slots:           slotService,
		Groups:          groupService,
		Families:        familyService,
		Users:           userService,
		Dashboards:      dashboardService,
		Verifier:        auth.NewVerifier(cfg.JWTSecret),
		Websocket:       websocket.Handler(hub, groupRepo, httpUserID, cfg.AllowedOrigins, logger.Named("websocket")),
	}, logger)
	a.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Telegram bot
	if botInstance != nil {
		cmdHandlers := handlers.NewHandlers(userService, dashboardService, groupService, slotService, logger.Named("bot"))
		a.bot = controller.NewBotController(botInstance, cmdHandlers, logger.Named("bot"))
	}

	// Weekly digest
	if mailer.IsEnabled() {
		digest := notify.NewWeeklyDigest(groupRepo, userRepo, slotRepo, mailer, notifyLogger)
		a.scheduler = NewScheduler(digest, logger.Named("scheduler"))
	}

	return nil
}

func httpUserID(r *http.Request) (int64, bool) {
	return auth.UserIDFrom(r.Context())
}

// Run запускает все компоненты и блокируется до отмены ctx, затем
// останавливает их: HTTP, бот, планировщик и в конце очередь уведомлений.
func (a *App) Run(ctx context.Context) error {
	a.dispatcher.Start(ctx)
	if a.scheduler != nil {
		a.scheduler.Start(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", zap.String("addr", a.cfg.HTTPAddr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.bot != nil {
		g.Go(func() error {
			if err := a.bot.RegisterHandlers(gctx); err != nil {
				// без меню команды продолжают работать
				a.logger.Warn("Bot commands menu not set", zap.Error(err))
			}
			return a.bot.Start(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("HTTP server shutdown failed", zap.Error(err))
		}
		return nil
	})

	err := g.Wait()

	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	a.dispatcher.Close()
	a.logger.Info("Notification stats", zap.Any("stats", a.dispatcher.Stats()))

	return err
}

// Close освобождает пул соединений
func (a *App) Close() {
	a.pool.Close()
}

var (
	_ service.UserStore      = (*repository.UserRepository)(nil)
	_ service.GroupStore     = (*repository.GroupRepository)(nil)
	_ service.SlotStore      = (*repository.SlotRepository)(nil)
	_ service.VehicleStore   = (*repository.VehicleRepository)(nil)
	_ service.ChildStore     = (*repository.ChildRepository)(nil)
	_ service.DashboardStore = (*repository.DashboardRepository)(nil)
)
