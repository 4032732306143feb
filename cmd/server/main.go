package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/hsse-backend/internal/attachment"
	"github.com/ignatzorin/hsse-backend/internal/config"
	"github.com/ignatzorin/hsse-backend/internal/db"
	"github.com/ignatzorin/hsse-backend/internal/enrichment"
	"github.com/ignatzorin/hsse-backend/internal/goroutine"
	httpHandlers "github.com/ignatzorin/hsse-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/hsse-backend/internal/http/router"
	"github.com/ignatzorin/hsse-backend/internal/logger"
	"github.com/ignatzorin/hsse-backend/internal/metrics"
	"github.com/ignatzorin/hsse-backend/internal/queue"
	"github.com/ignatzorin/hsse-backend/internal/repository"
	"github.com/ignatzorin/hsse-backend/internal/service"
	"github.com/ignatzorin/hsse-backend/internal/storage"
	"github.com/ignatzorin/hsse-backend/internal/webhook"
	"github.com/ignatzorin/hsse-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if !cfg.IsProduction() {
		logger.SetTextFormatter()
	}
	log := logger.L()

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, db.MigrationsSource(cfg.MigrationsPath)); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	metrics.Register()

	blobs, localStore, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("main: не удалось подготовить хранилище вложений: %v", err)
	}

	table := enrichment.MustDefault()
	if cfg.Integrations.KeywordsPath != "" {
		if table, err = enrichment.LoadTable(cfg.Integrations.KeywordsPath); err != nil {
			log.Fatalf("main: ошибка загрузки словаря ключевых слов: %v", err)
		}
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	cache := service.NewCacheService()
	goroutine.SafeGoWithContext(ctx, "cache_cleanup", func(ctx context.Context) {
		cache.RunCleanup(ctx, time.Minute)
	})

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	orgRepo := repository.NewOrganizationRepository(dbConn)
	reportRepo := repository.NewReportRepository(dbConn)
	uploadRepo := repository.NewUploadRepository(dbConn)
	escalationRepo := repository.NewEscalationRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	hazardRepo := repository.NewHazardRepository(dbConn)
	planRepo := repository.NewPlanRepository(dbConn)
	trainingRepo := repository.NewTrainingRepository(dbConn)
	scraperRepo := repository.NewScraperRepository(dbConn)

	// Вебсокеты.
	hub := ws.NewHub()
	goroutine.SafeGoWithContext(ctx, "ws_hub", hub.Run)

	// Очередь для внешнего диспетчера email/SMS необязательна.
	var publisher service.NotificationPublisher
	if cfg.Integrations.RabbitMQURL != "" {
		p, err := queue.Connect(cfg.Integrations.RabbitMQURL, cfg.Integrations.NotificationQueue)
		if err != nil {
			log.Fatalf("main: ошибка подключения к RabbitMQ: %v", err)
		}
		defer func() {
			if err := p.Close(); err != nil {
				log.WithError(err).Warn("main: ошибка закрытия RabbitMQ")
			}
		}()
		publisher = p
	} else {
		log.Warn("main: RABBITMQ_URL не задан, email/sms уведомления остаются в статусе pending")
	}

	var notifier service.StatusNotifier
	if chatbotNotifier := webhook.NewChatbotNotifier(cfg.Integrations.ChatbotWebhookURL, cfg.Integrations.WebhookTimeout, nil); chatbotNotifier.Enabled() {
		notifier = chatbotNotifier
	}

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager)
	userService := service.NewUserService(userRepo, orgRepo)
	orgService := service.NewOrganizationService(orgRepo)
	reportService := service.NewReportService(reportRepo, uploadRepo, escalationRepo, userRepo, orgRepo, blobs, notifier, cache, cfg.Storage.SignedURLTTL)
	chatbotService := service.NewChatbotService(reportRepo, uploadRepo, userRepo, blobs, table, cache)
	escalationService := service.NewEscalationService(escalationRepo, reportRepo, userRepo, notificationRepo, ws.NewNotificationPusher(hub), publisher)
	notificationService := service.NewNotificationService(notificationRepo)
	hazardService := service.NewHazardService(hazardRepo, orgRepo)
	planService := service.NewPlanService(planRepo, orgRepo)
	trainingService := service.NewTrainingService(trainingRepo, userRepo, cache)
	scraperService := service.NewScraperService(scraperRepo)

	// HTTP хэндлеры.
	h := httpRouter.Handlers{
		Auth:          httpHandlers.NewAuthHandler(authService),
		Reports:       httpHandlers.NewReportHandler(reportService),
		PublicReports: httpHandlers.NewPublicReportHandler(reportService),
		Chatbot:       httpHandlers.NewChatbotHandler(chatbotService, scraperService),
		Escalations:   httpHandlers.NewEscalationHandler(escalationService),
		Notifications: httpHandlers.NewNotificationHandler(notificationService),
		Hazards:       httpHandlers.NewHazardHandler(hazardService),
		Plans:         httpHandlers.NewPlanHandler(planService),
		Trainings:     httpHandlers.NewTrainingHandler(trainingService),
		Users:         httpHandlers.NewUserHandler(userService),
		Organizations: httpHandlers.NewOrganizationHandler(orgService),
		Scraper:       httpHandlers.NewScraperHandler(scraperService),
		Health:        httpHandlers.NewHealthHandler(dbConn, cfg.Storage.Driver),
		WS:            httpHandlers.NewWSHandler(hub, tokenManager),
	}
	if localStore != nil {
		h.Files = httpHandlers.NewFileHandler(localStore)
	}

	engine := httpRouter.SetupRouter(cfg, tokenManager, h)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.SafeGo("http_shutdown", func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("main: ошибка остановки http сервера")
		}
	})

	log.WithFields(logrus.Fields{
		"port":    cfg.HTTPPort,
		"env":     cfg.Env,
		"storage": cfg.Storage.Driver,
	}).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}

	// Дожидаемся фоновых вебхуков и уведомлений.
	goroutine.DefaultRecoveryHandler.Wait()
	log.Info("main: сервер остановлен")
}

// openStorage выбирает драйвер хранилища вложений.
// Для локального драйвера дополнительно возвращается сам LocalStore для раздачи файлов.
func openStorage(ctx context.Context, cfg *config.Config) (storage.BlobStore, *storage.LocalStore, error) {
	s3cfg := storage.S3Config{
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		Bucket:    cfg.Storage.Bucket,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		PublicURL: cfg.Storage.PublicURL,
	}

	switch cfg.Storage.Driver {
	case config.StorageS3:
		return storage.NewS3Store(s3cfg), nil, nil
	case config.StorageMinio:
		store, err := storage.NewMinioStore(ctx, s3cfg, cfg.Storage.UseSSL)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		store, err := storage.NewLocalStore(cfg.Storage.LocalPath, cfg.Storage.PublicURL, cfg.JWTSecret, attachment.AdminPolicy.MaxBytes)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		logger.L().WithError(err).Error("main: ошибка закрытия базы")
	}
}
