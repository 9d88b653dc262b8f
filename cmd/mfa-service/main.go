package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/config"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/repository"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/service"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/events/kafka"
	httpHandler "github.com/agrovista/farm_platform/backend/services/mfa-service/internal/handler/http"
	accountClient "github.com/agrovista/farm_platform/backend/services/mfa-service/internal/infrastructure/client/account"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/infrastructure/database"
	infraPostgres "github.com/agrovista/farm_platform/backend/services/mfa-service/internal/infrastructure/database/postgres"
	infraRedis "github.com/agrovista/farm_platform/backend/services/mfa-service/internal/infrastructure/database/redis"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/infrastructure/notifier"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/infrastructure/security"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/utils/cache"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/utils/logger"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/utils/metrics"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/utils/rate"
)

func main() {
	// .env is a local-development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	if cfg.Database.AutoMigrate {
		if err := runMigrations(cfg, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := infraPostgres.NewDBPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize PostgreSQL connection pool", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to initialize Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	var events service.EventPublisher = kafka.NoopPublisher{}
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Fatal("Failed to initialize Kafka producer", zap.Error(err))
		}
		defer producer.Close()
		events = producer
	}

	// Repositories
	methodRepo := database.NewPgxMethodRepository(dbPool)
	policyRepo := database.NewPgxPolicyRepository(dbPool)
	backupCodeRepo := database.NewPgxBackupCodeRepository(dbPool)
	verificationCodeRepo := database.NewPgxVerificationCodeRepository(dbPool)
	trustedDeviceRepo := database.NewPgxTrustedDeviceRepository(dbPool)

	// Infrastructure services
	codeGenerator := security.NewCodeGenerator()
	totpProvider := security.NewTOTPProvider(cfg.MFA.TOTPIssuerName)
	encryption := security.NewAESGCMEncryptionService()
	challengeTokens := security.NewChallengeTokenService(
		cfg.MFA.ChallengeTokenSecret, cfg.MFA.TOTPIssuerName, cfg.MFA.ChallengeTokenTTL)
	lockoutCache := cache.NewRedisLockoutCache(redisClient, log)
	limiter := rate.NewLimiter(redisClient, log, cfg.RateLimit)

	smsClient := notifier.NewSMSClient(cfg.Notifier.SMS)
	emailClient := notifier.NewEmailClient(cfg.Notifier.Email)
	codeNotifier := notifier.NewCodeNotifier(smsClient, emailClient, log)
	credentials := accountClient.NewClient(cfg.Account)

	// Domain services
	vault := service.NewBackupCodeVault(&cfg.MFA, backupCodeRepo, codeGenerator, log)
	channelStore := service.NewChannelCodeStore(&cfg.MFA, verificationCodeRepo, codeGenerator, log)
	deviceManager := service.NewTrustedDeviceManager(trustedDeviceRepo, events, log)
	registry := service.NewMethodRegistry(
		&cfg.MFA, methodRepo, policyRepo, vault, channelStore,
		totpProvider, encryption, codeNotifier, events, log)
	engine := service.NewVerificationEngine(
		&cfg.MFA, &cfg.Lockout, policyRepo, methodRepo, vault, channelStore,
		deviceManager, totpProvider, encryption, credentials, codeNotifier,
		events, lockoutCache, log)
	policies := service.NewPolicyService(
		&cfg.MFA, policyRepo, methodRepo, vault, deviceManager,
		challengeTokens, lockoutCache, log)

	if cfg.MFA.CodeReaperInterval > 0 {
		go runCodeReaper(ctx, verificationCodeRepo, cfg.MFA.CodeReaperInterval, log)
	}

	mfaHandler := httpHandler.NewMFAHandler(log, registry, engine, policies, deviceManager, challengeTokens)
	adminHandler := httpHandler.NewAdminHandler(log, policies, deviceManager)
	router := httpHandler.SetupRouter(mfaHandler, adminHandler, limiter, dbPool, redisClient, cfg, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
	log.Info("Server stopped")
}

func runMigrations(cfg *config.Config, log *zap.Logger) error {
	log.Info("Running database migrations")
	migrationURL := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.User, cfg.Database.Password, cfg.Database.Host,
		cfg.Database.Port, cfg.Database.DBName, cfg.Database.SSLMode)
	m, err := migrate.New("file://migrations", migrationURL)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	log.Info("Migrations applied")
	return nil
}

// runCodeReaper periodically deletes expired verification codes. Storage
// hygiene only; correctness never depends on it.
func runCodeReaper(ctx context.Context, codes repository.VerificationCodeRepository, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := codes.DeleteExpired(ctx, time.Now())
			if err != nil {
				log.Error("Expired code sweep failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				metrics.ExpiredCodesReapedTotal.Add(float64(deleted))
				log.Debug("Expired codes deleted", zap.Int64("count", deleted))
			}
		}
	}
}
