// Package container wires the application together: configuration in,
// a running server graph out. All construction and lifecycle management
// lives here so main stays trivial.
package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/covana/insurance-backoffice/internal/application/dispatcher"
	"github.com/covana/insurance-backoffice/internal/application/service"
	"github.com/covana/insurance-backoffice/internal/attachment"
	"github.com/covana/insurance-backoffice/internal/config"
	"github.com/covana/insurance-backoffice/internal/document"
	"github.com/covana/insurance-backoffice/internal/domain/event"
	"github.com/covana/insurance-backoffice/internal/infrastructure/external/lark"
	"github.com/covana/insurance-backoffice/internal/infrastructure/notification"
	"github.com/covana/insurance-backoffice/internal/infrastructure/persistence/postgres"
	"github.com/covana/insurance-backoffice/internal/infrastructure/persistence/repository"
	"github.com/covana/insurance-backoffice/internal/infrastructure/storage"
	"github.com/covana/insurance-backoffice/internal/infrastructure/worker"
	httpserver "github.com/covana/insurance-backoffice/internal/interfaces/http"
	"github.com/covana/insurance-backoffice/pkg/database"
	"github.com/covana/insurance-backoffice/pkg/utils"
)

// Container holds the fully wired application graph
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	db         *database.DB
	dispatcher dispatcher.Dispatcher
	workers    *worker.Manager

	RefundService service.RefundService
	ClaimService  service.ClaimService
	Server        *httpserver.Server
}

// New builds the application graph from configuration. Construction is
// fail-fast: any component that cannot start aborts the whole build.
func New(cfg *config.Config) (*Container, error) {
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	db, err := database.New(database.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// Transactional executor shared by every repository
	txDB := postgres.NewDB(db.DB, logger)

	refundRepo := repository.NewRefundRepository(txDB, logger)
	claimRepo := repository.NewClaimRepository(txDB, logger)
	docRepo := repository.NewClaimDocumentRepository(txDB, logger)
	proposalRepo := repository.NewProposalRepository(txDB, logger)
	notifRepo := repository.NewNotificationRepository(txDB, logger)

	// Notification channel: Lark messages for users (by email) and the
	// back-office operations chat for admins, each backed by the ledger
	sdk := lark.NewSDKClient(lark.Config{
		AppID:       cfg.Lark.AppID,
		AppSecret:   cfg.Lark.AppSecret,
		AdminChatID: cfg.Lark.AdminChatID,
	}, logger)
	messenger := lark.NewMessenger(sdk, logger)

	loggerAdapter := &zapLoggerAdapter{logger: logger}

	disp := dispatcher.NewDispatcher(dispatcher.WithLogger(loggerAdapter))
	disp.Register(event.AudienceUser, "lark-email", notification.NewUserSink(messenger, notifRepo, logger))
	disp.Register(event.AudienceAdmin, "ops-chat", notification.NewAdminSink(messenger, sdk.GetAdminChatID(), notifRepo, logger))

	// Failed deliveries get retried in the background off the ledger
	workers := worker.NewManager(logger)
	workers.Register(worker.NewNotificationRetryWorker(
		worker.DefaultRetryWorkerConfig(), notifRepo, messenger, sdk.GetAdminChatID(), logger))
	if err := workers.StartAll(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("start workers: %w", err)
	}

	fileStore := storage.NewLocalFileStorage(cfg.Files.UploadDir, logger)
	statements := document.NewExcelStatementWriter(cfg.Files.StatementDir, logger)
	resolver := attachment.NewResolver(cfg.Files.BaseURL)

	refundService := service.NewRefundService(refundRepo, txDB, disp, resolver, statements, loggerAdapter)
	claimService := service.NewClaimService(claimRepo, docRepo, proposalRepo, txDB, disp, resolver, loggerAdapter)

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, refundService, claimService, fileStore, notifRepo, loggerAdapter)

	logger.Info("Application container initialized",
		zap.String("address", server.Address()),
		zap.String("migrations_dir", cfg.Database.MigrationsDir),
	)

	return &Container{
		Config:        cfg,
		Logger:        logger,
		db:            db,
		dispatcher:    disp,
		workers:       workers,
		RefundService: refundService,
		ClaimService:  claimService,
		Server:        server,
	}, nil
}

// Close releases resources in reverse construction order. The dispatcher
// drains in-flight notification deliveries before the database goes away.
func (c *Container) Close() error {
	var firstErr error

	if err := c.workers.StopAll(); err != nil {
		c.Logger.Error("Failed to stop workers", zap.Error(err))
		firstErr = err
	}

	if err := c.dispatcher.Close(); err != nil {
		c.Logger.Error("Failed to close dispatcher", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}

	if err := c.db.Close(); err != nil {
		c.Logger.Error("Failed to close database", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}

	_ = c.Logger.Sync()
	return firstErr
}

// zapLoggerAdapter adapts zap.Logger to the key-value Logger interfaces
// used by the application layer
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues)...)
}

// convertToZapFields pairs up key-value arguments into zap fields
func convertToZapFields(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

var _ service.Logger = (*zapLoggerAdapter)(nil)
var _ dispatcher.Logger = (*zapLoggerAdapter)(nil)
var _ httpserver.Logger = (*zapLoggerAdapter)(nil)
