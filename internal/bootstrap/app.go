package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"wasteops-backend/internal/audit"
	"wasteops-backend/internal/docgen"
	"wasteops-backend/internal/documents"
	"wasteops-backend/internal/extract"
	"wasteops-backend/internal/jobs"
	"wasteops-backend/internal/queue"
	"wasteops-backend/internal/services/health"
	"wasteops-backend/internal/shared/config"
	"wasteops-backend/internal/shared/server"
	"wasteops-backend/internal/shared/storage/db"
	"wasteops-backend/internal/shared/storage/object"
	gcsstore "wasteops-backend/internal/shared/storage/object/gcs"
	localstore "wasteops-backend/internal/shared/storage/object/local"
	s3store "wasteops-backend/internal/shared/storage/object/s3"
	"wasteops-backend/internal/shared/telemetry"
)

// App holds shared dependencies.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	DB               *sql.DB
	Store            object.ObjectStore
	Queue            queue.Client
	AuditLog         audit.Reader
	DocumentsRepo    documents.Repo
	JobStore         jobs.Store
	DocumentsService *documents.Service
	JobsService      *jobs.Service
	JobsHandler      *jobs.Handler
	AuditHandler     *audit.Handler
	DocumentsHandler *documents.Handler
}

// Build prepares shared dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}
	buildServices(app)

	healthSvc := health.NewService(nil)
	if app.DB != nil {
		healthSvc = health.NewService(app.DB)
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		JobHandler:      app.JobsHandler,
		AuditHandler:    app.AuditHandler,
		DocumentHandler: app.DocumentsHandler,
		Guard:           app.JobsService,
		Health:          healthSvc,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_store", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_store", map[string]any{"reason": "database connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}
	if config.IsDevLike(cfg.Env) {
		version, err := db.RunMigrations(ctx, sqlDB)
		if err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		telemetry.Info("bootstrap.migrated", map[string]any{"version": version})
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "gcs":
		if strings.TrimSpace(cfg.GCSBucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=gcs requires GCS_BUCKET")
		}
		return gcsstore.New(ctx, cfg.GCSBucket, cfg.GCSPrefix)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.SQSQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
}

func buildServices(app *App) {
	var (
		auditLog audit.Reader
		docRepo  documents.Repo
		jobStore jobs.Store
	)
	if app.DB != nil {
		auditLog = &audit.PGLog{DB: app.DB}
		docRepo = &documents.PGRepo{DB: app.DB}
		jobStore = jobs.NewPGStore(app.DB)
	} else {
		memLog := audit.NewMemoryLog()
		memDocs := documents.NewMemoryRepo()
		auditLog = memLog
		docRepo = memDocs
		jobStore = jobs.NewMemoryStore(memLog, memDocs)
	}

	docSvc := &documents.Service{
		Store:           app.Store,
		Repo:            docRepo,
		StorageProvider: app.Config.ObjectStoreType,
		Extract:         extract.PDFText,
	}
	jobSvc := &jobs.Service{
		Store:       jobStore,
		Docs:        docSvc,
		Renderer:    docgen.PDFRenderer{},
		Templates:   audit.DefaultTemplates,
		Queue:       app.Queue,
		Timeout:     app.Config.TransitionTimeout,
		CompanyName: app.Config.CompanyName,
	}

	app.AuditLog = auditLog
	app.DocumentsRepo = docRepo
	app.JobStore = jobStore
	app.DocumentsService = docSvc
	app.JobsService = jobSvc
	app.JobsHandler = jobs.NewHandler(jobSvc)
	app.AuditHandler = audit.NewHandler(auditLog)
	app.DocumentsHandler = documents.NewHandler(docSvc)
}
