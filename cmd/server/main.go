package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"coursehub/docs" // swagger docs

	"coursehub/internal/auth"
	"coursehub/internal/cache"
	"coursehub/internal/config"
	"coursehub/internal/db"
	"coursehub/internal/handler"
	"coursehub/internal/logging"
	"coursehub/internal/repository"
	"coursehub/internal/router"
	"coursehub/internal/service"
	"coursehub/internal/storage"
)

// @title Coursehub API
// @version 1.0
// @description Course assignment collaboration API with bearer-token authentication and JOIN/RECRUIT team requests.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatalf("database init: %v", err)
	}

	if cfg.ResetDB {
		logger.Warn("RESET_DB=true detected, dropping all tables")
		if err := db.Reset(gormDB); err != nil {
			logger.Fatalf("reset database: %v", err)
		}
	} else if err := db.Migrate(gormDB); err != nil {
		logger.Fatalf("auto-migrate: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, "coursehub")
	defer cacheClient.Close()
	if err := cacheClient.Ping(ctx); err != nil {
		logger.Warnf("redis unavailable, running without cache and token denylist: %v", err)
	}

	store, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	departmentRepo := repository.NewDepartmentRepository(gormDB)
	subjectRepo := repository.NewSubjectRepository(gormDB)
	assignmentRepo := repository.NewAssignmentRepository(gormDB)
	commentRepo := repository.NewCommentRepository(gormDB)
	teamRequestRepo := repository.NewTeamRequestRepository(gormDB)
	eventRepo := repository.NewTeamRequestEventRepository(gormDB)

	// Initialize auth components
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	denylist := auth.NewDenylist(cacheClient)
	guard := auth.NewGuard(tokens, denylist)

	// Initialize services
	recorder := service.NewEventRecorder(eventRepo, logger)
	authService := service.NewAuthService(userRepo, departmentRepo, tokens, denylist, logger)
	catalogService := service.NewCatalogService(departmentRepo, subjectRepo, cacheClient)
	assignmentService := service.NewAssignmentService(assignmentRepo, commentRepo, subjectRepo)
	pdfService := service.NewPDFService(store, subjectRepo, service.PDFOptions{
		KeyPrefix:  cfg.S3KeyPrefix,
		MaxBytes:   cfg.PDFMaxBytes,
		PresignTTL: cfg.PresignTTL,
	})
	teamRequestService := service.NewTeamRequestService(teamRequestRepo, eventRepo, recorder, service.TeamRequestOptions{
		EagerMatching: cfg.EagerMatching(),
		RequestTTL:    cfg.TeamRequestTTL,
		PageSize:      cfg.TeamRequestPageLen,
	}, logger)

	sweeperDone := make(chan struct{})
	if cfg.TeamRequestTTL > 0 {
		go func() {
			defer close(sweeperDone)
			service.RunExpirySweeper(ctx, teamRequestService, cfg.SweepInterval, logger)
		}()
	} else {
		close(sweeperDone)
	}

	e := echo.New()
	e.HideBanner = true
	router.Register(e, cfg, guard, router.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		Catalog:     handler.NewCatalogHandler(catalogService),
		Assignment:  handler.NewAssignmentHandler(assignmentService),
		PDF:         handler.NewPDFHandler(pdfService),
		TeamRequest: handler.NewTeamRequestHandler(teamRequestService),
		Health: handler.NewHealthHandler(
			map[string]handler.Pinger{"database": databasePinger(gormDB)},
			map[string]handler.Pinger{"redis": cacheClient.Ping},
		),
	}, logger)

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "http://"), "https://")
	}
	logger.Infof("Swagger documentation available at: http://%s/swagger/index.html", docs.SwaggerInfo.Host)

	go func() {
		addr := ":" + cfg.ServerPort
		logger.Infof("listening on %s", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server start: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	<-sweeperDone
	recorder.Close()

	logger.Info("bye")
}

// buildStorage returns nil when no bucket is configured; PDF endpoints then
// answer 503.
func buildStorage(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.S3Bucket == "" {
		logger.Warn("S3_BUCKET not set, PDF storage disabled")
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.S3Region),
	}
	if cfg.AWSProfile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWSProfile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.S3Bucket, cfg.S3Region)
	return storage.NewS3Service(client, cfg.S3Bucket), nil
}

func databasePinger(gormDB *gorm.DB) handler.Pinger {
	return func(ctx context.Context) error {
		sqlDB, err := gormDB.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
