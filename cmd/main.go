package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ArtisanClarinets/eccb-backend/internal/db"
	"github.com/ArtisanClarinets/eccb-backend/internal/handlers"
	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/middleware"
	"github.com/ArtisanClarinets/eccb-backend/internal/repos"
	"github.com/ArtisanClarinets/eccb-backend/internal/server"
	"github.com/ArtisanClarinets/eccb-backend/internal/services"
	"github.com/ArtisanClarinets/eccb-backend/internal/utils"
)

func main() {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "", log)
	if jwtSecretKey == "" {
		log.Fatal("JWT_SECRET_KEY is required")
	}
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	port := utils.GetEnv("PORT", "8080", log)
	allowOrigins := strings.Split(utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", log), ",")

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	gdb := postgresService.DB()

	// Repos
	sessionRepo := repos.NewUploadSessionRepo(gdb, log)
	pieceRepo := repos.NewPieceRepo(gdb, log)
	pieceFileRepo := repos.NewPieceFileRepo(gdb, log)
	piecePartRepo := repos.NewPiecePartRepo(gdb, log)
	personRepo := repos.NewPersonRepo(gdb, log)
	publisherRepo := repos.NewPublisherRepo(gdb, log)
	instrumentRepo := repos.NewInstrumentRepo(gdb, log)
	auditRepo := repos.NewAuditEventRepo(gdb, log)

	// Services
	bucketService, err := services.NewBucketService(log)
	if err != nil {
		log.Fatal("Could not init BucketService", "error", err)
	}
	extractor, err := services.NewOpenAIExtractor(log)
	if err != nil {
		log.Fatal("Could not init OpenAIExtractor", "error", err)
	}
	pdfService := services.NewPDFService(log)
	renderer := services.NewPageRenderer(log)
	auditService := services.NewAuditService(gdb, log, auditRepo)
	authService := services.NewAuthService(log, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second)
	commitService := services.NewCommitService(
		gdb, log,
		sessionRepo, pieceRepo, pieceFileRepo, piecePartRepo,
		personRepo, publisherRepo, instrumentRepo,
		bucketService,
	)
	reviewService := services.NewReviewService(
		gdb, log,
		sessionRepo, commitService, bucketService,
		extractor, pdfService, renderer, auditService,
	)
	intakeService := services.NewUploadIntakeService(
		gdb, log,
		sessionRepo, bucketService, extractor, pdfService,
		commitService, auditService,
	)

	// HTTP
	authMiddleware := middleware.NewAuthMiddleware(log, authService)
	reviewHandler := handlers.NewReviewHandler(log, reviewService)
	uploadHandler := handlers.NewUploadHandler(log, intakeService)

	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware: authMiddleware,
		ReviewHandler:  reviewHandler,
		UploadHandler:  uploadHandler,
		AllowOrigins:   allowOrigins,
	})

	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
