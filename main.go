package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/lattice-hq/lattice-engine/pkg/auth"
	"github.com/lattice-hq/lattice-engine/pkg/config"
	"github.com/lattice-hq/lattice-engine/pkg/database"
	"github.com/lattice-hq/lattice-engine/pkg/handlers"
	"github.com/lattice-hq/lattice-engine/pkg/logging"
	"github.com/lattice-hq/lattice-engine/pkg/middleware"
	"github.com/lattice-hq/lattice-engine/pkg/repositories"
	"github.com/lattice-hq/lattice-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.Int("max_traversal_depth", cfg.Graph.MaxTraversalDepth),
	)

	ctx := context.Background()

	// Apply pending migrations before opening the pool
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	if err := migrationDB.Close(); err != nil {
		logger.Warn("Failed to close migration connection", zap.Error(err))
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Authentication
	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	defer jwksClient.Close()

	authService := auth.NewAuthService(jwksClient, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)
	tenantMiddleware := handlers.TenantMiddleware(database.WithTenantContext(db, logger))

	// Repositories
	schemaRepo := repositories.NewSchemaRepository()
	entityRepo := repositories.NewEntityRepository()
	edgeRepo := repositories.NewEdgeRepository()

	// Services
	schemaService := services.NewSchemaService(schemaRepo, logger)
	graphService := services.NewGraphService(schemaRepo, entityRepo, edgeRepo, cfg.Graph, logger)
	traversalService := services.NewTraversalService(entityRepo, edgeRepo, cfg.Graph, logger)
	bulkService := services.NewBulkService(graphService, logger)

	// Handlers
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewSchemaHandler(schemaService, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewEntityHandler(graphService, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewEdgeHandler(graphService, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewBulkHandler(bulkService, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewTraversalHandler(traversalService, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)

	handler := middleware.RequestLogger(logger)(mux)
	addr := cfg.BindAddr + ":" + cfg.Port

	logger.Info("Starting lattice-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version),
		zap.Bool("tls", cfg.TLSCertPath != ""),
	)

	if cfg.TLSCertPath != "" {
		err = http.ListenAndServeTLS(addr, cfg.TLSCertPath, cfg.TLSKeyPath, handler)
	} else {
		err = http.ListenAndServe(addr, handler)
	}
	if err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
