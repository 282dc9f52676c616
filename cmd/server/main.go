package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/svg-workbench/backend/internal/api"
	"github.com/svg-workbench/backend/internal/catalog"
	"github.com/svg-workbench/backend/internal/config"
	"github.com/svg-workbench/backend/internal/models"
	"github.com/svg-workbench/backend/internal/parser"
	"github.com/svg-workbench/backend/internal/schema"
	"github.com/svg-workbench/backend/internal/session"
	"github.com/svg-workbench/backend/internal/storage"
	"github.com/svg-workbench/backend/internal/upload"
	"github.com/svg-workbench/backend/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	// Load XML configuration
	configPath := filepath.Join(exeDir, config.FileName)
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	// Check if running in embedded mode (frontend built into binary)
	embeddedMode := web.HasEmbeddedFiles()

	// Initialize storage
	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		fmt.Printf("Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}

	// Open the file catalog and restore the files it knows about
	cat, err := catalog.Open(cfg.Storage.CatalogDatabase, catalog.Options{
		Threads:     cfg.Advanced.DuckDBThreads,
		MemoryLimit: cfg.Advanced.DuckDBMemoryLimit,
	})
	if err != nil {
		fmt.Printf("Failed to open catalog: %v\n", err)
		os.Exit(1)
	}
	defer cat.Close()
	restored := restoreFiles(fileStore, cat)

	// Compile the SVG schema
	validator, err := schema.Load(cfg.Storage.SchemaFile)
	if err != nil {
		fmt.Printf("Failed to load schema %s: %v\n", cfg.Storage.SchemaFile, err)
		os.Exit(1)
	}
	defer schema.Shutdown()
	defer validator.Close()

	// Load edit rules, writing the defaults on first run
	rules, err := parser.OpenRulesFile(cfg.Storage.EditRulesFile)
	if err != nil {
		fmt.Printf("Warning: failed to load edit rules, using defaults: %v\n", err)
		rules, _ = parser.OpenRulesFile("")
	} else {
		fmt.Println("Edit rules loaded successfully")
	}

	// Indexer, upload processing and document sessions
	indexer := upload.NewIndexer(fileStore, cat, validator)
	uploadMgr := upload.NewManager(fileStore, indexer)
	sessionMgr := session.NewManager(fileStore, validator, indexer)

	handlers := api.NewHandlers(&api.Dependencies{
		Store:         fileStore,
		Catalog:       cat,
		Indexer:       indexer,
		Checker:       validator,
		SessionMgr:    sessionMgr,
		UploadMgr:     uploadMgr,
		Rules:         rules,
		Version:       Version,
		SchemaPath:    cfg.Storage.SchemaFile,
		AllowDeletion: cfg.Security.AllowFileDeletion,
		AllowedTypes:  cfg.Security.AllowedFileTypes,
		MaxMessageKB:  cfg.Advanced.WebSocketMaxMessageSize,
	})

	// Start background cleanup of idle sessions, finished jobs and abandoned socket uploads
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval())
		defer ticker.Stop()
		for range ticker.C {
			sessionMgr.CleanupOldSessions(cfg.SessionTimeout())
			uploadMgr.CleanupOldJobs(cfg.JobRetention())
			handlers.WebSocket.CleanupStaleUploads(cfg.JobRetention())
		}
	}()

	e := echo.New()
	api.SetupMiddleware(e)

	// Configure middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging if disabled in config
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/status") ||
				path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize:         1024 * 4,
		DisablePrintStack: false,
		LogLevel:          0,
	}))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.Contains(path, "/ws/") ||
				strings.Contains(path, "/upload") ||
				strings.HasSuffix(path, "/reindex") ||
				c.Request().Header.Get("Accept") == "text/event-stream"
		},
		ErrorMessage: "Request timeout - document operation took too long",
	}))

	// Compression middleware
	if level := cfg.GzipLevel(); level > 0 {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: level,
			Skipper: func(c echo.Context) bool {
				return c.Request().Header.Get("Accept") == "text/event-stream" ||
					strings.Contains(c.Request().URL.Path, "/ws/")
			},
		}))
	}

	// Body limit middleware
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// CORS configuration
	if cfg.Server.EnableCORS {
		if embeddedMode {
			// In embedded mode, use config settings
			origins := strings.Split(cfg.Server.AllowOrigins, ",")
			for i := range origins {
				origins[i] = strings.TrimSpace(origins[i])
			}
			if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
				origins = []string{"*"}
			}
			e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
				AllowOrigins: origins,
				AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
				AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
			}))
		} else {
			// Development mode - only allow localhost
			e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
				AllowOrigins: []string{
					"http://localhost:5173", "http://127.0.0.1:5173",
					"http://localhost:3000", "http://127.0.0.1:3000",
				},
				AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
				AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			}))
		}
	}

	// API Routes
	api.RegisterRoutes(e, handlers, cfg.Security.AllowFileDeletion)

	// Register embedded frontend if available
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			fmt.Printf("Warning: failed to register static routes: %v\n", err)
		} else {
			fmt.Println("Serving embedded frontend from binary")
		}
	}

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Print startup banner
	mode := "Development"
	if embeddedMode {
		mode = "Air-Gapped (Embedded)"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           SVG Workbench Server                            ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("║  Schema:    %-46s║\n", filepath.Base(cfg.Storage.SchemaFile))
	fmt.Printf("║  Files:     %-46d║\n", restored)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embeddedMode {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}

	if err := e.StartServer(s); err != nil && err != http.ErrServerClosed {
		fmt.Printf("Server stopped: %v\n", err)
	}
}

// restoreFiles registers every catalogued file that is still on disk and
// drops entries whose file has gone.
func restoreFiles(store storage.Store, cat *catalog.Catalog) int {
	ctx := context.Background()
	entries, err := cat.List(ctx, false)
	if err != nil {
		fmt.Printf("Warning: failed to read catalog: %v\n", err)
		return 0
	}

	restored := 0
	for _, entry := range entries {
		status := models.FileStatusInvalid
		if entry.Valid {
			status = models.FileStatusValid
		}
		err := store.RegisterFile(&models.FileInfo{
			ID:         entry.FileID,
			Name:       entry.FileName,
			Size:       entry.FileSize,
			UploadedAt: entry.IndexedAt,
			Status:     status,
		})
		if err != nil {
			fmt.Printf("[Catalog] Dropping %s (%s): %v\n", entry.FileID, entry.FileName, err)
			cat.Delete(ctx, entry.FileID)
			continue
		}
		restored++
	}
	return restored
}
