// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/svg-workbench/backend/internal/parser"
	"github.com/svg-workbench/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store         storage.Store
	Catalog       FileCatalog
	Indexer       FileIndexer
	Checker       parser.SchemaChecker
	SessionMgr    SessionManager
	UploadMgr     UploadJobs
	Rules         *parser.RulesFile
	Version       string
	SchemaPath    string
	AllowDeletion bool
	AllowedTypes  string // comma separated extensions; empty allows all
	MaxMessageKB  int
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Upload    UploadHandler
	Document  DocumentHandler
	Config    ConfigHandler
	WebSocket *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.SchemaPath, deps.SessionMgr),
		Upload:    NewUploadHandler(deps.Store, deps.Catalog, deps.Indexer, deps.SessionMgr, deps.UploadMgr).WithAllowedTypes(deps.AllowedTypes),
		Document:  NewDocumentHandler(deps.Store, deps.Indexer, deps.Checker, deps.SessionMgr, deps.Rules),
		Config:    NewConfigHandler(deps.Rules),
		WebSocket: NewWebSocketHandler(deps.Store, deps.Indexer, deps.UploadMgr, deps.Rules, deps.MaxMessageKB),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers, allowDeletion bool) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// WebSocket endpoint
	apiGroup.GET("/ws/uploads", handlers.WebSocket.HandleWebSocket)

	// File routes
	files := apiGroup.Group("/files")
	files.POST("/upload", handlers.Upload.HandleUploadFile)
	files.POST("/upload/binary", handlers.Upload.HandleUploadBinary)
	files.POST("/upload/chunk", handlers.Upload.HandleUploadChunk)
	files.POST("/upload/complete", handlers.Upload.HandleCompleteUpload)
	files.GET("/upload/:jobId/status", handlers.Upload.HandleUploadJobStream)
	files.GET("/recent", handlers.Upload.HandleGetRecentFiles)
	files.GET("/info", handlers.Upload.HandleGetFileInfo)
	files.POST("/reindex", handlers.Upload.HandleReindex)
	files.GET("/:id", handlers.Upload.HandleGetFile)
	files.GET("/:id/download", handlers.Upload.HandleDownloadFile)
	files.PUT("/:id", handlers.Upload.HandleRenameFile)

	// Conditional delete based on config
	if allowDeletion {
		files.DELETE("/:id", handlers.Upload.HandleDeleteFile)
	}

	// Document sessions
	docs := apiGroup.Group("/documents")
	docs.GET("", handlers.Document.HandleListSessions)
	docs.POST("", handlers.Document.HandleCreateDocument)
	docs.POST("/:id/open", handlers.Document.HandleOpenDocument)
	docs.GET("/:id", handlers.Document.HandleGetSummary)
	docs.GET("/:id/:kind", handlers.Document.HandleListElements)
	docs.POST("/:id/:kind", handlers.Document.HandleAddComponent)
	docs.GET("/:id/:kind/:index/attributes", handlers.Document.HandleGetAttributes)
	docs.PUT("/:id/:kind/:index/attributes", handlers.Document.HandleSetAttribute)
	docs.PUT("/:id/metadata", handlers.Document.HandleUpdateMetadata)
	docs.POST("/:id/scale", handlers.Document.HandleScale)
	docs.GET("/:id/validate", handlers.Document.HandleValidate)
	docs.GET("/:id/export", handlers.Document.HandleExportXML)
	docs.GET("/:id/snapshot", handlers.Document.HandleSnapshot)
	docs.POST("/:id/save", handlers.Document.HandleSave)
	docs.DELETE("/:id", handlers.Document.HandleClose)

	// Configuration
	apiGroup.GET("/config/edit-rules", handlers.Config.HandleGetEditRules)
	apiGroup.PUT("/config/edit-rules", handlers.Config.HandleUpdateEditRules)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
}
