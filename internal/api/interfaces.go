// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/svg-workbench/backend/internal/catalog"
	"github.com/svg-workbench/backend/internal/models"
	"github.com/svg-workbench/backend/internal/svg"
	"github.com/svg-workbench/backend/internal/upload"
)

// UploadHandler handles file upload and file management operations
type UploadHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
	HandleUploadBinary(c echo.Context) error
	HandleUploadJobStream(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFileInfo(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDownloadFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
	HandleReindex(c echo.Context) error
}

// DocumentHandler handles inspection and editing of open documents
type DocumentHandler interface {
	HandleCreateDocument(c echo.Context) error
	HandleOpenDocument(c echo.Context) error
	HandleListSessions(c echo.Context) error
	HandleGetSummary(c echo.Context) error
	HandleListElements(c echo.Context) error
	HandleGetAttributes(c echo.Context) error
	HandleSetAttribute(c echo.Context) error
	HandleAddComponent(c echo.Context) error
	HandleUpdateMetadata(c echo.Context) error
	HandleScale(c echo.Context) error
	HandleValidate(c echo.Context) error
	HandleExportXML(c echo.Context) error
	HandleSnapshot(c echo.Context) error
	HandleSave(c echo.Context) error
	HandleClose(c echo.Context) error
}

// ConfigHandler handles runtime configuration
type ConfigHandler interface {
	HandleGetEditRules(c echo.Context) error
	HandleUpdateEditRules(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for document sessions
// This allows mocking in tests
type SessionManager interface {
	Open(fileID string) (*models.DocumentSession, error)
	View(fileID string, fn func(doc *svg.Document) error) error
	Update(fileID string, fn func(doc *svg.Document) error) (*models.DocumentSession, error)
	Save(ctx context.Context, fileID string) (*models.DocumentSession, error)
	Rename(fileID, name string)
	Close(fileID string) bool
	GetSession(fileID string) (*models.DocumentSession, bool)
	ListSessions() []*models.DocumentSession
	TouchSession(fileID string) bool
}

// FileCatalog is the read/write surface of the catalog used by handlers
type FileCatalog interface {
	Get(ctx context.Context, fileID string) (catalog.Entry, error)
	List(ctx context.Context, validOnly bool) ([]catalog.Entry, error)
	Rename(ctx context.Context, fileID, name string) error
	Delete(ctx context.Context, fileID string) error
}

// FileIndexer validates stored files and records them in the catalog
type FileIndexer interface {
	IndexFile(ctx context.Context, info *models.FileInfo) (catalog.Entry, error)
	Reindex(ctx context.Context) ([]catalog.Entry, error)
}

// UploadJobs runs chunked uploads in the background
type UploadJobs interface {
	StartJob(uploadID, fileName string, totalChunks int, originalSize, compressedSize int64, encoding string) *upload.Job
	GetJob(id string) (*upload.Job, bool)
	Wait(ctx context.Context, id string, interval time.Duration, onUpdate func(*upload.Job)) (*upload.Job, error)
}
