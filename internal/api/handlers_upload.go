// handlers_upload.go - File upload and file management handlers
package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/svg-workbench/backend/internal/catalog"
	"github.com/svg-workbench/backend/internal/models"
	"github.com/svg-workbench/backend/internal/storage"
)

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	store         storage.Store
	catalog       FileCatalog
	indexer       FileIndexer
	sessionMgr    SessionManager
	uploadManager UploadJobs
	allowedTypes  []string
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(store storage.Store, cat FileCatalog, indexer FileIndexer, sessionMgr SessionManager, uploadMgr UploadJobs) *UploadHandlerImpl {
	return &UploadHandlerImpl{
		store:         store,
		catalog:       cat,
		indexer:       indexer,
		sessionMgr:    sessionMgr,
		uploadManager: uploadMgr,
	}
}

// WithAllowedTypes restricts uploads to the given extensions (".svg,.svgz").
// An empty list allows everything.
func (h *UploadHandlerImpl) WithAllowedTypes(types string) *UploadHandlerImpl {
	h.allowedTypes = splitList(types)
	return h
}

// fileResponse is a stored file together with its indexing outcome.
type fileResponse struct {
	*models.FileInfo
	Index *catalog.Entry `json:"index,omitempty"`
}

// HandleUploadFile accepts a file as base64 JSON, stores and indexes it
func (h *UploadHandlerImpl) HandleUploadFile(c echo.Context) error {
	var req uploadFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}
	if err := h.checkType(req.Name); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	info, err := h.store.SaveBytes(req.Name, decoded)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return h.respondIndexed(c, info)
}

// HandleUploadBinary accepts a multipart upload in the "file" or
// "uploadFile" field
func (h *UploadHandlerImpl) HandleUploadBinary(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		file, err = c.FormFile("uploadFile")
	}
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}
	if err := h.checkType(file.Filename); err != nil {
		return err
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return h.respondIndexed(c, info)
}

func (h *UploadHandlerImpl) respondIndexed(c echo.Context, info *models.FileInfo) error {
	entry, err := h.indexer.IndexFile(c.Request().Context(), info)
	if err != nil {
		return NewInternalError("failed to index file", err)
	}
	if current, err := h.store.Get(info.ID); err == nil {
		info = current
	}
	return c.JSON(http.StatusCreated, fileResponse{FileInfo: info, Index: &entry})
}

// HandleUploadChunk accepts a single chunk of a chunked upload
func (h *UploadHandlerImpl) HandleUploadChunk(c echo.Context) error {
	var req uploadChunkRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	if err := h.store.SaveChunkBytes(req.UploadID, req.ChunkIndex, decoded); err != nil {
		return NewBadRequestError("failed to save chunk", err)
	}

	return c.NoContent(http.StatusAccepted)
}

// HandleCompleteUpload completes a chunked upload and starts async processing
func (h *UploadHandlerImpl) HandleCompleteUpload(c echo.Context) error {
	var req completeUploadRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}
	if err := h.checkType(req.Name); err != nil {
		return err
	}

	job := h.uploadManager.StartJob(
		req.UploadID,
		req.Name,
		req.TotalChunks,
		req.OriginalSize,
		req.CompressedSize,
		req.Encoding,
	)

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

// HandleUploadJobStream streams upload job progress via SSE
func (h *UploadHandlerImpl) HandleUploadJobStream(c echo.Context) error {
	id := c.Param("jobId")
	if id == "" {
		return NewValidationError("jobId")
	}
	if _, ok := h.uploadManager.GetJob(id); !ok {
		return NewNotFoundError("upload job", id)
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.NewTimer(5 * time.Minute)
	defer timeout.Stop()

	for {
		job, ok := h.uploadManager.GetJob(id)
		if !ok {
			sendSSEError(c, "upload job not found")
			return nil
		}
		sendSSEData(c, job)
		if job.Done() {
			return nil
		}

		select {
		case <-ticker.C:
		case <-timeout.C:
			sendSSEError(c, "stream timeout")
			return nil
		case <-c.Request().Context().Done():
			return nil
		}
	}
}

// HandleGetRecentFiles returns the most recently uploaded files
func (h *UploadHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	files, err := h.store.List(20)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	return c.JSON(http.StatusOK, files)
}

// HandleGetFileInfo lists every valid stored SVG with its shape counts
func (h *UploadHandlerImpl) HandleGetFileInfo(c echo.Context) error {
	entries, err := h.catalog.List(c.Request().Context(), true)
	if err != nil {
		return NewInternalError("failed to read catalog", err)
	}

	summaries := make([]models.FileSummary, 0, len(entries))
	for _, e := range entries {
		summaries = append(summaries, models.FileSummary{
			ID:        e.FileID,
			FileName:  e.FileName,
			FileSize:  models.SizeInKB(e.FileSize),
			NumRects:  e.Deep.Rectangles,
			NumCircs:  e.Deep.Circles,
			NumPaths:  e.Deep.Paths,
			NumGroups: e.Deep.Groups,
		})
	}
	return c.JSON(http.StatusOK, summaries)
}

// HandleGetFile returns metadata and the catalog entry for a file
func (h *UploadHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	resp := fileResponse{FileInfo: info}
	entry, err := h.catalog.Get(c.Request().Context(), id)
	switch {
	case err == nil:
		resp.Index = &entry
	case !errors.Is(err, catalog.ErrNotFound):
		return NewInternalError("failed to read catalog", err)
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleDownloadFile sends the stored bytes of a file
func (h *UploadHandlerImpl) HandleDownloadFile(c echo.Context) error {
	id := c.Param("id")
	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}
	path, err := h.store.GetFilePath(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}
	return c.Attachment(path, info.Name)
}

// HandleDeleteFile deletes a file, its catalog entry and any open session
func (h *UploadHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.store.Delete(id); err != nil {
		return NewNotFoundError("file", id)
	}
	if err := h.catalog.Delete(c.Request().Context(), id); err != nil {
		fmt.Printf("[Files] Failed to drop catalog entry %s: %v\n", id, err)
	}
	if h.sessionMgr != nil {
		h.sessionMgr.Close(id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleRenameFile updates the display name of a file
func (h *UploadHandlerImpl) HandleRenameFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req renameFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if strings.TrimSpace(req.Name) == "" {
		return NewValidationError("name")
	}

	info, err := h.store.Rename(id, req.Name)
	if err != nil {
		return NewNotFoundError("file", id)
	}
	if err := h.catalog.Rename(c.Request().Context(), id, info.Name); err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return NewInternalError("failed to update catalog", err)
	}
	if h.sessionMgr != nil {
		h.sessionMgr.Rename(id, info.Name)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleReindex rebuilds the catalog from every stored file
func (h *UploadHandlerImpl) HandleReindex(c echo.Context) error {
	entries, err := h.indexer.Reindex(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to reindex files", err)
	}

	valid := 0
	for _, e := range entries {
		if e.Valid {
			valid++
		}
	}
	return c.JSON(http.StatusOK, map[string]int{
		"indexed": len(entries),
		"valid":   valid,
	})
}

func (h *UploadHandlerImpl) checkType(name string) error {
	if len(h.allowedTypes) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(storage.CleanName(name)))
	for _, t := range h.allowedTypes {
		if ext == t {
			return nil
		}
	}
	return NewBadRequestError(fmt.Sprintf("file type %q is not allowed", ext), nil)
}

// Request/Response types

type uploadFileRequest struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64-encoded content
}

func (r *uploadFileRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type uploadChunkRequest struct {
	UploadID    string `json:"uploadId"`
	ChunkIndex  int    `json:"chunkIndex"`
	Data        string `json:"data"` // Base64-encoded chunk
	TotalChunks int    `json:"totalChunks"`
}

func (r *uploadChunkRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.ChunkIndex < 0 {
		return NewValidationError("chunkIndex")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type completeUploadRequest struct {
	UploadID       string `json:"uploadId"`
	Name           string `json:"name"`
	TotalChunks    int    `json:"totalChunks"`
	OriginalSize   int64  `json:"originalSize"`
	CompressedSize int64  `json:"compressedSize"`
	Encoding       string `json:"encoding"`
}

func (r *completeUploadRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.TotalChunks <= 0 {
		return NewBadRequestError("totalChunks must be positive", nil)
	}
	return nil
}

type renameFileRequest struct {
	Name string `json:"name"`
}

// Helper functions

func sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func sendSSEError(c echo.Context, message string) {
	sendSSEData(c, map[string]string{"error": message})
}

// splitList splits a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
