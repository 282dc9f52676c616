package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/svg-workbench/backend/internal/catalog"
	"github.com/svg-workbench/backend/internal/models"
	"github.com/svg-workbench/backend/internal/parser"
	"github.com/svg-workbench/backend/internal/storage"
	"github.com/svg-workbench/backend/internal/upload"
)

// WebSocket message types for upload protocol
const (
	// Client -> Server messages
	MsgTypeUploadInit     = "upload:init"
	MsgTypeUploadChunk    = "upload:chunk"
	MsgTypeUploadComplete = "upload:complete"
	MsgTypeFileUpload     = "file:upload"
	MsgTypeRulesUpload    = "rules:upload"
	MsgTypeJobWatch       = "job:watch"
	MsgTypePing           = "ping"

	// Server -> Client messages
	MsgTypeAck        = "ack"
	MsgTypeProgress   = "progress"
	MsgTypeComplete   = "complete"
	MsgTypeError      = "error"
	MsgTypeProcessing = "processing"
	MsgTypePong       = "pong"
)

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Upload init payload
type UploadInitPayload struct {
	FileName    string `json:"fileName"`
	TotalChunks int    `json:"totalChunks"`
	TotalSize   int64  `json:"totalSize"`
	Encoding    string `json:"encoding,omitempty"` // "gzip", "none"
}

// Upload chunk payload
type UploadChunkPayload struct {
	UploadID   string `json:"uploadId"`
	ChunkIndex int    `json:"chunkIndex"`
	Data       string `json:"data"` // Base64 encoded chunk
}

// Upload complete payload
type UploadCompletePayload struct {
	UploadID       string `json:"uploadId"`
	CompressedSize int64  `json:"compressedSize,omitempty"`
}

// Single-message upload payload for small files
type FileUploadPayload struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64 encoded file
}

// Job watch payload
type JobWatchPayload struct {
	JobID string `json:"jobId"`
}

// WebSocket progress response
type WSProgressResponse struct {
	Type     string  `json:"type"`
	UploadID string  `json:"uploadId,omitempty"`
	JobID    string  `json:"jobId,omitempty"`
	Progress float64 `json:"progress"`
	Stage    string  `json:"stage,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// WebSocket completion response
type WSCompleteResponse struct {
	Type     string           `json:"type"`
	UploadID string           `json:"uploadId,omitempty"`
	FileInfo *models.FileInfo `json:"fileInfo,omitempty"`
	Index    *catalog.Entry   `json:"index,omitempty"`
	Result   interface{}      `json:"result,omitempty"`
}

// WebSocket error response
type WSErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// UploadSession tracks an in-progress upload over WebSocket. Chunks go to
// the store as they arrive.
type UploadSession struct {
	ID             string
	FileName       string
	TotalChunks    int
	ReceivedChunks map[int]bool
	OriginalSize   int64
	Encoding       string
	CreatedAt      time.Time
}

// WebSocketHandler manages WebSocket connections for file uploads
type WebSocketHandler struct {
	store        storage.Store
	indexer      FileIndexer
	uploads      UploadJobs
	rules        *parser.RulesFile
	upgrader     websocket.Upgrader
	readLimit    int64
	pollInterval time.Duration
	sessions     map[string]*UploadSession
	sessionsMu   sync.RWMutex
}

// NewWebSocketHandler creates a new WebSocket upload handler
func NewWebSocketHandler(store storage.Store, indexer FileIndexer, uploads UploadJobs, rules *parser.RulesFile, maxMessageKB int) *WebSocketHandler {
	return &WebSocketHandler{
		store:   store,
		indexer: indexer,
		uploads: uploads,
		rules:   rules,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
		},
		readLimit:    int64(maxMessageKB) * 1024,
		pollInterval: 100 * time.Millisecond,
		sessions:     make(map[string]*UploadSession),
	}
}

// HandleWebSocket upgrades HTTP connection to WebSocket and handles upload protocol
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	if wsh.readLimit > 0 {
		ws.SetReadLimit(wsh.readLimit)
	}

	fmt.Println("[WebSocket] Client connected for upload")

	wsh.sendMessage(ws, WSMessage{
		Type:      "connected",
		Timestamp: time.Now().UnixMilli(),
	})

	for {
		var msg WSMessage
		err := ws.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				fmt.Printf("[WebSocket] Connection error: %v\n", err)
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			wsh.sendMessage(ws, WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		case MsgTypeUploadInit:
			wsh.handleUploadInit(ws, msg)
		case MsgTypeUploadChunk:
			wsh.handleUploadChunk(ws, msg)
		case MsgTypeUploadComplete:
			wsh.handleUploadComplete(ws, msg)
		case MsgTypeFileUpload:
			wsh.handleFileUpload(ws, msg)
		case MsgTypeRulesUpload:
			wsh.handleRulesUpload(ws, msg)
		case MsgTypeJobWatch:
			wsh.handleJobWatch(ws, msg)
		default:
			wsh.sendError(ws, "Unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}

	fmt.Println("[WebSocket] Client disconnected")
	return nil
}

// handleUploadInit initializes a new chunked upload session
func (wsh *WebSocketHandler) handleUploadInit(ws *websocket.Conn, msg WSMessage) {
	var payload UploadInitPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		wsh.sendError(ws, "Invalid init payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}
	if payload.FileName == "" || payload.TotalChunks <= 0 {
		wsh.sendError(ws, "fileName and a positive totalChunks are required", "INVALID_PAYLOAD")
		return
	}

	sessionID := uuid.New().String()
	session := &UploadSession{
		ID:             sessionID,
		FileName:       payload.FileName,
		TotalChunks:    payload.TotalChunks,
		ReceivedChunks: make(map[int]bool),
		OriginalSize:   payload.TotalSize,
		Encoding:       payload.Encoding,
		CreatedAt:      time.Now(),
	}

	wsh.sessionsMu.Lock()
	wsh.sessions[sessionID] = session
	wsh.sessionsMu.Unlock()

	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeAck,
		ID:        sessionID,
		Timestamp: time.Now().UnixMilli(),
	})

	fmt.Printf("[WebSocket] Upload initialized: %s (%d chunks, %d bytes)\n",
		sessionID[:8], payload.TotalChunks, payload.TotalSize)
}

// handleUploadChunk receives and stores a chunk
func (wsh *WebSocketHandler) handleUploadChunk(ws *websocket.Conn, msg WSMessage) {
	var payload UploadChunkPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		wsh.sendError(ws, "Invalid chunk payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}

	wsh.sessionsMu.RLock()
	session, exists := wsh.sessions[payload.UploadID]
	wsh.sessionsMu.RUnlock()

	if !exists {
		wsh.sendError(ws, "Upload session not found: "+payload.UploadID, "SESSION_NOT_FOUND")
		return
	}
	if payload.ChunkIndex < 0 || payload.ChunkIndex >= session.TotalChunks {
		wsh.sendError(ws, fmt.Sprintf("Chunk index %d out of range", payload.ChunkIndex), "INVALID_CHUNK")
		return
	}

	chunkData, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		wsh.sendError(ws, "Invalid base64 data: "+err.Error(), "INVALID_DATA")
		return
	}
	if err := wsh.store.SaveChunkBytes(session.ID, payload.ChunkIndex, chunkData); err != nil {
		wsh.sendError(ws, "Failed to save chunk: "+err.Error(), "SAVE_ERROR")
		return
	}

	wsh.sessionsMu.Lock()
	session.ReceivedChunks[payload.ChunkIndex] = true
	received := len(session.ReceivedChunks)
	wsh.sessionsMu.Unlock()

	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeProgress,
		ID:        payload.UploadID,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSProgressResponse{
			Type:     MsgTypeProgress,
			UploadID: payload.UploadID,
			Progress: float64(received) / float64(session.TotalChunks) * 100,
			Stage:    "uploading",
			Message:  fmt.Sprintf("Received chunk %d/%d", received, session.TotalChunks),
		}),
	})
}

// handleUploadComplete hands the stored chunks to an upload job and streams
// its progress until it finishes
func (wsh *WebSocketHandler) handleUploadComplete(ws *websocket.Conn, msg WSMessage) {
	var payload UploadCompletePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		wsh.sendError(ws, "Invalid complete payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}

	wsh.sessionsMu.Lock()
	session, exists := wsh.sessions[payload.UploadID]
	if exists && len(session.ReceivedChunks) == session.TotalChunks {
		delete(wsh.sessions, payload.UploadID)
	}
	wsh.sessionsMu.Unlock()

	if !exists {
		wsh.sendError(ws, "Upload session not found: "+payload.UploadID, "SESSION_NOT_FOUND")
		return
	}
	if len(session.ReceivedChunks) != session.TotalChunks {
		wsh.sendError(ws, fmt.Sprintf("Missing chunks: got %d, expected %d",
			len(session.ReceivedChunks), session.TotalChunks), "INCOMPLETE_UPLOAD")
		return
	}

	job := wsh.uploads.StartJob(session.ID, session.FileName, session.TotalChunks,
		session.OriginalSize, payload.CompressedSize, session.Encoding)
	wsh.streamJob(ws, payload.UploadID, job.ID)
}

// handleJobWatch streams the progress of an upload job started over HTTP
func (wsh *WebSocketHandler) handleJobWatch(ws *websocket.Conn, msg WSMessage) {
	var payload JobWatchPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		wsh.sendError(ws, "Invalid watch payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}
	wsh.streamJob(ws, "", payload.JobID)
}

// jobStreamTimeout bounds how long a socket waits on one upload job.
const jobStreamTimeout = 5 * time.Minute

func (wsh *WebSocketHandler) streamJob(ws *websocket.Conn, uploadID, jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), jobStreamTimeout)
	defer cancel()

	job, err := wsh.uploads.Wait(ctx, jobID, wsh.pollInterval, func(job *upload.Job) {
		if job.Done() {
			return
		}
		wsh.sendMessage(ws, WSMessage{
			Type:      MsgTypeProcessing,
			ID:        uploadID,
			Timestamp: time.Now().UnixMilli(),
			Payload: mustJSON(WSProgressResponse{
				Type:     MsgTypeProcessing,
				UploadID: uploadID,
				JobID:    job.ID,
				Progress: job.Progress,
				Stage:    string(job.Status),
				Message:  job.Stage,
			}),
		})
	})
	if err != nil {
		wsh.sendError(ws, "Upload job failed: "+err.Error(), "JOB_NOT_FOUND")
		return
	}

	if job.Status == upload.StatusError {
		wsh.sendError(ws, job.Error, "PROCESSING_ERROR")
		return
	}

	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeComplete,
		ID:        uploadID,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSCompleteResponse{
			Type:     MsgTypeComplete,
			UploadID: uploadID,
			FileInfo: job.FileInfo,
			Index:    job.Entry,
		}),
	})
	if job.FileInfo != nil {
		fmt.Printf("[WebSocket] Upload complete: %s (%d bytes)\n", job.FileInfo.ID, job.FileInfo.Size)
	}
}

// handleFileUpload stores and indexes a small file sent in one message
func (wsh *WebSocketHandler) handleFileUpload(ws *websocket.Conn, msg WSMessage) {
	var payload FileUploadPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		wsh.sendError(ws, "Invalid upload payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}

	decoded, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		wsh.sendError(ws, "Invalid base64 data: "+err.Error(), "INVALID_DATA")
		return
	}

	info, err := wsh.store.SaveBytes(payload.Name, decoded)
	if err != nil {
		wsh.sendError(ws, "Failed to save file: "+err.Error(), "SAVE_ERROR")
		return
	}
	entry, err := wsh.indexer.IndexFile(context.Background(), info)
	if err != nil {
		wsh.sendError(ws, "Failed to index file: "+err.Error(), "INDEX_ERROR")
		return
	}
	if current, err := wsh.store.Get(info.ID); err == nil {
		info = current
	}

	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeComplete,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSCompleteResponse{
			Type:     MsgTypeComplete,
			FileInfo: info,
			Index:    &entry,
		}),
	})

	fmt.Printf("[WebSocket] File uploaded: %s (valid=%v)\n", info.ID, entry.Valid)
}

// handleRulesUpload replaces the edit rules with an uploaded YAML file
func (wsh *WebSocketHandler) handleRulesUpload(ws *websocket.Conn, msg WSMessage) {
	if wsh.rules == nil {
		wsh.sendError(ws, "Edit rules are not configured", "RULES_UNAVAILABLE")
		return
	}

	var payload FileUploadPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		wsh.sendError(ws, "Invalid rules upload payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}

	decoded, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		wsh.sendError(ws, "Invalid base64 data: "+err.Error(), "INVALID_DATA")
		return
	}

	rules, err := parser.ParseEditRulesFromReader(bytes.NewReader(decoded))
	if err != nil {
		wsh.sendError(ws, "Invalid YAML format: "+err.Error(), "INVALID_YAML")
		return
	}
	if err := wsh.rules.Replace(*rules); err != nil {
		wsh.sendError(ws, "Failed to save rules: "+err.Error(), "SAVE_ERROR")
		return
	}

	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeComplete,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSCompleteResponse{
			Type:   MsgTypeComplete,
			Result: wsh.rules.Rules(),
		}),
	})

	fmt.Printf("[WebSocket] Edit rules replaced from %s\n", payload.Name)
}

// CleanupStaleUploads drops upload sessions that were never completed.
func (wsh *WebSocketHandler) CleanupStaleUploads(maxAge time.Duration) {
	wsh.sessionsMu.Lock()
	defer wsh.sessionsMu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for id, session := range wsh.sessions {
		if session.CreatedAt.Before(cutoff) {
			delete(wsh.sessions, id)
		}
	}
}

// Helper methods

func (wsh *WebSocketHandler) sendMessage(ws *websocket.Conn, msg WSMessage) {
	if err := ws.WriteJSON(msg); err != nil {
		fmt.Printf("[WebSocket] Failed to send message: %v\n", err)
	}
}

func (wsh *WebSocketHandler) sendError(ws *websocket.Conn, message, code string) {
	wsh.sendMessage(ws, WSMessage{
		Type:      MsgTypeError,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSErrorResponse{
			Type:    MsgTypeError,
			Message: message,
			Code:    code,
		}),
	})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
