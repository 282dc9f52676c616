package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svg-workbench/backend/internal/upload"
)

func dialUploads(t *testing.T, f *apiFixture) *websocket.Conn {
	t.Helper()
	wsh := NewWebSocketHandler(f.store, f.indexer, f.uploads, f.rules, 1024)
	wsh.pollInterval = 5 * time.Millisecond

	e := echo.New()
	e.GET("/ws", wsh.HandleWebSocket)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var hello WSMessage
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, "connected", hello.Type)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(WSMessage{Type: msgType, Payload: mustJSON(payload)}))
}

// readUntil reads messages until one of the given types arrives.
func readUntil(t *testing.T, conn *websocket.Conn, types ...string) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg WSMessage
		require.NoError(t, conn.ReadJSON(&msg))
		for _, want := range types {
			if msg.Type == want {
				return msg
			}
		}
	}
}

func TestWebSocket_Ping(t *testing.T) {
	conn := dialUploads(t, newAPIFixture(t))
	send(t, conn, MsgTypePing, nil)
	assert.Equal(t, MsgTypePong, readUntil(t, conn, MsgTypePong).Type)
}

func TestWebSocket_FileUpload(t *testing.T) {
	f := newAPIFixture(t)
	conn := dialUploads(t, f)

	send(t, conn, MsgTypeFileUpload, FileUploadPayload{
		Name: "small.svg",
		Data: base64.StdEncoding.EncodeToString([]byte(sampleSVG)),
	})
	msg := readUntil(t, conn, MsgTypeComplete, MsgTypeError)
	require.Equal(t, MsgTypeComplete, msg.Type, string(msg.Payload))

	var resp WSCompleteResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &resp))
	require.NotNil(t, resp.FileInfo)
	require.NotNil(t, resp.Index)
	assert.Equal(t, "small.svg", resp.FileInfo.Name)
	assert.True(t, resp.Index.Valid)

	send(t, conn, MsgTypeFileUpload, FileUploadPayload{Name: "x.svg", Data: "%%%"})
	msg = readUntil(t, conn, MsgTypeError)
	var errResp WSErrorResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &errResp))
	assert.Equal(t, "INVALID_DATA", errResp.Code)
}

func TestWebSocket_ChunkedUpload(t *testing.T) {
	f := newAPIFixture(t)
	conn := dialUploads(t, f)

	data := []byte(sampleSVG)
	send(t, conn, MsgTypeUploadInit, UploadInitPayload{FileName: "big.svg", TotalChunks: 2, TotalSize: int64(len(data))})
	ack := readUntil(t, conn, MsgTypeAck)
	require.NotEmpty(t, ack.ID)

	// Completing early reports the gap and keeps the session.
	send(t, conn, MsgTypeUploadComplete, UploadCompletePayload{UploadID: ack.ID})
	msg := readUntil(t, conn, MsgTypeError)
	var errResp WSErrorResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &errResp))
	assert.Equal(t, "INCOMPLETE_UPLOAD", errResp.Code)

	half := len(data) / 2
	for i, chunk := range [][]byte{data[:half], data[half:]} {
		send(t, conn, MsgTypeUploadChunk, UploadChunkPayload{
			UploadID:   ack.ID,
			ChunkIndex: i,
			Data:       base64.StdEncoding.EncodeToString(chunk),
		})
		readUntil(t, conn, MsgTypeProgress)
	}

	send(t, conn, MsgTypeUploadComplete, UploadCompletePayload{UploadID: ack.ID})
	msg = readUntil(t, conn, MsgTypeComplete, MsgTypeError)
	require.Equal(t, MsgTypeComplete, msg.Type, string(msg.Payload))

	var resp WSCompleteResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &resp))
	require.NotNil(t, resp.Index)
	assert.True(t, resp.Index.Valid)
	assert.Equal(t, "big.svg", resp.FileInfo.Name)

	send(t, conn, MsgTypeUploadChunk, UploadChunkPayload{UploadID: ack.ID, ChunkIndex: 0, Data: "AA=="})
	msg = readUntil(t, conn, MsgTypeError)
	require.NoError(t, json.Unmarshal(msg.Payload, &errResp))
	assert.Equal(t, "SESSION_NOT_FOUND", errResp.Code)
}

func TestWebSocket_JobWatch(t *testing.T) {
	f := newAPIFixture(t)
	conn := dialUploads(t, f)

	require.NoError(t, f.store.SaveChunkBytes("http-up", 0, []byte(sampleSVG)))
	job := f.uploads.StartJob("http-up", "via-http.svg", 1, 0, 0, "")

	send(t, conn, MsgTypeJobWatch, JobWatchPayload{JobID: job.ID})
	msg := readUntil(t, conn, MsgTypeComplete, MsgTypeError)
	require.Equal(t, MsgTypeComplete, msg.Type, string(msg.Payload))

	done, ok := f.uploads.GetJob(job.ID)
	require.True(t, ok)
	assert.Equal(t, upload.StatusComplete, done.Status)
}

func TestWebSocket_RulesUpload(t *testing.T) {
	f := newAPIFixture(t)
	conn := dialUploads(t, f)

	yamlRules := "allowed_units: [px, mm]\nprotected_attributes: [id]\nmax_attributes: 8\nmax_scale_factor: 4\n"
	send(t, conn, MsgTypeRulesUpload, FileUploadPayload{
		Name: "edit_rules.yaml",
		Data: base64.StdEncoding.EncodeToString([]byte(yamlRules)),
	})
	msg := readUntil(t, conn, MsgTypeComplete, MsgTypeError)
	require.Equal(t, MsgTypeComplete, msg.Type, string(msg.Payload))

	rules := f.rules.Rules()
	assert.Equal(t, []string{"px", "mm"}, rules.AllowedUnits)
	assert.Equal(t, 8, rules.MaxAttributes)

	send(t, conn, MsgTypeRulesUpload, FileUploadPayload{
		Name: "bad.yaml",
		Data: base64.StdEncoding.EncodeToString([]byte("max_attributes: [")),
	})
	msg = readUntil(t, conn, MsgTypeError)
	var errResp WSErrorResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &errResp))
	assert.Equal(t, "INVALID_YAML", errResp.Code)
}

func TestWebSocket_UnknownType(t *testing.T) {
	conn := dialUploads(t, newAPIFixture(t))
	send(t, conn, "map:upload", nil)
	msg := readUntil(t, conn, MsgTypeError)
	var errResp WSErrorResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &errResp))
	assert.Equal(t, "INVALID_TYPE", errResp.Code)
}
