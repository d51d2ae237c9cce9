package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wavechat/wavechat/chat"
	"github.com/wavechat/wavechat/config"
	"github.com/wavechat/wavechat/persistence"
	"github.com/wavechat/wavechat/presence"
	"github.com/wavechat/wavechat/userdir"
	"github.com/wavechat/wavechat/ws"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	cfg := &config.Config{}
	cfg.PersistenceConfig.Type = "sqlite"
	cfg.PersistenceConfig.DSN = filepath.Join(t.TempDir(), "test.db")
	cfg.RetentionConfig.Window = 30 * time.Minute
	cfg.HistoryConfig.PageSize = 50
	cfg.HistoryConfig.MaxPageSize = 100
	cfg.AdminUser = 99

	persister, err := persistence.NewPersister(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { persister.Close() })

	tracker := presence.NewTracker()
	directory := userdir.NewClient(cfg)
	hub := ws.NewHub(cfg, tracker, directory)
	rooms := chat.NewRoomDirectory(persister)
	messages := chat.NewMessageStore(cfg, persister, rooms, directory, hub)
	reactions := chat.NewReactionLedger(persister, hub)
	hub.Rooms = rooms
	hub.Messages = messages
	hub.Reactions = reactions

	return &Handler{
		Cfg:       cfg,
		Hub:       hub,
		Messages:  messages,
		Reactions: reactions,
		Rooms:     rooms,
		Presence:  tracker,
		Sweeper:   chat.NewRetentionSweeper(cfg, persister),
	}
}

func doRequest(t *testing.T, h *Handler, method, path string, userId string, body string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userId != "" {
		req.Header.Set("X-User-Id", userId)
		req.Header.Set("X-Username", "user-"+userId)
	}
	rec := httptest.NewRecorder()
	h.NewRouter().ServeHTTP(rec, req)
	resp := apiResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body %q: %s", rec.Body.String(), err)
	}
	return rec, resp
}

func TestSendAndHistory(t *testing.T) {
	h := newTestHandler(t)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/chat/send", "1", `{"room_id":"public","content":"hello"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	rec, resp = doRequest(t, h, http.MethodGet, "/api/chat/messages", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	messages := resp.Data.([]interface{})
	assert.Len(t, messages, 1)

	rec, resp = doRequest(t, h, http.MethodGet, "/api/chat/messages/count", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), resp.Data)
}

func TestIdentityRequired(t *testing.T) {
	h := newTestHandler(t)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/chat/send", "", `{"content":"x","recipient_id":2}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Message)
}

func TestErrorMapping(t *testing.T) {
	h := newTestHandler(t)

	rec, _ := doRequest(t, h, http.MethodPut, "/api/chat/messages/99999", "1", `{"content":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doRequest(t, h, http.MethodGet, "/api/rooms/nope", "1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doRequest(t, h, http.MethodPost, "/api/chat/send", "2", `{"room_id":"some-group","content":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "posting into a room without membership")
}

func TestMessagesSinceEndpoint(t *testing.T) {
	h := newTestHandler(t)

	rec, _ := doRequest(t, h, http.MethodPost, "/api/chat/send", "1", `{"room_id":"public","content":"fresh"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	cutoff := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)
	rec, resp := doRequest(t, h, http.MethodGet, "/api/chat/messages/room/public/since?since="+cutoff, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data.([]interface{}), 1)

	future := strconv.FormatInt(time.Now().Add(time.Minute).UnixMilli(), 10)
	rec, resp = doRequest(t, h, http.MethodGet, "/api/chat/messages/room/public/since?since="+future, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, resp.Data)

	rec, _ = doRequest(t, h, http.MethodGet, "/api/chat/messages/room/public/since?since=whenever", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPrivateHistoryEndpoint(t *testing.T) {
	h := newTestHandler(t)

	rec, _ := doRequest(t, h, http.MethodPost, "/api/chat/send", "1", `{"recipient_id":2,"content":"psst"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp := doRequest(t, h, http.MethodGet, "/api/chat/private/2", "1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data.([]interface{}), 1)

	rec, resp = doRequest(t, h, http.MethodGet, "/api/chat/private/1", "2", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data.([]interface{}), 1, "same history from the other side")
}

func TestRoomEndpoints(t *testing.T) {
	h := newTestHandler(t)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/rooms", "1", `{"name":"devs","type":"GROUP","member_ids":[2]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	roomId := resp.Data.(map[string]interface{})["room_id"].(string)

	rec, resp = doRequest(t, h, http.MethodGet, "/api/rooms/"+roomId, "1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), resp.Data.(map[string]interface{})["member_count"])

	rec, _ = doRequest(t, h, http.MethodPost, "/api/rooms/"+roomId+"/join", "3", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doRequest(t, h, http.MethodPost, "/api/rooms/"+roomId+"/join", "3", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "double join")

	rec, resp = doRequest(t, h, http.MethodGet, "/api/rooms/"+roomId+"/members", "1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data.([]interface{}), 3)

	rec, _ = doRequest(t, h, http.MethodPost, "/api/rooms/"+roomId+"/leave", "3", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = doRequest(t, h, http.MethodGet, "/api/rooms/mine", "2", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data.([]interface{}), 1)
}

func TestReactionEndpoints(t *testing.T) {
	h := newTestHandler(t)

	_, resp := doRequest(t, h, http.MethodPost, "/api/chat/send", "1", `{"room_id":"public","content":"hello"}`)
	msgId := int64(resp.Data.(map[string]interface{})["id"].(float64))
	path := "/api/chat/messages/" + strconv.FormatInt(msgId, 10)

	rec, _ := doRequest(t, h, http.MethodPost, path+"/reactions", "2", `{"emoji":"👍"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doRequest(t, h, http.MethodPost, path+"/reactions", "2", `{"emoji":"👍"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "duplicate reaction")

	rec, resp = doRequest(t, h, http.MethodGet, path+"/reactions", "2", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	reactions := resp.Data.([]interface{})
	assert.Len(t, reactions, 1)
	reaction := reactions[0].(map[string]interface{})
	assert.Equal(t, float64(2), reaction["user_id"])
	assert.Equal(t, "👍", reaction["emoji"])

	rec, resp = doRequest(t, h, http.MethodGet, path+"/reactions/summary", "2", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	summary := resp.Data.([]interface{})
	assert.Len(t, summary, 1)
	assert.Equal(t, float64(1), summary[0].(map[string]interface{})["count"])
	assert.Equal(t, true, summary[0].(map[string]interface{})["user_reacted"])

	rec, _ = doRequest(t, h, http.MethodDelete, path+"/reactions?emoji=👍", "2", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doRequest(t, h, http.MethodDelete, path+"/reactions?emoji=👍", "2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCleanupRequiresAdmin(t *testing.T) {
	h := newTestHandler(t)

	rec, _ := doRequest(t, h, http.MethodPost, "/api/admin/cleanup", "1", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/admin/cleanup", "99", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
}
