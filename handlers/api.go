// Package handlers is the HTTP surface: the REST API consumed by other
// services behind the gateway and the websocket endpoint for clients.
// REST callers are already authenticated upstream and carry their
// identity in the X-User-Id and X-Username headers.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wavechat/wavechat/chat"
	"github.com/wavechat/wavechat/config"
	"github.com/wavechat/wavechat/metrics"
	"github.com/wavechat/wavechat/presence"
	"github.com/wavechat/wavechat/types"
	"github.com/wavechat/wavechat/ws"
)

type Handler struct {
	Cfg       *config.Config
	Hub       *ws.Hub
	Messages  *chat.MessageStore
	Reactions *chat.ReactionLedger
	Rooms     *chat.RoomDirectory
	Presence  *presence.Tracker
	Sweeper   *chat.RetentionSweeper
}

// apiResponse is the response wrapper shared with the collaborating
// services.
type apiResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrUnauthorized):
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, apiResponse{Success: false, Message: err.Error()})
}

// identity reads the gateway-forwarded identity headers.
func identity(r *http.Request) (types.User, error) {
	idStr := r.Header.Get("X-User-Id")
	if idStr == "" {
		return types.User{}, types.Unauthorizedf("missing identity")
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id == 0 {
		return types.User{}, types.Unauthorizedf("bad identity")
	}
	return types.User{Id: id, Username: r.Header.Get("X-Username")}, nil
}

func intQuery(r *http.Request, name string, fallback int) int {
	if s := r.URL.Query().Get(name); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return fallback
}

// NewRouter builds the full route table.
func (h *Handler) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", h.websocketHandler).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/chat/messages", h.publicHistory).Methods(http.MethodGet)
	api.HandleFunc("/chat/messages/count", h.publicCount).Methods(http.MethodGet)
	api.HandleFunc("/chat/send", h.sendMessage).Methods(http.MethodPost)
	api.HandleFunc("/chat/messages/room/{id}/since", h.messagesSince).Methods(http.MethodGet)
	api.HandleFunc("/chat/private/{userId:-?[0-9]+}", h.privateHistory).Methods(http.MethodGet)
	api.HandleFunc("/chat/read-all", h.markAllRead).Methods(http.MethodPost)
	api.HandleFunc("/chat/messages/{id:[0-9]+}", h.editMessage).Methods(http.MethodPut)
	api.HandleFunc("/chat/messages/{id:[0-9]+}", h.deleteMessage).Methods(http.MethodDelete)
	api.HandleFunc("/chat/messages/{id:[0-9]+}/read", h.markRead).Methods(http.MethodPost)
	api.HandleFunc("/chat/messages/{id:[0-9]+}/reactions", h.listReactions).Methods(http.MethodGet)
	api.HandleFunc("/chat/messages/{id:[0-9]+}/reactions/summary", h.reactionSummary).Methods(http.MethodGet)
	api.HandleFunc("/chat/messages/{id:[0-9]+}/reactions", h.addReaction).Methods(http.MethodPost)
	api.HandleFunc("/chat/messages/{id:[0-9]+}/reactions", h.removeReaction).Methods(http.MethodDelete)

	api.HandleFunc("/rooms", h.createRoom).Methods(http.MethodPost)
	api.HandleFunc("/rooms/public", h.publicRooms).Methods(http.MethodGet)
	api.HandleFunc("/rooms/mine", h.myRooms).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}", h.getRoom).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}/join", h.joinRoom).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/leave", h.leaveRoom).Methods(http.MethodPost)
	api.HandleFunc("/rooms/{id}/members", h.roomMembers).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}/messages", h.roomHistory).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}/messages/count", h.roomCount).Methods(http.MethodGet)

	api.HandleFunc("/presence/active", h.activeUsers).Methods(http.MethodGet)
	api.HandleFunc("/admin/cleanup", h.cleanup).Methods(http.MethodPost)
	return r
}

func (h *Handler) publicHistory(w http.ResponseWriter, r *http.Request) {
	messages, err := h.Messages.RoomMessages(types.PublicRoomId, 0, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, messages)
}

func (h *Handler) publicCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.Messages.MessageCount(types.PublicRoomId)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, count)
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	user, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	req := types.SendMessageRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.BadRequestf("bad request body"))
		return
	}
	msg, err := h.Messages.Send(req, user)
	if err != nil {
		writeError(w, err)
		return
	}
	if msg.Private() {
		metrics.MessagesSent.WithLabelValues("private").Inc()
		if err := h.Messages.DeliverPrivate(msg, user.Username); err != nil {
			writeError(w, err)
			return
		}
	} else {
		metrics.MessagesSent.WithLabelValues("room").Inc()
	}
	writeData(w, msg)
}

// messagesSince serves incremental history fetches. The since query
// parameter is RFC 3339 or epoch milliseconds.
func (h *Handler) messagesSince(w http.ResponseWriter, r *http.Request) {
	sinceStr := r.URL.Query().Get("since")
	since, err := time.Parse(time.RFC3339, sinceStr)
	if err != nil {
		millis, numErr := strconv.ParseInt(sinceStr, 10, 64)
		if numErr != nil {
			writeError(w, types.BadRequestf("bad since timestamp %q", sinceStr))
			return
		}
		since = time.UnixMilli(millis)
	}
	messages, err := h.Messages.MessagesSince(mux.Vars(r)["id"], since)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, messages)
}

func (h *Handler) privateHistory(w http.ResponseWriter, r *http.Request) {
	user, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	peerId, err := strconv.ParseInt(mux.Vars(r)["userId"], 10, 64)
	if err != nil {
		writeError(w, types.BadRequestf("bad user id"))
		return
	}
	messages, err := h.Messages.PrivateMessages(user.Id, peerId)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, messages)
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	user, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	roomId := r.URL.Query().Get("room_id")
	if roomId == "" {
		roomId = types.PublicRoomId
	}
	count, err := h.Messages.MarkRoomRead(roomId, user.Id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, count)
}

func messageId(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, types.BadRequestf("bad message id")
	}
	return id, nil
}

func (h *Handler) editMessage(w http.ResponseWriter, r *http.Request) {
	user, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := messageId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	body := struct {
		Content string `json:"content"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, types.BadRequestf("bad request body"))
		return
	}
	msg, err := h.Messages.Edit(id, body.Content, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, msg)
}

func (h *Handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	user, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := messageId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Messages.Delete(id, user); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, nil)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	user, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := messageId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	msg, err := h.Messages.MarkRead(id, user.Id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, msg)
}

func (h *Handler) listReactions(w http.ResponseWriter, r *http.Request) {
	id, err := messageId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	reactions, err := h.Reactions.List(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, reactions)
}

func (h *Handler) reactionSummary(w http.ResponseWriter, r *http.Request) {
	user, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := messageId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	summary, err := h.Reactions.Summary(id, user.Id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, summary)
}

func (h *Handler) addReaction(w http.ResponseWriter, r *http.Request) {
	user, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := messageId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	body := struct {
		Emoji string `json:"emoji"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Emoji == "" {
		writeError(w, types.BadRequestf("no emoji given"))
		return
	}
	reaction, err := h.Reactions.Add(id, user.Id, body.Emoji)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, reaction)
}

func (h *Handler) removeReaction(w http.ResponseWriter, r *http.Request) {
	user, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := messageId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	emoji := r.URL.Query().Get("emoji")
	if emoji == "" {
		writeError(w, types.BadRequestf("no emoji given"))
		return
	}
	if err := h.Reactions.Remove(id, user.Id, emoji); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, nil)
}

func (h *Handler) createRoom(w http.ResponseWriter, r *http.Request) {
	user, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	body := struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Type        string  `json:"type"`
		MemberIds   []int64 `json:"member_ids"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeError(w, types.BadRequestf("no room name given"))
		return
	}
	roomType := types.RoomType(body.Type)
	if roomType == "" {
		roomType = types.RoomTypeGroup
	}
	room, err := h.Rooms.CreateRoom(body.Name, body.Description, roomType, user.Id, body.MemberIds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, room)
}

func (h *Handler) publicRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.Rooms.PublicRooms()
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, rooms)
}

func (h *Handler) myRooms(w http.ResponseWriter, r *http.Request) {
	user, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rooms, err := h.Rooms.UserRooms(user.Id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, rooms)
}

func (h *Handler) getRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.Rooms.GetRoom(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, room)
}

func (h *Handler) joinRoom(w http.ResponseWriter, r *http.Request) {
	user, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Rooms.JoinRoom(mux.Vars(r)["id"], user.Id); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, nil)
}

func (h *Handler) leaveRoom(w http.ResponseWriter, r *http.Request) {
	user, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Rooms.LeaveRoom(mux.Vars(r)["id"], user.Id); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, nil)
}

func (h *Handler) roomMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Rooms.RoomMembers(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, members)
}

func (h *Handler) roomHistory(w http.ResponseWriter, r *http.Request) {
	roomId := mux.Vars(r)["id"]
	page := intQuery(r, "page", 0)
	size := intQuery(r, "size", 0)
	messages, err := h.Messages.RoomMessages(roomId, page, size)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, messages)
}

func (h *Handler) roomCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.Messages.MessageCount(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, count)
}

func (h *Handler) activeUsers(w http.ResponseWriter, r *http.Request) {
	entries := h.Presence.Snapshot()
	users := make([]types.ActiveUser, len(entries))
	for i, entry := range entries {
		users[i] = types.ActiveUser{
			Id:           entry.User.Id,
			Username:     entry.User.Username,
			Status:       "ONLINE",
			SessionCount: entry.SessionCount,
			IsGuest:      entry.User.IsGuest,
		}
	}
	writeData(w, users)
}

// cleanup triggers a retention sweep outside the schedule. Restricted
// to the configured admin user.
func (h *Handler) cleanup(w http.ResponseWriter, r *http.Request) {
	user, err := identity(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Cfg.AdminUser == 0 || user.Id != h.Cfg.AdminUser {
		writeError(w, types.Unauthorizedf("not an admin"))
		return
	}
	deleted, err := h.Sweeper.SweepNow()
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, deleted)
}
