package murmurrest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	murmurcli "github.com/murmurchat/murmur-backend/murmur-cli"
	murmuridentity "github.com/murmurchat/murmur-backend/murmur-identity"
	"github.com/murmurchat/murmur-backend/murmur-stream/chatdao"
	murmurtable "github.com/murmurchat/murmur-backend/murmur-table"
	"github.com/murmurchat/murmur-backend/murmur-ws/messagedao"
)

// ChatStore is the subset of the chats DAO the endpoints need.
type ChatStore interface {
	QueryByOwner(ctx context.Context, ownerSub string) ([]chatdao.Chat, error)
	MarkRead(ctx context.Context, ownerSub, peerSub string) error
}

// MessageStore is the subset of the messages DAO the endpoints need.
type MessageStore interface {
	QueryPage(ctx context.Context, pairPK string, limit int64, cursor string) ([]messagedao.Message, string, error)
}

// Handlers implements the chat REST endpoints.
type Handlers struct {
	Chats    ChatStore
	Messages MessageStore
	Resolver murmuridentity.Resolver
	Metrics  *murmurcli.Metrics
}

// Routes mounts the endpoints on a router.
func (h *Handlers) Routes(r chi.Router) {
	r.Get("/chats", h.ListChats)
	r.Post("/chats/mark-as-read", h.MarkAsRead)
	r.Get("/messages", h.ListMessages)
	r.Get("/user", h.GetUserInfo)
}

// ListChats returns the caller's chats, most recent activity first.
func (h *Handlers) ListChats(w http.ResponseWriter, req *http.Request) {
	defer h.Metrics.Timing(req.Context(), murmurcli.ResponseTimeMetric, time.Now())

	user, ok := h.authenticate(w, req)
	if !ok {
		return
	}

	chats, err := h.Chats.QueryByOwner(req.Context(), user.Sub)
	if err != nil {
		zerolog.Ctx(req.Context()).Error().Err(err).Str("sub", user.Sub).Msg("unable to query chats")
		respondError(w, http.StatusInternalServerError, "An error ocurred while fetching the chats")
		return
	}
	if chats == nil {
		chats = []chatdao.Chat{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"data": chats})
}

// ListMessages returns a page of the conversation named by chatSortKey,
// newest first. The optional cursor query param resumes a previous page
// and limit caps the page size.
func (h *Handlers) ListMessages(w http.ResponseWriter, req *http.Request) {
	defer h.Metrics.Timing(req.Context(), murmurcli.ResponseTimeMetric, time.Now())

	chatSortKey := req.URL.Query().Get("chatSortKey")
	if chatSortKey == "" {
		respondError(w, http.StatusBadRequest, "Missing sort key in query params")
		return
	}

	user, ok := h.authenticate(w, req)
	if !ok {
		return
	}

	peerSub, err := murmurtable.PeerFromChatSK(chatSortKey)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Missing sort key in query params")
		return
	}

	var limit int64
	if raw := req.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.ParseInt(raw, 10, 64)
	}

	messages, nextCursor, err := h.Messages.QueryPage(req.Context(), murmurtable.PairPK(user.Sub, peerSub), limit, req.URL.Query().Get("cursor"))
	if err != nil {
		zerolog.Ctx(req.Context()).Error().Err(err).Str("sub", user.Sub).Msg("unable to query messages")
		respondError(w, http.StatusInternalServerError, "An error happened while querying the resource")
		return
	}
	if messages == nil {
		messages = []messagedao.Message{}
	}

	body := map[string]interface{}{"data": messages}
	if nextCursor != "" {
		body["cursor"] = nextCursor
	}
	respondJSON(w, http.StatusOK, body)
}

type markAsReadPayload struct {
	ChatSortKey string `json:"chatSortKey"`
}

// MarkAsRead zeroes the unread counter on one of the caller's chats.
func (h *Handlers) MarkAsRead(w http.ResponseWriter, req *http.Request) {
	defer h.Metrics.Timing(req.Context(), murmurcli.ResponseTimeMetric, time.Now())

	user, ok := h.authenticate(w, req)
	if !ok {
		return
	}

	var payload markAsReadPayload
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Request body can't be empty")
		return
	}

	peerSub, err := murmurtable.PeerFromChatSK(payload.ChatSortKey)
	if err != nil {
		respondError(w, http.StatusNotFound, "Resource not found")
		return
	}

	if err := h.Chats.MarkRead(req.Context(), user.Sub, peerSub); err != nil {
		if errors.Is(err, chatdao.ErrChatNotFound) {
			respondError(w, http.StatusNotFound, "Resource not found")
			return
		}
		zerolog.Ctx(req.Context()).Error().Err(err).Str("sub", user.Sub).Msg("unable to mark chat as read")
		respondError(w, http.StatusInternalServerError, "An error happened while querying the resource")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Succesfully updated the requested resource"})
}

// GetUserInfo resolves a user's public profile by email or sub.
func (h *Handlers) GetUserInfo(w http.ResponseWriter, req *http.Request) {
	defer h.Metrics.Timing(req.Context(), murmurcli.ResponseTimeMetric, time.Now())

	var (
		email = req.URL.Query().Get("email")
		sub   = req.URL.Query().Get("sub")
	)

	var (
		user murmurtable.User
		err  error
	)
	switch {
	case email != "":
		user, err = h.Resolver.UserByEmail(req.Context(), email)
	case sub != "":
		user, err = h.Resolver.UserBySub(req.Context(), sub)
	default:
		respondError(w, http.StatusBadRequest, "You must specify either an email or sub value in the query parameters")
		return
	}
	if err != nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// authenticate decodes the caller from the authorization header. The
// gateway has already verified the token; a missing or undecodable one
// still gets the original error bodies.
func (h *Handlers) authenticate(w http.ResponseWriter, req *http.Request) (murmurtable.User, bool) {
	idToken := req.Header.Get("authorization")
	if idToken == "" {
		respondError(w, http.StatusBadRequest, "Missing authentication token")
		return murmurtable.User{}, false
	}

	user, err := murmuridentity.DecodePayload(idToken)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user token")
		return murmurtable.User{}, false
	}
	return user, true
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}
