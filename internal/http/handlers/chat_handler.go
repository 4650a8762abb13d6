// Chat HTTP handlers.
//
// This file exposes the chat surface:
//   - POST /chat                  (run one quota-gated chat turn)
//   - GET  /chats                 (sidebar: chat id -> title)
//   - GET  /chats/{id}/messages   (full transcript)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. A spent daily quota is rendered
// as a 403 with limitReached set, because the web client treats it as a
// renderable outcome rather than an error.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rigradar/go-radar-backend/internal/domain"
	"github.com/rigradar/go-radar-backend/internal/http/middleware"
	"github.com/rigradar/go-radar-backend/internal/services"
)

// ChatService defines the chat operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ChatService interface {
	// Answer runs one chat turn; an empty chatID starts a new chat.
	Answer(ctx context.Context, email, chatID, message, lang string) (*services.Reply, error)
	// Sidebar returns chat metadata for the identity; degrades to empty.
	Sidebar(ctx context.Context, email string) map[string]domain.ChatMeta
	// History returns one chat's transcript; degrades to empty.
	History(ctx context.Context, email, chatID string) []domain.Turn
}

// ChatHandlers groups the chat endpoints.
type ChatHandlers struct {
	svc ChatService
}

// NewChat constructs the chat handlers bound to the given service.
func NewChat(svc ChatService) *ChatHandlers {
	return &ChatHandlers{svc: svc}
}

//
// DTOs
//

// ChatRequest is the JSON payload for one chat turn.
type ChatRequest struct {
	// Message is the user's utterance (required).
	Message string `json:"message" binding:"required" example:"Is a used 3080 still worth 300?"`
	// ChatID continues an existing chat; empty starts a new one.
	ChatID string `json:"chatId" example:"chat_1710072000000"`
	// Lang pins the reply language (BCP 47); defaults to English.
	Lang string `json:"lang" example:"cs"`
}

// ChatResponse is the assistant's reply for one accepted turn.
type ChatResponse struct {
	Text   string `json:"text"`
	ChatID string `json:"chatId" example:"chat_1710072000000"`
}

// LimitResponse is returned when the daily allowance is spent.
type LimitResponse struct {
	Text         string `json:"text"`
	LimitReached bool   `json:"limitReached"`
}

// SidebarResponse wraps the chat id -> metadata map.
type SidebarResponse struct {
	Chats map[string]domain.ChatMeta `json:"chats"`
}

// HistoryResponse wraps one chat transcript.
type HistoryResponse struct {
	History []domain.Turn `json:"history"`
}

//
// Handlers
//

// Answer godoc
// @ID          chatAnswer
// @Summary     Run one chat turn
// @Description Sends a message to the assistant within a chat. Free-tier users
// @Description are limited per UTC day; a spent allowance returns 403 with
// @Description limitReached=true.
// @Tags        Chat
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.ChatRequest  true  "Chat turn payload"
// @Success     200  {object}  handlers.ChatResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     403  {object}  handlers.LimitResponse  "Daily limit reached"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chat [post]
func (h *ChatHandlers) Answer(c *gin.Context) {
	email, okID := middleware.Identity(c)
	if !okID {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message required")
		return
	}

	reply, err := h.svc.Answer(c.Request.Context(), email, req.ChatID, req.Message, req.Lang)
	if err != nil {
		var qe *services.QuotaError
		switch {
		case errors.As(err, &qe):
			// Renderable outcome for the client, not an error envelope.
			c.AbortWithStatusJSON(http.StatusForbidden, LimitResponse{
				Text:         qe.Error(),
				LimitReached: true,
			})
		case errors.Is(err, services.ErrEmptyMessage):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeAnswerFailed, "assistant is unavailable")
		}
		return
	}
	ok(c, http.StatusOK, ChatResponse{Text: reply.Text, ChatID: reply.ChatID})
}

// Sidebar godoc
// @ID          listChats
// @Summary     List chats
// @Description Returns the chat id -> metadata map for the sidebar.
// @Tags        Chat
// @Produce     json
// @Success     200  {object}  handlers.SidebarResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Router      /chats [get]
func (h *ChatHandlers) Sidebar(c *gin.Context) {
	email, okID := middleware.Identity(c)
	if !okID {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	ok(c, http.StatusOK, SidebarResponse{Chats: h.svc.Sidebar(c.Request.Context(), email)})
}

// History godoc
// @ID          chatHistory
// @Summary     Get a chat transcript
// @Description Returns the ordered turns of one chat. Unknown chats return an
// @Description empty transcript.
// @Tags        Chat
// @Produce     json
// @Param       id  path  string  true  "Chat ID"  example(chat_1710072000000)
// @Success     200  {object}  handlers.HistoryResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Router      /chats/{id}/messages [get]
func (h *ChatHandlers) History(c *gin.Context) {
	email, okID := middleware.Identity(c)
	if !okID {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	ok(c, http.StatusOK, HistoryResponse{History: h.svc.History(c.Request.Context(), email, c.Param("id"))})
}
