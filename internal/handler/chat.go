package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seat-reservation-broker/internal/notify"
)

// ChatHandler publishes chat and typing events on behalf of HTTP clients
// through the notification facade.
type ChatHandler struct {
	Notify *notify.Facade
}

func NewChatHandler(f *notify.Facade) *ChatHandler {
	if f == nil {
		panic("nil facade passed to NewChatHandler")
	}
	return &ChatHandler{Notify: f}
}

// SendMessage handles POST /v1/messages with {"receiver_id", "content"}.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		ReceiverID uint64 `json:"receiver_id"`
		Content    string `json:"content"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	msg, err := h.Notify.PublishChatMessage(c.Request().Context(), userID, body.ReceiverID, body.Content)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// MarkRead handles POST /v1/messages/read with {"sender_id"}.  The caller
// is the reader.
func (h *ChatHandler) MarkRead(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		SenderID uint64 `json:"sender_id"`
	}
	if err := c.Bind(&body); err != nil || body.SenderID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "sender_id is required"})
	}
	n, err := h.Notify.MarkMessagesRead(c.Request().Context(), userID, body.SenderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"marked": n})
}

// Typing handles POST /v1/typing with {"peer_id", "typing"}.
func (h *ChatHandler) Typing(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		PeerID uint64 `json:"peer_id"`
		Typing bool   `json:"typing"`
	}
	if err := c.Bind(&body); err != nil || body.PeerID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "peer_id is required"})
	}
	if body.Typing {
		h.Notify.PublishTypingStarted(userID, body.PeerID)
	} else {
		h.Notify.PublishTypingStopped(userID, body.PeerID)
	}
	return c.NoContent(http.StatusNoContent)
}
