package handler

import (
	"context"
	"encoding/json"
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"chatapp/internal/adapter/api/middleware"
	"chatapp/internal/domain/entity"
	"chatapp/internal/usecase"
	ws "chatapp/internal/infrastructure/websocket"
	"chatapp/pkg/errors"
	"chatapp/pkg/logger"
)

type WebSocketHandler struct {
	wsManager      *ws.Manager
	chatUseCase    *usecase.ChatUseCase
	authMiddleware *middleware.AuthMiddleware
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // You should restrict this in production
	},
}

func NewWebSocketHandler(wsManager *ws.Manager, chatUseCase *usecase.ChatUseCase, authMiddleware *middleware.AuthMiddleware) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:      wsManager,
		chatUseCase:    chatUseCase,
		authMiddleware: authMiddleware,
	}
}

type streamFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type receiptFrame struct {
	SelfLastRead    string `json:"self_last_read"`
	PartnerLastRead string `json:"partner_last_read"`
}

// authenticate resolves the caller from the Authorization header or, for
// browser clients that cannot set headers on upgrade requests, from the
// token query parameter.
func (h *WebSocketHandler) authenticate(c echo.Context) (string, error) {
	if uid, ok := c.Get("uid").(string); ok && uid != "" {
		return uid, nil
	}

	token := c.QueryParam("token")
	if token == "" {
		return "", errors.Unauthorized("Authentication required", nil)
	}

	uid, err := h.authMiddleware.GetUIDFromToken(c.Request().Context(), token)
	if err != nil {
		return "", errors.Unauthorized("Invalid or expired token", err)
	}

	return uid, nil
}

// HandleWebSocket is the notification stream: the connected user receives a
// frame for every message addressed to them, regardless of which
// conversation is open.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	uid, err := h.authenticate(c)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := &ws.Client{
		UserID: uid,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}

	h.wsManager.Register <- client

	go client.ReadPump(h.wsManager)
	go client.WritePump()

	return nil
}

// HandleConversationStream opens one conversation as a live session: the
// backlog arrives first, then every change, with inbound messages marked
// read automatically and the caller's receipt kept fresh. Closing the
// connection closes the session and its listeners.
func (h *WebSocketHandler) HandleConversationStream(c echo.Context) error {
	uid, err := h.authenticate(c)
	if err != nil {
		return err
	}

	partnerID := c.Param("partnerId")

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := &ws.Client{
		UserID: uid,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}

	session := usecase.NewConversationSession(h.chatUseCase, uid, partnerID, usecase.SessionEvents{
		OnMessages: func(messages []*entity.Message) {
			h.push(client, streamFrame{Type: "messages", Data: messages})
		},
		OnReceipt: func(selfLast, partnerLast string) {
			h.push(client, streamFrame{Type: "receipt", Data: receiptFrame{
				SelfLastRead:    selfLast,
				PartnerLastRead: partnerLast,
			}})
		},
	})
	client.OnClose = session.Close

	h.wsManager.Register <- client

	go client.ReadPump(h.wsManager)
	go client.WritePump()

	// The request context dies when this handler returns; the session lives
	// as long as the connection, so it gets its own context and is torn down
	// through OnClose.
	if err := session.Open(context.Background()); err != nil {
		logger.Warn("Conversation stream %s/%s failed to open: %v", uid, partnerID, err)
		h.push(client, streamFrame{Type: "error", Data: err.Error()})
		conn.Close()
		return nil
	}

	return nil
}

// push is best effort, matching the manager's send path: a slow consumer's
// frame is dropped rather than blocking a listener callback.
func (h *WebSocketHandler) push(client *ws.Client, frame streamFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		logger.Warn("Failed to encode %s frame for %s: %v", frame.Type, client.UserID, err)
		return
	}

	select {
	case client.Send <- payload:
	default:
		logger.Warn("Dropping %s frame for slow client %s", frame.Type, client.UserID)
	}
}
