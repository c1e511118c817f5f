package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"chatapp/internal/usecase"
	"chatapp/pkg/response"
	"chatapp/pkg/utils"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type sendMessageRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	Text        string `json:"text" validate:"required,max=4096"`
}

type updateReceiptRequest struct {
	LastMessageID string `json:"last_message_id" validate:"required"`
}

// SendMessage writes the message into both participants' views and updates
// both recent-conversation rows.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	uid := c.Get("uid").(string)

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), uid, usecase.SendMessageInput{
		RecipientID: req.RecipientID,
		Text:        req.Text,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// GetMessages returns the caller's copy of the conversation with a partner,
// oldest first.
func (h *ChatHandler) GetMessages(c echo.Context) error {
	uid := c.Get("uid").(string)
	partnerID := c.Param("partnerId")
	pagination := utils.GetPaginationParams(c)

	messages, total, err := h.chatUseCase.ListMessages(c.Request().Context(), uid, partnerID, pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, messages, total, pagination.Page, pagination.PageSize)
}

// GetRecentMessages returns the caller's conversation list, newest first.
func (h *ChatHandler) GetRecentMessages(c echo.Context) error {
	uid := c.Get("uid").(string)
	pagination := utils.GetPaginationParams(c)

	recent, total, err := h.chatUseCase.ListRecentMessages(c.Request().Context(), uid, pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, recent, total, pagination.Page, pagination.PageSize)
}

// MarkConversationRead clears the unread flag on the caller's recent row and
// on every unread message in the partition.
func (h *ChatHandler) MarkConversationRead(c echo.Context) error {
	uid := c.Get("uid").(string)
	partnerID := c.Param("partnerId")

	if err := h.chatUseCase.MarkConversationRead(c.Request().Context(), uid, partnerID); err != nil {
		return response.Error(c, err)
	}

	return c.NoContent(http.StatusOK)
}

// MarkMessageRead clears the unread flag on a single message in the caller's
// partition.
func (h *ChatHandler) MarkMessageRead(c echo.Context) error {
	uid := c.Get("uid").(string)
	partnerID := c.Param("partnerId")
	messageID := c.Param("messageId")

	if err := h.chatUseCase.MarkMessageRead(c.Request().Context(), uid, partnerID, messageID); err != nil {
		return response.Error(c, err)
	}

	return c.NoContent(http.StatusOK)
}

// UpdateReadReceipt advances the caller's last-read pointer in the shared
// receipt record. Writes are throttled server-side; a skipped write still
// returns success.
func (h *ChatHandler) UpdateReadReceipt(c echo.Context) error {
	var req updateReceiptRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	uid := c.Get("uid").(string)
	partnerID := c.Param("partnerId")

	if err := h.chatUseCase.UpdateReadReceipt(c.Request().Context(), uid, partnerID, req.LastMessageID); err != nil {
		return response.Error(c, err)
	}

	return c.NoContent(http.StatusOK)
}

// GetReadReceipt returns both sides' last-read message ids for the
// conversation.
func (h *ChatHandler) GetReadReceipt(c echo.Context) error {
	uid := c.Get("uid").(string)
	partnerID := c.Param("partnerId")

	receipt, err := h.chatUseCase.GetReadReceipt(c.Request().Context(), uid, partnerID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{
		"self_last_read":    receipt.LastReadBy(uid),
		"partner_last_read": receipt.LastReadBy(partnerID),
	})
}
