package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"chatapp/internal/domain/entity"
	"chatapp/internal/domain/repository"
	"chatapp/internal/infrastructure/ratelimit"
	"chatapp/pkg/errors"
	"chatapp/pkg/logger"
)

// Notifier pushes real-time frames to a connected user. Implemented by the
// websocket manager; delivery is best effort.
type Notifier interface {
	SendToUser(userID string, message []byte)
}

// ChatUseCase owns the message write path: one logical send fans out into
// four independent point writes (a message copy per participant plus a
// recent-conversation row per participant). There is no cross-document
// transaction, so sibling writes are never rolled back; a failed copy leaves
// a logged inconsistency window instead of a failed send.
type ChatUseCase struct {
	messageRepo repository.MessageRepository
	recentRepo  repository.RecentMessageRepository
	receiptRepo repository.ReadReceiptRepository
	userRepo    repository.UserRepository
	notifier    Notifier
	rateLimiter *ratelimit.RateLimiter
}

func NewChatUseCase(
	messageRepo repository.MessageRepository,
	recentRepo repository.RecentMessageRepository,
	receiptRepo repository.ReadReceiptRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
	rateLimiter *ratelimit.RateLimiter,
) *ChatUseCase {
	return &ChatUseCase{
		messageRepo: messageRepo,
		recentRepo:  recentRepo,
		receiptRepo: receiptRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		rateLimiter: rateLimiter,
	}
}

type SendMessageInput struct {
	RecipientID string
	Text        string
}

type MessageResponse struct {
	*entity.Message
	ConversationKey string `json:"conversation_key"`
}

type wsEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func (uc *ChatUseCase) SendMessage(ctx context.Context, userID string, input SendMessageInput) (*MessageResponse, error) {
	if allowed, _ := uc.rateLimiter.Allow(userID, "send_message"); !allowed {
		return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message")
	}

	// Identity errors abort before any write.
	key, err := entity.ConversationKey(userID, input.RecipientID)
	if err != nil {
		return nil, errors.BadRequest("Sender and recipient ids are required", err)
	}
	if userID == input.RecipientID {
		return nil, errors.BadRequest("You cannot send a message to yourself", nil)
	}

	sender, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.NotFound("Sender", err)
	}
	recipient, err := uc.userRepo.GetByID(ctx, input.RecipientID)
	if err != nil {
		return nil, errors.NotFound("Recipient", err)
	}

	id := uuid.New().String()
	message := &entity.Message{
		ID:                 id,
		DocumentID:         id,
		FromID:             userID,
		ToID:               input.RecipientID,
		Text:               input.Text,
		SenderName:         sender.Name,
		SenderEmail:        sender.Email,
		SenderAvatarURL:    sender.AvatarURL,
		RecipientName:      recipient.Name,
		RecipientEmail:     recipient.Email,
		RecipientAvatarURL: recipient.AvatarURL,
		Unread:             false,
		CreatedAt:          time.Now(),
	}

	// The sender's own copy is the one write whose failure surfaces: if it
	// did not land, the message was not sent.
	if err := uc.messageRepo.Store(ctx, userID, input.RecipientID, message); err != nil {
		logger.Error("SendMessage: failed to store sender copy %s: %v", id, err)
		return nil, err
	}

	// Remaining fan-out writes are independent; failures are logged and the
	// send still counts from the sender's perspective.
	if err := uc.messageRepo.Store(ctx, input.RecipientID, userID, message.Mirror()); err != nil {
		logger.Error("SendMessage: failed to store recipient copy %s: %v", id, err)
	}

	senderEntry := &entity.RecentMessage{
		PartnerID:        recipient.ID,
		PartnerName:      recipient.Name,
		PartnerEmail:     recipient.Email,
		PartnerAvatarURL: recipient.AvatarURL,
		LastMessageID:    id,
		LastText:         input.Text,
		Unread:           false,
		CreatedAt:        message.CreatedAt,
	}
	if err := uc.recentRepo.Upsert(ctx, userID, senderEntry); err != nil {
		logger.Error("SendMessage: failed to upsert sender inbox row for %s: %v", userID, err)
	}

	recipientEntry := &entity.RecentMessage{
		PartnerID:        sender.ID,
		PartnerName:      sender.Name,
		PartnerEmail:     sender.Email,
		PartnerAvatarURL: sender.AvatarURL,
		LastMessageID:    id,
		LastText:         input.Text,
		Unread:           true,
		CreatedAt:        message.CreatedAt,
	}
	if err := uc.recentRepo.Upsert(ctx, input.RecipientID, recipientEntry); err != nil {
		logger.Error("SendMessage: failed to upsert recipient inbox row for %s: %v", input.RecipientID, err)
	}

	uc.notifyNewMessage(input.RecipientID, message)

	return &MessageResponse{Message: message, ConversationKey: key}, nil
}

func (uc *ChatUseCase) notifyNewMessage(recipientID string, message *entity.Message) {
	if uc.notifier == nil {
		return
	}

	payload, err := json.Marshal(wsEvent{Type: "message", Data: message})
	if err != nil {
		logger.Warn("SendMessage: failed to encode push frame for %s: %v", message.DocumentID, err)
		return
	}
	uc.notifier.SendToUser(recipientID, payload)
}

func (uc *ChatUseCase) ListMessages(ctx context.Context, userID, partnerID string, limit, offset int) ([]*entity.Message, int64, error) {
	if _, err := entity.ConversationKey(userID, partnerID); err != nil {
		return nil, 0, errors.BadRequest("Both participant ids are required", err)
	}
	return uc.messageRepo.List(ctx, userID, partnerID, limit, offset)
}

func (uc *ChatUseCase) ListRecentMessages(ctx context.Context, userID string, limit, offset int) ([]*entity.RecentMessage, int64, error) {
	return uc.recentRepo.List(ctx, userID, limit, offset)
}

// MarkMessageRead flips the unread flag on exactly one stored message in the
// owner's partition.
func (uc *ChatUseCase) MarkMessageRead(ctx context.Context, userID, partnerID, messageID string) error {
	return uc.messageRepo.MarkRead(ctx, userID, partnerID, messageID)
}

// MarkConversationRead flips the owner's inbox row for the partner, then
// every currently-unread message in that partition. A message arriving while
// this runs may or may not be included; the next mark picks it up.
func (uc *ChatUseCase) MarkConversationRead(ctx context.Context, userID, partnerID string) error {
	if _, err := entity.ConversationKey(userID, partnerID); err != nil {
		return errors.BadRequest("Both participant ids are required", err)
	}

	if err := uc.recentRepo.MarkRead(ctx, userID, partnerID); err != nil {
		logger.Error("MarkConversationRead: failed to flip inbox row %s/%s: %v", userID, partnerID, err)
	}

	return uc.messageRepo.MarkAllRead(ctx, userID, partnerID)
}

// UpdateReadReceipt merge-writes the caller's last-read field in the shared
// per-pair record. Updates are throttled to about one per second of activity;
// a skipped write is not an error, the next allowed one carries a newer id.
func (uc *ChatUseCase) UpdateReadReceipt(ctx context.Context, userID, partnerID, lastMessageID string) error {
	if lastMessageID == "" {
		return nil
	}
	if allowed, _ := uc.rateLimiter.Allow(userID, "read_receipt"); !allowed {
		return nil
	}
	return uc.receiptRepo.Update(ctx, userID, partnerID, lastMessageID)
}

func (uc *ChatUseCase) GetReadReceipt(ctx context.Context, userID, partnerID string) (*entity.ReadReceipt, error) {
	return uc.receiptRepo.Get(ctx, userID, partnerID)
}
