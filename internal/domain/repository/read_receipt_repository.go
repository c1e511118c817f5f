package repository

import (
	"context"

	"chatapp/internal/domain/entity"
)

type ReadReceiptChangeHandler func(receipt *entity.ReadReceipt)

// ReadReceiptRepository stores the last-read-message id per participant pair
// at lastRead/{conversationKey}, one field per user id. The record is shared
// by both participants, so Update must only ever merge the caller's own
// field; a full-document overwrite would silently erase the partner's entry.
type ReadReceiptRepository interface {
	Update(ctx context.Context, selfID, partnerID, lastMessageID string) error
	Get(ctx context.Context, selfID, partnerID string) (*entity.ReadReceipt, error)
	Subscribe(ctx context.Context, selfID, partnerID string, fn ReadReceiptChangeHandler) (Subscription, error)
}
