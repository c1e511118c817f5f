package repository

import (
	"context"

	"chatapp/internal/domain/entity"
	"chatapp/internal/reconcile"
)

type RecentMessageChangeHandler func(entry *entity.RecentMessage, kind reconcile.ChangeKind)

// RecentMessageRepository maintains each user's denormalized inbox at
// recentMessages/{ownerId}/messages/{partnerId}: at most one row per partner,
// fresh enough to drive a conversation list without scanning message history.
type RecentMessageRepository interface {
	// Upsert writes the owner's row for entry.PartnerID with replace
	// semantics; a second write for the same partner overwrites the first.
	Upsert(ctx context.Context, ownerID string, entry *entity.RecentMessage) error

	List(ctx context.Context, ownerID string, limit, offset int) ([]*entity.RecentMessage, int64, error)
	Subscribe(ctx context.Context, ownerID string, fn RecentMessageChangeHandler) (Subscription, error)
	MarkRead(ctx context.Context, ownerID, partnerID string) error
}
