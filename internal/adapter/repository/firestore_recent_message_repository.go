package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"chatapp/internal/domain/entity"
	"chatapp/internal/domain/repository"
	"chatapp/pkg/errors"
	"chatapp/pkg/logger"
)

type firestoreRecentMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreRecentMessageRepository(client *firestore.Client) repository.RecentMessageRepository {
	return &firestoreRecentMessageRepository{
		client: client,
	}
}

// inbox returns the owner's recent-conversation rows:
// recentMessages/{ownerId}/messages/{partnerId}.
func (r *firestoreRecentMessageRepository) inbox(ownerID string) *firestore.CollectionRef {
	return r.client.Collection("recentMessages").Doc(ownerID).Collection("messages")
}

func (r *firestoreRecentMessageRepository) Upsert(ctx context.Context, ownerID string, entry *entity.RecentMessage) error {
	if ownerID == "" || entry.PartnerID == "" {
		return errors.BadRequest("Inbox owner and partner ids are required", entity.ErrMissingParticipant)
	}

	// Keyed by partner id: writing twice for the same partner replaces the
	// row instead of appending a duplicate.
	entry.DocumentID = entry.PartnerID
	_, err := r.inbox(ownerID).Doc(entry.PartnerID).Set(ctx, entry)
	if err != nil {
		return errors.Internal("Failed to upsert recent message", err)
	}

	return nil
}

func (r *firestoreRecentMessageRepository) List(ctx context.Context, ownerID string, limit, offset int) ([]*entity.RecentMessage, int64, error) {
	query := r.inbox(ownerID).OrderBy("createdAt", firestore.Desc)

	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while fetching recent messages for %s: %v", ownerID, err)
		return nil, 0, errors.Internal("Failed to fetch recent messages", err)
	}

	total := int64(len(allDocs))

	start := offset
	if start > len(allDocs) {
		start = len(allDocs)
	}
	end := len(allDocs)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	var entries []*entity.RecentMessage
	for _, doc := range allDocs[start:end] {
		var entry entity.RecentMessage
		if err := doc.DataTo(&entry); err != nil {
			logger.Warn("Skipping undecodable recent message %s for %s: %v", doc.Ref.ID, ownerID, err)
			continue
		}
		entry.DocumentID = doc.Ref.ID
		entries = append(entries, &entry)
	}

	return entries, total, nil
}

func (r *firestoreRecentMessageRepository) Subscribe(ctx context.Context, ownerID string, fn repository.RecentMessageChangeHandler) (repository.Subscription, error) {
	if ownerID == "" {
		return nil, errors.BadRequest("Inbox owner id is required", entity.ErrMissingParticipant)
	}

	ctx, cancel := context.WithCancel(ctx)
	snapshots := r.inbox(ownerID).OrderBy("createdAt", firestore.Desc).Snapshots(ctx)

	go func() {
		defer snapshots.Stop()
		for {
			snap, err := snapshots.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					logger.Error("Recent message listener for %s stopped: %v", ownerID, err)
				}
				return
			}

			for _, change := range snap.Changes {
				var entry entity.RecentMessage
				if err := change.Doc.DataTo(&entry); err != nil {
					logger.Warn("Dropping undecodable recent message change %s for %s: %v", change.Doc.Ref.ID, ownerID, err)
					continue
				}
				entry.DocumentID = change.Doc.Ref.ID
				fn(&entry, changeKind(change.Kind))
			}
		}
	}()

	return &listenerSubscription{cancel: cancel}, nil
}

func (r *firestoreRecentMessageRepository) MarkRead(ctx context.Context, ownerID, partnerID string) error {
	// Update, not a merge Set: opening a conversation with no history must
	// not mint an empty inbox row.
	_, err := r.inbox(ownerID).Doc(partnerID).Update(ctx, []firestore.Update{{Path: "unread", Value: false}})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return errors.Internal("Failed to mark recent message as read", err)
	}

	return nil
}
