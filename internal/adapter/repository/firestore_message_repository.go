package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"chatapp/internal/domain/entity"
	"chatapp/internal/domain/repository"
	"chatapp/pkg/errors"
	"chatapp/pkg/logger"
)

type firestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

// partition returns the owner's message subcollection for one partner:
// messages/{ownerId}/{partnerId}.
func (r *firestoreMessageRepository) partition(ownerID, partnerID string) *firestore.CollectionRef {
	return r.client.Collection("messages").Doc(ownerID).Collection(partnerID)
}

func (r *firestoreMessageRepository) Store(ctx context.Context, ownerID, partnerID string, message *entity.Message) error {
	if ownerID == "" || partnerID == "" {
		return errors.BadRequest("Message owner and partner ids are required", entity.ErrMissingParticipant)
	}

	_, err := r.partition(ownerID, partnerID).Doc(message.DocumentID).Set(ctx, message)
	if err != nil {
		return errors.Internal("Failed to store message", err)
	}

	return nil
}

func (r *firestoreMessageRepository) List(ctx context.Context, ownerID, partnerID string, limit, offset int) ([]*entity.Message, int64, error) {
	query := r.partition(ownerID, partnerID).OrderBy("createdAt", firestore.Asc)

	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		logger.Error("Firestore error while fetching messages for %s/%s: %v", ownerID, partnerID, err)
		return nil, 0, errors.Internal("Failed to fetch messages", err)
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

	var messages []*entity.Message
	for _, doc := range allDocs[start:end] {
		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			logger.Warn("Skipping undecodable message %s in %s/%s: %v", doc.Ref.ID, ownerID, partnerID, err)
			continue
		}
		message.DocumentID = doc.Ref.ID
		messages = append(messages, &message)
	}

	return messages, total, nil
}

func (r *firestoreMessageRepository) Subscribe(ctx context.Context, ownerID, partnerID string, fn repository.MessageChangeHandler) (repository.Subscription, error) {
	if ownerID == "" || partnerID == "" {
		return nil, errors.BadRequest("Message owner and partner ids are required", entity.ErrMissingParticipant)
	}

	ctx, cancel := context.WithCancel(ctx)
	snapshots := r.partition(ownerID, partnerID).OrderBy("createdAt", firestore.Asc).Snapshots(ctx)

	go func() {
		defer snapshots.Stop()
		for {
			snap, err := snapshots.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					logger.Error("Message listener for %s/%s stopped: %v", ownerID, partnerID, err)
				}
				return
			}

			for _, change := range snap.Changes {
				var message entity.Message
				if err := change.Doc.DataTo(&message); err != nil {
					logger.Warn("Dropping undecodable message change %s in %s/%s: %v", change.Doc.Ref.ID, ownerID, partnerID, err)
					continue
				}
				message.DocumentID = change.Doc.Ref.ID
				fn(&message, changeKind(change.Kind))
			}
		}
	}()

	return &listenerSubscription{cancel: cancel}, nil
}

func (r *firestoreMessageRepository) MarkRead(ctx context.Context, ownerID, partnerID, messageID string) error {
	docRef := r.partition(ownerID, partnerID).Doc(messageID)

	// Update, not a merge Set: a merge write would create the document when
	// it is missing, minting a ghost message with nothing but the flag.
	_, err := docRef.Update(ctx, []firestore.Update{{Path: "unread", Value: false}})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			// The copy may never have landed (partial fan-out) or was removed.
			logger.Warn("MarkRead: message %s not found in %s/%s", messageID, ownerID, partnerID)
			return nil
		}
		return errors.Internal("Failed to mark message as read", err)
	}

	return nil
}

func (r *firestoreMessageRepository) MarkAllRead(ctx context.Context, ownerID, partnerID string) error {
	query := r.partition(ownerID, partnerID).Where("unread", "==", true)

	iter := query.Documents(ctx)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return errors.Internal("Failed to iterate unread messages", err)
		}

		if _, err := doc.Ref.Update(ctx, []firestore.Update{{Path: "unread", Value: false}}); err != nil {
			// Keep flipping the rest; a message arriving mid-operation is an
			// accepted race and will be caught by the next mark-all.
			logger.Warn("MarkAllRead: failed to flip message %s in %s/%s: %v", doc.Ref.ID, ownerID, partnerID, err)
		}
	}

	return nil
}
