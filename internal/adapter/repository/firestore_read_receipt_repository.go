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

type firestoreReadReceiptRepository struct {
	client *firestore.Client
}

func NewFirestoreReadReceiptRepository(client *firestore.Client) repository.ReadReceiptRepository {
	return &firestoreReadReceiptRepository{
		client: client,
	}
}

// record returns the shared per-pair document lastRead/{conversationKey},
// whose fields are named by user id.
func (r *firestoreReadReceiptRepository) record(selfID, partnerID string) (*firestore.DocumentRef, string, error) {
	key, err := entity.ConversationKey(selfID, partnerID)
	if err != nil {
		return nil, "", errors.BadRequest("Both participant ids are required", err)
	}
	return r.client.Collection("lastRead").Doc(key), key, nil
}

func (r *firestoreReadReceiptRepository) Update(ctx context.Context, selfID, partnerID, lastMessageID string) error {
	doc, _, err := r.record(selfID, partnerID)
	if err != nil {
		return err
	}

	// Merge only the caller's field. Both participants write this document
	// concurrently; a full overwrite would erase the partner's entry.
	_, err = doc.Set(ctx, map[string]interface{}{selfID: lastMessageID}, firestore.MergeAll)
	if err != nil {
		return errors.Internal("Failed to update read receipt", err)
	}

	return nil
}

func (r *firestoreReadReceiptRepository) Get(ctx context.Context, selfID, partnerID string) (*entity.ReadReceipt, error) {
	doc, key, err := r.record(selfID, partnerID)
	if err != nil {
		return nil, err
	}

	snap, err := doc.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			// No read-mark yet for either side.
			return &entity.ReadReceipt{ConversationKey: key, LastRead: map[string]string{}}, nil
		}
		return nil, errors.Internal("Failed to get read receipt", err)
	}

	return decodeReceipt(key, snap.Data()), nil
}

func (r *firestoreReadReceiptRepository) Subscribe(ctx context.Context, selfID, partnerID string, fn repository.ReadReceiptChangeHandler) (repository.Subscription, error) {
	doc, key, err := r.record(selfID, partnerID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	snapshots := doc.Snapshots(ctx)

	go func() {
		defer snapshots.Stop()
		for {
			snap, err := snapshots.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					logger.Error("Read receipt listener for %s stopped: %v", key, err)
				}
				return
			}
			if !snap.Exists() {
				continue
			}

			fn(decodeReceipt(key, snap.Data()))
		}
	}()

	return &listenerSubscription{cancel: cancel}, nil
}

func decodeReceipt(key string, data map[string]interface{}) *entity.ReadReceipt {
	receipt := &entity.ReadReceipt{
		ConversationKey: key,
		LastRead:        make(map[string]string, len(data)),
	}
	for userID, value := range data {
		messageID, ok := value.(string)
		if !ok {
			logger.Warn("Read receipt %s has non-string field %s, dropping it", key, userID)
			continue
		}
		receipt.LastRead[userID] = messageID
	}
	return receipt
}
