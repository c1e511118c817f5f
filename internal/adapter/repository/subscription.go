package repository

import (
	"context"
	"sync"

	"cloud.google.com/go/firestore"

	"chatapp/internal/reconcile"
)

// listenerSubscription cancels the context driving a snapshot listener
// goroutine. Cancel is idempotent; once cancelled the listener delivers no
// further events.
type listenerSubscription struct {
	once   sync.Once
	cancel context.CancelFunc
}

func (s *listenerSubscription) Cancel() {
	s.once.Do(s.cancel)
}

func changeKind(kind firestore.DocumentChangeKind) reconcile.ChangeKind {
	switch kind {
	case firestore.DocumentAdded:
		return reconcile.ChangeAdded
	case firestore.DocumentModified:
		return reconcile.ChangeModified
	default:
		return reconcile.ChangeRemoved
	}
}
