// Package reconcile converts an unordered stream of point-wise document
// change events, as delivered by a Firestore snapshot listener, into a
// deduplicated, time-ordered view. The backing feed reports per-document
// mutations in per-document order, but gives no ordering across documents;
// keeping latest-state-per-id in a map and sorting on materialization makes
// the result independent of arrival order and of replays.
package reconcile

import (
	"sort"
	"time"
)

type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeModified
	ChangeRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeModified:
		return "modified"
	case ChangeRemoved:
		return "removed"
	}
	return "unknown"
}

// Document is the contract an entity must satisfy to be reconciled: a stable
// document id and a creation timestamp to order by.
type Document interface {
	DocID() string
	SortTime() time.Time
}

// Reconciler holds the latest known value per document id. It is not safe for
// concurrent use; callers serialize access per session.
type Reconciler[T Document] struct {
	state map[string]T
}

func NewReconciler[T Document]() *Reconciler[T] {
	return &Reconciler[T]{
		state: make(map[string]T),
	}
}

// Apply folds one change event into the view. Added and modified both
// overwrite unconditionally: the feed delivers per-document changes in server
// order, so the latest delivered value for an id is the latest server value.
// Re-applying an identical event is a no-op in the materialized result.
func (r *Reconciler[T]) Apply(kind ChangeKind, docID string, doc T) {
	if docID == "" {
		return
	}

	switch kind {
	case ChangeAdded, ChangeModified:
		r.state[docID] = doc
	case ChangeRemoved:
		delete(r.state, docID)
	}
}

// Materialize returns the current view sorted ascending by creation time.
// Ties break on document id so the output is deterministic.
func (r *Reconciler[T]) Materialize() []T {
	docs := make([]T, 0, len(r.state))
	for _, doc := range r.state {
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool {
		ti, tj := docs[i].SortTime(), docs[j].SortTime()
		if ti.Equal(tj) {
			return docs[i].DocID() < docs[j].DocID()
		}
		return ti.Before(tj)
	})

	return docs
}

// Latest returns the most recent document in the view, or the zero value and
// false when the view is empty.
func (r *Reconciler[T]) Latest() (T, bool) {
	var latest T
	if len(r.state) == 0 {
		return latest, false
	}

	docs := r.Materialize()
	return docs[len(docs)-1], true
}

func (r *Reconciler[T]) Len() int {
	return len(r.state)
}
