package usecase

import (
	"context"
	"sync"

	"chatapp/internal/domain/entity"
	"chatapp/internal/domain/repository"
	"chatapp/internal/reconcile"
	"chatapp/pkg/errors"
	"chatapp/pkg/logger"
)

type SessionState int

const (
	SessionIdle SessionState = iota
	SessionLoading
	SessionActive
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionLoading:
		return "loading"
	case SessionActive:
		return "active"
	case SessionClosed:
		return "closed"
	}
	return "unknown"
}

// SessionEvents are the presentation-layer callbacks. OnMessages receives the
// full materialized view after every reconciled change; OnReceipt receives
// both sides' last-read message ids whenever the shared record changes.
type SessionEvents struct {
	OnMessages func(messages []*entity.Message)
	OnReceipt  func(selfLastRead, partnerLastRead string)
}

// ConversationSession orchestrates one open conversation: it subscribes to
// the owner's message partition and to the shared read receipt record, folds
// the change feeds through a reconciler, auto-marks inbound messages read,
// and keeps the partner's receipt fresh. All callback work is serialized by
// one mutex, so the reconciler behaves as if driven by a single thread.
//
// A session is one-shot: Closed has no outgoing transition, and reopening a
// conversation means constructing a new session.
type ConversationSession struct {
	chat      *ChatUseCase
	selfID    string
	partnerID string
	events    SessionEvents

	mu              sync.Mutex
	state           SessionState
	ctx             context.Context
	reconciler      *reconcile.Reconciler[*entity.Message]
	msgSub          repository.Subscription
	receiptSub      repository.Subscription
	self            *entity.User
	partner         *entity.User
	selfLastRead    string
	partnerLastRead string
}

func NewConversationSession(chat *ChatUseCase, selfID, partnerID string, events SessionEvents) *ConversationSession {
	return &ConversationSession{
		chat:       chat,
		selfID:     selfID,
		partnerID:  partnerID,
		events:     events,
		state:      SessionIdle,
		reconciler: reconcile.NewReconciler[*entity.Message](),
	}
}

// Open drives Idle -> Loading -> Active: resolve the current user, resolve
// the partner, register both listeners, then mark the conversation read once.
// Any failure closes the session; the caller surfaces it as an unloadable
// conversation and may construct a fresh session to retry.
func (s *ConversationSession) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != SessionIdle {
		state := s.state
		s.mu.Unlock()
		return errors.BadRequest("Conversation session already "+state.String(), nil)
	}
	s.state = SessionLoading
	s.ctx = ctx
	s.mu.Unlock()

	if _, err := entity.ConversationKey(s.selfID, s.partnerID); err != nil {
		return s.failOpen(errors.BadRequest("Both participant ids are required", err))
	}

	self, err := s.chat.userRepo.GetByID(ctx, s.selfID)
	if err != nil {
		return s.failOpen(errors.Unauthorized("Unable to resolve current user", err))
	}
	partner, err := s.chat.userRepo.GetByID(ctx, s.partnerID)
	if err != nil {
		return s.failOpen(errors.NotFound("Conversation partner", err))
	}

	msgSub, err := s.chat.messageRepo.Subscribe(ctx, s.selfID, s.partnerID, s.onMessageChange)
	if err != nil {
		return s.failOpen(errors.Internal("Unable to load conversation", err))
	}
	receiptSub, err := s.chat.receiptRepo.Subscribe(ctx, s.selfID, s.partnerID, s.onReceiptChange)
	if err != nil {
		msgSub.Cancel()
		return s.failOpen(errors.Internal("Unable to load conversation", err))
	}

	s.mu.Lock()
	s.self = self
	s.partner = partner
	s.msgSub = msgSub
	s.receiptSub = receiptSub
	s.state = SessionActive
	s.mu.Unlock()

	// Entering the conversation reads everything currently in it.
	if err := s.chat.MarkConversationRead(ctx, s.selfID, s.partnerID); err != nil {
		logger.Warn("Session %s/%s: mark-all-read on open failed: %v", s.selfID, s.partnerID, err)
	}

	return nil
}

func (s *ConversationSession) failOpen(err error) error {
	s.mu.Lock()
	s.state = SessionClosed
	s.mu.Unlock()
	return err
}

func (s *ConversationSession) onMessageChange(message *entity.Message, kind reconcile.ChangeKind) {
	s.mu.Lock()
	if s.state == SessionClosed {
		// Late callback from a cancelled listener.
		s.mu.Unlock()
		return
	}

	s.reconciler.Apply(kind, message.DocID(), message)

	markRead := kind != reconcile.ChangeRemoved && message.ToID == s.selfID && message.Unread
	latest, hasLatest := s.reconciler.Latest()
	view := s.reconciler.Materialize()
	ctx := s.ctx
	s.mu.Unlock()

	if s.events.OnMessages != nil {
		s.events.OnMessages(view)
	}

	// React after presenting: marking read produces a follow-up modified
	// event carrying the corrected view.
	if markRead {
		if err := s.chat.MarkMessageRead(ctx, s.selfID, s.partnerID, message.DocumentID); err != nil {
			logger.Warn("Session %s/%s: auto mark-read of %s failed: %v", s.selfID, s.partnerID, message.DocumentID, err)
		}
	}

	if hasLatest {
		if err := s.chat.UpdateReadReceipt(ctx, s.selfID, s.partnerID, latest.DocID()); err != nil {
			logger.Warn("Session %s/%s: read receipt update failed: %v", s.selfID, s.partnerID, err)
		}
	}
}

func (s *ConversationSession) onReceiptChange(receipt *entity.ReadReceipt) {
	s.mu.Lock()
	if s.state == SessionClosed {
		s.mu.Unlock()
		return
	}
	s.selfLastRead = receipt.LastReadBy(s.selfID)
	s.partnerLastRead = receipt.LastReadBy(s.partnerID)
	selfLast, partnerLast := s.selfLastRead, s.partnerLastRead
	s.mu.Unlock()

	if s.events.OnReceipt != nil {
		s.events.OnReceipt(selfLast, partnerLast)
	}
}

// Close cancels both listeners and moves the session to its terminal state.
// Safe to call more than once; events arriving after Close are discarded.
func (s *ConversationSession) Close() {
	s.mu.Lock()
	if s.state == SessionClosed {
		s.mu.Unlock()
		return
	}
	s.state = SessionClosed
	msgSub, receiptSub := s.msgSub, s.receiptSub
	s.mu.Unlock()

	if msgSub != nil {
		msgSub.Cancel()
	}
	if receiptSub != nil {
		receiptSub.Cancel()
	}
}

func (s *ConversationSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns the current materialized view of the conversation.
func (s *ConversationSession) Messages() []*entity.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconciler.Materialize()
}

// Partner returns the resolved partner profile, nil before Active.
func (s *ConversationSession) Partner() *entity.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partner
}

// LastRead returns both sides' last-read message ids as currently known.
func (s *ConversationSession) LastRead() (selfLast, partnerLast string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selfLastRead, s.partnerLastRead
}
