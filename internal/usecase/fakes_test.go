package usecase

import (
	"context"
	"sort"
	"sync"

	"chatapp/internal/domain/entity"
	"chatapp/internal/domain/repository"
	"chatapp/internal/reconcile"
	"chatapp/pkg/errors"
)

// In-memory stand-ins for the Firestore repositories. Writes synchronously
// re-deliver change events to registered subscribers, which mimics the
// snapshot-listener contract closely enough for usecase tests: per-document
// order is preserved, cross-document order is whatever the test does.

type fakeSubscription struct {
	once   sync.Once
	cancel func()
}

func (s *fakeSubscription) Cancel() {
	s.once.Do(s.cancel)
}

type messageSubscriber struct {
	id     int
	active bool
	fn     repository.MessageChangeHandler
}

type fakeMessageRepo struct {
	mu         sync.Mutex
	partitions map[string]map[string]*entity.Message
	subs       map[string][]*messageSubscriber
	nextSubID  int
	failStores map[string]bool
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		partitions: make(map[string]map[string]*entity.Message),
		subs:       make(map[string][]*messageSubscriber),
		failStores: make(map[string]bool),
	}
}

func partitionKey(ownerID, partnerID string) string {
	return ownerID + "/" + partnerID
}

func (r *fakeMessageRepo) failStoresFor(ownerID, partnerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failStores[partitionKey(ownerID, partnerID)] = true
}

func (r *fakeMessageRepo) get(ownerID, partnerID, messageID string) *entity.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.partitions[partitionKey(ownerID, partnerID)][messageID]
	if !ok {
		return nil
	}
	copied := *msg
	return &copied
}

func (r *fakeMessageRepo) emit(key string, message *entity.Message, kind reconcile.ChangeKind) {
	r.mu.Lock()
	var targets []repository.MessageChangeHandler
	for _, sub := range r.subs[key] {
		if sub.active {
			targets = append(targets, sub.fn)
		}
	}
	r.mu.Unlock()

	for _, fn := range targets {
		copied := *message
		fn(&copied, kind)
	}
}

func (r *fakeMessageRepo) Store(ctx context.Context, ownerID, partnerID string, message *entity.Message) error {
	key := partitionKey(ownerID, partnerID)

	r.mu.Lock()
	if r.failStores[key] {
		r.mu.Unlock()
		return errors.Internal("Failed to store message", nil)
	}
	if r.partitions[key] == nil {
		r.partitions[key] = make(map[string]*entity.Message)
	}
	copied := *message
	r.partitions[key][message.DocumentID] = &copied
	r.mu.Unlock()

	r.emit(key, message, reconcile.ChangeAdded)
	return nil
}

func (r *fakeMessageRepo) List(ctx context.Context, ownerID, partnerID string, limit, offset int) ([]*entity.Message, int64, error) {
	r.mu.Lock()
	var messages []*entity.Message
	for _, msg := range r.partitions[partitionKey(ownerID, partnerID)] {
		copied := *msg
		messages = append(messages, &copied)
	}
	r.mu.Unlock()

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, int64(len(messages)), nil
}

func (r *fakeMessageRepo) Subscribe(ctx context.Context, ownerID, partnerID string, fn repository.MessageChangeHandler) (repository.Subscription, error) {
	key := partitionKey(ownerID, partnerID)

	r.mu.Lock()
	sub := &messageSubscriber{id: r.nextSubID, active: true, fn: fn}
	r.nextSubID++
	r.subs[key] = append(r.subs[key], sub)

	var backlog []*entity.Message
	for _, msg := range r.partitions[key] {
		copied := *msg
		backlog = append(backlog, &copied)
	}
	r.mu.Unlock()

	sort.Slice(backlog, func(i, j int) bool {
		return backlog[i].CreatedAt.Before(backlog[j].CreatedAt)
	})
	for _, msg := range backlog {
		fn(msg, reconcile.ChangeAdded)
	}

	return &fakeSubscription{cancel: func() {
		r.mu.Lock()
		sub.active = false
		r.mu.Unlock()
	}}, nil
}

func (r *fakeMessageRepo) MarkRead(ctx context.Context, ownerID, partnerID, messageID string) error {
	key := partitionKey(ownerID, partnerID)

	r.mu.Lock()
	msg, ok := r.partitions[key][messageID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	msg.Unread = false
	copied := *msg
	r.mu.Unlock()

	r.emit(key, &copied, reconcile.ChangeModified)
	return nil
}

func (r *fakeMessageRepo) MarkAllRead(ctx context.Context, ownerID, partnerID string) error {
	key := partitionKey(ownerID, partnerID)

	r.mu.Lock()
	var flipped []*entity.Message
	for _, msg := range r.partitions[key] {
		if msg.Unread {
			msg.Unread = false
			copied := *msg
			flipped = append(flipped, &copied)
		}
	}
	r.mu.Unlock()

	for _, msg := range flipped {
		r.emit(key, msg, reconcile.ChangeModified)
	}
	return nil
}

type fakeRecentRepo struct {
	mu          sync.Mutex
	inboxes     map[string]map[string]*entity.RecentMessage
	failUpserts map[string]bool
}

func newFakeRecentRepo() *fakeRecentRepo {
	return &fakeRecentRepo{
		inboxes:     make(map[string]map[string]*entity.RecentMessage),
		failUpserts: make(map[string]bool),
	}
}

func (r *fakeRecentRepo) failUpsertsFor(ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failUpserts[ownerID] = true
}

func (r *fakeRecentRepo) get(ownerID, partnerID string) *entity.RecentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.inboxes[ownerID][partnerID]
	if !ok {
		return nil
	}
	copied := *entry
	return &copied
}

func (r *fakeRecentRepo) Upsert(ctx context.Context, ownerID string, entry *entity.RecentMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpserts[ownerID] {
		return errors.Internal("Failed to upsert recent message", nil)
	}
	if r.inboxes[ownerID] == nil {
		r.inboxes[ownerID] = make(map[string]*entity.RecentMessage)
	}
	copied := *entry
	copied.DocumentID = entry.PartnerID
	r.inboxes[ownerID][entry.PartnerID] = &copied
	return nil
}

func (r *fakeRecentRepo) List(ctx context.Context, ownerID string, limit, offset int) ([]*entity.RecentMessage, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var entries []*entity.RecentMessage
	for _, entry := range r.inboxes[ownerID] {
		copied := *entry
		entries = append(entries, &copied)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, int64(len(entries)), nil
}

func (r *fakeRecentRepo) Subscribe(ctx context.Context, ownerID string, fn repository.RecentMessageChangeHandler) (repository.Subscription, error) {
	return &fakeSubscription{cancel: func() {}}, nil
}

func (r *fakeRecentRepo) MarkRead(ctx context.Context, ownerID, partnerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.inboxes[ownerID][partnerID]; ok {
		entry.Unread = false
	}
	return nil
}

type receiptSubscriber struct {
	active bool
	fn     repository.ReadReceiptChangeHandler
}

type fakeReceiptRepo struct {
	mu       sync.Mutex
	records  map[string]map[string]string
	subs     map[string][]*receiptSubscriber
	failNext bool
}

func newFakeReceiptRepo() *fakeReceiptRepo {
	return &fakeReceiptRepo{
		records: make(map[string]map[string]string),
		subs:    make(map[string][]*receiptSubscriber),
	}
}

func (r *fakeReceiptRepo) failNextUpdate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = true
}

func (r *fakeReceiptRepo) Update(ctx context.Context, selfID, partnerID, lastMessageID string) error {
	key, err := entity.ConversationKey(selfID, partnerID)
	if err != nil {
		return errors.BadRequest("Both participant ids are required", err)
	}

	r.mu.Lock()
	if r.failNext {
		r.failNext = false
		r.mu.Unlock()
		return errors.Internal("Failed to update read receipt", nil)
	}
	if r.records[key] == nil {
		r.records[key] = make(map[string]string)
	}
	// Field-level merge: only the caller's entry changes.
	r.records[key][selfID] = lastMessageID

	receipt := &entity.ReadReceipt{ConversationKey: key, LastRead: make(map[string]string)}
	for user, msg := range r.records[key] {
		receipt.LastRead[user] = msg
	}
	var targets []repository.ReadReceiptChangeHandler
	for _, sub := range r.subs[key] {
		if sub.active {
			targets = append(targets, sub.fn)
		}
	}
	r.mu.Unlock()

	for _, fn := range targets {
		fn(receipt)
	}
	return nil
}

func (r *fakeReceiptRepo) Get(ctx context.Context, selfID, partnerID string) (*entity.ReadReceipt, error) {
	key, err := entity.ConversationKey(selfID, partnerID)
	if err != nil {
		return nil, errors.BadRequest("Both participant ids are required", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	receipt := &entity.ReadReceipt{ConversationKey: key, LastRead: make(map[string]string)}
	for user, msg := range r.records[key] {
		receipt.LastRead[user] = msg
	}
	return receipt, nil
}

func (r *fakeReceiptRepo) Subscribe(ctx context.Context, selfID, partnerID string, fn repository.ReadReceiptChangeHandler) (repository.Subscription, error) {
	key, err := entity.ConversationKey(selfID, partnerID)
	if err != nil {
		return nil, errors.BadRequest("Both participant ids are required", err)
	}

	r.mu.Lock()
	sub := &receiptSubscriber{active: true, fn: fn}
	r.subs[key] = append(r.subs[key], sub)
	r.mu.Unlock()

	return &fakeSubscription{cancel: func() {
		r.mu.Lock()
		sub.active = false
		r.mu.Unlock()
	}}, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*entity.User
}

func newFakeUserRepo(users ...*entity.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*entity.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *fakeUserRepo) Create(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, errors.NotFound("User", nil)
}

func (r *fakeUserRepo) List(ctx context.Context, limit, offset int) ([]*entity.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []*entity.User
	for _, user := range r.users {
		copied := *user
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, int64(len(users)), nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.users[user.ID] = &copied
	return nil
}
