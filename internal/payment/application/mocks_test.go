package application

import (
	"context"
	"fmt"
	"sync"

	orderdomain "paybridge/internal/order/domain"
)

// memOrderStore mirrors the Postgres repository's contract: Update holds a
// per-order exclusive section and persists the order only when fn returns
// nil, with ledger/credit/outbox effects applied atomically alongside it.
type memOrderStore struct {
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	orders   map[string]orderdomain.Order
	refunds  map[string]int64 // refund id -> credit memo id
	credits  []memCredit
	events   []memEvent
	creditID int64
}

type memCredit struct {
	ID      int64
	OrderID string
	Amount  int64
	Comment string
}

type memEvent struct {
	Type    string
	Payload []byte
}

func newMemOrderStore(orders ...orderdomain.Order) *memOrderStore {
	s := &memOrderStore{
		locks:   make(map[string]*sync.Mutex),
		orders:  make(map[string]orderdomain.Order),
		refunds: make(map[string]int64),
	}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *memOrderStore) Get(_ context.Context, id string) (orderdomain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orderdomain.Order{}, fmt.Errorf("order not found: %s", id)
	}
	return o, nil
}

func (s *memOrderStore) Update(ctx context.Context, id string, fn func(ctx context.Context, tx OrderTx, o *orderdomain.Order) error) error {
	s.lockFor(id).Lock()
	defer s.lockFor(id).Unlock()

	o, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	tx := &memTx{store: s, staged: make(map[string]int64)}
	if err := fn(ctx, tx, &o); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[id] = o
	s.credits = append(s.credits, tx.credits...)
	s.events = append(s.events, tx.events...)
	for refundID, creditID := range tx.staged {
		s.refunds[refundID] = creditID
	}
	return nil
}

func (s *memOrderStore) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locks[id]; !ok {
		s.locks[id] = &sync.Mutex{}
	}
	return s.locks[id]
}

func (s *memOrderStore) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, 0, len(s.events))
	for _, e := range s.events {
		types = append(types, e.Type)
	}
	return types
}

// memTx stages effects until the update commits.
type memTx struct {
	store   *memOrderStore
	credits []memCredit
	events  []memEvent
	staged  map[string]int64
}

func (t *memTx) AppendEvent(_ context.Context, eventType string, payload []byte) error {
	t.events = append(t.events, memEvent{Type: eventType, Payload: payload})
	return nil
}

func (t *memTx) RefundSeen(_ context.Context, refundID string) (bool, error) {
	if _, ok := t.staged[refundID]; ok {
		return true, nil
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	_, ok := t.store.refunds[refundID]
	return ok, nil
}

func (t *memTx) IssueCredit(_ context.Context, orderID string, amount int64, comment string) (int64, error) {
	t.store.mu.Lock()
	t.store.creditID++
	id := t.store.creditID
	t.store.mu.Unlock()
	t.credits = append(t.credits, memCredit{ID: id, OrderID: orderID, Amount: amount, Comment: comment})
	return id, nil
}

func (t *memTx) RecordRefund(_ context.Context, refundID string, creditMemoID int64) error {
	t.staged[refundID] = creditMemoID
	return nil
}

// memCorrelations is an in-memory CorrelationStore.
type memCorrelations struct {
	mu       sync.Mutex
	byExtID  map[string]string
	inserted int
}

func newMemCorrelations() *memCorrelations {
	return &memCorrelations{byExtID: make(map[string]string)}
}

func (s *memCorrelations) Insert(_ context.Context, externalID, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byExtID[externalID]; !ok {
		s.byExtID[externalID] = orderID
		s.inserted++
	}
	return nil
}

func (s *memCorrelations) FindOrder(_ context.Context, externalID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byExtID[externalID], nil
}

// fakeProvider scripts the provider's responses.
type fakeProvider struct {
	session    Session
	sessionErr error

	created    HostedSession
	createErr  error
	lastCreate CreateSessionRequest

	methods    []PaymentMethod
	methodsErr error
}

func (p *fakeProvider) GetSession(_ context.Context, id string) (Session, error) {
	if p.sessionErr != nil {
		return Session{}, p.sessionErr
	}
	s := p.session
	if s.ID == "" {
		s.ID = id
	}
	return s, nil
}

func (p *fakeProvider) CreateSession(_ context.Context, req CreateSessionRequest) (HostedSession, error) {
	p.lastCreate = req
	if p.createErr != nil {
		return HostedSession{}, p.createErr
	}
	return p.created, nil
}

func (p *fakeProvider) PaymentMethods(_ context.Context) ([]PaymentMethod, error) {
	if p.methodsErr != nil {
		return nil, p.methodsErr
	}
	return p.methods, nil
}
