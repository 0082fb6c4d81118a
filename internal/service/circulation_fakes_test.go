package service

import (
	"context"
	"sync"

	"github.com/Strob0t/circulation/internal/domain"
	"github.com/Strob0t/circulation/internal/domain/item"
	"github.com/Strob0t/circulation/internal/domain/loan"
	"github.com/Strob0t/circulation/internal/domain/patron"
	"github.com/Strob0t/circulation/internal/domain/policy"
	"github.com/Strob0t/circulation/internal/domain/request"
	"github.com/Strob0t/circulation/internal/port/lookup"
	"github.com/Strob0t/circulation/internal/port/messagequeue"
)

// memLookups answers every lookup port from maps.
type memLookups struct {
	items     map[string]item.Item
	patrons   map[string]patron.Patron
	loans     map[string]loan.Loan
	automated map[string][]patron.AutomatedBlock
	queues    map[string]*request.Queue
	loanPol   policy.LoanPolicy
	reqPol    policy.RequestPolicy
	err       error
}

func newMemLookups() *memLookups {
	return &memLookups{
		items: map[string]item.Item{
			"i1": {ID: "i1", Barcode: "item-1", InstanceID: "in1", Status: item.StatusAvailable,
				MaterialTypeID: "book", PermanentLoanTypeID: "can-circulate"},
			"i2": {ID: "i2", Barcode: "item-2", InstanceID: "in1", Status: item.StatusCheckedOut,
				MaterialTypeID: "book", PermanentLoanTypeID: "can-circulate"},
		},
		patrons: map[string]patron.Patron{
			"u1": {ID: "u1", Barcode: "user-1", PatronGroupID: "undergrad", Active: true},
			"u2": {ID: "u2", Barcode: "user-2", PatronGroupID: "staff", Active: true},
		},
		loans:     map[string]loan.Loan{},
		automated: map[string][]patron.AutomatedBlock{},
		queues:    map[string]*request.Queue{},
		loanPol:   policy.PresetStandard(),
		reqPol:    policy.PresetAllowAll(),
	}
}

func (m *memLookups) set() lookup.Set {
	return lookup.Set{Items: m, Patrons: m, Loans: m, ProxyRelationships: m, AutomatedBlocks: m,
		ManualBlocks: m, RequestQueues: m, Policies: m}
}

func (m *memLookups) ItemByID(_ context.Context, id string) (*item.Item, error) {
	if m.err != nil {
		return nil, m.err
	}
	if it, ok := m.items[id]; ok {
		return &it, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memLookups) ItemByBarcode(_ context.Context, barcode string) (*item.Item, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, it := range m.items {
		if it.Barcode == barcode {
			return &it, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memLookups) ItemsByInstance(_ context.Context, instanceID string) ([]item.Item, error) {
	var out []item.Item
	for _, it := range m.items {
		if it.InstanceID == instanceID {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrNotFound
	}
	return out, nil
}

func (m *memLookups) PatronByID(_ context.Context, id string) (*patron.Patron, error) {
	if p, ok := m.patrons[id]; ok {
		return &p, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memLookups) PatronByBarcode(_ context.Context, barcode string) (*patron.Patron, error) {
	for _, p := range m.patrons {
		if p.Barcode == barcode {
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memLookups) LoanByID(_ context.Context, id string) (*loan.Loan, error) {
	if l, ok := m.loans[id]; ok {
		return &l, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memLookups) OpenLoanForItem(_ context.Context, itemID string) (*loan.Loan, error) {
	for _, l := range m.loans {
		if l.ItemID == itemID && l.IsOpen() {
			return &l, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memLookups) OpenLoansWithItems(_ context.Context, userID string) ([]lookup.LoanedItem, error) {
	var out []lookup.LoanedItem
	for _, l := range m.loans {
		if l.UserID == userID && l.IsOpen() {
			out = append(out, lookup.LoanedItem{Loan: l, Item: m.items[l.ItemID]})
		}
	}
	return out, nil
}

func (m *memLookups) ActiveBetween(context.Context, string, string) (*patron.ProxyRelationship, error) {
	return nil, domain.ErrNotFound
}

func (m *memLookups) AutomatedBlocks(_ context.Context, patronID string) ([]patron.AutomatedBlock, error) {
	return m.automated[patronID], nil
}

func (m *memLookups) ManualBlocks(context.Context, string) ([]patron.ManualBlock, error) {
	return nil, nil
}

func (m *memLookups) queue(scope request.Scope, key string) *request.Queue {
	if q, ok := m.queues[string(scope)+":"+key]; ok {
		cp := *q
		cp.Requests = append([]request.Request(nil), q.Requests...)
		return &cp
	}
	return &request.Queue{Scope: scope, Key: key}
}

func (m *memLookups) QueueForItem(_ context.Context, itemID string) (*request.Queue, error) {
	return m.queue(request.ScopeItem, itemID), nil
}

func (m *memLookups) QueueForInstance(_ context.Context, instanceID string) (*request.Queue, error) {
	return m.queue(request.ScopeInstance, instanceID), nil
}

func (m *memLookups) RequestByID(_ context.Context, id string) (*request.Request, error) {
	for _, q := range m.queues {
		if r, ok := q.ByID(id); ok {
			return &r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memLookups) LoanPolicyFor(context.Context, policy.Criteria) (*policy.LoanPolicy, error) {
	lp := m.loanPol
	return &lp, nil
}

func (m *memLookups) RequestPolicyFor(context.Context, policy.Criteria) (*policy.RequestPolicy, error) {
	rp := m.reqPol
	return &rp, nil
}

// mockStore records writes and fails them with err when set.
type mockStore struct {
	mu       sync.Mutex
	created  []loan.Loan
	updated  []loan.Loan
	requests []request.Request
	queues   []request.Queue
	err      error
}

func (s *mockStore) CreateLoan(_ context.Context, l *loan.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, *l)
	return nil
}

func (s *mockStore) UpdateLoan(_ context.Context, l *loan.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	l.Version++
	s.updated = append(s.updated, *l)
	return nil
}

func (s *mockStore) CreateRequest(_ context.Context, r *request.Request, q *request.Queue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.requests = append(s.requests, *r)
	q.Version++
	s.queues = append(s.queues, *q)
	return nil
}

func (s *mockStore) MoveRequest(_ context.Context, r *request.Request, from, to *request.Queue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.requests = append(s.requests, *r)
	if from == to {
		to.Version++
		s.queues = append(s.queues, *to)
		return nil
	}
	from.Version++
	to.Version++
	s.queues = append(s.queues, *from, *to)
	return nil
}

func (s *mockStore) SaveQueue(_ context.Context, q *request.Queue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	q.Version++
	s.queues = append(s.queues, *q)
	return nil
}

// mockQueue implements messagequeue.Queue for testing.
type mockQueue struct {
	mu        sync.Mutex
	published []string
	payloads  [][]byte
}

func (q *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, subject)
	q.payloads = append(q.payloads, data)
	return nil
}

func (q *mockQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return true }

func (q *mockQueue) subjects() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.published...)
}
