package validation

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
)

// fakeLookups is an in-memory implementation of every lookup port.
type fakeLookups struct {
	mu        sync.Mutex
	calls     map[string]int
	items     []item.Item
	patrons   []patron.Patron
	loans     []loan.Loan
	proxies   []patron.ProxyRelationship
	automated map[string][]patron.AutomatedBlock
	manual    []patron.ManualBlock
	queues    map[string]*request.Queue
	loanPol   *policy.LoanPolicy
	reqPol    *policy.RequestPolicy
	failWith  error
}

func newFakeLookups() *fakeLookups {
	return &fakeLookups{
		calls:     make(map[string]int),
		automated: make(map[string][]patron.AutomatedBlock),
		queues:    make(map[string]*request.Queue),
	}
}

func (f *fakeLookups) set() lookup.Set {
	return lookup.Set{
		Items:              f,
		Patrons:            f,
		Loans:              f,
		ProxyRelationships: f,
		AutomatedBlocks:    f,
		ManualBlocks:       f,
		RequestQueues:      f,
		Policies:           f,
	}
}

func (f *fakeLookups) called(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeLookups) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.failWith
}

func (f *fakeLookups) ItemByID(_ context.Context, id string) (*item.Item, error) {
	if err := f.record("ItemByID"); err != nil {
		return nil, err
	}
	for i := range f.items {
		if f.items[i].ID == id {
			it := f.items[i]
			return &it, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLookups) ItemByBarcode(_ context.Context, barcode string) (*item.Item, error) {
	if err := f.record("ItemByBarcode"); err != nil {
		return nil, err
	}
	for i := range f.items {
		if f.items[i].Barcode == barcode {
			it := f.items[i]
			return &it, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLookups) ItemsByInstance(_ context.Context, instanceID string) ([]item.Item, error) {
	if err := f.record("ItemsByInstance"); err != nil {
		return nil, err
	}
	var out []item.Item
	for i := range f.items {
		if f.items[i].InstanceID == instanceID {
			out = append(out, f.items[i])
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrNotFound
	}
	return out, nil
}

func (f *fakeLookups) PatronByID(_ context.Context, id string) (*patron.Patron, error) {
	if err := f.record("PatronByID"); err != nil {
		return nil, err
	}
	for i := range f.patrons {
		if f.patrons[i].ID == id {
			p := f.patrons[i]
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLookups) PatronByBarcode(_ context.Context, barcode string) (*patron.Patron, error) {
	if err := f.record("PatronByBarcode"); err != nil {
		return nil, err
	}
	for i := range f.patrons {
		if f.patrons[i].Barcode == barcode {
			p := f.patrons[i]
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLookups) LoanByID(_ context.Context, id string) (*loan.Loan, error) {
	if err := f.record("LoanByID"); err != nil {
		return nil, err
	}
	for i := range f.loans {
		if f.loans[i].ID == id {
			l := f.loans[i]
			return &l, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLookups) OpenLoanForItem(_ context.Context, itemID string) (*loan.Loan, error) {
	if err := f.record("OpenLoanForItem"); err != nil {
		return nil, err
	}
	for i := range f.loans {
		if f.loans[i].ItemID == itemID && f.loans[i].IsOpen() {
			l := f.loans[i]
			return &l, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLookups) OpenLoansWithItems(_ context.Context, userID string) ([]lookup.LoanedItem, error) {
	if err := f.record("OpenLoansWithItems"); err != nil {
		return nil, err
	}
	var out []lookup.LoanedItem
	for _, l := range f.loans {
		if l.UserID != userID || !l.IsOpen() {
			continue
		}
		for _, it := range f.items {
			if it.ID == l.ItemID {
				out = append(out, lookup.LoanedItem{Loan: l, Item: it})
			}
		}
	}
	return out, nil
}

func (f *fakeLookups) ActiveBetween(_ context.Context, sponsorID, proxyID string) (*patron.ProxyRelationship, error) {
	if err := f.record("ActiveBetween"); err != nil {
		return nil, err
	}
	for i := range f.proxies {
		if f.proxies[i].SponsorID == sponsorID && f.proxies[i].ProxyID == proxyID {
			r := f.proxies[i]
			return &r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLookups) AutomatedBlocks(_ context.Context, patronID string) ([]patron.AutomatedBlock, error) {
	if err := f.record("AutomatedBlocks"); err != nil {
		return nil, err
	}
	return f.automated[patronID], nil
}

func (f *fakeLookups) ManualBlocks(_ context.Context, patronID string) ([]patron.ManualBlock, error) {
	if err := f.record("ManualBlocks"); err != nil {
		return nil, err
	}
	var out []patron.ManualBlock
	for _, b := range f.manual {
		if b.PatronID == patronID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeLookups) QueueForItem(_ context.Context, itemID string) (*request.Queue, error) {
	if err := f.record("QueueForItem"); err != nil {
		return nil, err
	}
	if q, ok := f.queues["item:"+itemID]; ok {
		return q, nil
	}
	return &request.Queue{Scope: request.ScopeItem, Key: itemID}, nil
}

func (f *fakeLookups) QueueForInstance(_ context.Context, instanceID string) (*request.Queue, error) {
	if err := f.record("QueueForInstance"); err != nil {
		return nil, err
	}
	if q, ok := f.queues["instance:"+instanceID]; ok {
		return q, nil
	}
	return &request.Queue{Scope: request.ScopeInstance, Key: instanceID}, nil
}

func (f *fakeLookups) RequestByID(_ context.Context, id string) (*request.Request, error) {
	if err := f.record("RequestByID"); err != nil {
		return nil, err
	}
	for _, q := range f.queues {
		if r, ok := q.ByID(id); ok {
			return &r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeLookups) LoanPolicyFor(_ context.Context, _ policy.Criteria) (*policy.LoanPolicy, error) {
	if err := f.record("LoanPolicyFor"); err != nil {
		return nil, err
	}
	if f.loanPol == nil {
		return nil, domain.ErrNotFound
	}
	lp := *f.loanPol
	return &lp, nil
}

func (f *fakeLookups) RequestPolicyFor(_ context.Context, _ policy.Criteria) (*policy.RequestPolicy, error) {
	if err := f.record("RequestPolicyFor"); err != nil {
		return nil, err
	}
	if f.reqPol == nil {
		return nil, domain.ErrNotFound
	}
	rp := *f.reqPol
	return &rp, nil
}
