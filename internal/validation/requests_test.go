package validation

import (
	"context"
	"testing"

	"github.com/Strob0t/circulation/internal/domain/item"
	"github.com/Strob0t/circulation/internal/domain/loan"
	"github.com/Strob0t/circulation/internal/domain/override"
	"github.com/Strob0t/circulation/internal/domain/patron"
	"github.com/Strob0t/circulation/internal/domain/policy"
	"github.com/Strob0t/circulation/internal/domain/request"
)

func requestFixture() *fakeLookups {
	f := checkOutFixture()
	f.items = append(f.items, item.Item{ID: "i2", Barcode: "item-2", InstanceID: "in1", Status: item.StatusCheckedOut,
		MaterialTypeID: "book", PermanentLoanTypeID: "can-circulate"})
	rp := policy.PresetAllowAll()
	f.reqPol = &rp
	return f
}

func place(f *fakeLookups, req request.CreateRequest, tlr bool, g Gate) []string {
	acc := NewAccumulator(RequestCreationProfile)
	out := RequestCreation(f.set(), g, acc).Run(context.Background(), RequestRecords{
		Request:           req,
		Now:               now,
		TitleLevelEnabled: tlr,
	})
	if out.Result.Succeeded() {
		return nil
	}
	var msgs []string
	for _, e := range out.Result.Cause().ValidationErrors() {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

func TestRequestCreation(t *testing.T) {
	itemPage := request.CreateRequest{RequesterID: "u1", ItemID: "i1", InstanceID: "in1",
		Type: request.TypePage, Level: request.LevelItem}

	tests := []struct {
		name  string
		req   request.CreateRequest
		tlr   bool
		setup func(f *fakeLookups)
		want  []string
	}{
		{name: "valid page", req: itemPage},
		{
			name: "unknown level",
			req:  request.CreateRequest{RequesterID: "u1", ItemID: "i1", Type: request.TypePage, Level: "Shelf"},
			want: []string{`Request level must be one of the following: "Item", "Title"`},
		},
		{
			name: "title level disabled",
			req:  request.CreateRequest{RequesterID: "u1", InstanceID: "in1", Type: request.TypeHold, Level: request.LevelTitle},
			want: []string{"Can not create a title level request, TLR feature status is DISABLED."},
		},
		{
			name: "missing item",
			req:  request.CreateRequest{RequesterID: "u1", ItemID: "nope", Type: request.TypeHold, Level: request.LevelItem},
			want: []string{"Item does not exist"},
		},
		{
			name: "missing instance",
			req:  request.CreateRequest{RequesterID: "u1", InstanceID: "nope", Type: request.TypeHold, Level: request.LevelTitle},
			tlr:  true,
			want: []string{"Instance does not exist"},
		},
		{
			name: "recall on available item",
			req:  request.CreateRequest{RequesterID: "u1", ItemID: "i1", Type: request.TypeRecall, Level: request.LevelItem},
			want: []string{"Recall requests are not allowed for this patron and item combination"},
		},
		{
			name: "policy forbids page",
			req:  itemPage,
			setup: func(f *fakeLookups) {
				f.reqPol = &policy.RequestPolicy{ID: "holds", RequestTypes: []policy.RequestType{policy.RequestHold}}
			},
			want: []string{"Page requests are not allowed for this patron and item combination"},
		},
		{
			name: "already requested item",
			req:  itemPage,
			setup: func(f *fakeLookups) {
				f.queues["item:i1"] = &request.Queue{Scope: request.ScopeItem, Key: "i1", Requests: []request.Request{
					{ID: "r1", RequesterID: "u1", ItemID: "i1", Level: request.LevelItem, Status: request.StatusOpenNotYetFilled, Position: 1},
				}}
			},
			want: []string{"This requester already has an open request for this item"},
		},
		{
			name: "already requested instance",
			req:  request.CreateRequest{RequesterID: "u1", InstanceID: "in1", Type: request.TypeHold, Level: request.LevelTitle},
			tlr:  true,
			setup: func(f *fakeLookups) {
				f.queues["instance:in1"] = &request.Queue{Scope: request.ScopeInstance, Key: "in1", Requests: []request.Request{
					{ID: "r1", RequesterID: "u1", InstanceID: "in1", Level: request.LevelTitle, Status: request.StatusOpenNotYetFilled, Position: 1},
				}}
			},
			want: []string{"This requester already has an open request for this instance"},
		},
		{
			name: "item on loan to requester",
			req:  request.CreateRequest{RequesterID: "u1", ItemID: "i2", InstanceID: "in1", Type: request.TypeHold, Level: request.LevelItem},
			setup: func(f *fakeLookups) {
				f.loans = []loan.Loan{{ID: "l1", ItemID: "i2", UserID: "u1", Status: loan.StatusOpen}}
			},
			want: []string{"This requester already has this item on loan"},
		},
		{
			name: "instance item on loan to requester",
			req:  request.CreateRequest{RequesterID: "u1", InstanceID: "in1", Type: request.TypeHold, Level: request.LevelTitle},
			tlr:  true,
			setup: func(f *fakeLookups) {
				f.loans = []loan.Loan{{ID: "l1", ItemID: "i2", UserID: "u1", Status: loan.StatusOpen}}
			},
			want: []string{"This requester already has a loan for one of the instance's items"},
		},
		{
			name: "manual and automated blocks",
			req:  itemPage,
			setup: func(f *fakeLookups) {
				f.manual = []patron.ManualBlock{{PatronID: "u1", Description: "Damaged book", Requests: true}}
				f.automated["u1"] = []patron.AutomatedBlock{{Message: "Fines exceed limit", BlockRequests: true}}
			},
			want: []string{"Patron blocked from requesting", "Fines exceed limit"},
		},
		{
			name: "inactive requester",
			req:  itemPage,
			setup: func(f *fakeLookups) {
				f.patrons[0].Active = false
			},
			want: []string{"Inactive users cannot make requests"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := requestFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			got := place(f, tt.req, tt.tlr, Gate{})
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("error[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRequestCreationAutomatedBlockOverride(t *testing.T) {
	f := requestFixture()
	f.automated["u1"] = []patron.AutomatedBlock{{Message: "Fines exceed limit", BlockRequests: true}}
	g := Gate{
		Request:      override.Request{Blocks: map[override.Block]bool{override.BlockPatron: true}},
		Capabilities: override.NewCapabilities(override.PermissionPatronBlock),
	}
	req := request.CreateRequest{RequesterID: "u1", ItemID: "i1", Type: request.TypePage, Level: request.LevelItem}
	if got := place(f, req, false, g); len(got) != 0 {
		t.Fatalf("unexpected failures: %v", got)
	}
}

func TestRequestMove(t *testing.T) {
	setup := func() *fakeLookups {
		f := requestFixture()
		f.queues["item:i1"] = &request.Queue{Scope: request.ScopeItem, Key: "i1", Requests: []request.Request{
			{ID: "r1", RequesterID: "u2", ItemID: "i1", InstanceID: "in1", Type: request.TypePage,
				Level: request.LevelItem, Status: request.StatusOpenNotYetFilled, Position: 1},
		}}
		return f
	}
	move := func(f *fakeLookups, m request.MoveRequest) []string {
		acc := NewAccumulator(RequestMoveProfile)
		out := RequestMove(f.set(), acc).Run(context.Background(), MoveRecords{RequestID: "r1", Move: m, Now: now})
		if out.Result.Succeeded() {
			return nil
		}
		var msgs []string
		for _, e := range out.Result.Cause().ValidationErrors() {
			msgs = append(msgs, e.Message)
		}
		return msgs
	}

	t.Run("page cannot move to checked out item", func(t *testing.T) {
		got := move(setup(), request.MoveRequest{DestinationItemID: "i2"})
		if len(got) != 1 || got[0] != "Page requests are not allowed for this patron and item combination" {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("move as hold", func(t *testing.T) {
		if got := move(setup(), request.MoveRequest{DestinationItemID: "i2", RequestType: request.TypeHold}); len(got) != 0 {
			t.Fatalf("unexpected failures: %v", got)
		}
	})

	t.Run("same item", func(t *testing.T) {
		got := move(setup(), request.MoveRequest{DestinationItemID: "i1"})
		if len(got) != 1 || got[0] != "Not allowed to move request to the same item" {
			t.Fatalf("got %v", got)
		}
	})

	titleSetup := func() *fakeLookups {
		f := requestFixture()
		f.queues["instance:in1"] = &request.Queue{Scope: request.ScopeInstance, Key: "in1", Requests: []request.Request{
			{ID: "r1", RequesterID: "u2", ItemID: "i1", InstanceID: "in1", Type: request.TypeHold,
				Level: request.LevelTitle, Status: request.StatusOpenNotYetFilled, Position: 1},
		}}
		return f
	}

	t.Run("title level within instance", func(t *testing.T) {
		f := titleSetup()
		if got := move(f, request.MoveRequest{DestinationItemID: "i2"}); len(got) != 0 {
			t.Fatalf("unexpected failures: %v", got)
		}
		if f.called("QueueForInstance") != 1 {
			t.Error("instance queue not fetched for title-level move")
		}
	})

	t.Run("title level to other instance", func(t *testing.T) {
		f := titleSetup()
		other := f.items[1]
		other.ID, other.Barcode, other.InstanceID = "i3", "item-3", "in2"
		f.items = append(f.items, other)
		got := move(f, request.MoveRequest{DestinationItemID: "i3"})
		if len(got) != 1 || got[0] != "Title level request can only be moved to an item of the same instance" {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("unknown request", func(t *testing.T) {
		f := setup()
		delete(f.queues, "item:i1")
		got := move(f, request.MoveRequest{DestinationItemID: "i2"})
		if len(got) != 1 || got[0] != `request record with ID "r1" cannot be found` {
			t.Fatalf("got %v", got)
		}
		if f.called("ItemByID") != 0 {
			t.Error("destination fetched after request lookup failed")
		}
	})
}
