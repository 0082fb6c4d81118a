package override

import "testing"

func TestBlockPermission(t *testing.T) {
	tests := []struct {
		block Block
		want  string
	}{
		{BlockPatron, "circulation.override-patron-block"},
		{BlockItemLimit, "circulation.override-item-limit-block"},
		{BlockItemNotLoanable, "circulation.override-item-not-loanable-block"},
		{BlockRenewal, "circulation.override-renewal-block"},
		{Block("unknown"), ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.block), func(t *testing.T) {
			if got := tt.block.Permission(); got != tt.want {
				t.Errorf("Permission() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequest(t *testing.T) {
	if None.Any() || None.Requested(BlockPatron) {
		t.Error("None must not request overrides")
	}
	r := Request{Blocks: map[Block]bool{BlockItemLimit: true, BlockPatron: false}}
	if !r.Any() || !r.Requested(BlockItemLimit) || r.Requested(BlockPatron) {
		t.Errorf("unexpected request state %+v", r)
	}
}

func TestCapabilities(t *testing.T) {
	c := NewCapabilities(PermissionPatronBlock, PermissionItemLimitBlock)
	if !c.Has(PermissionPatronBlock) || c.Has(PermissionRenewalBlock) {
		t.Errorf("unexpected capabilities %v", c.List())
	}
	list := c.List()
	if len(list) != 2 || list[0] != PermissionItemLimitBlock {
		t.Errorf("expected sorted list, got %v", list)
	}
}
