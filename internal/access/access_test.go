package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleTable(t *testing.T) {
	rt := NewRoleTable(
		map[string][]string{
			"clerk":      {"voucher:create", "voucher:update", "import:*"},
			"accountant": {"voucher:*", "purchase:post"},
			"admin":      {"*"},
		},
		map[string][]string{
			"ann":  {"clerk"},
			"bob":  {"accountant"},
			"cara": {"admin"},
			"dan":  {"clerk", "accountant"},
		},
	)
	ctx := context.Background()

	tests := []struct {
		user, resource, action string
		want                   bool
	}{
		{"ann", ResourceVoucher, ActionCreate, true},
		{"ann", ResourceVoucher, ActionPost, false},
		{"ann", ResourceImport, ActionCommit, true},
		{"bob", ResourceVoucher, ActionPost, true},
		{"bob", ResourceVoucher, ActionReverse, true},
		{"bob", ResourceImport, ActionCommit, false},
		{"cara", ResourcePurchase, ActionCreate, true},
		{"dan", ResourceImport, ActionCommit, true},
		{"dan", ResourceVoucher, ActionPost, true},
		{"nobody", ResourceVoucher, ActionCreate, false},
		{"bob", "VOUCHER", "POST", true},
	}
	for _, tt := range tests {
		got := rt.HasPermission(ctx, tt.user, tt.resource, tt.action)
		assert.Equal(t, tt.want, got, "%s %s:%s", tt.user, tt.resource, tt.action)
	}
}

func TestFromConfig(t *testing.T) {
	ctx := context.Background()
	assert.IsType(t, AllowAll{}, FromConfig(nil, nil))
	assert.True(t, FromConfig(nil, nil).HasPermission(ctx, "anyone", ResourceVoucher, ActionPost))

	c := FromConfig(map[string][]string{"r": {"voucher:create"}}, map[string][]string{"u": {"r"}})
	assert.True(t, c.HasPermission(ctx, "u", ResourceVoucher, ActionCreate))
	assert.False(t, c.HasPermission(ctx, "u", ResourceVoucher, ActionPost))
}
