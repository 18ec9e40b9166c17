package avadmin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGateway_CanCreateProduct(t *testing.T) {
	cases := []struct {
		name   string
		limits AccountLimits
		want   bool
	}{
		{"under limit", AccountLimits{MaxProducts: 5, CurrentProducts: 4}, true},
		{"at capacity", AccountLimits{MaxProducts: 5, CurrentProducts: 5}, false},
		{"over limit", AccountLimits{MaxProducts: 5, CurrentProducts: 7}, false},
		{"zero limit plan", AccountLimits{MaxProducts: 0, CurrentProducts: 0}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := fakeAvAdmin(t, tc.limits)
			defer srv.Close()
			g := newTestGateway(t, srv.URL)

			assert.Equal(t, tc.want, g.CanCreateProduct(context.Background(), "acc-1"))
		})
	}
}

func TestGateway_CanCreateTransaction(t *testing.T) {
	srv := fakeAvAdmin(t, AccountLimits{MaxTransactions: 100, CurrentTransactions: 99})
	defer srv.Close()
	g := newTestGateway(t, srv.URL)

	assert.True(t, g.CanCreateTransaction(context.Background(), "acc-1"))
}

func TestGateway_Quota_FailClosedWhenAccountAbsent(t *testing.T) {
	srv := fakeAvAdmin(t, AccountLimits{MaxProducts: 5})
	defer srv.Close()
	g := newTestGateway(t, srv.URL)

	// Unknown account: deny rather than assume unlimited.
	assert.False(t, g.CanCreateProduct(context.Background(), "acc-unknown"))
	assert.False(t, g.CanCreateTransaction(context.Background(), "acc-unknown"))
}

func TestGateway_Quota_FailClosedWhenDown(t *testing.T) {
	g := newTestGateway(t, "http://127.0.0.1:1")

	assert.False(t, g.CanCreateProduct(context.Background(), "acc-1"))
	assert.False(t, g.CanCreateTransaction(context.Background(), "acc-1"))
}
