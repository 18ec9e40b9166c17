package avadmin

import "context"

// Quota checks are advisory pre-checks against the last fetched limits
// snapshot. Fail-closed: an unreachable account service is never read as
// "unlimited". Two concurrent creations near the limit can both pass before
// either usage increment lands remotely; that race is accepted (a stricter
// design needs an atomic check-and-increment on the AvAdmin side).

// CanCreateProduct reports whether the account is under its product limit.
func (g *Gateway) CanCreateProduct(ctx context.Context, accountID string) bool {
	account := g.GetAccount(ctx, accountID)
	if account == nil {
		return false
	}
	return account.Limits.CurrentProducts < account.Limits.MaxProducts
}

// CanCreateTransaction reports whether the account is under its transaction
// limit.
func (g *Gateway) CanCreateTransaction(ctx context.Context, accountID string) bool {
	account := g.GetAccount(ctx, accountID)
	if account == nil {
		return false
	}
	return account.Limits.CurrentTransactions < account.Limits.MaxTransactions
}
