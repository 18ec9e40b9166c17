package avadmin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/stocktech/marketplace-service/config"
	"github.com/stocktech/marketplace-service/pkg/logger"
)

// Gateway wraps the executor with typed operations against AvAdmin. Every
// exported operation applies a fail-safe default instead of surfacing an
// error: reads degrade to absent/empty, permission checks degrade to denial.
// Callers therefore never need a failure branch, at the cost of silently
// reduced functionality while the dependency is down.
type Gateway struct {
	client        *Client
	defaultModule string
	logger        logger.ZapLogger
}

func NewGateway(cfg *config.AvAdminConfig, log logger.ZapLogger) *Gateway {
	module := cfg.Module
	if module == "" {
		module = "StockTech"
	}
	return &Gateway{
		client:        NewClient(cfg, log),
		defaultModule: module,
		logger:        log,
	}
}

// lookupState tags the three outcomes a remote fetch can have. Keeping the
// distinction between "absent" and "dependency down" internal makes the
// collapse to legacy defaults testable without changing caller behavior.
type lookupState int

const (
	lookupFound lookupState = iota
	lookupAbsent
	lookupDown
)

type lookup[T any] struct {
	state lookupState
	value *T
}

func fetchOne[T any](ctx context.Context, g *Gateway, method, path string, body any, query url.Values) lookup[T] {
	raw, err := g.client.execute(ctx, method, path, body, query)
	if err != nil {
		g.logger.Error("avadmin fetch failed",
			zap.String("endpoint", path),
			zap.Error(err))
		return lookup[T]{state: lookupDown}
	}
	if raw == nil {
		return lookup[T]{state: lookupAbsent}
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		g.logger.Error("failed to decode avadmin response",
			zap.String("endpoint", path),
			zap.Error(err))
		return lookup[T]{state: lookupDown}
	}
	return lookup[T]{state: lookupFound, value: &value}
}

// GetUser returns the user or nil; a failing dependency reads as absent.
func (g *Gateway) GetUser(ctx context.Context, userID string) *UserData {
	res := fetchOne[UserData](ctx, g, http.MethodGet, "/api/internal/users/"+userID, nil, nil)
	if res.state != lookupFound {
		return nil
	}
	return res.value
}

// GetUserByCPF resolves a user through their external id, for login flows.
func (g *Gateway) GetUserByCPF(ctx context.Context, cpf string) *UserData {
	res := fetchOne[UserData](ctx, g, http.MethodGet, "/api/internal/users/by-cpf/"+cpf, nil, nil)
	if res.state != lookupFound {
		return nil
	}
	return res.value
}

type usersEnvelope struct {
	Users []UserData `json:"users"`
}

// GetAccountUsers lists the users of an account, empty on any failure.
func (g *Gateway) GetAccountUsers(ctx context.Context, accountID string, activeOnly bool) []UserData {
	query := url.Values{"active_only": []string{strconv.FormatBool(activeOnly)}}
	path := fmt.Sprintf("/api/internal/accounts/%s/users", accountID)

	res := fetchOne[usersEnvelope](ctx, g, http.MethodGet, path, nil, query)
	if res.state != lookupFound {
		return []UserData{}
	}
	return res.value.Users
}

// GetAccount returns the account snapshot with its limits, or nil.
func (g *Gateway) GetAccount(ctx context.Context, accountID string) *AccountData {
	res := fetchOne[AccountData](ctx, g, http.MethodGet, "/api/internal/accounts/"+accountID, nil, nil)
	if res.state != lookupFound {
		return nil
	}
	return res.value
}

// CheckModulePermission asks whether an account may use a module. Both an
// unreachable dependency and an empty answer collapse to a denial with a
// human-readable reason.
func (g *Gateway) CheckModulePermission(ctx context.Context, accountID, module string) ModulePermission {
	if module == "" {
		module = g.defaultModule
	}
	query := url.Values{"module": []string{module}}
	path := fmt.Sprintf("/api/internal/accounts/%s/permissions", accountID)

	res := fetchOne[ModulePermission](ctx, g, http.MethodGet, path, nil, query)
	switch res.state {
	case lookupFound:
		return *res.value
	case lookupAbsent:
		return ModulePermission{
			AccountID: accountID,
			Module:    module,
			HasAccess: false,
			Reason:    "Service unavailable",
		}
	default:
		return ModulePermission{
			AccountID: accountID,
			Module:    module,
			HasAccess: false,
			Reason:    "Service error",
		}
	}
}

// IncrementUsageCounter bumps a remote usage counter (products,
// transactions, ...). Best effort: false means the increment did not land.
func (g *Gateway) IncrementUsageCounter(ctx context.Context, accountID, counterType string) bool {
	path := fmt.Sprintf("/api/internal/accounts/%s/usage/%s", accountID, counterType)

	_, err := g.client.execute(ctx, http.MethodPost, path, nil, nil)
	if err != nil {
		g.logger.Error("failed to increment usage counter",
			zap.String("account_id", accountID),
			zap.String("counter_type", counterType),
			zap.Error(err))
		return false
	}
	return true
}

type userAccessRequest struct {
	UserID string `json:"user_id"`
	Module string `json:"module"`
}

type userAccessResponse struct {
	HasAccess bool `json:"has_access"`
}

// ValidateUserAccess checks a single user's module access. A 403 means
// "not allowed", not an error; every failure mode reads as denial.
func (g *Gateway) ValidateUserAccess(ctx context.Context, userID, module string) bool {
	if module == "" {
		module = g.defaultModule
	}
	body := userAccessRequest{UserID: userID, Module: module}

	res := fetchOne[userAccessResponse](ctx, g, http.MethodPost, "/api/internal/validate/user-access", body, nil)
	if res.state != lookupFound {
		return false
	}
	return res.value.HasAccess
}

type healthResponse struct {
	Status string `json:"status"`
}

// HealthCheck reports whether AvAdmin answers healthy.
func (g *Gateway) HealthCheck(ctx context.Context) bool {
	res := fetchOne[healthResponse](ctx, g, http.MethodGet, "/api/internal/health", nil, nil)
	if res.state != lookupFound {
		return false
	}
	return res.value.Status == "healthy"
}
