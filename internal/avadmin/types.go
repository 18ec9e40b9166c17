package avadmin

import "time"

// UserData is the identity projection served by AvAdmin. Read-only here and
// never persisted locally.
type UserData struct {
	ID               string    `json:"id"`
	FullName         string    `json:"full_name"`
	CPF              string    `json:"cpf"`
	WhatsApp         string    `json:"whatsapp"`
	Role             string    `json:"role"`
	AccountID        *string   `json:"account_id"`
	IsActive         bool      `json:"is_active"`
	WhatsAppVerified bool      `json:"whatsapp_verified"`
	CreatedAt        time.Time `json:"created_at"`
}

// AccountLimits carries the quota snapshot. It is only as fresh as the last
// fetch; quota decisions built on it are advisory.
type AccountLimits struct {
	MaxUsers            int `json:"max_users"`
	MaxProducts         int `json:"max_products"`
	MaxTransactions     int `json:"max_transactions"`
	CurrentUsers        int `json:"current_users"`
	CurrentProducts     int `json:"current_products"`
	CurrentTransactions int `json:"current_transactions"`
}

type PlanData struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	MaxUsers        int            `json:"max_users"`
	MaxProducts     int            `json:"max_products"`
	MaxTransactions int            `json:"max_transactions"`
	Features        map[string]any `json:"features"`
}

type AccountData struct {
	ID              string        `json:"id"`
	CompanyName     string        `json:"company_name"`
	CNPJ            string        `json:"cnpj"`
	WhatsApp        string        `json:"whatsapp"`
	ResponsibleName string        `json:"responsible_name"`
	Status          string        `json:"status"`
	EnabledModules  []string      `json:"enabled_modules"`
	Plan            *PlanData     `json:"plan"`
	Limits          AccountLimits `json:"limits"`
	CreatedAt       time.Time     `json:"created_at"`
}

// ModulePermission is always constructible locally, which gives the gateway
// a safe denial to hand out when the remote call fails.
type ModulePermission struct {
	AccountID string `json:"account_id"`
	Module    string `json:"module"`
	HasAccess bool   `json:"has_access"`
	Reason    string `json:"reason"`
}
