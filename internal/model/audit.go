package model

import "time"

type AuditAction string

const (
	AuditLoginSuccess  AuditAction = "login_success"
	AuditLoginFailed   AuditAction = "login_failed"
	AuditLogout        AuditAction = "logout"
	AuditCreate        AuditAction = "create"
	AuditUpdate        AuditAction = "update"
	AuditDelete        AuditAction = "delete"
	AuditExport        AuditAction = "export"
	AuditUnlock        AuditAction = "unlock"
	AuditResetPassword AuditAction = "reset_password"
	AuditInspection    AuditAction = "inspection"
)

const AnonymousEmail = "anonymous"

// AuditActor describes who performed an audited action and from where.
// UserID is empty for anonymous callers.
type AuditActor struct {
	UserID    string `json:"user_id,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Role      Role   `json:"role,omitempty"`
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

type AuditEntry struct {
	ID           int64          `json:"id"`
	UserID       *string        `json:"user_id"`
	UserEmail    string         `json:"user_email"`
	Action       AuditAction    `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   *string        `json:"resource_id"`
	Details      map[string]any `json:"details"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

type AuditQuery struct {
	UserID       string
	Action       string
	ResourceType string
	From         *time.Time
	To           *time.Time
	Page         int
	Limit        int
}

// FieldChange is one entry of an update diff.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}
