package domain

import "time"

// AuditAction names an auditable account operation.
type AuditAction string

const (
	AuditRegister               AuditAction = "register"
	AuditLogin                  AuditAction = "login"
	AuditLoginFailed            AuditAction = "login_failed"
	AuditLogout                 AuditAction = "logout"
	AuditRefresh                AuditAction = "refresh"
	AuditPasswordChanged        AuditAction = "password_changed"
	AuditPasswordResetRequested AuditAction = "password_reset_requested"
	AuditPasswordReset          AuditAction = "password_reset"
	AuditSettingsUpdated        AuditAction = "settings_updated"
	AuditDeactivated            AuditAction = "deactivated"
)

// AuditEvent is an append-only record of something that happened to an account.
type AuditEvent struct {
	AccountID string
	Email     string
	Action    AuditAction
	At        time.Time
}
