package audit

// Audit actions recorded by the auth core.
const (
	ActionLogin                 = "login"
	ActionLogout                = "logout"
	ActionFailedLogin           = "failed_login"
	ActionRegister              = "register"
	ActionPasswordChange        = "password_change"
	ActionPasswordResetRequest  = "password_reset_request"
	ActionPasswordResetComplete = "password_reset_complete"
	ActionEmailVerification     = "email_verification"
	ActionAccountLocked         = "account_locked"
	ActionAccountUnlocked       = "account_unlocked"
	ActionProfileUpdate         = "profile_update"
	ActionRoleChange            = "role_change"
	ActionAccountDeactivated    = "account_deactivated"
	ActionAccountReactivated    = "account_reactivated"
	ActionSuspiciousActivity    = "suspicious_activity"
	ActionSessionRevoked        = "session_revoked"
	ActionAPIAccess             = "api_access"
)
