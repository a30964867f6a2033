package constants

// Session and context keys
const (
	SessionCookieName  = "task_monitor_session"
	ContextKeyUserID   = "user_id"
	ContextKeyUsername = "username"
	ContextKeyIsAdmin  = "is_admin"
	ContextKeyTask     = "task"
	ContextKeyOrg      = "organization"
	ContextKeyRequest  = "request_id"
	ContextKeyLogger   = "logger"
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Completion percentage bounds
const (
	MinCompletionPercentage = 0
	MaxCompletionPercentage = 100
)

// DateLayout is the wire format for task start and end dates.
const DateLayout = "2006-01-02"

// MaxImportSize limits uploaded database images.
const MaxImportSize = 64 << 20
