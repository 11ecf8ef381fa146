package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"enterprise-api/backend/internal/audit/domain"
	auditrepo "enterprise-api/backend/internal/audit/repository"
	"enterprise-api/backend/internal/logging"
	"enterprise-api/backend/internal/telemetry"
	telemetrydomain "enterprise-api/backend/internal/telemetry/domain"
)

// Auth event actions written explicitly by the auth service on resource ResourceAuth.
const (
	ResourceAuth = "auth"

	ActionRegister               = "register"
	ActionLoginSuccess           = "login_success"
	ActionLoginFailure           = "login_failure"
	ActionAccountLocked          = "account_locked"
	ActionLogout                 = "logout"
	ActionTokenRefreshed         = "token_refreshed"
	ActionPasswordResetRequested = "password_reset_requested"
	ActionPasswordReset          = "password_reset"
	ActionEmailVerified          = "email_verified"
	ActionTwoFactorEnabled       = "2fa_enabled"
	ActionTwoFactorDisabled      = "2fa_disabled"
	ActionSessionRevoked         = "session_revoked"
	ActionSessionsRevoked        = "sessions_revoked"
)

// ClientExtractor returns the client IP and user agent from the request context.
type ClientExtractor func(context.Context) (ip, userAgent string)

// AuditLogger writes a single audit event with explicit action/resource. Used by auth code paths and the
// HTTP audit middleware. LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource, resourceID string, metadata map[string]any)
}

// Logger implements AuditLogger using the audit repository, an optional client extractor, and an optional
// telemetry emitter that receives every persisted event.
type Logger struct {
	repo    auditrepo.Repository
	client  ClientExtractor
	emitter telemetry.EventEmitter
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo. client may be nil; then IP is recorded as
// "unknown". emitter may be nil; then events are only persisted.
func NewLogger(repo auditrepo.Repository, client ClientExtractor, emitter telemetry.EventEmitter, log logrus.FieldLogger) *Logger {
	return &Logger{repo: repo, client: client, emitter: emitter, log: logging.OrDiscard(log), now: time.Now}
}

// LogEvent writes one audit log entry and fans it out to the emitter. Errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource, resourceID string, metadata map[string]any) {
	if l == nil || l.repo == nil {
		return
	}
	ip, ua := "unknown", ""
	if l.client != nil {
		ip, ua = l.client(ctx)
		if ip == "" {
			ip = "unknown"
		}
	}
	var meta string
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			l.log.WithError(err).WithField("action", action).Warn("audit: metadata not serializable")
		} else {
			meta = string(b)
		}
	}
	entry := &domain.AuditLog{
		ID:         uuid.New().String(),
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IPAddress:  ip,
		UserAgent:  ua,
		Metadata:   meta,
		CreatedAt:  l.now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.log.WithError(err).WithFields(logrus.Fields{"action": action, "resource": resource}).
			Error("audit: failed to log event")
		return
	}
	telemetry.EmitAsync(l.emitter, l.log, &telemetrydomain.Event{
		ID:         entry.ID,
		Action:     entry.Action,
		Resource:   entry.Resource,
		ResourceID: entry.ResourceID,
		UserID:     entry.UserID,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
		Metadata:   json.RawMessage(meta),
		CreatedAt:  entry.CreatedAt,
	})
}
