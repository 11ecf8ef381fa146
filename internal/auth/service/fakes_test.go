package service

import (
	"context"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"enterprise-api/backend/internal/apperr"
	"enterprise-api/backend/internal/mfa"
	mfarepo "enterprise-api/backend/internal/mfa/repository"
	notificationdomain "enterprise-api/backend/internal/notification/domain"
	rbacdomain "enterprise-api/backend/internal/rbac/domain"
	"enterprise-api/backend/internal/security"
	sessiondomain "enterprise-api/backend/internal/session/domain"
	userdomain "enterprise-api/backend/internal/user/domain"
	userrepo "enterprise-api/backend/internal/user/repository"
	verificationdomain "enterprise-api/backend/internal/verification/domain"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type memUserRepo struct {
	mu   sync.Mutex
	byID map[string]*userdomain.User
}

func (r *memUserRepo) find(pred func(*userdomain.User) bool) *userdomain.User {
	for _, u := range r.byID {
		if u.DeletedAt == nil && pred(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(u *userdomain.User) bool { return u.ID == id }), nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(u *userdomain.User) bool { return u.Email == email }), nil
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(u *userdomain.User) bool { return u.Username != nil && *u.Username == username }), nil
}

func (r *memUserRepo) Create(_ context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Email == u.Email {
			return apperr.New(apperr.KindConflict, "User with this email already exists")
		}
	}
	cp := *u
	r.byID[u.ID] = &cp
	return nil
}

func (r *memUserRepo) update(id string, fn func(u *userdomain.User)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		fn(u)
	}
}

func (r *memUserRepo) RecordLogin(_ context.Context, id string, at time.Time, ip string) error {
	r.update(id, func(u *userdomain.User) { u.LastLoginAt, u.LastLoginIP = &at, ip })
	return nil
}

func (r *memUserRepo) RecordFailedLogin(_ context.Context, id string, threshold int, lockUntil, _ time.Time) (userrepo.FailedLogin, error) {
	var out userrepo.FailedLogin
	r.update(id, func(u *userdomain.User) {
		u.FailedLoginAttempts++
		if u.FailedLoginAttempts >= threshold {
			lu := lockUntil
			u.LockedUntil = &lu
		}
		out = userrepo.FailedLogin{Attempts: u.FailedLoginAttempts, LockedUntil: u.LockedUntil}
	})
	return out, nil
}

func (r *memUserRepo) ResetFailedLogins(_ context.Context, id string, _ time.Time) error {
	r.update(id, func(u *userdomain.User) { u.FailedLoginAttempts, u.LockedUntil = 0, nil })
	return nil
}

func (r *memUserRepo) UpdatePassword(_ context.Context, id, hash string, at time.Time) error {
	r.update(id, func(u *userdomain.User) { u.PasswordHash, u.PasswordChangedAt = hash, &at })
	return nil
}

func (r *memUserRepo) MarkEmailVerified(_ context.Context, email string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email && u.DeletedAt == nil {
			u.IsEmailVerified, u.EmailVerifiedAt = true, &at
			return true, nil
		}
	}
	return false, nil
}

func (r *memUserRepo) SetPendingTwoFactorSecret(_ context.Context, id, secret string, _ time.Time) error {
	r.update(id, func(u *userdomain.User) { u.TwoFactorPendingSecret = secret })
	return nil
}

func (r *memUserRepo) ConfirmTwoFactor(_ context.Context, id string, _ time.Time) (bool, error) {
	ok := false
	r.update(id, func(u *userdomain.User) {
		if u.TwoFactorPendingSecret != "" {
			u.TwoFactorSecret, u.TwoFactorPendingSecret, u.TwoFactorEnabled = u.TwoFactorPendingSecret, "", true
			ok = true
		}
	})
	return ok, nil
}

func (r *memUserRepo) DisableTwoFactor(_ context.Context, id string, _ time.Time) error {
	r.update(id, func(u *userdomain.User) {
		u.TwoFactorEnabled, u.TwoFactorSecret, u.TwoFactorPendingSecret = false, "", ""
	})
	return nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	tokens   map[string]*sessiondomain.RefreshToken
	sessions map[string]*sessiondomain.Session
}

func (r *memSessionRepo) Create(_ context.Context, t *sessiondomain.RefreshToken, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tc, sc := *t, *s
	r.tokens[t.TokenHash] = &tc
	r.sessions[s.ID] = &sc
	return nil
}

func (r *memSessionRepo) GetRefreshToken(_ context.Context, hash string) (*sessiondomain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[hash]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *memSessionRepo) Rotate(_ context.Context, oldHash string, next *sessiondomain.RefreshToken, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.tokens[oldHash]
	if !ok || old.IsRevoked {
		return false, nil
	}
	old.IsRevoked, old.RevokedAt = true, &at
	nc := *next
	r.tokens[next.TokenHash] = &nc
	for _, s := range r.sessions {
		if s.RefreshTokenHash == oldHash && s.IsActive {
			s.RefreshTokenHash, s.ExpiresAt = next.TokenHash, next.ExpiresAt
		}
	}
	return true, nil
}

func (r *memSessionRepo) RevokeByToken(_ context.Context, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[hash]; ok && !t.IsRevoked {
		t.IsRevoked, t.RevokedAt = true, &at
	}
	for _, s := range r.sessions {
		if s.RefreshTokenHash == hash {
			s.IsActive = false
		}
	}
	return nil
}

func (r *memSessionRepo) RevokeAllForUser(_ context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.UserID == userID && !t.IsRevoked {
			t.IsRevoked, t.RevokedAt = true, &at
		}
	}
	for _, s := range r.sessions {
		if s.UserID == userID {
			s.IsActive = false
		}
	}
	return nil
}

func (r *memSessionRepo) RevokeSession(_ context.Context, userID, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.UserID != userID || !s.IsActive {
		return false, nil
	}
	s.IsActive = false
	if t, ok := r.tokens[s.RefreshTokenHash]; ok {
		t.IsRevoked, t.RevokedAt = true, &at
	}
	return true, nil
}

func (r *memSessionRepo) ListActive(_ context.Context, userID string, now time.Time) ([]*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*sessiondomain.Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsLive(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type memTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*verificationdomain.Token
}

func (r *memTokenRepo) Create(_ context.Context, t *verificationdomain.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.tokens[string(t.Purpose)+":"+t.TokenHash] = &cp
	return nil
}

func (r *memTokenRepo) Get(_ context.Context, purpose verificationdomain.Purpose, hash string) (*verificationdomain.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[string(purpose)+":"+hash]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *memTokenRepo) Consume(_ context.Context, t *verificationdomain.Token) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := string(t.Purpose) + ":" + t.TokenHash
	stored, ok := r.tokens[k]
	if !ok {
		return false, nil
	}
	if t.Purpose == verificationdomain.PurposeEmailVerification {
		delete(r.tokens, k)
		return true, nil
	}
	if stored.Used {
		return false, nil
	}
	stored.Used = true
	return true, nil
}

type memRoleRepo struct {
	mu    sync.Mutex
	roles map[string]*rbacdomain.Role
	users map[string][]string
}

func (r *memRoleRepo) AssignRoleByName(_ context.Context, userID, roleName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[roleName]; !ok {
		return apperr.New(apperr.KindNotFound, "Role not found")
	}
	r.users[userID] = append(r.users[userID], roleName)
	return nil
}

func (r *memRoleRepo) RolesForUser(_ context.Context, userID string) ([]*rbacdomain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*rbacdomain.Role
	for _, name := range r.users[userID] {
		out = append(out, r.roles[name])
	}
	return out, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notificationdomain.Request
}

func (n *recordingNotifier) Send(_ context.Context, req notificationdomain.Request) (*notificationdomain.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, req)
	return &notificationdomain.Notification{ID: "n", Status: notificationdomain.StatusPending}, nil
}

func (n *recordingNotifier) byTemplate(name string) []notificationdomain.Request {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notificationdomain.Request
	for _, r := range n.sent {
		if r.Template == name {
			out = append(out, r)
		}
	}
	return out
}

type auditEntry struct {
	userID, action, resourceID string
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *recordingAudit) LogEvent(_ context.Context, userID, action, _, resourceID string, _ map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{userID, action, resourceID})
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.action)
	}
	return out
}

type harness struct {
	svc      *AuthService
	clock    *clock
	users    *memUserRepo
	sessions *memSessionRepo
	tokens   *memTokenRepo
	roles    *memRoleRepo
	notifier *recordingNotifier
	audit    *recordingAudit
	totp     *mfa.TOTP
	issuer   *security.TokenProvider
	redis    *miniredis.Miniredis
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{
		clock:    c,
		users:    &memUserRepo{byID: map[string]*userdomain.User{}},
		sessions: &memSessionRepo{tokens: map[string]*sessiondomain.RefreshToken{}, sessions: map[string]*sessiondomain.Session{}},
		tokens:   &memTokenRepo{tokens: map[string]*verificationdomain.Token{}},
		roles: &memRoleRepo{
			roles: map[string]*rbacdomain.Role{
				rbacdomain.RoleUser: {Name: rbacdomain.RoleUser, Permissions: []rbacdomain.Permission{
					{Name: "files:read"}, {Name: "files:create"},
				}},
			},
			users: map[string][]string{},
		},
		notifier: &recordingNotifier{},
		audit:    &recordingAudit{},
		totp:     mfa.NewTOTP("EnterpriseAPI", c.Now),
		issuer:   security.NewTestTokenProvider(c.Now),
		redis:    mr,
	}
	h.svc = NewAuthService(Deps{
		Users:      h.users,
		Sessions:   h.sessions,
		Tokens:     h.tokens,
		Roles:      h.roles,
		Challenges: mfarepo.NewRedisRepository(rdb),
		Hasher:     security.NewHasher(4),
		Issuer:     h.issuer,
		TOTP:       h.totp,
		Notifier:   h.notifier,
		Audit:      h.audit,
		Client:     func(context.Context) (string, string) { return "203.0.113.7", "test-agent" },
	}, Options{AppURL: "https://app.example.com", Now: c.Now})
	return h
}

const (
	aliceEmail    = "alice@example.com"
	alicePassword = "Secret123!"
)

func (h *harness) register(t *testing.T) *userdomain.User {
	t.Helper()
	u, err := h.svc.Register(context.Background(), RegisterInput{
		Email: aliceEmail, Password: alicePassword, Username: "alice", FirstName: "Alice",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return u
}

func (h *harness) login(t *testing.T) *LoginResult {
	t.Helper()
	res, err := h.svc.Authenticate(context.Background(), aliceEmail, alicePassword)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if res.TokenPair == nil {
		t.Fatal("Authenticate returned no tokens")
	}
	return res
}

// rawToken extracts the token query parameter from a link in a queued notification.
func rawToken(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link %q: %v", link, err)
	}
	return u.Query().Get("token")
}
