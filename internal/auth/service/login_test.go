package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"enterprise-api/backend/internal/apperr"
	"enterprise-api/backend/internal/audit"
	"enterprise-api/backend/internal/policy/engine"
	userdomain "enterprise-api/backend/internal/user/domain"
)

func TestValidateUser_LockoutAndRecovery(t *testing.T) {
	h := newHarness(t)
	h.register(t)
	ctx := context.Background()

	if _, err := h.svc.ValidateUser(ctx, aliceEmail, alicePassword); err != nil {
		t.Fatalf("correct password before any failure: %v", err)
	}
	for i := 1; i <= 5; i++ {
		_, err := h.svc.ValidateUser(ctx, aliceEmail, "Wrong123!")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("failure %d: err = %v, want ErrInvalidCredentials", i, err)
		}
	}

	_, err := h.svc.ValidateUser(ctx, aliceEmail, alicePassword)
	if !errors.Is(err, apperr.Unauthorized) || !strings.Contains(apperr.MessageOf(err), "locked until") {
		t.Fatalf("6th attempt: err = %v, want locked Unauthorized", err)
	}

	h.clock.Advance(29 * time.Minute)
	if _, err := h.svc.ValidateUser(ctx, aliceEmail, alicePassword); err == nil {
		t.Fatal("account should still be locked after 29 minutes")
	}

	h.clock.Advance(2 * time.Minute)
	u, err := h.svc.ValidateUser(ctx, aliceEmail, alicePassword)
	if err != nil {
		t.Fatalf("after 31 minutes: %v", err)
	}
	if u.FailedLoginAttempts != 0 || u.LockedUntil != nil {
		t.Errorf("lockout not reset: attempts=%d lockedUntil=%v", u.FailedLoginAttempts, u.LockedUntil)
	}
	stored, _ := h.users.GetByEmail(ctx, aliceEmail)
	if stored.FailedLoginAttempts != 0 || stored.LockedUntil != nil {
		t.Error("stored lockout state not reset")
	}

	var locked int
	for _, a := range h.audit.actions() {
		if a == audit.ActionAccountLocked {
			locked++
		}
	}
	if locked != 1 {
		t.Errorf("account_locked events = %d, want 1", locked)
	}
}

func TestValidateUser_UnknownEmailAndPasswordHashNotReturned(t *testing.T) {
	h := newHarness(t)
	h.register(t)
	if _, err := h.svc.ValidateUser(context.Background(), "nobody@example.com", alicePassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: err = %v", err)
	}
	res := h.login(t)
	if res.User == nil || res.User.Email != aliceEmail {
		t.Fatalf("login user = %+v", res.User)
	}
}

func TestAuthenticate_IssuesTokensAndSession(t *testing.T) {
	h := newHarness(t)
	u := h.register(t)
	res := h.login(t)

	claims, err := h.issuer.ValidateAccess(res.AccessToken)
	if err != nil {
		t.Fatalf("access token rejected: %v", err)
	}
	if claims.Subject != u.ID || claims.Email != aliceEmail {
		t.Errorf("claims = %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "user" {
		t.Errorf("roles = %v, want [user]", claims.Roles)
	}
	if res.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Errorf("ExpiresIn = %d", res.ExpiresIn)
	}

	sessions, err := h.svc.GetUserSessions(context.Background(), u.ID)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("sessions = %v, %v", sessions, err)
	}
	if sessions[0].IPAddress != "203.0.113.7" || sessions[0].UserAgent != "test-agent" {
		t.Errorf("session client = %q %q", sessions[0].IPAddress, sessions[0].UserAgent)
	}
	stored, _ := h.users.GetByID(context.Background(), u.ID)
	if stored.LastLoginAt == nil || stored.LastLoginIP != "203.0.113.7" {
		t.Error("last login not stamped")
	}

	h.clock.Advance(16 * time.Minute)
	if _, err := h.issuer.ValidateAccess(res.AccessToken); err == nil {
		t.Error("access token accepted after expiry")
	}
}

func TestRefresh_RotationRejectsReplay(t *testing.T) {
	h := newHarness(t)
	h.register(t)
	res := h.login(t)
	ctx := context.Background()

	next, err := h.svc.Refresh(ctx, res.RefreshToken)
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if next.RefreshToken == res.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	if _, err := h.svc.Refresh(ctx, res.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("replay: err = %v, want ErrInvalidRefreshToken", err)
	}
	if _, err := h.svc.Refresh(ctx, next.RefreshToken); err != nil {
		t.Fatalf("rotated token should work: %v", err)
	}
}

func TestRefresh_RejectsGarbageAndAccessTokens(t *testing.T) {
	h := newHarness(t)
	h.register(t)
	res := h.login(t)
	for _, tok := range []string{"", "garbage", res.AccessToken} {
		if _, err := h.svc.Refresh(context.Background(), tok); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Errorf("Refresh(%.10q) = %v, want ErrInvalidRefreshToken", tok, err)
		}
	}
}

func TestLogout_ThenRefreshFails(t *testing.T) {
	h := newHarness(t)
	u := h.register(t)
	res := h.login(t)
	ctx := context.Background()

	if err := h.svc.Logout(ctx, res.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := h.svc.Logout(ctx, res.RefreshToken); err != nil {
		t.Fatalf("second logout should be a no-op: %v", err)
	}
	if _, err := h.svc.Refresh(ctx, res.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("refresh after logout: err = %v", err)
	}
	sessions, _ := h.svc.GetUserSessions(ctx, u.ID)
	if len(sessions) != 0 {
		t.Errorf("sessions after logout = %d, want 0", len(sessions))
	}
}

type denyPolicy struct{ reason string }

func (p denyPolicy) EvaluateLogin(context.Context, *userdomain.User) (engine.LoginDecision, error) {
	return engine.LoginDecision{Reason: p.reason}, nil
}

func TestAuthenticate_PolicyDenial(t *testing.T) {
	h := newHarness(t)
	h.register(t)
	h.svc.policy = denyPolicy{reason: engine.ReasonEmailNotVerified}
	if _, err := h.svc.Authenticate(context.Background(), aliceEmail, alicePassword); !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("err = %v, want ErrEmailNotVerified", err)
	}
	h.svc.policy = denyPolicy{reason: engine.ReasonAccountInactive}
	if _, err := h.svc.Authenticate(context.Background(), aliceEmail, alicePassword); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("err = %v, want ErrAccountInactive", err)
	}
}

func TestAuthenticate_InactiveWithoutPolicy(t *testing.T) {
	h := newHarness(t)
	u := h.register(t)
	h.users.update(u.ID, func(u *userdomain.User) { u.IsActive = false })
	if _, err := h.svc.Authenticate(context.Background(), aliceEmail, alicePassword); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("err = %v, want ErrAccountInactive", err)
	}
}
