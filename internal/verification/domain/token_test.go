package domain

import (
	"testing"
	"time"
)

func TestToken_Redeemable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tok := &Token{Purpose: PurposePasswordReset, ExpiresAt: now.Add(time.Hour)}
	if !tok.Redeemable(now) {
		t.Error("fresh token should be redeemable")
	}
	if tok.Redeemable(now.Add(time.Hour)) || !tok.Expired(now.Add(time.Hour)) {
		t.Error("token should expire at ExpiresAt")
	}
	tok.Used = true
	if tok.Redeemable(now) {
		t.Error("used token should not be redeemable")
	}
}
