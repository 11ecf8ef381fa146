package middleware

import (
	"context"
	"testing"
)

func TestWithIdentity_RoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{UserID: "user-1", Email: "a@example.com", Roles: []string{"user"}})

	id, ok := GetIdentity(ctx)
	if !ok {
		t.Fatal("GetIdentity should return true")
	}
	if id.Email != "a@example.com" || len(id.Roles) != 1 {
		t.Errorf("identity = %+v", id)
	}
	userID, ok := GetUserID(ctx)
	if !ok || userID != "user-1" {
		t.Errorf("GetUserID = %q, %v", userID, ok)
	}
}

func TestGetUserID_ReturnsFalseWhenNotSet(t *testing.T) {
	userID, ok := GetUserID(context.Background())
	if ok || userID != "" {
		t.Errorf("GetUserID = %q, %v; want empty, false", userID, ok)
	}
	if _, ok := GetUserID(WithIdentity(context.Background(), Identity{})); ok {
		t.Error("empty user id should not count as authenticated")
	}
}

func TestGetClient(t *testing.T) {
	if c := GetClient(context.Background()); c.IP != "unknown" {
		t.Errorf("default client IP = %q, want unknown", c.IP)
	}
	ctx := WithClient(context.Background(), Client{IP: "10.0.0.1", UserAgent: "curl/8"})
	if c := GetClient(ctx); c.IP != "10.0.0.1" || c.UserAgent != "curl/8" {
		t.Errorf("client = %+v", c)
	}
}
