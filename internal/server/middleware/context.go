package middleware

import "context"

type contextKey struct{ name string }

var (
	identityKey = contextKey{"identity"}
	clientKey   = contextKey{"client"}
)

// Identity is the authenticated caller decoded from the access token.
type Identity struct {
	UserID string
	Email  string
	Roles  []string
}

// Client describes where a request came from. Stored on sessions and audit entries.
type Client struct {
	IP        string
	UserAgent string
}

// WithIdentity returns a context carrying id. Handlers and services read it via GetIdentity or GetUserID.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity returns the identity from context and true if set.
func GetIdentity(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(identityKey).(Identity)
	return v, ok
}

// GetUserID returns the user_id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	id, ok := GetIdentity(ctx)
	if !ok || id.UserID == "" {
		return "", false
	}
	return id.UserID, true
}

// WithClient returns a context carrying the caller's address and user agent.
func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey, c)
}

// GetClient returns the request client from context, or a zero Client with IP "unknown".
func GetClient(ctx context.Context) Client {
	if c, ok := ctx.Value(clientKey).(Client); ok {
		return c
	}
	return Client{IP: "unknown"}
}
