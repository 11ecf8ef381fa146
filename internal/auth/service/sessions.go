package service

import (
	"context"

	"enterprise-api/backend/internal/audit"
	sessiondomain "enterprise-api/backend/internal/session/domain"
)

// GetUserSessions returns the user's active, unexpired sessions, newest first.
func (s *AuthService) GetUserSessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error) {
	list, err := s.sessions.ListActive(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*sessiondomain.Session{}
	}
	return list, nil
}

// RevokeSession deactivates one of the user's sessions and revokes its refresh token.
func (s *AuthService) RevokeSession(ctx context.Context, userID, sessionID string) error {
	ok, err := s.sessions.RevokeSession(ctx, userID, sessionID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	s.logEvent(ctx, userID, audit.ActionSessionRevoked, sessionID, nil)
	return nil
}

// RevokeAllSessions signs the user out everywhere.
func (s *AuthService) RevokeAllSessions(ctx context.Context, userID string) error {
	if err := s.sessions.RevokeAllForUser(ctx, userID, s.now()); err != nil {
		return err
	}
	s.logEvent(ctx, userID, audit.ActionSessionsRevoked, "", nil)
	return nil
}
