// Package service implements user administration: create, list, get, update and soft delete.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"enterprise-api/backend/internal/apperr"
	"enterprise-api/backend/internal/logging"
	"enterprise-api/backend/internal/platform/validate"
	rbacdomain "enterprise-api/backend/internal/rbac/domain"
	"enterprise-api/backend/internal/security"
	"enterprise-api/backend/internal/user/domain"
	"enterprise-api/backend/internal/user/repository"
)

// Pagination bounds for List.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

var (
	ErrUserNotFound  = apperr.New(apperr.KindNotFound, "User not found")
	ErrEmailTaken    = apperr.New(apperr.KindConflict, "User with this email already exists")
	ErrUsernameTaken = apperr.New(apperr.KindConflict, "Username already taken")
	ErrInvalidPage   = apperr.New(apperr.KindBadRequest, "page must be at least 1")
	ErrInvalidLimit  = apperr.Newf(apperr.KindBadRequest, "limit must be between 1 and %d", MaxLimit)
)

// RoleAssigner grants a role by name. Implemented by the role service.
type RoleAssigner interface {
	AssignRoleByName(ctx context.Context, userID, roleName string) error
}

// SessionRevoker signs a user out everywhere. Implemented by the session repository.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) error
}

// CreateInput is the payload for Create. Role defaults to "user".
type CreateInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
}

// UpdateInput is the payload for Update. Nil fields are left unchanged.
type UpdateInput struct {
	Email     *string `json:"email"`
	Username  *string `json:"username"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Avatar    *string `json:"avatar"`
	Phone     *string `json:"phone"`
	IsActive  *bool   `json:"isActive"`
}

// ListQuery selects a page of users. Page is 1-based.
type ListQuery struct {
	Page   int
	Limit  int
	Search string
}

// Meta describes a page within the full result set.
type Meta struct {
	Total           int  `json:"total"`
	Page            int  `json:"page"`
	Limit           int  `json:"limit"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// NewMeta computes page metadata for total items.
func NewMeta(total, page, limit int) Meta {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Meta{
		Total:           total,
		Page:            page,
		Limit:           limit,
		TotalPages:      pages,
		HasNextPage:     page < pages,
		HasPreviousPage: page > 1,
	}
}

// Page is one page of users.
type Page struct {
	Data []domain.Profile `json:"data"`
	Meta Meta             `json:"meta"`
}

// Service manages user accounts.
type Service struct {
	repo     repository.Repository
	roles    RoleAssigner
	sessions SessionRevoker
	hasher   *security.Hasher
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewService returns a user service. roles and sessions may be nil.
func NewService(repo repository.Repository, roles RoleAssigner, sessions SessionRevoker, hasher *security.Hasher, log logrus.FieldLogger) *Service {
	return &Service{
		repo:     repo,
		roles:    roles,
		sessions: sessions,
		hasher:   hasher,
		log:      logging.OrDiscard(log),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create adds a user with a hashed password and assigns the requested role.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Profile, error) {
	email := validate.NormalizeEmail(in.Email)
	if err := validate.Email(email); err != nil {
		return nil, err
	}
	if err := validate.Password(in.Password); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(in.Username)
	if err := validate.Username(username); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, "", email, username); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	u := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if username != "" {
		u.Username = &username
	}
	if err := u.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, err.Error(), err)
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	role := strings.TrimSpace(in.Role)
	if role == "" {
		role = rbacdomain.RoleUser
	}
	if s.roles != nil {
		if err := s.roles.AssignRoleByName(ctx, u.ID, role); err != nil {
			return nil, err
		}
	}
	p := u.Profile()
	return &p, nil
}

// List returns one page of users, newest first.
func (s *Service) List(ctx context.Context, q ListQuery) (*Page, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Page < 1 {
		return nil, ErrInvalidPage
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		return nil, ErrInvalidLimit
	}
	users, total, err := s.repo.List(ctx, repository.ListParams{
		Offset: (q.Page - 1) * q.Limit,
		Limit:  q.Limit,
		Search: q.Search,
	})
	if err != nil {
		return nil, err
	}
	out := &Page{Data: make([]domain.Profile, 0, len(users)), Meta: NewMeta(total, q.Page, q.Limit)}
	for _, u := range users {
		out.Data = append(out.Data, u.Profile())
	}
	return out, nil
}

// Get returns the user's profile or ErrUserNotFound.
func (s *Service) Get(ctx context.Context, id string) (*domain.Profile, error) {
	u, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	p := u.Profile()
	return &p, nil
}

// Update applies the non-nil fields of in. Email and username stay unique among live users.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*domain.Profile, error) {
	u, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	email, username := "", ""
	if in.Email != nil {
		e := validate.NormalizeEmail(*in.Email)
		if err := validate.Email(e); err != nil {
			return nil, err
		}
		if e != u.Email {
			email = e
		}
		u.Email = e
	}
	if in.Username != nil {
		n := strings.TrimSpace(*in.Username)
		if err := validate.Username(n); err != nil {
			return nil, err
		}
		if n == "" {
			u.Username = nil
		} else {
			if u.Username == nil || *u.Username != n {
				username = n
			}
			u.Username = &n
		}
	}
	if err := s.checkUnique(ctx, u.ID, email, username); err != nil {
		return nil, err
	}
	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Avatar != nil {
		u.Avatar = strings.TrimSpace(*in.Avatar)
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	u.UpdatedAt = s.now()
	if err := s.repo.UpdateProfile(ctx, u); err != nil {
		return nil, err
	}
	if in.IsActive != nil && !*in.IsActive {
		s.revokeSessions(ctx, u.ID)
	}
	p := u.Profile()
	return &p, nil
}

// Delete soft-deletes the user and revokes all of their sessions.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.mustGet(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id, s.now()); err != nil {
		return err
	}
	s.revokeSessions(ctx, id)
	return nil
}

func (s *Service) revokeSessions(ctx context.Context, userID string) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.RevokeAllForUser(ctx, userID, s.now()); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("users: failed to revoke sessions")
	}
}

func (s *Service) mustGet(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// checkUnique reports a conflict when email or username (when non-empty) belongs to a user other than selfID.
func (s *Service) checkUnique(ctx context.Context, selfID, email, username string) error {
	if email != "" {
		other, err := s.repo.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if other != nil && other.ID != selfID {
			return ErrEmailTaken
		}
	}
	if username != "" {
		other, err := s.repo.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if other != nil && other.ID != selfID {
			return ErrUsernameTaken
		}
	}
	return nil
}
