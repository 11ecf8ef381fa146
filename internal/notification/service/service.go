package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"enterprise-api/backend/internal/apperr"
	"enterprise-api/backend/internal/logging"
	"enterprise-api/backend/internal/notification/domain"
	"enterprise-api/backend/internal/notification/queue"
	"enterprise-api/backend/internal/notification/render"
	"enterprise-api/backend/internal/notification/repository"
	userdomain "enterprise-api/backend/internal/user/domain"
)

// ErrUserNotFound is returned when an email is addressed to an unknown user.
var ErrUserNotFound = apperr.New(apperr.KindNotFound, "User not found")

// UserLookup is the minimal user repository needed to address email by user id.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// Service creates notification records and hands them to the delivery queue.
type Service struct {
	repo     repository.Repository
	queue    queue.Queue
	renderer *render.Renderer
	users    UserLookup
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewService returns a notification service.
func NewService(repo repository.Repository, q queue.Queue, renderer *render.Renderer, users UserLookup, log logrus.FieldLogger) *Service {
	return &Service{repo: repo, queue: q, renderer: renderer, users: users, log: logging.OrDiscard(log), now: time.Now}
}

// Send renders the request, stores a pending record and enqueues its delivery. Delivery happens in the worker;
// the returned record is still pending.
func (s *Service) Send(ctx context.Context, req domain.Request) (*domain.Notification, error) {
	if err := req.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, err.Error(), err)
	}
	to, err := s.recipient(ctx, req)
	if err != nil {
		return nil, err
	}
	subject, message, err := s.content(req)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	n := &domain.Notification{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Type:      req.Type,
		Channel:   to,
		Subject:   subject,
		Message:   message,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(ctx, queue.Job{NotificationID: n.ID, EnqueuedAt: now}); err != nil {
		s.log.WithError(err).WithField("notification_id", n.ID).Error("notification: enqueue failed")
		n.Status = domain.StatusFailed
		n.LastError = "enqueue failed: " + err.Error()
		if uerr := s.repo.UpdateStatus(ctx, n.ID, domain.StatusUpdate{
			Status: n.Status, LastError: n.LastError, At: now,
		}); uerr != nil {
			s.log.WithError(uerr).WithField("notification_id", n.ID).Error("notification: status update failed")
		}
		return n, apperr.Wrap(apperr.KindInternal, "Failed to queue notification", err)
	}
	s.log.WithFields(logrus.Fields{"notification_id": n.ID, "type": n.Type}).Debug("notification: queued")
	return n, nil
}

// SendEmail queues a raw email to the user's address.
func (s *Service) SendEmail(ctx context.Context, userID, subject, message string) (*domain.Notification, error) {
	return s.Send(ctx, domain.Request{Type: domain.TypeEmail, UserID: userID, Subject: subject, Message: message})
}

// SendSMS queues a text message. When template is set, message is ignored and the template is rendered
// with data.
func (s *Service) SendSMS(ctx context.Context, userID, phone, message, template string, data map[string]string) (*domain.Notification, error) {
	return s.Send(ctx, domain.Request{
		Type: domain.TypeSMS, UserID: userID, To: phone, Message: message, Template: template, Data: data,
	})
}

// List returns notifications newest first, optionally for one user.
func (s *Service) List(ctx context.Context, userID string) ([]*domain.Notification, error) {
	list, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*domain.Notification{}
	}
	return list, nil
}

func (s *Service) recipient(ctx context.Context, req domain.Request) (string, error) {
	if to := strings.TrimSpace(req.To); to != "" {
		return to, nil
	}
	u, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrUserNotFound
	}
	return u.Email, nil
}

func (s *Service) content(req domain.Request) (subject, message string, err error) {
	if req.Template == "" {
		return strings.TrimSpace(req.Subject), req.Message, nil
	}
	switch req.Type {
	case domain.TypeEmail:
		subject, message, err = s.renderer.Email(req.Template, req.Data)
		if req.Subject != "" {
			subject = req.Subject
		}
	default:
		message, err = s.renderer.SMS(req.Template, req.Data)
	}
	if err != nil {
		return "", "", apperr.Wrap(apperr.KindBadRequest, "Unknown notification template", err)
	}
	return subject, message, nil
}
