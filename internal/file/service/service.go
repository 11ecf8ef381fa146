// Package service validates uploads, stores them and records their metadata.
package service

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"enterprise-api/backend/internal/apperr"
	"enterprise-api/backend/internal/file/domain"
	"enterprise-api/backend/internal/file/repository"
	"enterprise-api/backend/internal/file/storage"
	"enterprise-api/backend/internal/logging"
	"enterprise-api/backend/internal/metrics"
)

var (
	ErrFileNotFound = apperr.New(apperr.KindNotFound, "File not found")
	ErrFileRequired = apperr.New(apperr.KindBadRequest, "File is required")
)

// Options bounds what Upload accepts.
type Options struct {
	MaxSize      int64
	AllowedTypes []string
}

// Upload is one file received from a client.
type Upload struct {
	Name     string
	MimeType string
	Size     int64
	Body     io.Reader
}

// Service manages uploaded files.
type Service struct {
	repo    repository.Repository
	store   storage.Storage
	metrics *metrics.Metrics
	log     logrus.FieldLogger
	opts    Options
	allowed map[string]struct{}
	now     func() time.Time
}

// NewService returns a file service. m may be nil.
func NewService(repo repository.Repository, store storage.Storage, m *metrics.Metrics, log logrus.FieldLogger, opts Options) *Service {
	allowed := make(map[string]struct{}, len(opts.AllowedTypes))
	for _, t := range opts.AllowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return &Service{
		repo:    repo,
		store:   store,
		metrics: m,
		log:     logging.OrDiscard(log),
		opts:    opts,
		allowed: allowed,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Upload checks size and MIME type, stores the object under a generated name and records it for userID.
func (s *Service) Upload(ctx context.Context, userID string, in Upload) (*domain.File, error) {
	if in.Body == nil || in.Size <= 0 {
		return nil, ErrFileRequired
	}
	if s.opts.MaxSize > 0 && in.Size > s.opts.MaxSize {
		return nil, apperr.Newf(apperr.KindBadRequest, "File size exceeds the limit of %d bytes", s.opts.MaxSize)
	}
	mimeType := strings.ToLower(strings.TrimSpace(in.MimeType))
	if _, ok := s.allowed[mimeType]; !ok {
		return nil, apperr.Newf(apperr.KindBadRequest, "File type %s is not allowed", in.MimeType)
	}

	id := uuid.New().String()
	filename := id + strings.ToLower(filepath.Ext(in.Name))
	path, err := s.store.Put(ctx, filename, in.Body, in.Size, mimeType)
	if err != nil {
		return nil, err
	}
	f := &domain.File{
		ID:           id,
		UserID:       userID,
		OriginalName: filepath.Base(in.Name),
		Filename:     filename,
		MimeType:     mimeType,
		Size:         in.Size,
		Path:         path,
		StorageType:  s.store.Type(),
		CreatedAt:    s.now(),
	}
	if err := s.repo.Create(ctx, f); err != nil {
		if derr := s.store.Delete(ctx, path); derr != nil {
			s.log.WithError(derr).WithField("path", path).Warn("files: orphaned object not removed")
		}
		return nil, err
	}
	s.metrics.FileUploaded(mimeType)
	return f, nil
}

// List returns live files newest first, for one user when userID is set.
func (s *Service) List(ctx context.Context, userID string) ([]*domain.File, error) {
	files, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []*domain.File{}
	}
	return files, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.File, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrFileNotFound
	}
	return f, nil
}

// Delete soft-deletes the metadata. The stored object is kept.
func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.SoftDelete(ctx, id, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrFileNotFound
	}
	return nil
}
