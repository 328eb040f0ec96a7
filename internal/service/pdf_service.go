package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "coursehub/internal/errors"
	"coursehub/internal/repository"
	"coursehub/internal/storage"
)

// PDFService stores assignment PDFs in object storage.
type PDFService interface {
	// Upload stores a PDF under subjectName and returns its public path
	// "<subject>/<file>".
	Upload(ctx context.Context, subjectName, filename string, size int64, body io.Reader) (string, error)
	// URL returns a presigned link to the PDF at subject/filename.
	URL(ctx context.Context, subject, filename string, download bool) (string, error)
}

// PDFOptions configures the PDF service.
type PDFOptions struct {
	KeyPrefix  string
	MaxBytes   int64
	PresignTTL time.Duration
}

type pdfService struct {
	store    storage.Service
	subjects repository.SubjectRepository
	opts     PDFOptions
}

// NewPDFService creates a PDF service. A nil store makes every call fail with
// ErrStorageUnavailable.
func NewPDFService(store storage.Service, subjects repository.SubjectRepository, opts PDFOptions) PDFService {
	return &pdfService{store: store, subjects: subjects, opts: opts}
}

func (s *pdfService) Upload(ctx context.Context, subjectName, filename string, size int64, body io.Reader) (string, error) {
	if s.store == nil {
		return "", apperrors.ErrStorageUnavailable
	}

	subjectName = strings.TrimSpace(subjectName)
	if subjectName == "" {
		return "", fmt.Errorf("%w: subjectName is required", apperrors.ErrValidation)
	}
	if !strings.EqualFold(path.Ext(filename), ".pdf") {
		return "", fmt.Errorf("%w: only PDF files are accepted", apperrors.ErrValidation)
	}
	if s.opts.MaxBytes > 0 && size > s.opts.MaxBytes {
		return "", fmt.Errorf("%w: file exceeds %d bytes", apperrors.ErrValidation, s.opts.MaxBytes)
	}
	if _, err := s.subjects.FindByName(ctx, subjectName); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: unknown subject %q", apperrors.ErrValidation, subjectName)
		}
		return "", fmt.Errorf("find subject: %w", err)
	}

	publicPath := slug(subjectName) + "/" + uuid.NewString()[:8] + "-" + cleanFilename(filename)
	if err := s.store.Put(ctx, s.objectKey(publicPath), "application/pdf", body); err != nil {
		return "", err
	}
	return publicPath, nil
}

func (s *pdfService) URL(ctx context.Context, subject, filename string, download bool) (string, error) {
	if s.store == nil {
		return "", apperrors.ErrStorageUnavailable
	}
	if !validSegment(subject) || !validSegment(filename) {
		return "", fmt.Errorf("%w: invalid pdf path", apperrors.ErrValidation)
	}

	disposition := "inline"
	if download {
		disposition = fmt.Sprintf("attachment; filename=%q", filename)
	}
	return s.store.PresignGet(ctx, s.objectKey(subject+"/"+filename), s.opts.PresignTTL, disposition)
}

func (s *pdfService) objectKey(publicPath string) string {
	if s.opts.KeyPrefix == "" {
		return publicPath
	}
	return s.opts.KeyPrefix + "/" + publicPath
}

// slug lowercases s and replaces every run of characters other than ASCII
// letters and digits with a single dash.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func cleanFilename(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := path.Ext(base)
	stem := slug(strings.TrimSuffix(base, ext))
	if stem == "" {
		stem = "document"
	}
	return stem + strings.ToLower(ext)
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, "/\\")
}
