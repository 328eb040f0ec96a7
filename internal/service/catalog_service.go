package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"coursehub/internal/cache"
	apperrors "coursehub/internal/errors"
	"coursehub/internal/model"
	"coursehub/internal/repository"
)

const catalogCacheTTL = 10 * time.Minute

// CatalogService exposes departments and subjects.
type CatalogService interface {
	ListDepartments(ctx context.Context) ([]model.Department, error)
	ListSubjects(ctx context.Context, departmentID uint) ([]model.Subject, error)
	CreateSubject(ctx context.Context, name string, departmentIDs []uint) (*model.Subject, error)
}

type catalogService struct {
	departments repository.DepartmentRepository
	subjects    repository.SubjectRepository
	cache       *cache.Client
}

// NewCatalogService builds a CatalogService with repositories and cache.
func NewCatalogService(departments repository.DepartmentRepository, subjects repository.SubjectRepository, cache *cache.Client) CatalogService {
	return &catalogService{departments: departments, subjects: subjects, cache: cache}
}

const departmentsCacheKey = "departments"

func subjectsCacheKey(departmentID uint) string {
	return fmt.Sprintf("subjects:%d", departmentID)
}

func (s *catalogService) ListDepartments(ctx context.Context) ([]model.Department, error) {
	var cached []model.Department
	if s.cache.GetJSON(ctx, departmentsCacheKey, &cached) {
		return cached, nil
	}

	departments, err := s.departments.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	_ = s.cache.SetJSON(ctx, departmentsCacheKey, departments, catalogCacheTTL)
	return departments, nil
}

func (s *catalogService) ListSubjects(ctx context.Context, departmentID uint) ([]model.Subject, error) {
	var cached []model.Subject
	if s.cache.GetJSON(ctx, subjectsCacheKey(departmentID), &cached) {
		return cached, nil
	}

	subjects, err := s.subjects.List(ctx, departmentID)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	_ = s.cache.SetJSON(ctx, subjectsCacheKey(departmentID), subjects, catalogCacheTTL)
	return subjects, nil
}

func (s *catalogService) CreateSubject(ctx context.Context, name string, departmentIDs []uint) (*model.Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: subject name is required", apperrors.ErrValidation)
	}

	subject := &model.Subject{Name: name}
	if err := s.subjects.Create(ctx, subject, departmentIDs); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("%w: unknown department", apperrors.ErrValidation)
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, fmt.Errorf("%w: subject %q already exists", apperrors.ErrValidation, name)
		}
		return nil, fmt.Errorf("create subject: %w", err)
	}

	_ = s.cache.Delete(ctx, subjectsCacheKey(0))
	for _, id := range departmentIDs {
		_ = s.cache.Delete(ctx, subjectsCacheKey(id))
	}
	return subject, nil
}
