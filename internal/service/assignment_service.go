package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"coursehub/internal/auth"
	apperrors "coursehub/internal/errors"
	"coursehub/internal/model"
	"coursehub/internal/repository"
)

const maxCommentLength = 2000

var assistantOnly = auth.RequireLevel(model.LevelAssistant)

// CreateAssignmentInput carries the fields of a new assignment.
type CreateAssignmentInput struct {
	Title        string
	Description  string
	SubjectID    uint
	DepartmentID uint
	DueDate      *time.Time
	PDFKey       string
}

// AssignmentService handles assignments and their comments.
type AssignmentService interface {
	List(ctx context.Context, identity auth.Identity, subjectID uint) ([]model.Assignment, error)
	Create(ctx context.Context, identity auth.Identity, in CreateAssignmentInput) (*model.Assignment, error)
	Delete(ctx context.Context, identity auth.Identity, id uint) error
	AddComment(ctx context.Context, identity auth.Identity, assignmentID uint, content string) (*model.Comment, error)
	ListComments(ctx context.Context, identity auth.Identity, assignmentID uint) ([]model.Comment, error)
	DeleteComment(ctx context.Context, identity auth.Identity, commentID uint) error
}

type assignmentService struct {
	assignments repository.AssignmentRepository
	comments    repository.CommentRepository
	subjects    repository.SubjectRepository
}

// NewAssignmentService creates a new assignment service.
func NewAssignmentService(
	assignments repository.AssignmentRepository,
	comments repository.CommentRepository,
	subjects repository.SubjectRepository,
) AssignmentService {
	return &assignmentService{assignments: assignments, comments: comments, subjects: subjects}
}

// List returns the assignments of the caller's department; assistants see all.
func (s *assignmentService) List(ctx context.Context, identity auth.Identity, subjectID uint) ([]model.Assignment, error) {
	filter := repository.AssignmentFilter{SubjectID: subjectID}
	if !identity.IsAssistant() {
		filter.DepartmentID = identity.DepartmentID
	}
	assignments, err := s.assignments.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

func (s *assignmentService) Create(ctx context.Context, identity auth.Identity, in CreateAssignmentInput) (*model.Assignment, error) {
	if !auth.Authorize(identity, assistantOnly) {
		return nil, fmt.Errorf("%w: assistants only", apperrors.ErrForbidden)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	}
	if _, err := s.subjects.FindByID(ctx, in.SubjectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown subject %d", apperrors.ErrValidation, in.SubjectID)
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}

	departmentID := in.DepartmentID
	if departmentID == 0 {
		departmentID = identity.DepartmentID
	}

	assignment := &model.Assignment{
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		SubjectID:    in.SubjectID,
		DepartmentID: departmentID,
		DueDate:      in.DueDate,
		PDFKey:       in.PDFKey,
		CreatedBy:    identity.UserID,
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, fmt.Errorf("create assignment: %w", err)
	}
	return assignment, nil
}

func (s *assignmentService) Delete(ctx context.Context, identity auth.Identity, id uint) error {
	if !auth.Authorize(identity, assistantOnly) {
		return fmt.Errorf("%w: assistants only", apperrors.ErrForbidden)
	}
	if err := s.assignments.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("assignment %d: %w", id, apperrors.ErrNotFound)
		}
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

// visible loads an assignment the caller may see.
func (s *assignmentService) visible(ctx context.Context, identity auth.Identity, id uint) (*model.Assignment, error) {
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("assignment %d: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	if !auth.Authorize(identity, canSeeDepartment(assignment.DepartmentID)) {
		return nil, fmt.Errorf("%w: assignment belongs to another department", apperrors.ErrForbidden)
	}
	return assignment, nil
}

func (s *assignmentService) AddComment(ctx context.Context, identity auth.Identity, assignmentID uint, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: comment is empty", apperrors.ErrValidation)
	}
	if utf8.RuneCountInString(content) > maxCommentLength {
		return nil, fmt.Errorf("%w: comment exceeds %d characters", apperrors.ErrValidation, maxCommentLength)
	}
	if _, err := s.visible(ctx, identity, assignmentID); err != nil {
		return nil, err
	}

	comment := &model.Comment{
		AssignmentID: assignmentID,
		AuthorID:     identity.UserID,
		Content:      content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return comment, nil
}

func (s *assignmentService) ListComments(ctx context.Context, identity auth.Identity, assignmentID uint) ([]model.Comment, error) {
	if _, err := s.visible(ctx, identity, assignmentID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// DeleteComment removes a comment. Only its author or an assistant may do so.
func (s *assignmentService) DeleteComment(ctx context.Context, identity auth.Identity, commentID uint) error {
	comment, err := s.comments.FindByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("comment %d: %w", commentID, apperrors.ErrNotFound)
		}
		return fmt.Errorf("find comment: %w", err)
	}
	if comment.AuthorID != identity.UserID && !identity.IsAssistant() {
		return fmt.Errorf("%w: not the author of comment %d", apperrors.ErrForbidden, commentID)
	}
	if err := s.comments.Delete(ctx, commentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("comment %d: %w", commentID, apperrors.ErrNotFound)
		}
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}
