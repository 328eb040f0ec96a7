package repository

import (
	"context"

	"gorm.io/gorm"

	"coursehub/internal/model"
)

// DepartmentRepository defines department persistence operations.
type DepartmentRepository interface {
	List(ctx context.Context) ([]model.Department, error)
	FindByID(ctx context.Context, id uint) (*model.Department, error)
	FirstOrCreate(ctx context.Context, name string) (*model.Department, error)
}

type departmentRepository struct {
	db *gorm.DB
}

// NewDepartmentRepository creates a new department repository.
func NewDepartmentRepository(db *gorm.DB) DepartmentRepository {
	return &departmentRepository{db: db}
}

// List lists all departments ordered by name.
func (r *departmentRepository) List(ctx context.Context) ([]model.Department, error) {
	var departments []model.Department
	if err := r.db.WithContext(ctx).Order("name").Find(&departments).Error; err != nil {
		return nil, err
	}
	return departments, nil
}

// FindByID finds a department by ID.
func (r *departmentRepository) FindByID(ctx context.Context, id uint) (*model.Department, error) {
	var department model.Department
	if err := r.db.WithContext(ctx).First(&department, id).Error; err != nil {
		return nil, err
	}
	return &department, nil
}

// FirstOrCreate returns the department called name, creating it if needed.
func (r *departmentRepository) FirstOrCreate(ctx context.Context, name string) (*model.Department, error) {
	department := model.Department{Name: name}
	if err := r.db.WithContext(ctx).Where("name = ?", name).FirstOrCreate(&department).Error; err != nil {
		return nil, err
	}
	return &department, nil
}

// SubjectRepository defines subject persistence operations.
type SubjectRepository interface {
	// List lists subjects, restricted to departmentID unless it is zero.
	List(ctx context.Context, departmentID uint) ([]model.Subject, error)
	FindByID(ctx context.Context, id uint) (*model.Subject, error)
	FindByName(ctx context.Context, name string) (*model.Subject, error)
	Create(ctx context.Context, subject *model.Subject, departmentIDs []uint) error
}

type subjectRepository struct {
	db *gorm.DB
}

// NewSubjectRepository creates a new subject repository.
func NewSubjectRepository(db *gorm.DB) SubjectRepository {
	return &subjectRepository{db: db}
}

func (r *subjectRepository) List(ctx context.Context, departmentID uint) ([]model.Subject, error) {
	var subjects []model.Subject
	q := r.db.WithContext(ctx).Preload("Departments").Order("subjects.name")
	if departmentID != 0 {
		q = q.Joins("JOIN subject_departments sd ON sd.subject_id = subjects.id").
			Where("sd.department_id = ?", departmentID)
	}
	if err := q.Find(&subjects).Error; err != nil {
		return nil, err
	}
	return subjects, nil
}

func (r *subjectRepository) FindByID(ctx context.Context, id uint) (*model.Subject, error) {
	var subject model.Subject
	if err := r.db.WithContext(ctx).Preload("Departments").First(&subject, id).Error; err != nil {
		return nil, err
	}
	return &subject, nil
}

func (r *subjectRepository) FindByName(ctx context.Context, name string) (*model.Subject, error) {
	var subject model.Subject
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&subject).Error; err != nil {
		return nil, err
	}
	return &subject, nil
}

// Create stores subject and links it to the given departments. Unknown
// department ids yield gorm.ErrRecordNotFound.
func (r *subjectRepository) Create(ctx context.Context, subject *model.Subject, departmentIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var departments []model.Department
		if len(departmentIDs) > 0 {
			if err := tx.Where("id IN ?", departmentIDs).Find(&departments).Error; err != nil {
				return err
			}
			if len(departments) != len(departmentIDs) {
				return gorm.ErrRecordNotFound
			}
		}
		subject.Departments = departments
		return tx.Create(subject).Error
	})
}
