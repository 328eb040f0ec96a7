package model

import (
	"time"

	"gorm.io/gorm"
)

// Assignment is a piece of coursework students can comment on and team up for.
type Assignment struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Title        string         `json:"title" gorm:"size:255;not null"`
	Description  string         `json:"description" gorm:"type:text"`
	SubjectID    uint           `json:"subjectId" gorm:"not null;index"`
	DepartmentID uint           `json:"departmentId" gorm:"not null;index"`
	DueDate      *time.Time     `json:"dueDate,omitempty"`
	PDFKey       string         `json:"pdfUrl,omitempty" gorm:"size:512"`
	CreatedBy    uint           `json:"createdBy" gorm:"not null"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`

	Subject *Subject `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
}

// Comment is a remark left by a user on an assignment.
type Comment struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	AssignmentID uint      `json:"assignmentId" gorm:"not null;index"`
	AuthorID     uint      `json:"authorId" gorm:"not null;index"`
	Content      string    `json:"content" gorm:"type:text;not null"`
	CreatedAt    time.Time `json:"createdAt"`

	Author *User `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
}
