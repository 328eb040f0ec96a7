package model

import "time"

// Department groups users and assignments.
type Department struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"uniqueIndex;size:150;not null"`
	CreatedAt time.Time `json:"createdAt"`
}

// Subject is a course taught in one or more departments.
type Subject struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"uniqueIndex;size:150;not null"`
	Departments []Department `json:"departments,omitempty" gorm:"many2many:subject_departments"`
	CreatedAt   time.Time    `json:"createdAt"`
}
