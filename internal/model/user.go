package model

import (
	"strings"
	"time"
)

// Level is the academic tier of a user and doubles as the role claim in tokens.
type Level string

const (
	LevelStudent   Level = "student"
	LevelAssistant Level = "assistant"
)

// ParseLevel normalizes a level string and reports whether it is known.
func ParseLevel(s string) (Level, bool) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case LevelStudent, LevelAssistant:
		return l, true
	}
	return "", false
}

// User represents a registered student or assistant.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	Username     string    `json:"username" gorm:"size:100;not null"`
	DepartmentID uint      `json:"departmentId" gorm:"not null;index"`
	Level        Level     `json:"level" gorm:"type:varchar(20);not null;default:'student'"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	Department *Department `json:"department,omitempty" gorm:"foreignKey:DepartmentID"`
}
