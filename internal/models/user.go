package models

import (
	"time"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleAdmin   UserRole = "admin"
)

// User mirrors the identity provider record. Credentials never live here.
type User struct {
	ID       string   `json:"id" gorm:"primaryKey;size:255"`
	FullName string   `json:"full_name" gorm:"not null;size:100"`
	Email    string   `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Role     UserRole `json:"role" gorm:"-"`

	// Student profile
	StudentID  *string `json:"student_id,omitempty" gorm:"uniqueIndex;size:50"`
	Department string  `json:"department,omitempty" gorm:"size:100"`
	Semester   int     `json:"semester,omitempty"`

	AvatarURL *string `json:"avatar_url" gorm:"size:500"`
	IsActive  bool    `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
