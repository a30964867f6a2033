package models

import (
	"time"
)

type User struct {
	ID           uint64    `gorm:"primarykey" json:"id"`
	Username     string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	FullName     string    `gorm:"type:varchar(255)" json:"full_name"`
	IsAdmin      bool      `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserSummary is a user without credentials.
type UserSummary struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	IsAdmin  bool   `json:"is_admin"`
}

// Summary strips the password hash from the user.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName,
		IsAdmin:  u.IsAdmin,
	}
}
