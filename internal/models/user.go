package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User is an account that can befriend other users and own conversations.
// Email is stored as typed and matched case-insensitively.
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:120;not null" json:"name"`
	Email          string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash   string    `gorm:"not null" json:"-"`
	TelegramChatID *int64    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}

// BeforeSave trims user-supplied fields on every write.
func (u *User) BeforeSave(tx *gorm.DB) (err error) {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(u.Email)
	return
}

// Summary is the public projection of a user.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}
