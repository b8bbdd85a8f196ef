package models

import (
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleClient  Role = "client"
	RoleCreator Role = "creator"
)

// User matches the users table created by the migrations.
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string     `gorm:"type:text;not null;unique" json:"email"`
	Name         string     `gorm:"type:text" json:"name,omitempty"`
	Role         Role       `gorm:"type:text;not null" json:"role"`
	PasswordHash string     `gorm:"type:text;not null" json:"-"`
	Password     string     `gorm:"-" json:"-"`
	CreatedAt    time.Time  `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	LastLoginAt  *time.Time `gorm:"type:timestamptz" json:"last_login_at,omitempty"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}

func (u *User) Prepare() {
	u.Email = html.EscapeString(strings.ToLower(strings.TrimSpace(u.Email)))
	u.Name = strings.TrimSpace(u.Name)
	if u.Role == "" {
		u.Role = RoleClient
	}
}

// Sender maps the account role to the negotiation feed sender.
func (u *User) Sender() Sender {
	if u.Role == RoleCreator {
		return SenderCreator
	}
	return SenderClient
}
