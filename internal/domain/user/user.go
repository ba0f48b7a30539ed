package user

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

type User struct {
	ID             string
	Username       string
	PasswordBcrypt string
	Email          string
	TelegramChatID *int64
	Role           Role
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastLoginAt    *time.Time
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
