package models

import (
	"fmt"
	"strings"
	"time"
)

type User struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	Roles       []string   `json:"roles"`
	IsActive    bool       `json:"is_active"`
	DeletedAt   *time.Time `json:"deleted_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (u *User) Label() string {
	if u.DisplayName == "" {
		return fmt.Sprintf("[%s]", u.ID)
	}
	return fmt.Sprintf("%s [%s]", u.DisplayName, u.ID)
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}
