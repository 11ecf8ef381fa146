package domain

import (
	"errors"
	"strings"
	"time"
)

// System role names. Seeded, never created or deleted through the roles API.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Role groups permissions and is assigned to users.
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	IsSystem    bool         `json:"isSystem"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Validate validates the role for persistence.
func (r *Role) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return errors.New("role name is required")
	}
	return nil
}

// Permission is a resource:action capability.
type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PermissionName returns the canonical "resource:action" name.
func PermissionName(resource, action string) string {
	return resource + ":" + action
}

// ParsePermissionName splits "resource:action". ok is false when either part is empty.
func ParsePermissionName(name string) (resource, action string, ok bool) {
	resource, action, found := strings.Cut(name, ":")
	if !found || resource == "" || action == "" {
		return "", "", false
	}
	return resource, action, true
}

// RoleNames returns the names of roles in order.
func RoleNames(roles []*Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r != nil {
			out = append(out, r.Name)
		}
	}
	return out
}
