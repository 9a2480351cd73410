package domain

import "time"

// Role enumerates admin privilege levels.
type Role string

const (
	RoleSuperAdmin Role = "SUPERADMIN"
	RoleAdmin      Role = "ADMIN"
)

// Valid reports whether the role is a known value.
func (r Role) Valid() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// Admin represents one administrative principal.
type Admin struct {
	ID           int64        `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	IsActive     bool         `json:"is_active"`
	Role         Role         `json:"role"`
	Images       []AdminImage `json:"images,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// AdminImage is one uploaded profile image owned by an admin.
type AdminImage struct {
	ID        int64     `json:"id"`
	AdminID   int64     `json:"admin_id"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}
