package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents user roles in the system
type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleEmployee   Role = "employee"
)

// UserStatus is the lifecycle state of a user account.
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserPending  UserStatus = "pending"
	UserInactive UserStatus = "inactive"
)

// Action is a gated operation kind checked by the entitlement layer.
type Action string

const (
	ActionCreateService Action = "create_service"
	ActionCreateUser    Action = "create_user"
	ActionAdminAction   Action = "admin_action"
	ActionViewReports   Action = "view_reports"
)

// User represents a user in the system
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email         string             `bson:"email" json:"email"`
	PasswordHash  string             `bson:"password_hash" json:"-"`
	Role          Role               `bson:"role" json:"role"`
	Status        UserStatus         `bson:"status" json:"status"`
	FirstName     string             `bson:"first_name" json:"first_name"`
	LastName      string             `bson:"last_name" json:"last_name"`
	LubricentroID string             `bson:"lubricentro_id,omitempty" json:"lubricentro_id,omitempty"`
	LastLogin     *time.Time         `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	if u.FirstName == "" {
		return u.LastName
	}
	return u.FirstName + " " + u.LastName
}

// IsActive reports whether the account may act.
func (u *User) IsActive() bool {
	return u.Status == UserActive
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest signs up a new lubricentro together with its owner account.
type RegisterRequest struct {
	FantasyName string `json:"fantasy_name"`
	Responsible string `json:"responsible"`
	CUIT        string `json:"cuit"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
}

// CreateUserRequest adds a user to an existing lubricentro.
type CreateUserRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      Role   `json:"role"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token        string       `json:"token"`
	RefreshToken string       `json:"refresh_token"`
	User         User         `json:"user"`
	Lubricentro  *Lubricentro `json:"lubricentro,omitempty"`
}

// Claims represents JWT claims
type Claims struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	Role          Role   `json:"role"`
	LubricentroID string `json:"lubricentro_id"`
	Exp           int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleSuperAdmin, RoleAdmin, RoleEmployee:
		return true
	default:
		return false
	}
}

// IsValidUserStatus checks if a status is valid
func IsValidUserStatus(status UserStatus) bool {
	switch status {
	case UserActive, UserPending, UserInactive:
		return true
	default:
		return false
	}
}

// CanPerform reports whether a role is permitted to perform an action.
func CanPerform(role Role, action Action) bool {
	switch role {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		return action == ActionCreateService || action == ActionCreateUser ||
			action == ActionAdminAction || action == ActionViewReports
	case RoleEmployee:
		return action == ActionCreateService
	default:
		return false
	}
}

// HasPermission checks if a user has permission for a specific action
func (u *User) HasPermission(action Action) bool {
	return CanPerform(u.Role, action)
}
