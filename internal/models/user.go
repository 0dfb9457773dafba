package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/** --------------------ENTITIES-------------------- */
// User is a registered member. Profile fields beyond the name are owned by
// the profile service and not modelled here.
type User struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username  string         `gorm:"uniqueIndex;not null;type:varchar(50)" json:"username"`
	Email     string         `gorm:"uniqueIndex;not null;type:varchar(255)" json:"email"`
	Password  string         `json:"-"`
	FirstName string         `gorm:"type:varchar(100)" json:"firstName"`
	LastName  string         `gorm:"type:varchar(100)" json:"lastName"`
	Avatar    string         `json:"avatar,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// DisplayName falls back to the username when no name was given.
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}

/** -------------------- DTOs -------------------- */
// Request
type RegisterRequest struct {
	Username  string `json:"username" binding:"required,min=3,max=50"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	FirstName string `json:"firstName" binding:"omitempty,max=100"`
	LastName  string `json:"lastName" binding:"omitempty,max=100"`
}

// LoginRequest represents the request for user login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Response
type UserResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email,omitempty"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
	Avatar      string    `json:"avatar,omitempty"`
}

func NewUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		DisplayName: u.DisplayName(),
		CreatedAt:   u.CreatedAt,
		Avatar:      u.Avatar,
	}
}

// NewPublicUserResponse is the view other members get. Only the owner sees
// their own email.
func NewPublicUserResponse(u *User) UserResponse {
	resp := NewUserResponse(u)
	resp.Email = ""
	return resp
}

// ListUsersQuery pages through member profiles, newest first. Q filters on
// the username.
type ListUsersQuery struct {
	Q      string `form:"q" binding:"omitempty,max=50"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=50"`
}

type UserListResponse struct {
	Users   []UserResponse `json:"users"`
	Total   int64          `json:"total"`
	Offset  int            `json:"offset"`
	Limit   int            `json:"limit"`
	HasMore bool           `json:"hasMore"`
}

// LoginResponse represents the response for a successful login
// swagger:model
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UpdateProfileRequest changes the display fields of the profile. Nil fields
// are left untouched.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName" binding:"omitempty,max=100"`
	LastName  *string `json:"lastName" binding:"omitempty,max=100"`
	Avatar    *string `json:"avatar" binding:"omitempty,max=512"`
}
