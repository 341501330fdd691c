package models

import (
	"time"
)

const ProviderEmailLink = "email_link"

// User is the permanent profile created on the first verified sign-in.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey" firestore:"-"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null" firestore:"email"`
	Name         string    `json:"name" firestore:"name"`
	AuthProvider string    `json:"provider" gorm:"default:email_link" firestore:"provider"`
	CreatedAt    time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" firestore:"updatedAt"`
	// SessionsValidAfter rejects credentials issued before it; set on logout.
	SessionsValidAfter *time.Time `json:"-" firestore:"sessionsValidAfter,omitempty"`
}

// SignupProfile is written by sign-up before the link is sent and read when
// the link is consumed.
type SignupProfile struct {
	Email     string    `json:"email" gorm:"primaryKey" firestore:"email"`
	Name      string    `json:"name" gorm:"not null" firestore:"name"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

// Auth DTOs
type MagicLinkRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type SignupRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
