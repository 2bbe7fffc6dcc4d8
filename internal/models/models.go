package models

import "time"

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"     json:"email"`
	Username     string    `gorm:"uniqueIndex;not null"     json:"username"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Roles        []string  `gorm:"serializer:json"          json:"roles"`
	IsVerified   bool      `gorm:"default:false"            json:"is_verified"`
	IsBanned     bool      `gorm:"default:false"            json:"is_banned"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RefreshToken is the whitelist record behind a live refresh token.
// Exactly one row exists per live token; the row disappearing is what
// revokes the token, independent of its signature staying valid.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"           json:"id"`
	JTI       string    `gorm:"uniqueIndex;not null" json:"jti"`
	Subject   string    `gorm:"index;not null"       json:"subject"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	PurposeRegister      = "register"
	PurposeResetPassword = "reset_password"
)

// OTPChallenge holds at most one pending code per (email, purpose).
// For the register purpose it also carries the provisional username and
// password hash, so no User row exists until the code is verified.
type OTPChallenge struct {
	ID           uint      `gorm:"primaryKey"                                 json:"id"`
	Email        string    `gorm:"uniqueIndex:idx_otp_email_purpose;not null" json:"email"`
	Purpose      string    `gorm:"uniqueIndex:idx_otp_email_purpose;not null" json:"purpose"`
	Code         string    `gorm:"not null"                                   json:"-"`
	Username     string    `json:"username,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	LastSentAt   time.Time `gorm:"not null" json:"last_sent_at"`
}
