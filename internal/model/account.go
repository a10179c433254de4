// Package model defines domain entities for the application.
package model

import "time"

// Account is a registered user. Accounts are created at signup and are
// never mutated afterwards.
type Account struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email          string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Name           string    `json:"name" gorm:"size:100;not null"`
	HashedPassword string    `json:"-" gorm:"not null"` // Never serialize
	EmailVerified  bool      `json:"email_verified" gorm:"not null;default:false"`
	Image          *string   `json:"image,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName pins the table name used by gorm.
func (Account) TableName() string { return "accounts" }

// PublicAccount is the projection of an Account returned to clients.
type PublicAccount struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Public returns the client-facing projection of the account.
func (a *Account) Public() PublicAccount {
	return PublicAccount{ID: a.ID, Email: a.Email, Name: a.Name}
}
