package model

import (
	"time"

	"github.com/google/uuid"
)

// Cashier stores system users with role-based access.
// Role: "cashier" | "supervisor" | "admin"
type Cashier struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Username     string    `gorm:"uniqueIndex;not null"`
	FullName     string    `gorm:"not null"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"type:varchar(20);not null"`
	Active       bool      `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Cashier) TableName() string { return "cashiers" }
