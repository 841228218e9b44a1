package models

import "time"

// Reference entities the override forms point at. These are owned by the
// surrounding admin application; limitd keeps read-only projections so the
// control surface can populate override pickers. A dangling reference in an
// override is treated as "no override" at enforcement time, never an error.

// Application is a registered client application.
type Application struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Name      string    `json:"name" gorm:"size:256"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName sets the table name for GORM.
func (Application) TableName() string {
	return "applications"
}

// Role is an access role assignable to callers.
type Role struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Name      string    `json:"name" gorm:"size:256"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName sets the table name for GORM.
func (Role) TableName() string {
	return "roles"
}

// Service is a backend service whose procedures can carry component limits.
type Service struct {
	ID         string    `json:"id" gorm:"primaryKey;size:64"`
	Name       string    `json:"name" gorm:"size:256"`
	Procedures []string  `json:"procedures" gorm:"serializer:json"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName sets the table name for GORM.
func (Service) TableName() string {
	return "services"
}
