package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a host account created through LINE Login. Participants joining via
// the bot never get a row here; they live only under the room in the data store.
type User struct {
	ID          string         `json:"id" gorm:"primaryKey"` // LINE user id
	DisplayName string         `json:"display_name" gorm:"not null"`
	PhotoURL    string         `json:"photo_url"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}
