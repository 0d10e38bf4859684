package identity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Username  string         `gorm:"not null;uniqueIndex;column:username" json:"username"`
	Email     string         `gorm:"not null;uniqueIndex;column:email" json:"email"`
	FullName  string         `gorm:"column:full_name" json:"full_name,omitempty"`
	AvatarURL string         `gorm:"column:avatar_url" json:"avatar_url,omitempty"`
	// Password is a bcrypt hash; empty for accounts created through an
	// external provider.
	Password  string         `gorm:"column:password" json:"-"`
	IsActive  bool           `gorm:"not null;default:true;column:is_active" json:"is_active"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "user" }
