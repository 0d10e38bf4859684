package identity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExternalIdentity links one provider-scoped account to exactly one
// local user. The (provider, provider_sub) pair is the ownership
// record; the unique index is what refuses a second writer racing to
// claim it.
type ExternalIdentity struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"index;not null" json:"user_id"`
	User        *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Provider    string    `gorm:"not null;column:provider;uniqueIndex:idx_external_identity_provider_sub,priority:1" json:"provider"`
	ProviderSub string    `gorm:"not null;column:provider_sub;uniqueIndex:idx_external_identity_provider_sub,priority:2" json:"provider_sub"`
	Email       string    `gorm:"column:email" json:"email"`

	// Provider token metadata, refreshed opportunistically after an
	// exchange; the identity row itself is otherwise immutable.
	AccessToken    string     `gorm:"column:access_token" json:"-"`
	RefreshToken   string     `gorm:"column:refresh_token" json:"-"`
	TokenExpiresAt *time.Time `gorm:"column:token_expires_at" json:"token_expires_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ExternalIdentity) TableName() string { return "external_identity" }
