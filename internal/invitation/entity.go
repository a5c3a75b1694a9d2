package invitation

import (
	"time"

	"github.com/google/uuid"
)

type Invitation struct {
	ID                uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ExamID            uuid.UUID `gorm:"type:uuid;not null;index:idx_invitation_exam_email,unique" json:"exam_id"`
	Email             string    `gorm:"type:text;not null;index:idx_invitation_exam_email,unique" json:"email"`
	ExpirationInHours int       `gorm:"not null;default:72" json:"expiration_in_hours"`
	Accepted          *bool     `json:"accepted"`
	Token             string    `gorm:"type:text;not null" json:"token,omitempty"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Pending means neither accepted nor rejected yet.
func (i *Invitation) Pending() bool {
	return i.Accepted == nil
}

// Expired is derived, never stored.
func (i *Invitation) Expired(now time.Time) bool {
	return i.CreatedAt.Add(time.Duration(i.ExpirationInHours) * time.Hour).Before(now)
}
