package models

import (
	"time"

	"github.com/google/uuid"
)

// Registration is a child/player profile owned by an account. Registration
// CRUD lives in the external signup flow; this service only reads rows for
// ownership checks and category matching. Category is the age-group number
// (8 means U8).
type Registration struct {
	ID        uuid.UUID `json:"id"`
	OwnerUID  string    `json:"owner_uid"`
	ChildName string    `json:"child_name"`
	Category  int       `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}
