package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	RoleUser      = "user"
	RoleOrganizer = "organizer"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID        string    `json:"id" bun:"id,pk"`
	Email     string    `json:"email" bun:"email,notnull"`
	Name      string    `json:"name,omitempty" bun:"name,nullzero"`
	Role      string    `json:"role" bun:"role,notnull,default:'user'"`
	CreatedAt time.Time `json:"created_at" bun:"created_at,notnull"`
}
