package entity

import (
	"time"

	"github.com/google/uuid"
)

type Rule struct {
	Id          uuid.UUID
	Domain      string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	DeletedAt   *time.Time
	IsDeleted   bool
}
