package models

import (
	"time"

	"github.com/google/uuid"
)

// Record carries the identity and audit columns shared by every persisted entity.
type Record struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedOn time.Time `gorm:"autoCreateTime;not null" json:"created_on"`
	UpdatedOn time.Time `gorm:"autoUpdateTime;not null" json:"updated_on"`
}

// NewRecord returns a Record with a freshly generated ID.
func NewRecord() Record {
	return Record{ID: uuid.NewString()}
}

func (r *Record) Meta() *Record {
	return r
}

// EnsureID assigns an ID if none has been set yet. An existing ID is never replaced.
func (r *Record) EnsureID() string {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return r.ID
}

// Entity is implemented by pointers to every persisted model.
type Entity interface {
	Meta() *Record
	TableName() string
}

// EntityPtr constrains generic code to pointer types of entity structs.
type EntityPtr[T any] interface {
	*T
	Entity
}
