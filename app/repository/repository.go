package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/ManuelReschke/AutoClub/app/models"
	"github.com/ManuelReschke/AutoClub/internal/pkg/scope"
	"github.com/ManuelReschke/AutoClub/internal/pkg/session"
)

// Criteria filters by column name. Values are normalised the way the column
// is normalised on write, so a lookup by " Foo@Example.com" finds the stored
// "foo@example.com".
type Criteria = session.Criteria

// Repository gives typed access to one entity through a session. It must not
// outlive the scope it was obtained in; once the session is closed every call
// fails with storeerr.ErrSessionClosed.
type Repository[T any, PT models.EntityPtr[T]] struct {
	sess *session.Session
}

// New binds a repository to an explicit session.
func New[T any, PT models.EntityPtr[T]](sess *session.Session) *Repository[T, PT] {
	return &Repository[T, PT]{sess: sess}
}

// For resolves the session of the scope active in ctx. Outside a scope it
// returns storeerr.ErrNoActiveScope without touching the store.
func For[T any, PT models.EntityPtr[T]](ctx context.Context) (*Repository[T, PT], error) {
	sess, err := scope.Session(ctx)
	if err != nil {
		return nil, scope.Missing(ctx, PT(new(T)).TableName())
	}
	return New[T, PT](sess), nil
}

// MustFor is For for code that treats a missing scope as a programming error.
func MustFor[T any, PT models.EntityPtr[T]](ctx context.Context) *Repository[T, PT] {
	repo, err := For[T, PT](ctx)
	if err != nil {
		panic(fmt.Sprintf("repository: %s: %v", PT(new(T)).TableName(), err))
	}
	return repo
}

// Session returns the session the repository works on.
func (r *Repository[T, PT]) Session() *session.Session {
	return r.sess
}

func (r *Repository[T, PT]) FindAll() ([]PT, error) {
	return r.Find()
}

// Find returns every entity matching all criteria.
func (r *Repository[T, PT]) Find(criteria ...Criteria) ([]PT, error) {
	var rows []PT
	if err := r.sess.Find(&rows, criteria...); err != nil {
		return nil, err
	}
	return rows, nil
}

// FindOne returns the entity matching criteria or storeerr.ErrNotFound.
func (r *Repository[T, PT]) FindOne(criteria Criteria) (PT, error) {
	dest := PT(new(T))
	if err := r.sess.First(dest, criteria); err != nil {
		return nil, err
	}
	return r.sess.Lookup(dest).(PT), nil
}

// FindByID returns the entity with the given id or storeerr.ErrNotFound.
func (r *Repository[T, PT]) FindByID(id string) (PT, error) {
	dest := PT(new(T))
	if err := r.sess.Get(dest, id); err != nil {
		return nil, err
	}
	return r.sess.Lookup(dest).(PT), nil
}

func (r *Repository[T, PT]) Create(entity PT) error {
	return r.sess.Add(entity)
}

func (r *Repository[T, PT]) Update(entity PT) error {
	return r.sess.Update(entity)
}

func (r *Repository[T, PT]) Remove(entity PT) error {
	return r.sess.Remove(entity)
}

// Count counts rows matching all criteria, pending writes included.
func (r *Repository[T, PT]) Count(criteria ...Criteria) (int64, error) {
	model := PT(new(T))
	var n int64
	err := r.sess.Query(func(tx *gorm.DB) error {
		q := tx.Model(model)
		for _, c := range criteria {
			if len(c) > 0 {
				q = q.Where(models.NormalizeCriteria(model, c))
			}
		}
		return q.Count(&n).Error
	})
	return n, err
}
