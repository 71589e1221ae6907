// Package sequence issues membership numbers from a counter row in the store.
package sequence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/AutoClub/app/models"
	"github.com/ManuelReschke/AutoClub/internal/pkg/metrics"
	"github.com/ManuelReschke/AutoClub/internal/pkg/storeerr"
)

const (
	rowID        = 1
	DefaultStart = models.MinMembershipNumber
)

// Seed creates the counter row so that the first issued number is start. An
// existing row is left untouched.
func Seed(ctx context.Context, db *gorm.DB, start int64) error {
	if start < models.MinMembershipNumber || start > models.MaxMembershipNumber {
		return fmt.Errorf("sequence: start %d outside [%d, %d]", start, models.MinMembershipNumber, models.MaxMembershipNumber)
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.MembershipSequence{ID: rowID, Val: start - 1}).Error
	return storeerr.Classify(err)
}

// Generator hands out membership numbers. Each call runs in its own short
// transaction, so concurrent callers (in this process or others sharing the
// store) are serialised by the store's row lock and never see the same value.
type Generator struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Generator {
	return &Generator{db: db}
}

// Next increments the counter and returns the new value. Once the 8 digit
// range is used up it returns ErrExhaustedSequence and the counter is left
// unchanged.
func (g *Generator) Next(ctx context.Context) (int64, error) {
	var next int64
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.MembershipSequence{}).
			Where("id = ?", rowID).
			UpdateColumn("val", gorm.Expr("val + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New("sequence: counter row missing, run migrations first")
		}

		var row models.MembershipSequence
		if err := tx.Where("id = ?", rowID).Take(&row).Error; err != nil {
			return err
		}
		if row.Val > models.MaxMembershipNumber {
			return storeerr.ErrExhaustedSequence
		}
		next = row.Val
		return nil
	})
	if err != nil {
		return 0, storeerr.Classify(err)
	}

	metrics.MembershipNumbersIssued.Inc()
	return next, nil
}

// Peek returns the most recently issued number without consuming one.
func (g *Generator) Peek(ctx context.Context) (int64, error) {
	var row models.MembershipSequence
	if err := g.db.WithContext(ctx).Where("id = ?", rowID).Take(&row).Error; err != nil {
		return 0, storeerr.Classify(err)
	}
	return row.Val, nil
}
