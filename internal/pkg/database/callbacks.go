package database

import (
	"fmt"
	"reflect"

	"gorm.io/gorm"

	"github.com/ManuelReschke/AutoClub/app/models"
)

const prepareCallback = "autoclub:prepare"

// RegisterCallbacks makes every create and full-struct update run the entity
// derivations and validation, whichever code path issued the write.
func RegisterCallbacks(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register(prepareCallback, prepareEntities); err != nil {
		return fmt.Errorf("database: register create callback: %w", err)
	}
	if err := db.Callback().Update().Before("gorm:update").Register(prepareCallback, prepareUpdatedEntities); err != nil {
		return fmt.Errorf("database: register update callback: %w", err)
	}
	return nil
}

// prepareUpdatedEntities only checks updates that write a whole entity
// (Save, or Model(e).Updates(e)). Column updates and partial structs carry no
// full entity to validate.
func prepareUpdatedEntities(tx *gorm.DB) {
	dest := reflect.ValueOf(tx.Statement.Dest)
	model := reflect.ValueOf(tx.Statement.Model)
	if dest.Kind() != reflect.Pointer || model.Kind() != reflect.Pointer || dest.Pointer() != model.Pointer() {
		return
	}
	prepareEntities(tx)
}

func prepareEntities(tx *gorm.DB) {
	if tx.Error != nil || tx.Statement.Schema == nil {
		return
	}

	rv := tx.Statement.ReflectValue
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := prepareValue(rv.Index(i)); err != nil {
				_ = tx.AddError(err)
				return
			}
		}
	case reflect.Struct:
		if err := prepareValue(rv); err != nil {
			_ = tx.AddError(err)
		}
	}
}

func prepareValue(v reflect.Value) error {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if !v.CanAddr() {
		return nil
	}
	entity, ok := v.Addr().Interface().(models.Entity)
	if !ok {
		return nil
	}
	if _, registered := models.SchemaOf(entity); !registered {
		return nil
	}
	return models.Prepare(entity)
}
