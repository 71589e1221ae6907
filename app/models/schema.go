package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm/schema"

	"github.com/ManuelReschke/AutoClub/internal/pkg/storeerr"
)

// Field describes the write rules of one struct field.
type Field struct {
	// Name is the Go field name; promoted fields of embedded structs are allowed.
	Name string
	// Rules is a go-playground/validator rule string.
	Rules string
	// Derive normalises the stored value before validation. It must be pure and idempotent.
	Derive func(string) string
	// Immutable fields cannot change once they hold a non-zero value.
	Immutable bool
	// Transition, when set, decides whether the field may move from one value to another.
	Transition func(from, to string) bool
}

// Column returns the database column name of the field.
func (f Field) Column() string {
	return naming.ColumnName("", f.Name)
}

// Schema is the explicit description of an entity's stored fields and rules.
type Schema struct {
	Entity string
	Fields []Field
	// Immutable marks every field as write-once; updates only refresh UpdatedOn.
	Immutable bool
}

func (s *Schema) field(column string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Column() == column {
			return f, true
		}
	}
	return Field{}, false
}

func (s *Schema) tracked(f Field) bool {
	return s.Immutable || f.Immutable || f.Transition != nil
}

var (
	naming   = schema.NamingStrategy{}
	validate = validator.New()
	registry = map[reflect.Type]*Schema{}
)

func register(e Entity, s *Schema) {
	registry[reflect.TypeOf(e).Elem()] = s
}

// SchemaOf returns the schema registered for the entity's type.
func SchemaOf(e any) (*Schema, bool) {
	t := reflect.TypeOf(e)
	if t == nil {
		return nil, false
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	s, ok := registry[t]
	return s, ok
}

// linker is implemented by entities holding relation pointers whose foreign key
// columns must follow the referenced record.
type linker interface {
	linkRelations()
}

// Prepare makes an entity ready to be written: it assigns a missing ID, syncs
// foreign keys from relation pointers, derives normalised values and validates
// every field. The first failing field is reported as a ConstraintViolation.
func Prepare(e Entity) error {
	s, ok := SchemaOf(e)
	if !ok {
		return fmt.Errorf("models: no schema registered for %T", e)
	}

	e.Meta().EnsureID()
	if l, ok := e.(linker); ok {
		l.linkRelations()
	}

	v := reflect.ValueOf(e).Elem()
	for _, f := range s.Fields {
		if f.Derive == nil {
			continue
		}
		deriveValue(v.FieldByName(f.Name), f.Derive)
	}

	for _, f := range s.Fields {
		if f.Rules == "" {
			continue
		}
		if err := validate.Var(v.FieldByName(f.Name).Interface(), f.Rules); err != nil {
			return violation(e, f, err)
		}
	}
	return nil
}

func deriveValue(fv reflect.Value, derive func(string) string) {
	switch {
	case fv.Kind() == reflect.String:
		fv.SetString(derive(fv.String()))
	case fv.Kind() == reflect.Pointer && !fv.IsNil() && fv.Elem().Kind() == reflect.String:
		fv.Elem().SetString(derive(fv.Elem().String()))
	}
}

func violation(e Entity, f Field, err error) error {
	constraint := ""
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		constraint = verrs[0].Tag()
	}
	return storeerr.Violation(e.TableName(), f.Column(), constraint, err)
}

// Snapshot captures the current values of the fields whose changes are
// restricted (immutable or transition controlled).
func Snapshot(e Entity) map[string]any {
	s, ok := SchemaOf(e)
	if !ok {
		return nil
	}
	v := reflect.ValueOf(e).Elem()
	snap := make(map[string]any)
	for _, f := range s.Fields {
		if s.tracked(f) {
			snap[f.Name] = plain(v.FieldByName(f.Name))
		}
	}
	return snap
}

// CheckChange compares an entity against a snapshot taken when it was loaded or
// created and rejects forbidden changes.
func CheckChange(e Entity, before map[string]any) error {
	s, ok := SchemaOf(e)
	if !ok || before == nil {
		return nil
	}
	v := reflect.ValueOf(e).Elem()
	for _, f := range s.Fields {
		if !s.tracked(f) {
			continue
		}
		prev, had := before[f.Name]
		if !had {
			continue
		}
		now := plain(v.FieldByName(f.Name))
		if reflect.DeepEqual(prev, now) {
			continue
		}

		switch {
		case s.Immutable:
			return storeerr.Violation(e.TableName(), f.Column(), storeerr.Immutable, nil)
		case f.Immutable:
			if !isZero(prev) {
				return storeerr.Violation(e.TableName(), f.Column(), storeerr.Immutable, nil)
			}
		case f.Transition != nil:
			if !f.Transition(fmt.Sprint(prev), fmt.Sprint(now)) {
				return storeerr.Violation(e.TableName(), f.Column(), storeerr.Transition,
					fmt.Errorf("%v -> %v", prev, now))
			}
		}
	}
	return nil
}

// plain dereferences pointers so snapshots hold copies rather than aliases.
func plain(fv reflect.Value) any {
	if fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return nil
		}
		return fv.Elem().Interface()
	}
	return fv.Interface()
}

func isZero(v any) bool {
	return v == nil || reflect.ValueOf(v).IsZero()
}

// NormalizeCriteria applies the entity's derivations to lookup values so that
// queries match what is stored. Keys are column names.
func NormalizeCriteria(e Entity, criteria map[string]any) map[string]any {
	s, ok := SchemaOf(e)
	if !ok || len(criteria) == 0 {
		return criteria
	}
	out := make(map[string]any, len(criteria))
	for column, value := range criteria {
		if f, ok := s.field(column); ok && f.Derive != nil {
			if str, isString := value.(string); isString {
				value = f.Derive(str)
			}
		}
		out[column] = value
	}
	return out
}

// Derivations shared by the entity schemas.

func trim(s string) string {
	return strings.TrimSpace(s)
}

func orDefault(def string) func(string) string {
	return func(s string) string {
		if s = strings.TrimSpace(s); s == "" {
			return def
		}
		return s
	}
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func NormalizeVIN(s string) string {
	return upper(s)
}

func NormalizeState(s string) string {
	return upper(s)
}

func DigitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
