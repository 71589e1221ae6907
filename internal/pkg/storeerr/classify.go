package storeerr

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgStringTooLong       = "22001"
	pgTooManyConnections  = "53300"
	pgAdminShutdown       = "57P01"
	pgCannotConnectNow    = "57P03"
)

const (
	mysqlDuplicateEntry    = 1062
	mysqlColumnCannotBeNil = 1048
	mysqlRowIsReferenced   = 1451
	mysqlNoReferencedRow   = 1452
	mysqlDataTooLong       = 1406
	mysqlCheckViolated     = 3819
	mysqlTooManyConns      = 1040
	mysqlServerShutdown    = 1053
)

var (
	pgKeyDetail       = regexp.MustCompile(`Key \(([^)]+)\)=`)
	mysqlDuplicateKey = regexp.MustCompile(`for key '([^']+)'`)
	mysqlColumnName   = regexp.MustCompile(`(?i)column '([^']+)'`)
	sqliteTarget      = regexp.MustCompile(`(UNIQUE|NOT NULL) constraint failed: ([\w.]+)`)
)

// Classify translates a store error into the package vocabulary. Errors that
// are already classified, and errors it does not recognise, are returned as is.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var cv *ConstraintViolation
	if errors.As(err, &cv) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrExhaustedSequence) ||
		errors.Is(err, ErrSessionClosed) ||
		errors.Is(err, ErrNoActiveScope) {
		return err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPostgres(pgErr, err)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return classifyMySQL(myErr, err)
	}

	if v := classifySQLite(err); v != nil {
		return v
	}

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Violation("", "", Unique, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return Violation("", "", ForeignKey, err)
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		return Violation("", "", Check, err)
	}

	if isUnavailable(err) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	return err
}

func classifyPostgres(pgErr *pgconn.PgError, err error) error {
	field := pgErr.ColumnName
	if m := pgKeyDetail.FindStringSubmatch(pgErr.Detail); m != nil {
		field = strings.TrimSpace(m[1])
	}
	if field == "" {
		field = columnFromConstraint(pgErr.TableName, pgErr.ConstraintName)
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		return Violation(pgErr.TableName, field, Unique, err)
	case pgForeignKeyViolation:
		return Violation(pgErr.TableName, field, ForeignKey, err)
	case pgNotNullViolation:
		return Violation(pgErr.TableName, pgErr.ColumnName, NotNull, err)
	case pgCheckViolation:
		return Violation(pgErr.TableName, field, Check, err)
	case pgStringTooLong:
		return Violation(pgErr.TableName, pgErr.ColumnName, Length, err)
	case pgTooManyConnections, pgAdminShutdown, pgCannotConnectNow:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	// Class 08: connection exception.
	if strings.HasPrefix(pgErr.Code, "08") {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}

func classifyMySQL(myErr *mysql.MySQLError, err error) error {
	switch myErr.Number {
	case mysqlDuplicateEntry:
		var field string
		if m := mysqlDuplicateKey.FindStringSubmatch(myErr.Message); m != nil {
			table, index, found := strings.Cut(m[1], ".")
			if !found {
				index, table = table, ""
			}
			field = columnFromConstraint(table, index)
		}
		return Violation("", field, Unique, err)
	case mysqlRowIsReferenced, mysqlNoReferencedRow:
		return Violation("", "", ForeignKey, err)
	case mysqlColumnCannotBeNil:
		return Violation("", mysqlColumn(myErr.Message), NotNull, err)
	case mysqlDataTooLong:
		return Violation("", mysqlColumn(myErr.Message), Length, err)
	case mysqlCheckViolated:
		return Violation("", "", Check, err)
	case mysqlTooManyConns, mysqlServerShutdown:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}

func mysqlColumn(msg string) string {
	if m := mysqlColumnName.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	return ""
}

func classifySQLite(err error) error {
	msg := err.Error()
	if m := sqliteTarget.FindStringSubmatch(msg); m != nil {
		constraint := Unique
		if m[1] == "NOT NULL" {
			constraint = NotNull
		}
		// Composite keys are reported as "t.a, t.b"; the first column names the table.
		table, column, _ := strings.Cut(m[2], ".")
		return Violation(table, column, constraint, err)
	}
	switch {
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return Violation("", "", ForeignKey, err)
	case strings.Contains(msg, "CHECK constraint failed"):
		return Violation("", "", Check, err)
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "unable to open database file"):
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// columnFromConstraint recovers the column from index names generated by GORM
// (idx_<table>_<column>) or declared explicitly (uq_<table>_<column>).
func columnFromConstraint(table, constraint string) string {
	if constraint == "" {
		return ""
	}
	for _, prefix := range []string{"idx_", "uq_", "uni_", "fk_"} {
		if !strings.HasPrefix(constraint, prefix) {
			continue
		}
		rest := strings.TrimPrefix(constraint, prefix)
		if table != "" {
			rest = strings.TrimPrefix(rest, table+"_")
		}
		return rest
	}
	return constraint
}

func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return pgconn.SafeToRetry(err)
}
