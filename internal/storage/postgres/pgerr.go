package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/aanand-mishra/student-records/internal/errs"
)

const (
	// CheckViolationCode indicates a check constraint violation.
	CheckViolationCode = "23514"
	// NotNullViolationCode indicates a NULL in a NOT NULL column.
	NotNullViolationCode = "23502"
	// StringDataRightTruncationCode indicates a value too long for its column.
	StringDataRightTruncationCode = "22001"
)

// AsPgError extracts the server error from anywhere in err's chain.
func AsPgError(err error) (*pgconn.PgError, bool) {
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// mapError turns constraint violations into 422s naming the column. Anything
// else, including errors that are not from the server, is returned as is.
func mapError(err error) error {
	pe, ok := AsPgError(err)
	if !ok {
		return err
	}

	column := columnOf(pe)
	switch pe.Code {
	case CheckViolationCode:
		return violation(column, "does not meet required conditions", err)
	case NotNullViolationCode:
		return violation(column, "is required", err)
	case StringDataRightTruncationCode:
		return violation(column, "is too long", err)
	default:
		return err
	}
}

func violation(column, problem string, cause error) error {
	var fields []errs.FieldError
	message := "One or more values do not meet required conditions"
	if column != "" {
		fields = []errs.FieldError{{Field: column, Error: problem}}
		message = fmt.Sprintf("The %s value %s", humanize(column), problem)
	}
	return errs.NewValidationError(message, fields).WithCause(cause)
}

// columnOf prefers the column the server reports and falls back to the
// default constraint name Postgres generates, "<table>_<column>_check".
func columnOf(pe *pgconn.PgError) string {
	if pe.ColumnName != "" {
		return pe.ColumnName
	}
	name := pe.ConstraintName
	if pe.TableName != "" {
		name = strings.TrimPrefix(name, pe.TableName+"_")
	}
	return strings.TrimSuffix(name, "_check")
}

// humanize converts snake_case into Title Case: "registered_at" -> "Registered At".
func humanize(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}
