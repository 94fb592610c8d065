package errors

import (
	stdErrors "errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Dumped carries the flattened error chain plus any Postgres diagnostics for logging.
type Dumped struct {
	TopMessage   string
	Code         Code
	Chain        []string
	PGCode       string
	PGDetail     string
	PGMessage    string
	PGTable      string
	PGColumn     string
	PGConstraint string
}

// Dump walks the error chain collecting messages and pgconn diagnostics.
func Dump(err error) Dumped {
	dump := Dumped{}
	if err == nil {
		return dump
	}
	dump.TopMessage = err.Error()
	if typed := As(err); typed != nil {
		dump.Code = typed.Code()
	}

	for current := err; current != nil; current = stdErrors.Unwrap(current) {
		dump.Chain = append(dump.Chain, current.Error())
	}

	var pgErr *pgconn.PgError
	if stdErrors.As(err, &pgErr) {
		dump.PGCode = pgErr.Code
		dump.PGDetail = pgErr.Detail
		dump.PGMessage = pgErr.Message
		dump.PGTable = pgErr.TableName
		dump.PGColumn = pgErr.ColumnName
		dump.PGConstraint = pgErr.ConstraintName
	}
	return dump
}
