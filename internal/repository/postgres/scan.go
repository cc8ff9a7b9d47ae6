package postgres

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// placeholders renders "$start, $start+1, ..." for n parameters.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

// anyArgs converts ids into query arguments.
func anyArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// emptyIfNull scans a text column that may hold NULL on databases not
// created by our migrations. NULL is stored as "".
type emptyIfNull struct {
	dst *string
}

func (e emptyIfNull) Scan(src any) error {
	var ns sql.NullString
	if err := ns.Scan(src); err != nil {
		return err
	}
	*e.dst = ns.String
	return nil
}

func orEmpty(dst *string) sql.Scanner {
	return emptyIfNull{dst: dst}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func boolPtr(nb sql.NullBool) *bool {
	if !nb.Valid {
		return nil
	}
	b := nb.Bool
	return &b
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// nullable turns an optional string into a query argument.
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
