// Package repository contains data access layer abstractions.
// Implementations live in subpackages (postgres) and return sql.ErrNoRows
// for missing rows so services can translate it into domain errors.
package repository

import "errors"

// ErrDuplicate is returned when a write violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
