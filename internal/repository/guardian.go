package repository

import (
	"context"

	"comfyguardians/internal/model"
)

// GuardianRepository persists guardian consent records.
type GuardianRepository interface {
	// FindByEmail returns the guardian registered under email (case-insensitive).
	FindByEmail(ctx context.Context, email string) (*model.ChildrenGuardian, error)

	// Create inserts a consent record and returns the stored row.
	Create(ctx context.Context, g *model.ChildrenGuardian) (*model.ChildrenGuardian, error)

	// SaveViaProcedure stores the record through the save_guardian_data stored procedure.
	SaveViaProcedure(ctx context.Context, g *model.ChildrenGuardian) (*model.ProcedureResult, error)
}
