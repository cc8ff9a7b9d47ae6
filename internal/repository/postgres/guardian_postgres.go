package postgres

import (
	"context"
	"database/sql"

	"comfyguardians/internal/model"
	"comfyguardians/internal/repository"
)

const guardianColumns = `id, child_name, child_birth_date, guardian_name, guardian_email, guardian_address,
		guardian_postal_code, terms_of_use, gdpr_consent_declaration, account_creation_authorization_date,
		record_creation_date, created_at, updated_at`

// GuardianPostgres is a PostgreSQL implementation of repository.GuardianRepository.
type GuardianPostgres struct {
	db *sql.DB
}

// NewGuardianPostgres creates a new GuardianPostgres repository.
func NewGuardianPostgres(db *sql.DB) *GuardianPostgres {
	return &GuardianPostgres{db: db}
}

var _ repository.GuardianRepository = (*GuardianPostgres)(nil)

func scanGuardian(row rowScanner) (*model.ChildrenGuardian, error) {
	var (
		g          model.ChildrenGuardian
		birthDate  sql.NullTime
		authorized sql.NullTime
	)
	if err := row.Scan(
		&g.ID,
		orEmpty(&g.ChildName),
		&birthDate,
		orEmpty(&g.GuardianName),
		orEmpty(&g.GuardianEmail),
		orEmpty(&g.GuardianAddress),
		orEmpty(&g.GuardianPostalCode),
		&g.TermsOfUse,
		&g.GDPRConsentDeclaration,
		&authorized,
		&g.RecordCreationDate,
		&g.CreatedAt,
		&g.UpdatedAt,
	); err != nil {
		return nil, err
	}
	g.ChildBirthDate = timePtr(birthDate)
	g.AccountCreationAuthorizationDate = timePtr(authorized)
	return &g, nil
}

// FindByEmail fetches the guardian registered under email.
func (r *GuardianPostgres) FindByEmail(ctx context.Context, email string) (*model.ChildrenGuardian, error) {
	q := `SELECT ` + guardianColumns + ` FROM children_guardians WHERE lower(guardian_email) = lower($1) LIMIT 1`
	return scanGuardian(r.db.QueryRowContext(ctx, q, email))
}

// Create inserts a consent record and returns the stored row.
func (r *GuardianPostgres) Create(ctx context.Context, g *model.ChildrenGuardian) (*model.ChildrenGuardian, error) {
	q := `
		INSERT INTO children_guardians (child_name, guardian_name, guardian_email, guardian_address,
			guardian_postal_code, terms_of_use, gdpr_consent_declaration)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + guardianColumns
	stored, err := scanGuardian(r.db.QueryRowContext(ctx, q,
		g.ChildName,
		g.GuardianName,
		g.GuardianEmail,
		g.GuardianAddress,
		g.GuardianPostalCode,
		g.TermsOfUse,
		g.GDPRConsentDeclaration,
	))
	if err != nil {
		return nil, translateError(err)
	}
	return stored, nil
}

// SaveViaProcedure stores the record through save_guardian_data.
func (r *GuardianPostgres) SaveViaProcedure(ctx context.Context, g *model.ChildrenGuardian) (*model.ProcedureResult, error) {
	const q = `SELECT save_guardian_data($1, $2, $3, $4, $5, $6, $7)::text`
	var raw string
	if err := r.db.QueryRowContext(ctx, q,
		g.ChildName,
		g.GuardianName,
		g.GuardianEmail,
		g.GuardianAddress,
		g.GuardianPostalCode,
		g.TermsOfUse,
		g.GDPRConsentDeclaration,
	).Scan(&raw); err != nil {
		return nil, err
	}
	return decodeProcedureResult(raw)
}
