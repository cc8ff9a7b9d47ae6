package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"comfyguardians/internal/model"
	"comfyguardians/internal/repository"
)

const profileColumns = `id, name, username, avatar_path, guardian_email, authorized, user_role,
		approval_token, authorized_at, authorized_by, rejection_reason, is_online, created_at, updated_at`

const summaryColumns = `id, name, username, avatar_path, user_role, authorized`

// ProfilePostgres is a PostgreSQL implementation of repository.ProfileRepository.
type ProfilePostgres struct {
	db *sql.DB
}

// NewProfilePostgres creates a new ProfilePostgres repository.
func NewProfilePostgres(db *sql.DB) *ProfilePostgres {
	return &ProfilePostgres{db: db}
}

var _ repository.ProfileRepository = (*ProfilePostgres)(nil)

func scanProfile(row rowScanner) (*model.Profile, error) {
	var (
		p               model.Profile
		authorized      sql.NullBool
		authorizedAt    sql.NullTime
		authorizedBy    sql.NullString
		rejectionReason sql.NullString
	)
	if err := row.Scan(
		&p.ID,
		orEmpty(&p.Name),
		orEmpty(&p.Username),
		orEmpty(&p.AvatarPath),
		orEmpty(&p.GuardianEmail),
		&authorized,
		orEmpty(&p.UserRole),
		orEmpty(&p.ApprovalToken),
		&authorizedAt,
		&authorizedBy,
		&rejectionReason,
		&p.IsOnline,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Authorized = boolPtr(authorized)
	p.AuthorizedAt = timePtr(authorizedAt)
	p.AuthorizedBy = stringPtr(authorizedBy)
	p.RejectionReason = stringPtr(rejectionReason)
	return &p, nil
}

func scanSummaries(rows *sql.Rows) ([]model.ProfileSummary, error) {
	defer rows.Close()

	items := make([]model.ProfileSummary, 0)
	for rows.Next() {
		var (
			s          model.ProfileSummary
			authorized sql.NullBool
		)
		if err := rows.Scan(&s.ID, orEmpty(&s.Name), orEmpty(&s.Username), orEmpty(&s.AvatarPath), orEmpty(&s.UserRole), &authorized); err != nil {
			return nil, err
		}
		s.Authorized = boolPtr(authorized)
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// FindByID fetches a single profile by its ID.
func (r *ProfilePostgres) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return scanProfile(r.db.QueryRowContext(ctx, q, id))
}

// FindSummaries fetches public summaries for the given ids.
func (r *ProfilePostgres) FindSummaries(ctx context.Context, ids []string) ([]model.ProfileSummary, error) {
	if len(ids) == 0 {
		return []model.ProfileSummary{}, nil
	}
	q := `SELECT ` + summaryColumns + ` FROM profiles WHERE id IN (` + placeholders(1, len(ids)) + `)`
	rows, err := r.db.QueryContext(ctx, q, anyArgs(ids)...)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

// ListAuthorized returns authorized profiles ordered by name.
func (r *ProfilePostgres) ListAuthorized(ctx context.Context) ([]model.ProfileSummary, error) {
	const q = `SELECT ` + summaryColumns + ` FROM profiles WHERE authorized = true ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

// List returns up to limit profiles.
func (r *ProfilePostgres) List(ctx context.Context, limit int) ([]model.ProfileSummary, error) {
	const q = `SELECT ` + summaryColumns + ` FROM profiles ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

// Count returns the number of profiles.
func (r *ProfilePostgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Reject updates a pending profile to rejected and appends a "rejected" audit row.
func (r *ProfilePostgres) Reject(ctx context.Context, p repository.RejectParams) (*model.Profile, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	q := `
		UPDATE profiles
		SET authorized = false, authorized_at = $2, authorized_by = $3, rejection_reason = $4, updated_at = $2
		WHERE id = $1 AND authorized IS NULL
		RETURNING ` + profileColumns
	updated, err := scanProfile(tx.QueryRowContext(ctx, q, p.ChildID, p.At, p.GuardianEmail, p.Reason))
	if err != nil {
		return nil, err
	}

	const qLog = `
		INSERT INTO authorization_logs (user_id, action, guardian_email, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.ExecContext(ctx, qLog,
		p.ChildID,
		model.ActionRejected,
		p.GuardianEmail,
		nullable(p.IPAddress),
		nullable(p.UserAgent),
	); err != nil {
		return nil, fmt.Errorf("write authorization log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

// AuthorizeAccount calls authorize_account and decodes its JSON result.
func (r *ProfilePostgres) AuthorizeAccount(ctx context.Context, p repository.AuthorizeParams) (*model.ProcedureResult, error) {
	const q = `SELECT authorize_account($1, $2, $3, $4)::text`
	var raw string
	if err := r.db.QueryRowContext(ctx, q,
		p.ApprovalToken,
		p.GuardianEmail,
		nullable(p.IPAddress),
		nullable(p.UserAgent),
	).Scan(&raw); err != nil {
		return nil, err
	}
	return decodeProcedureResult(raw)
}

func decodeProcedureResult(raw string) (*model.ProcedureResult, error) {
	var res model.ProcedureResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("decode procedure result: %w", err)
	}
	return &res, nil
}
