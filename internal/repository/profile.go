package repository

import (
	"context"
	"time"

	"comfyguardians/internal/model"
)

// ProfileRepository reads profiles and records guardian decisions on them.
type ProfileRepository interface {
	// FindByID returns the profile including its guardian e-mail and approval token.
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// FindSummaries returns public summaries for the given ids. Unknown ids are skipped.
	FindSummaries(ctx context.Context, ids []string) ([]model.ProfileSummary, error)

	// ListAuthorized returns every authorized profile ordered by name.
	ListAuthorized(ctx context.Context) ([]model.ProfileSummary, error)

	// List returns up to limit profiles.
	List(ctx context.Context, limit int) ([]model.ProfileSummary, error)

	// Count returns the number of profiles. It doubles as a connectivity probe.
	Count(ctx context.Context) (int, error)

	// Reject marks a pending profile as rejected and writes the audit log in one transaction.
	// It returns sql.ErrNoRows when the profile is missing or no longer pending.
	Reject(ctx context.Context, p RejectParams) (*model.Profile, error)

	// AuthorizeAccount calls the authorize_account stored procedure.
	AuthorizeAccount(ctx context.Context, p AuthorizeParams) (*model.ProcedureResult, error)
}

// RejectParams carries a guardian's rejection.
type RejectParams struct {
	ChildID       string
	GuardianEmail string
	Reason        string
	IPAddress     *string
	UserAgent     *string
	At            time.Time
}

// AuthorizeParams are the authorize_account arguments.
type AuthorizeParams struct {
	ApprovalToken string
	GuardianEmail string
	IPAddress     *string
	UserAgent     *string
}
