package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"comfyguardians/internal/mailer"
	"comfyguardians/internal/model"
	"comfyguardians/internal/repository"
)

// RejectionReason is stored on profiles rejected through the web form.
const RejectionReason = "Rejected by guardian via web form"

// AuthorizeInput is the guardian's authorization form.
type AuthorizeInput struct {
	ChildID                string
	ApprovalToken          string
	GuardianName           string
	GuardianEmail          string
	GuardianAddress        string
	GuardianPostalCode     string
	TermsOfUse             bool
	GDPRConsentDeclaration bool
	IPAddress              string
	UserAgent              string
}

// RejectInput is the guardian's rejection form.
type RejectInput struct {
	ChildID       string
	ApprovalToken string
	GuardianEmail string
	IPAddress     string
	UserAgent     string
}

// DecisionResult identifies the child a decision was applied to.
type DecisionResult struct {
	ChildName string
	Username  string
}

// ChildStatus is the public view of a child's authorization state.
type ChildStatus struct {
	ID       string                    `json:"id"`
	Name     string                    `json:"name"`
	Username string                    `json:"username"`
	Status   model.AuthorizationStatus `json:"status"`
}

// AuthorizationService handles guardian decisions on child accounts.
type AuthorizationService interface {
	// Authorize records the guardian's consent and activates the child account.
	Authorize(ctx context.Context, in AuthorizeInput) (*DecisionResult, error)

	// Reject marks a pending child account as rejected.
	Reject(ctx context.Context, in RejectInput) (*DecisionResult, error)

	// ChildStatus returns the child's name and authorization state.
	ChildStatus(ctx context.Context, id string) (*ChildStatus, error)
}

type authorizationService struct {
	profiles  repository.ProfileRepository
	guardians repository.GuardianRepository
	mail      mailer.Mailer
	metrics   *DecisionMetrics
	validate  *validator.Validate
	log       zerolog.Logger
	now       func() time.Time
}

// NewAuthorizationService constructs an AuthorizationService.
func NewAuthorizationService(
	profiles repository.ProfileRepository,
	guardians repository.GuardianRepository,
	mail mailer.Mailer,
	metrics *DecisionMetrics,
	log zerolog.Logger,
) AuthorizationService {
	return &authorizationService{
		profiles:  profiles,
		guardians: guardians,
		mail:      mail,
		metrics:   metrics,
		validate:  validator.New(),
		log:       log.With().Str("component", "authorization").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *authorizationService) Authorize(ctx context.Context, in AuthorizeInput) (res *DecisionResult, err error) {
	defer func() { s.metrics.observe(DecisionAuthorize, outcome(err)) }()

	in.GuardianEmail = strings.TrimSpace(in.GuardianEmail)
	if blank(in.ChildID, in.GuardianName, in.GuardianEmail, in.GuardianAddress, in.GuardianPostalCode) {
		return nil, ErrMissingFields
	}
	if !in.TermsOfUse || !in.GDPRConsentDeclaration {
		return nil, ErrTermsNotAccepted
	}
	if err := s.checkIdentity(in.ChildID, in.GuardianEmail); err != nil {
		return nil, err
	}

	child, err := s.findChild(ctx, in.ChildID)
	if err != nil {
		return nil, err
	}
	if child.Status() == model.StatusAuthorized {
		return nil, ErrAlreadyAuthorized
	}
	if err := matchGuardian(child, in.GuardianEmail, in.ApprovalToken); err != nil {
		return nil, err
	}

	existing, err := s.guardians.FindByEmail(ctx, in.GuardianEmail)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w for child %q", ErrGuardianExists, existing.ChildName)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("check existing guardian: %w", err)
	}

	if err := s.saveGuardian(ctx, child, in); err != nil {
		return nil, err
	}

	auth, err := s.profiles.AuthorizeAccount(ctx, repository.AuthorizeParams{
		ApprovalToken: child.ApprovalToken,
		GuardianEmail: in.GuardianEmail,
		IPAddress:     optional(in.IPAddress),
		UserAgent:     optional(in.UserAgent),
	})
	if err != nil {
		return nil, upstream(err, "could not authorize account")
	}
	if !auth.Success {
		return nil, upstream(errors.New(auth.Error), "could not authorize account")
	}

	s.log.Info().
		Str("event", "child_authorized").
		Str("child_id", child.ID).
		Send()

	s.notify(ctx, DecisionAuthorize, mailer.Notice{
		GuardianEmail: in.GuardianEmail,
		GuardianName:  in.GuardianName,
		ChildName:     child.Name,
		Username:      child.Username,
	})

	return &DecisionResult{ChildName: child.Name, Username: child.Username}, nil
}

// saveGuardian inserts the consent record, falling back once to the
// save_guardian_data procedure when the plain insert fails for a reason other
// than a duplicate.
func (s *authorizationService) saveGuardian(ctx context.Context, child *model.Profile, in AuthorizeInput) error {
	g := &model.ChildrenGuardian{
		ChildName:              child.Name,
		GuardianName:           in.GuardianName,
		GuardianEmail:          in.GuardianEmail,
		GuardianAddress:        in.GuardianAddress,
		GuardianPostalCode:     in.GuardianPostalCode,
		TermsOfUse:             in.TermsOfUse,
		GDPRConsentDeclaration: in.GDPRConsentDeclaration,
	}

	_, err := s.guardians.Create(ctx, g)
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrDuplicate) {
		return ErrGuardianExists
	}

	s.log.Warn().
		Str("event", "guardian_insert_failed").
		Str("child_id", child.ID).
		Err(err).
		Msg("falling back to save_guardian_data")

	res, err := s.guardians.SaveViaProcedure(ctx, g)
	if err != nil || !res.Success {
		ev := s.log.Error().Str("event", "guardian_save_failed").Str("child_id", child.ID)
		if err != nil {
			ev = ev.Err(err)
		} else {
			ev = ev.Str("procedure_error", res.Error)
		}
		ev.Send()
		return ErrGuardianSaveFailed
	}
	return nil
}

func (s *authorizationService) Reject(ctx context.Context, in RejectInput) (res *DecisionResult, err error) {
	defer func() { s.metrics.observe(DecisionReject, outcome(err)) }()

	in.GuardianEmail = strings.TrimSpace(in.GuardianEmail)
	if blank(in.ChildID, in.GuardianEmail) {
		return nil, ErrMissingFields
	}
	if err := s.checkIdentity(in.ChildID, in.GuardianEmail); err != nil {
		return nil, err
	}

	child, err := s.findChild(ctx, in.ChildID)
	if err != nil {
		return nil, err
	}
	switch child.Status() {
	case model.StatusAuthorized:
		return nil, ErrAlreadyAuthorized
	case model.StatusRejected:
		return nil, ErrAlreadyRejected
	}
	if err := matchGuardian(child, in.GuardianEmail, in.ApprovalToken); err != nil {
		return nil, err
	}

	_, err = s.profiles.Reject(ctx, repository.RejectParams{
		ChildID:       child.ID,
		GuardianEmail: in.GuardianEmail,
		Reason:        RejectionReason,
		IPAddress:     optional(in.IPAddress),
		UserAgent:     optional(in.UserAgent),
		At:            s.now(),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlreadyDecided
	}
	if err != nil {
		return nil, upstream(err, "could not process rejection")
	}

	s.log.Info().
		Str("event", "child_rejected").
		Str("child_id", child.ID).
		Send()

	s.notify(ctx, DecisionReject, mailer.Notice{
		GuardianEmail: in.GuardianEmail,
		ChildName:     child.Name,
		Username:      child.Username,
	})

	return &DecisionResult{ChildName: child.Name, Username: child.Username}, nil
}

func (s *authorizationService) ChildStatus(ctx context.Context, id string) (*ChildStatus, error) {
	if err := s.validate.Var(id, "required,uuid"); err != nil {
		return nil, ErrInvalidID
	}
	child, err := s.findChild(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ChildStatus{
		ID:       child.ID,
		Name:     child.Name,
		Username: child.Username,
		Status:   child.Status(),
	}, nil
}

func (s *authorizationService) checkIdentity(childID, email string) error {
	if err := s.validate.Var(email, "email"); err != nil {
		return ErrInvalidEmail
	}
	if err := s.validate.Var(childID, "uuid"); err != nil {
		return ErrInvalidID
	}
	return nil
}

func (s *authorizationService) findChild(ctx context.Context, id string) (*model.Profile, error) {
	child, err := s.profiles.FindByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChildNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find child: %w", err)
	}
	return child, nil
}

// notify sends the confirmation e-mail. Failures are logged only.
func (s *authorizationService) notify(ctx context.Context, decision string, n mailer.Notice) {
	if s.mail == nil {
		return
	}
	var err error
	if decision == DecisionAuthorize {
		err = s.mail.GuardianAuthorized(ctx, n)
	} else {
		err = s.mail.GuardianRejected(ctx, n)
	}
	if err != nil {
		s.log.Warn().
			Str("event", "guardian_mail_failed").
			Str("decision", decision).
			Err(err).
			Send()
	}
}

// matchGuardian compares the registered guardian e-mail (trimmed, case-insensitive)
// and, when one is given, the approval token.
func matchGuardian(child *model.Profile, email, token string) error {
	if !strings.EqualFold(strings.TrimSpace(child.GuardianEmail), strings.TrimSpace(email)) {
		return ErrGuardianMismatch
	}
	if token != "" && subtle.ConstantTimeCompare([]byte(child.ApprovalToken), []byte(token)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// outcome is the metrics label for a decision result.
func outcome(err error) string {
	var up *UpstreamError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrMissingFields), errors.Is(err, ErrTermsNotAccepted),
		errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrInvalidID):
		return "invalid"
	case errors.Is(err, ErrChildNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyAuthorized), errors.Is(err, ErrAlreadyRejected),
		errors.Is(err, ErrAlreadyDecided), errors.Is(err, ErrGuardianExists):
		return "conflict"
	case errors.Is(err, ErrGuardianMismatch), errors.Is(err, ErrInvalidToken):
		return "forbidden"
	case errors.As(err, &up):
		return "upstream_error"
	default:
		return "error"
	}
}
