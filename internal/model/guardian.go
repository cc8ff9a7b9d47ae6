package model

import "time"

// ChildrenGuardian is the consent record a guardian leaves when authorizing a child.
// It is linked to the child's profile by name and e-mail only.
type ChildrenGuardian struct {
	ID                               string     `json:"id"`
	ChildName                        string     `json:"child_name"`
	ChildBirthDate                   *time.Time `json:"child_birth_date,omitempty"`
	GuardianName                     string     `json:"guardian_name"`
	GuardianEmail                    string     `json:"guardian_email"`
	GuardianAddress                  string     `json:"guardian_address"`
	GuardianPostalCode               string     `json:"guardian_postal_code"`
	TermsOfUse                       bool       `json:"terms_of_use"`
	GDPRConsentDeclaration           bool       `json:"gdpr_consent_declaration"`
	AccountCreationAuthorizationDate *time.Time `json:"account_creation_authorization_date,omitempty"`
	RecordCreationDate               time.Time  `json:"record_creation_date"`
	CreatedAt                        time.Time  `json:"created_at"`
	UpdatedAt                        time.Time  `json:"updated_at"`
}

// ActionRejected is the authorization_logs action written with a rejection.
// The authorize_account procedure logs its own "authorized" row.
const ActionRejected = "rejected"

// ProcedureResult is the JSON object returned by the authorize_account and
// save_guardian_data stored procedures.
type ProcedureResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	ID      string `json:"id,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}
