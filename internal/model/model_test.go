package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfile_Status(t *testing.T) {
	yes, no := true, false

	assert.Equal(t, StatusPending, Profile{}.Status())
	assert.Equal(t, StatusAuthorized, Profile{Authorized: &yes}.Status())
	assert.Equal(t, StatusRejected, Profile{Authorized: &no}.Status())
}

func TestProfileSummary_DisplayName(t *testing.T) {
	assert.Equal(t, "Ana", ProfileSummary{Name: "Ana", Username: "ana01"}.DisplayName())
	assert.Equal(t, "ana01", ProfileSummary{Username: "ana01"}.DisplayName())
	assert.Empty(t, ProfileSummary{}.DisplayName())
}

func TestChat_Participants(t *testing.T) {
	psy := "psy-1"
	empty := ""

	assert.Equal(t, []string{"user-1"}, Chat{UserID: "user-1"}.Participants())
	assert.Equal(t, []string{"user-1"}, Chat{UserID: "user-1", PsychologistID: &empty}.Participants())
	assert.Equal(t, []string{"user-1", "psy-1"}, Chat{UserID: "user-1", PsychologistID: &psy}.Participants())
}
