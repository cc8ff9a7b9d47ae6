package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"comfyguardians/internal/model"
	"comfyguardians/internal/service"
	serviceMocks "comfyguardians/internal/service/mocks"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAuthorizeChild(t *testing.T) {
	mockSvc := new(serviceMocks.MockAuthorizationService)
	app := fiber.New()
	app.Post("/api/autorizar", AuthorizeChild(mockSvc))

	body := `{
		"childId": "` + childID + `",
		"approvalToken": "tok-123",
		"guardianName": "Maria Silva",
		"guardianEmail": "maria@example.com",
		"guardianAddress": "Rua A 1",
		"guardianPostalCode": "1000-001",
		"termsOfUse": true,
		"gdprConsentDeclaration": true
	}`

	t.Run("success", func(t *testing.T) {
		want := service.AuthorizeInput{
			ChildID:                childID,
			ApprovalToken:          "tok-123",
			GuardianName:           "Maria Silva",
			GuardianEmail:          "maria@example.com",
			GuardianAddress:        "Rua A 1",
			GuardianPostalCode:     "1000-001",
			TermsOfUse:             true,
			GDPRConsentDeclaration: true,
			IPAddress:              "203.0.113.7",
			UserAgent:              "form-test/1.0",
		}
		mockSvc.On("Authorize", mock.Anything, want).
			Return(&service.DecisionResult{ChildName: "Ana", Username: "ana01"}, nil).Once()

		req := jsonRequest(http.MethodPost, "/api/autorizar", body)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		req.Header.Set("User-Agent", "form-test/1.0")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var res decisionResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.True(t, res.Success)
		assert.True(t, res.GuardianSaved)
		assert.Equal(t, "Ana", res.ChildName)
		assert.Equal(t, "ana01", res.Username)
		assert.NotEmpty(t, res.Message)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid body", func(t *testing.T) {
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/autorizar", `{"childId":`))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_BODY", decodeError(t, resp).Error.Code)
	})

	errorCases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"terms not accepted", service.ErrTermsNotAccepted, http.StatusBadRequest, "TERMS_NOT_ACCEPTED"},
		{"invalid email", service.ErrInvalidEmail, http.StatusBadRequest, "INVALID_EMAIL"},
		{"child not found", service.ErrChildNotFound, http.StatusNotFound, "CHILD_NOT_FOUND"},
		{"already authorized", service.ErrAlreadyAuthorized, http.StatusConflict, "ALREADY_AUTHORIZED"},
		{"guardian exists", service.ErrGuardianExists, http.StatusConflict, "GUARDIAN_EXISTS"},
		{"save failed", service.ErrGuardianSaveFailed, http.StatusInternalServerError, "GUARDIAN_SAVE_FAILED"},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc.On("Authorize", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/autorizar", body))

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, decodeError(t, resp).Error.Code)
			mockSvc.AssertExpectations(t)
		})
	}
}

func TestRejectChild(t *testing.T) {
	mockSvc := new(serviceMocks.MockAuthorizationService)
	app := fiber.New()
	app.Post("/api/rejeitar", RejectChild(mockSvc))

	body := `{"childId":"` + childID + `","guardianEmail":"maria@example.com"}`

	t.Run("success", func(t *testing.T) {
		mockSvc.On("Reject", mock.Anything, mock.MatchedBy(func(in service.RejectInput) bool {
			return in.ChildID == childID && in.GuardianEmail == "maria@example.com" && in.ApprovalToken == ""
		})).Return(&service.DecisionResult{ChildName: "Ana", Username: "ana01"}, nil).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/rejeitar", body))

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var res map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.Equal(t, true, res["success"])
		assert.Equal(t, "Ana", res["childName"])
		assert.NotContains(t, res, "guardianSaved")
		mockSvc.AssertExpectations(t)
	})

	t.Run("already rejected", func(t *testing.T) {
		mockSvc.On("Reject", mock.Anything, mock.Anything).Return(nil, service.ErrAlreadyRejected).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/rejeitar", body))

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "ALREADY_REJECTED", decodeError(t, resp).Error.Code)
	})

	for _, tt := range []struct {
		err  error
		code string
	}{
		{service.ErrGuardianMismatch, "GUARDIAN_MISMATCH"},
		{service.ErrInvalidToken, "INVALID_TOKEN"},
	} {
		t.Run(tt.code, func(t *testing.T) {
			mockSvc.On("Reject", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/rejeitar", body))

			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
			assert.Equal(t, tt.code, decodeError(t, resp).Error.Code)
		})
	}

	t.Run("concurrent decision", func(t *testing.T) {
		mockSvc.On("Reject", mock.Anything, mock.Anything).Return(nil, service.ErrAlreadyDecided).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/rejeitar", body))

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "ALREADY_DECIDED", decodeError(t, resp).Error.Code)
	})

	t.Run("database failure passes message through", func(t *testing.T) {
		mockSvc.On("Reject", mock.Anything, mock.Anything).
			Return(nil, &service.UpstreamError{Message: "deadlock detected"}).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/rejeitar", body))

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		res := decodeError(t, resp)
		assert.Equal(t, "UPSTREAM_ERROR", res.Error.Code)
		assert.Equal(t, "deadlock detected", res.Error.Message)
	})
}

func TestGetChildStatus(t *testing.T) {
	mockSvc := new(serviceMocks.MockAuthorizationService)
	app := fiber.New()
	app.Get("/api/children/:id", GetChildStatus(mockSvc))

	t.Run("success", func(t *testing.T) {
		mockSvc.On("ChildStatus", mock.Anything, childID).Return(&service.ChildStatus{
			ID: childID, Name: "Ana", Username: "ana01", Status: model.StatusPending,
		}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/children/"+childID, nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var res map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.Equal(t, "pending", res["status"])
		assert.NotContains(t, res, "approval_token")
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		mockSvc.On("ChildStatus", mock.Anything, "abc").Return(nil, service.ErrInvalidID).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/children/abc", nil))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decodeError(t, resp).Error.Code)
	})
}
