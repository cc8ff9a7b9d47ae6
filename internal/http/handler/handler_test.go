package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"comfyguardians/internal/service"
	serviceMocks "comfyguardians/internal/service/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	childID = "8f14e45f-ceea-467f-a0e6-1c2b3d4e5f60"
	userID  = "3c59dc04-8a6e-4c2b-9f1a-000000000001"
	psyID   = "3c59dc04-8a6e-4c2b-9f1a-000000000002"
	chatID  = "c9f0f895-fb98-4b5e-9c3a-000000000010"
	msgID   = "45c48cce-2e2d-4fbd-8a1c-000000000020"
)

// jsonRequest builds a request with a JSON body.
func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var body errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp).Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{"missing fields", service.ErrMissingFields, http.StatusBadRequest, "MISSING_FIELDS", service.ErrMissingFields.Error()},
		{"terms", service.ErrTermsNotAccepted, http.StatusBadRequest, "TERMS_NOT_ACCEPTED", service.ErrTermsNotAccepted.Error()},
		{"mismatch", service.ErrGuardianMismatch, http.StatusForbidden, "GUARDIAN_MISMATCH", service.ErrGuardianMismatch.Error()},
		{"token", service.ErrInvalidToken, http.StatusForbidden, "INVALID_TOKEN", service.ErrInvalidToken.Error()},
		{"child not found", service.ErrChildNotFound, http.StatusNotFound, "CHILD_NOT_FOUND", service.ErrChildNotFound.Error()},
		{"already decided", service.ErrAlreadyDecided, http.StatusConflict, "ALREADY_DECIDED", service.ErrAlreadyDecided.Error()},
		{
			"wrapped guardian exists",
			fmt.Errorf("%w for child %q", service.ErrGuardianExists, "Ana"),
			http.StatusConflict, "GUARDIAN_EXISTS",
			`a guardian is already registered with this email for child "Ana"`,
		},
		{"storage", service.ErrStorageUnavailable, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", service.ErrStorageUnavailable.Error()},
		{
			"upstream",
			&service.UpstreamError{Message: "token expired", Err: errors.New("procedure failed")},
			http.StatusInternalServerError, "UPSTREAM_ERROR", "token expired",
		},
		{"unknown", errors.New("pq: connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return writeServiceError(c, tt.err) })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			body := decodeError(t, resp)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Equal(t, tt.wantMessage, body.Error.Message)
		})
	}
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	RegisterRoutes(app, nil, Services{
		Authorization: new(serviceMocks.MockAuthorizationService),
		Chat:          new(serviceMocks.MockChatService),
		Debug:         new(serviceMocks.MockDebugService),
	}, RouteOptions{Gatherer: prometheus.NewRegistry()})

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		// Health endpoint only allows GET
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, resp).Error.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestRouting_APIKey(t *testing.T) {
	chatSvc := new(serviceMocks.MockChatService)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	RegisterRoutes(app, nil, Services{
		Authorization: new(serviceMocks.MockAuthorizationService),
		Chat:          chatSvc,
		Debug:         new(serviceMocks.MockDebugService),
	}, RouteOptions{AnonKey: "anon-key"})

	t.Run("missing key", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/chat/list", nil))

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, resp).Error.Code)
	})

	t.Run("debug requires key", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/debug", nil))

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid key", func(t *testing.T) {
		chatSvc.On("ListChats", mock.Anything, "", false).Return([]service.ChatView{}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/chat/list", nil)
		req.Header.Set("apikey", "anon-key")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		chatSvc.AssertExpectations(t)
	})

	t.Run("decision routes stay public", func(t *testing.T) {
		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/rejeitar", "{"))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_BODY", decodeError(t, resp).Error.Code)
	})
}

func TestRouting_DecisionRateLimit(t *testing.T) {
	authSvc := new(serviceMocks.MockAuthorizationService)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	RegisterRoutes(app, nil, Services{
		Authorization: authSvc,
		Chat:          new(serviceMocks.MockChatService),
		Debug:         new(serviceMocks.MockDebugService),
	}, RouteOptions{RateLimitMax: 1})

	authSvc.On("Reject", mock.Anything, mock.Anything).Return(nil, service.ErrMissingFields).Once()

	first, _ := app.Test(jsonRequest(http.MethodPost, "/api/rejeitar", `{}`))
	assert.Equal(t, http.StatusBadRequest, first.StatusCode)

	second, _ := app.Test(jsonRequest(http.MethodPost, "/api/rejeitar", `{}`))
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.Equal(t, "TOO_MANY_REQUESTS", decodeError(t, second).Error.Code)

	authSvc.AssertExpectations(t)
}

func TestRouting_DecisionRateLimitIgnoresForwardedFor(t *testing.T) {
	authSvc := new(serviceMocks.MockAuthorizationService)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	RegisterRoutes(app, nil, Services{
		Authorization: authSvc,
		Chat:          new(serviceMocks.MockChatService),
		Debug:         new(serviceMocks.MockDebugService),
	}, RouteOptions{RateLimitMax: 1})

	authSvc.On("Reject", mock.Anything, mock.Anything).Return(nil, service.ErrMissingFields).Once()

	for i, forwarded := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3, 10.0.0.1"} {
		req := jsonRequest(http.MethodPost, "/api/rejeitar", `{}`)
		req.Header.Set("X-Forwarded-For", forwarded)
		resp, _ := app.Test(req)

		if i == 0 {
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			continue
		}
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode, forwarded)
	}

	authSvc.AssertExpectations(t)
}

func TestTrustProxies(t *testing.T) {
	tests := []struct {
		name    string
		proxies []string
		want    string
	}{
		{name: "trusted peer forwards client address", proxies: []string{"0.0.0.0"}, want: "203.0.113.7"},
		{name: "untrusted peer is used as is", proxies: []string{"10.0.0.1"}, want: "0.0.0.0"},
		{name: "no proxies configured", want: "0.0.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(TrustProxies(fiber.Config{}, tt.proxies, "X-Real-IP"))
			app.Get("/ip", func(c *fiber.Ctx) error { return c.SendString(c.IP()) })

			req := httptest.NewRequest(http.MethodGet, "/ip", nil)
			req.Header.Set("X-Real-IP", "203.0.113.7")
			resp, _ := app.Test(req)

			body, _ := io.ReadAll(resp.Body)
			assert.Equal(t, tt.want, string(body))
		})
	}
}

func TestErrorHandler_UnhandledError(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("boom") })

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(raw), "boom")
	assert.Contains(t, string(raw), "INTERNAL_ERROR")
}
