package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"comfyguardians/internal/service"
	serviceMocks "comfyguardians/internal/service/mocks"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDebugProbe(t *testing.T) {
	mockSvc := new(serviceMocks.MockDebugService)
	app := fiber.New()
	app.Get("/api/debug", DebugProbe(mockSvc))

	t.Run("success", func(t *testing.T) {
		mockSvc.On("Probe", mock.Anything).Return(&service.DebugReport{
			Status:      "SUCCESS",
			Timestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			Connection:  "OK",
			DataAccess:  map[string]service.Probe{"chats": {Accessible: true, Count: 3}},
			Environment: map[string]string{"database_url": "SET", "anon_key": "NOT_SET"},
		}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/debug", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var res service.DebugReport
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.Equal(t, "SUCCESS", res.Status)
		assert.Equal(t, 3, res.DataAccess["chats"].Count)
		mockSvc.AssertExpectations(t)
	})

	t.Run("connection failure", func(t *testing.T) {
		mockSvc.On("Probe", mock.Anything).
			Return(nil, &service.UpstreamError{Message: "dial tcp: connection refused", Err: errors.New("dial")}).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/debug", nil))

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		res := decodeError(t, resp)
		assert.Equal(t, "CONNECTION_ERROR", res.Error.Code)
		assert.Equal(t, "dial tcp: connection refused", res.Error.Message)
	})
}

func TestDebugTestCreate(t *testing.T) {
	mockSvc := new(serviceMocks.MockDebugService)
	app := fiber.New()
	app.Post("/api/debug", DebugTestCreate(mockSvc))

	t.Run("create chat", func(t *testing.T) {
		in := service.TestCreateInput{Action: service.ActionTestCreateChat, UserID: userID}
		mockSvc.On("TestCreate", mock.Anything, in).
			Return(&service.TestCreateResult{Action: in.Action, Success: true}, nil).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/debug", `{"action":"test_create_chat","user_id":"`+userID+`"}`))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var res service.TestCreateResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.True(t, res.Success)
		mockSvc.AssertExpectations(t)
	})

	t.Run("write failure is reported in the body", func(t *testing.T) {
		msg := "insert violates foreign key"
		mockSvc.On("TestCreate", mock.Anything, mock.Anything).
			Return(&service.TestCreateResult{Action: service.ActionTestCreateMessage, Error: &msg}, nil).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/debug", `{"action":"test_create_message"}`))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var res service.TestCreateResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.False(t, res.Success)
		require.NotNil(t, res.Error)
		assert.Equal(t, msg, *res.Error)
	})

	t.Run("unknown action", func(t *testing.T) {
		mockSvc.On("TestCreate", mock.Anything, service.TestCreateInput{Action: "drop_tables"}).
			Return(nil, fmt.Errorf("%w: %q", service.ErrUnknownAction, "drop_tables")).Once()

		resp, _ := app.Test(jsonRequest(http.MethodPost, "/api/debug", `{"action":"drop_tables"}`))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "UNKNOWN_ACTION", decodeError(t, resp).Error.Code)
	})
}
