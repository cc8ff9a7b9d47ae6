package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"comfyguardians/internal/http/middleware"
	"comfyguardians/internal/service"
)

type testCreateRequest struct {
	Action         string `json:"action"`
	ChatID         string `json:"chat_id"`
	UserID         string `json:"user_id"`
	PsychologistID string `json:"psychologist_id"`
}

// DebugProbe godoc
// @Summary      Data layer diagnostics
// @Description  Checks the connection and read access to chats, messages, profiles and the object store
// @Tags         debug
// @Produce      json
// @Success      200  {object}  service.DebugReport
// @Failure      401  {object}  errorPayload
// @Failure      500  {object}  errorPayload
// @Router       /api/debug [get]
func DebugProbe(svc service.DebugService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		report, err := svc.Probe(c.UserContext())
		if err != nil {
			var up *service.UpstreamError
			if errors.As(err, &up) {
				c.Locals(middleware.ErrorLocalKey, err)
				return writeError(c, fiber.StatusInternalServerError, "CONNECTION_ERROR", up.Message)
			}
			return writeServiceError(c, err)
		}
		return c.JSON(report)
	}
}

// DebugTestCreate godoc
// @Summary      Debug write
// @Description  test_create_chat inserts a debug chat; test_create_message inserts a debug message
// @Tags         debug
// @Accept       json
// @Produce      json
// @Param        body  body      testCreateRequest  true  "Action"
// @Success      200   {object}  service.TestCreateResult
// @Failure      400   {object}  errorPayload
// @Failure      401   {object}  errorPayload
// @Router       /api/debug [post]
func DebugTestCreate(svc service.DebugService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req testCreateRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		}

		res, err := svc.TestCreate(c.UserContext(), service.TestCreateInput{
			Action:         req.Action,
			ChatID:         req.ChatID,
			UserID:         req.UserID,
			PsychologistID: req.PsychologistID,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}
