package handler

import (
	"github.com/gofiber/fiber/v2"

	"comfyguardians/internal/service"
)

type authorizeRequest struct {
	ChildID                string `json:"childId"`
	ApprovalToken          string `json:"approvalToken"`
	GuardianName           string `json:"guardianName"`
	GuardianEmail          string `json:"guardianEmail"`
	GuardianAddress        string `json:"guardianAddress"`
	GuardianPostalCode     string `json:"guardianPostalCode"`
	TermsOfUse             bool   `json:"termsOfUse"`
	GDPRConsentDeclaration bool   `json:"gdprConsentDeclaration"`
}

type rejectRequest struct {
	ChildID       string `json:"childId"`
	ApprovalToken string `json:"approvalToken"`
	GuardianEmail string `json:"guardianEmail"`
}

type decisionResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	ChildName     string `json:"childName"`
	Username      string `json:"username"`
	GuardianSaved bool   `json:"guardianSaved,omitempty"`
}

// clientIP prefers the first X-Forwarded-For entry set by the fronting proxy.
func clientIP(c *fiber.Ctx) string {
	if ips := c.IPs(); len(ips) > 0 && ips[0] != "" {
		return ips[0]
	}
	return c.IP()
}

// AuthorizeChild godoc
// @Summary      Authorize a child account
// @Description  Records the guardian's consent and activates the child's account
// @Tags         authorization
// @Accept       json
// @Produce      json
// @Param        body  body      authorizeRequest  true  "Guardian consent form"
// @Success      200   {object}  decisionResponse
// @Failure      400   {object}  errorPayload
// @Failure      403   {object}  errorPayload
// @Failure      404   {object}  errorPayload
// @Failure      409   {object}  errorPayload
// @Failure      429   {object}  errorPayload
// @Failure      500   {object}  errorPayload
// @Router       /api/autorizar [post]
func AuthorizeChild(svc service.AuthorizationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req authorizeRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		}

		res, err := svc.Authorize(c.UserContext(), service.AuthorizeInput{
			ChildID:                req.ChildID,
			ApprovalToken:          req.ApprovalToken,
			GuardianName:           req.GuardianName,
			GuardianEmail:          req.GuardianEmail,
			GuardianAddress:        req.GuardianAddress,
			GuardianPostalCode:     req.GuardianPostalCode,
			TermsOfUse:             req.TermsOfUse,
			GDPRConsentDeclaration: req.GDPRConsentDeclaration,
			IPAddress:              clientIP(c),
			UserAgent:              c.Get(fiber.HeaderUserAgent),
		})
		if err != nil {
			return writeServiceError(c, err)
		}

		return c.JSON(decisionResponse{
			Success:       true,
			Message:       "Authorization completed. The guardian's data has been saved.",
			ChildName:     res.ChildName,
			Username:      res.Username,
			GuardianSaved: true,
		})
	}
}

// RejectChild godoc
// @Summary      Reject a child account
// @Tags         authorization
// @Accept       json
// @Produce      json
// @Param        body  body      rejectRequest  true  "Guardian rejection form"
// @Success      200   {object}  decisionResponse
// @Failure      400   {object}  errorPayload
// @Failure      403   {object}  errorPayload
// @Failure      404   {object}  errorPayload
// @Failure      409   {object}  errorPayload
// @Failure      429   {object}  errorPayload
// @Failure      500   {object}  errorPayload
// @Router       /api/rejeitar [post]
func RejectChild(svc service.AuthorizationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req rejectRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		}

		res, err := svc.Reject(c.UserContext(), service.RejectInput{
			ChildID:       req.ChildID,
			ApprovalToken: req.ApprovalToken,
			GuardianEmail: req.GuardianEmail,
			IPAddress:     clientIP(c),
			UserAgent:     c.Get(fiber.HeaderUserAgent),
		})
		if err != nil {
			return writeServiceError(c, err)
		}

		return c.JSON(decisionResponse{
			Success:   true,
			Message:   "Rejection recorded. The account will not be activated.",
			ChildName: res.ChildName,
			Username:  res.Username,
		})
	}
}

// GetChildStatus godoc
// @Summary      Child authorization status
// @Description  Returns the child's name and whether the account is pending, authorized or rejected
// @Tags         authorization
// @Produce      json
// @Param        id   path      string  true  "Child profile ID (UUID)"
// @Success      200  {object}  service.ChildStatus
// @Failure      400  {object}  errorPayload
// @Failure      404  {object}  errorPayload
// @Router       /api/children/{id} [get]
func GetChildStatus(svc service.AuthorizationService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := svc.ChildStatus(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(st)
	}
}
