package handler

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"comfyguardians/internal/service"
)

type createChatRequest struct {
	UserID         string  `json:"user_id"`
	PsychologistID *string `json:"psychologist_id"`
	Title          *string `json:"title"`
}

type userChatsRequest struct {
	UserID string `json:"user_id"`
}

type sendMessageRequest struct {
	ChatID      string          `json:"chat_id"`
	SenderID    string          `json:"sender_id"`
	Content     string          `json:"content"`
	MessageType string          `json:"message_type"`
	Metadata    json.RawMessage `json:"metadata"`
}

type markReadRequest struct {
	MessageID string `json:"message_id"`
	IsRead    *bool  `json:"is_read"`
}

// queryInt reads a positive integer query parameter. Missing, malformed or
// non-positive values fall back to def.
func queryInt(c *fiber.Ctx, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 1 {
		return def
	}
	return n
}

// CreateChat godoc
// @Summary      Open a chat
// @Description  Returns the active chat for the user/psychologist pair, creating it when missing
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        body  body      createChatRequest  true  "Participants"
// @Success      200   {object}  map[string]any  "Chat already exists"
// @Success      201   {object}  map[string]any
// @Failure      400   {object}  errorPayload
// @Failure      401   {object}  errorPayload
// @Failure      500   {object}  errorPayload
// @Router       /api/chat/create [post]
func CreateChat(svc service.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createChatRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		}

		chat, created, err := svc.CreateChat(c.UserContext(), service.CreateChatInput{
			UserID:         req.UserID,
			PsychologistID: req.PsychologistID,
			Title:          req.Title,
		})
		if err != nil {
			return writeServiceError(c, err)
		}

		if !created {
			return c.JSON(fiber.Map{"message": "Chat already exists", "chat": chat})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Chat created successfully", "chat": chat})
	}
}

// ListChats godoc
// @Summary      List active chats
// @Tags         chat
// @Produce      json
// @Param        current_user_id  query     string  false  "Restrict to this participant's chats"
// @Param        admin_mode       query     bool    false  "List every chat and count all unread messages"
// @Success      200              {object}  map[string]any
// @Failure      401              {object}  errorPayload
// @Failure      500              {object}  errorPayload
// @Router       /api/chat/list [get]
func ListChats(svc service.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		chats, err := svc.ListChats(c.UserContext(), c.Query("current_user_id"), c.QueryBool("admin_mode", false))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"chats": chats, "total": len(chats)})
	}
}

// ListChatUsers godoc
// @Summary      Authorized users grouped by role
// @Tags         chat
// @Produce      json
// @Success      200  {object}  map[string]service.ChatUsers
// @Failure      401  {object}  errorPayload
// @Failure      500  {object}  errorPayload
// @Router       /api/chat/list [post]
func ListChatUsers(svc service.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		users, err := svc.ListChatUsers(c.UserContext())
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"users": users})
	}
}

// ListMessages godoc
// @Summary      Page through a chat's messages
// @Tags         chat
// @Produce      json
// @Param        chat_id  query     string  true   "Chat ID"
// @Param        limit    query     int     false  "Page size (default 50, max 200)"
// @Param        page     query     int     false  "Page number, starting at 1"
// @Success      200      {object}  service.MessagePage
// @Failure      400      {object}  errorPayload
// @Failure      404      {object}  errorPayload
// @Router       /api/chat/messages [get]
func ListMessages(svc service.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := svc.ListMessages(
			c.UserContext(),
			c.Query("chat_id"),
			queryInt(c, "page", 1),
			queryInt(c, "limit", service.DefaultMessageLimit),
		)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(page)
	}
}

// UserChats godoc
// @Summary      A user's chats with messages
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        body  body      userChatsRequest  true  "User"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  errorPayload
// @Router       /api/chat/messages [post]
func UserChats(svc service.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req userChatsRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		}

		chats, err := svc.UserChats(c.UserContext(), req.UserID)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"chats": chats})
	}
}

// SendMessage godoc
// @Summary      Post a message
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        body  body      sendMessageRequest  true  "Message"
// @Success      201   {object}  map[string]any
// @Failure      400   {object}  errorPayload
// @Failure      404   {object}  errorPayload
// @Failure      500   {object}  errorPayload
// @Router       /api/chat/message [post]
func SendMessage(svc service.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req sendMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		}

		msg, err := svc.SendMessage(c.UserContext(), service.SendMessageInput{
			ChatID:      req.ChatID,
			SenderID:    req.SenderID,
			Content:     req.Content,
			MessageType: req.MessageType,
			Metadata:    req.Metadata,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Message sent successfully", "data": msg})
	}
}

// MarkMessageRead godoc
// @Summary      Set a message's read flag
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        body  body      markReadRequest  true  "is_read defaults to true"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  errorPayload
// @Failure      404   {object}  errorPayload
// @Router       /api/chat/message [patch]
func MarkMessageRead(svc service.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req markReadRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		}

		isRead := true
		if req.IsRead != nil {
			isRead = *req.IsRead
		}

		msg, err := svc.MarkRead(c.UserContext(), req.MessageID, isRead)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Message updated successfully", "data": msg})
	}
}

// UploadAttachment godoc
// @Summary      Upload a chat attachment
// @Description  Stores the file and posts an image or file message referencing it
// @Tags         chat
// @Accept       multipart/form-data
// @Produce      json
// @Param        file       formData  file    true  "Attachment"
// @Param        chat_id    formData  string  true  "Chat ID"
// @Param        sender_id  formData  string  true  "Sender profile ID"
// @Success      201        {object}  map[string]any
// @Failure      400        {object}  errorPayload
// @Failure      404        {object}  errorPayload
// @Failure      503        {object}  errorPayload
// @Router       /api/chat/attachment [post]
func UploadAttachment(svc service.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		msg, err := svc.UploadAttachment(c.UserContext(), service.AttachmentInput{
			ChatID:      c.FormValue("chat_id"),
			SenderID:    c.FormValue("sender_id"),
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Size:        fh.Size,
			Body:        f,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Attachment uploaded successfully", "data": msg})
	}
}

// GetAttachmentURL godoc
// @Summary      Presigned attachment download URL
// @Tags         chat
// @Produce      json
// @Param        message_id  path      string  true  "Message ID"
// @Success      200         {object}  service.AttachmentURL
// @Failure      404         {object}  errorPayload
// @Failure      503         {object}  errorPayload
// @Router       /api/chat/attachment/{message_id} [get]
func GetAttachmentURL(svc service.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := svc.AttachmentURL(c.UserContext(), c.Params("message_id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(u)
	}
}
