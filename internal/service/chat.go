package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"comfyguardians/internal/model"
	"comfyguardians/internal/repository"
	"comfyguardians/internal/storage"
)

const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 200
	// AttachmentURLExpiry is how long a presigned download URL stays valid.
	AttachmentURLExpiry = 15 * time.Minute
)

// MessageView is a message with its sender's profile.
type MessageView struct {
	model.Message
	Sender *model.ProfileSummary `json:"sender"`
}

// ChatView is a chat with its messages and participants.
type ChatView struct {
	model.Chat
	Messages         []MessageView         `json:"messages"`
	User             *model.ProfileSummary `json:"user,omitempty"`
	Psychologist     *model.ProfileSummary `json:"psychologist,omitempty"`
	LastMessage      *MessageView          `json:"lastMessage"`
	UnreadCount      int                   `json:"unreadCount"`
	ParticipantCount int                   `json:"participantCount"`
	IsAdminMode      bool                  `json:"isAdminMode"`
	MessageCount     int                   `json:"messageCount"`
}

// ChatUsers groups authorized profiles by role.
type ChatUsers struct {
	App          []model.ProfileSummary `json:"app"`
	Psychologist []model.ProfileSummary `json:"psicologo"`
	CMS          []model.ProfileSummary `json:"cms"`
	All          []model.ProfileSummary `json:"all"`
}

// Pagination describes a page of messages.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// MessagePage is one page of a chat's messages in chronological order.
type MessagePage struct {
	Messages   []MessageView `json:"messages"`
	Chat       *model.Chat   `json:"chat"`
	Pagination Pagination    `json:"pagination"`
}

// CreateChatInput opens a chat for a user, optionally with a psychologist.
type CreateChatInput struct {
	UserID         string
	PsychologistID *string
	Title          *string
}

// SendMessageInput is a new chat message.
type SendMessageInput struct {
	ChatID      string
	SenderID    string
	Content     string
	MessageType string
	Metadata    json.RawMessage
}

// AttachmentInput is an uploaded file to post into a chat.
type AttachmentInput struct {
	ChatID      string
	SenderID    string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AttachmentURL is a presigned download link.
type AttachmentURL struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// ChatService covers the psychologist chat use cases.
type ChatService interface {
	// CreateChat returns the active chat for the pair, creating it when missing.
	// created is false when an existing chat was returned.
	CreateChat(ctx context.Context, in CreateChatInput) (chat *model.Chat, created bool, err error)

	// ListChats lists active chats with participants and unread counts.
	// Outside admin mode a non-empty currentUserID restricts to that user's chats.
	ListChats(ctx context.Context, currentUserID string, adminMode bool) ([]ChatView, error)

	// ListChatUsers returns authorized profiles grouped by role.
	ListChatUsers(ctx context.Context) (*ChatUsers, error)

	// ListMessages returns a page of a chat's messages, oldest first.
	ListMessages(ctx context.Context, chatID string, page, limit int) (*MessagePage, error)

	// UserChats returns the user's active chats that have messages, most recent activity first.
	UserChats(ctx context.Context, userID string) ([]ChatView, error)

	SendMessage(ctx context.Context, in SendMessageInput) (*model.Message, error)

	MarkRead(ctx context.Context, messageID string, isRead bool) (*model.Message, error)

	// UploadAttachment stores the file and posts an image or file message for it.
	UploadAttachment(ctx context.Context, in AttachmentInput) (*model.Message, error)

	// AttachmentURL returns a presigned URL for the message's stored object.
	AttachmentURL(ctx context.Context, messageID string) (*AttachmentURL, error)
}

type chatService struct {
	chats    repository.ChatRepository
	messages repository.MessageRepository
	profiles repository.ProfileRepository
	store    storage.Storage
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
}

// NewChatService constructs a ChatService. store may be storage.Disabled{}.
func NewChatService(
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	profiles repository.ProfileRepository,
	store storage.Storage,
	log zerolog.Logger,
) ChatService {
	return &chatService{
		chats:    chats,
		messages: messages,
		profiles: profiles,
		store:    store,
		validate: validator.New(),
		log:      log.With().Str("component", "chat").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *chatService) CreateChat(ctx context.Context, in CreateChatInput) (*model.Chat, bool, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, false, ErrMissingFields
	}
	if in.PsychologistID != nil && *in.PsychologistID == "" {
		in.PsychologistID = nil
	}
	if !s.isUUID(in.UserID) || (in.PsychologistID != nil && !s.isUUID(*in.PsychologistID)) {
		return nil, false, ErrInvalidID
	}

	existing, err := s.chats.FindActiveByPair(ctx, in.UserID, in.PsychologistID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("find chat: %w", err)
	}

	if in.Title == nil || *in.Title == "" {
		title := "Chat with " + in.UserID
		in.Title = &title
	}

	created, err := s.chats.Create(ctx, &model.Chat{
		UserID:         in.UserID,
		PsychologistID: in.PsychologistID,
		Title:          in.Title,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// A concurrent request opened the same chat first.
		existing, findErr := s.chats.FindActiveByPair(ctx, in.UserID, in.PsychologistID)
		if findErr != nil {
			return nil, false, fmt.Errorf("find chat: %w", findErr)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create chat: %w", err)
	}

	s.log.Info().Str("event", "chat_created").Str("chat_id", created.ID).Send()
	return created, true, nil
}

func (s *chatService) ListChats(ctx context.Context, currentUserID string, adminMode bool) ([]ChatView, error) {
	f := repository.ChatFilter{}
	if !adminMode && currentUserID != "" {
		if !s.isUUID(currentUserID) {
			return nil, ErrInvalidID
		}
		f.ParticipantID = currentUserID
	}

	chats, err := s.chats.ListActive(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	views, err := s.hydrate(ctx, chats)
	if err != nil {
		return nil, err
	}

	for i := range views {
		v := &views[i]
		v.IsAdminMode = adminMode
		v.ParticipantCount = len(v.Participants())
		v.MessageCount = len(v.Messages)
		if len(v.Messages) > 0 {
			last := v.Messages[0]
			v.LastMessage = &last
		}
		v.UnreadCount = unreadCount(v.Messages, currentUserID, adminMode)
	}
	return views, nil
}

// unreadCount counts every unread message in admin mode and only the ones
// sent by others in user mode.
func unreadCount(msgs []MessageView, currentUserID string, adminMode bool) int {
	if !adminMode && currentUserID == "" {
		return 0
	}
	n := 0
	for _, m := range msgs {
		if m.IsRead {
			continue
		}
		if adminMode || m.SenderID != currentUserID {
			n++
		}
	}
	return n
}

func (s *chatService) ListChatUsers(ctx context.Context) (*ChatUsers, error) {
	profiles, err := s.profiles.ListAuthorized(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := &ChatUsers{
		App:          []model.ProfileSummary{},
		Psychologist: []model.ProfileSummary{},
		CMS:          []model.ProfileSummary{},
		All:          profiles,
	}
	for _, p := range profiles {
		switch p.UserRole {
		case model.RoleApp:
			users.App = append(users.App, p)
		case model.RolePsychologist:
			users.Psychologist = append(users.Psychologist, p)
		case model.RoleCMS:
			users.CMS = append(users.CMS, p)
		}
	}
	return users, nil
}

func (s *chatService) ListMessages(ctx context.Context, chatID string, page, limit int) (*MessagePage, error) {
	if chatID == "" {
		return nil, ErrMissingFields
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultMessageLimit
	}
	if limit > MaxMessageLimit {
		limit = MaxMessageLimit
	}
	// Keep the offset within the range Postgres accepts.
	if maxPage := math.MaxInt32 / limit; page > maxPage {
		page = maxPage
	}

	chat, err := s.findChat(ctx, chatID, false)
	if err != nil {
		return nil, err
	}

	res, err := s.messages.ListByChat(ctx, chatID, repository.PageQuery{
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	senders, err := s.summaries(ctx, senderIDs(res.Items))
	if err != nil {
		return nil, err
	}

	// The page is fetched newest first; reverse it into chronological order.
	views := make([]MessageView, len(res.Items))
	for i, m := range res.Items {
		views[len(res.Items)-1-i] = MessageView{Message: m, Sender: senders[m.SenderID]}
	}

	return &MessagePage{
		Messages: views,
		Chat:     chat,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      res.Total,
			TotalPages: int(math.Ceil(float64(res.Total) / float64(limit))),
		},
	}, nil
}

func (s *chatService) UserChats(ctx context.Context, userID string) ([]ChatView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingFields
	}
	if !s.isUUID(userID) {
		return nil, ErrInvalidID
	}

	chats, err := s.chats.ListActive(ctx, repository.ChatFilter{
		ParticipantID:      userID,
		WithMessagesOnly:   true,
		OrderByLastMessage: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	views, err := s.hydrate(ctx, chats)
	if err != nil {
		return nil, err
	}
	for i := range views {
		views[i].MessageCount = len(views[i].Messages)
		views[i].ParticipantCount = len(views[i].Participants())
	}
	return views, nil
}

func (s *chatService) SendMessage(ctx context.Context, in SendMessageInput) (*model.Message, error) {
	if blank(in.ChatID, in.SenderID, in.Content) {
		return nil, ErrMissingFields
	}
	if in.MessageType == "" {
		in.MessageType = model.MessageTypeText
	}
	if err := s.validate.Var(in.MessageType, "oneof=text image file system"); err != nil {
		return nil, ErrInvalidMessage
	}
	if !s.isUUID(in.SenderID) {
		return nil, ErrInvalidID
	}
	if len(in.Metadata) > 0 && (!json.Valid(in.Metadata) || reservesStoragePath(in.Metadata)) {
		return nil, ErrInvalidMetadata
	}

	if _, err := s.findChat(ctx, in.ChatID, true); err != nil {
		return nil, err
	}

	return s.post(ctx, &model.Message{
		ChatID:      in.ChatID,
		SenderID:    in.SenderID,
		Content:     in.Content,
		MessageType: in.MessageType,
		Metadata:    in.Metadata,
	})
}

// post fills in sender_name, stores the message and touches the chat.
func (s *chatService) post(ctx context.Context, m *model.Message) (*model.Message, error) {
	name := s.senderName(ctx, m.SenderID)
	m.SenderName = &name

	created, err := s.messages.Create(ctx, m)
	if err != nil {
		return nil, upstream(err, "could not create message")
	}

	if err := s.chats.TouchLastMessage(ctx, m.ChatID, s.now()); err != nil {
		s.log.Warn().
			Str("event", "chat_touch_failed").
			Str("chat_id", m.ChatID).
			Err(err).
			Msg("non-critical")
	}
	return created, nil
}

// senderName resolves to the profile's name, then its username, then the id itself.
func (s *chatService) senderName(ctx context.Context, senderID string) string {
	found, err := s.profiles.FindSummaries(ctx, []string{senderID})
	if err != nil || len(found) == 0 {
		return senderID
	}
	if name := found[0].DisplayName(); name != "" {
		return name
	}
	return senderID
}

func (s *chatService) MarkRead(ctx context.Context, messageID string, isRead bool) (*model.Message, error) {
	if messageID == "" {
		return nil, ErrMissingFields
	}
	if !s.isUUID(messageID) {
		return nil, ErrMessageNotFound
	}
	m, err := s.messages.SetRead(ctx, messageID, isRead)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	return m, nil
}

func (s *chatService) UploadAttachment(ctx context.Context, in AttachmentInput) (*model.Message, error) {
	if blank(in.ChatID, in.SenderID, in.Filename) || in.Body == nil {
		return nil, ErrMissingFields
	}
	if !s.isUUID(in.SenderID) {
		return nil, ErrInvalidID
	}
	if _, isDisabled := s.store.(storage.Disabled); isDisabled {
		return nil, ErrStorageUnavailable
	}
	if _, err := s.findChat(ctx, in.ChatID, true); err != nil {
		return nil, err
	}

	if in.ContentType == "" {
		in.ContentType = "application/octet-stream"
	}
	key := attachmentPrefix(in.ChatID) + uuid.NewString() + filepath.Ext(in.Filename)

	obj, err := s.store.Put(ctx, key, in.Body, storage.PutObjectOptions{
		Size:        in.Size,
		ContentType: in.ContentType,
		Metadata:    map[string]string{"original-filename": in.Filename},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	meta, err := json.Marshal(model.AttachmentMetadata{
		StoragePath: obj.Key,
		Filename:    in.Filename,
		Size:        obj.Size,
		ContentType: in.ContentType,
	})
	if err != nil {
		return nil, err
	}

	msgType := model.MessageTypeFile
	if strings.HasPrefix(in.ContentType, "image/") {
		msgType = model.MessageTypeImage
	}

	created, err := s.post(ctx, &model.Message{
		ChatID:      in.ChatID,
		SenderID:    in.SenderID,
		Content:     in.Filename,
		MessageType: msgType,
		Metadata:    meta,
	})
	if err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, err
	}
	return created, nil
}

func (s *chatService) AttachmentURL(ctx context.Context, messageID string) (*AttachmentURL, error) {
	if !s.isUUID(messageID) {
		return nil, ErrMessageNotFound
	}
	if _, isDisabled := s.store.(storage.Disabled); isDisabled {
		return nil, ErrStorageUnavailable
	}

	m, err := s.messages.FindByID(ctx, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find message: %w", err)
	}

	if m.MessageType != model.MessageTypeImage && m.MessageType != model.MessageTypeFile {
		return nil, ErrNoAttachment
	}
	var meta model.AttachmentMetadata
	if len(m.Metadata) == 0 || json.Unmarshal(m.Metadata, &meta) != nil {
		return nil, ErrNoAttachment
	}
	// Only objects stored under the message's own chat are served.
	if !strings.HasPrefix(meta.StoragePath, attachmentPrefix(m.ChatID)) || path.Clean(meta.StoragePath) != meta.StoragePath {
		return nil, ErrNoAttachment
	}

	u, err := s.store.PresignGet(ctx, meta.StoragePath, AttachmentURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign: %w", err)
	}
	return &AttachmentURL{URL: u, ExpiresIn: int(AttachmentURLExpiry.Seconds())}, nil
}

// attachmentPrefix is the object key prefix for a chat's uploads.
func attachmentPrefix(chatID string) string {
	return "chats/" + chatID + "/"
}

// reservesStoragePath reports whether client metadata tries to set
// storage_path, which only UploadAttachment may write.
func reservesStoragePath(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) != nil {
		return false
	}
	_, ok := obj["storage_path"]
	return ok
}

func (s *chatService) findChat(ctx context.Context, id string, activeOnly bool) (*model.Chat, error) {
	if !s.isUUID(id) {
		return nil, ErrChatNotFound
	}
	chat, err := s.chats.FindByID(ctx, id, activeOnly)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find chat: %w", err)
	}
	return chat, nil
}

// hydrate attaches messages (newest first) and participant summaries to chats.
func (s *chatService) hydrate(ctx context.Context, chats []model.Chat) ([]ChatView, error) {
	views := make([]ChatView, len(chats))
	if len(chats) == 0 {
		return views, nil
	}

	ids := make([]string, len(chats))
	for i, c := range chats {
		ids[i] = c.ID
	}
	msgs, err := s.messages.ListByChats(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	byChat := make(map[string][]model.Message, len(chats))
	people := newIDSet()
	for _, c := range chats {
		people.add(c.Participants()...)
	}
	for _, m := range msgs {
		byChat[m.ChatID] = append(byChat[m.ChatID], m)
		people.add(m.SenderID)
	}

	summaries, err := s.summaries(ctx, people.ids)
	if err != nil {
		return nil, err
	}

	for i, c := range chats {
		v := ChatView{Chat: c, Messages: make([]MessageView, 0, len(byChat[c.ID]))}
		for _, m := range byChat[c.ID] {
			v.Messages = append(v.Messages, MessageView{Message: m, Sender: summaries[m.SenderID]})
		}
		v.User = summaries[c.UserID]
		if c.PsychologistID != nil {
			v.Psychologist = summaries[*c.PsychologistID]
		}
		views[i] = v
	}
	return views, nil
}

func (s *chatService) summaries(ctx context.Context, ids []string) (map[string]*model.ProfileSummary, error) {
	out := make(map[string]*model.ProfileSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	found, err := s.profiles.FindSummaries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find profiles: %w", err)
	}
	for i := range found {
		out[found[i].ID] = &found[i]
	}
	return out, nil
}

func (s *chatService) isUUID(v string) bool {
	return s.validate.Var(v, "uuid") == nil
}

func senderIDs(msgs []model.Message) []string {
	set := newIDSet()
	for _, m := range msgs {
		set.add(m.SenderID)
	}
	return set.ids
}

// idSet keeps the first-seen order of unique ids.
type idSet struct {
	seen map[string]struct{}
	ids  []string
}

func newIDSet() *idSet {
	return &idSet{seen: make(map[string]struct{})}
}

func (s *idSet) add(ids ...string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := s.seen[id]; ok {
			continue
		}
		s.seen[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
}
