package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"comfyguardians/internal/model"
	"comfyguardians/internal/repository"
	"comfyguardians/internal/storage"
)

// Debug actions accepted by TestCreate.
const (
	ActionTestCreateChat    = "test_create_chat"
	ActionTestCreateMessage = "test_create_message"
)

// Probe is the result of reading from one data source.
type Probe struct {
	Accessible bool    `json:"accessible"`
	Count      int     `json:"count"`
	Error      *string `json:"error"`
}

// RecentData holds the newest chats and messages.
type RecentData struct {
	Chats    []model.Chat    `json:"chats"`
	Messages []model.Message `json:"messages"`
}

// DebugReport is the connectivity report served by the debug endpoint.
type DebugReport struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Connection  string            `json:"connection"`
	DataAccess  map[string]Probe  `json:"data_access"`
	RecentData  RecentData        `json:"recent_data"`
	Environment map[string]string `json:"environment"`
}

// TestCreateInput selects a debug write.
type TestCreateInput struct {
	Action         string
	ChatID         string
	UserID         string
	PsychologistID string
}

// TestCreateResult reports a debug write. Database errors land in Error.
type TestCreateResult struct {
	Action  string  `json:"action"`
	Success bool    `json:"success"`
	Data    any     `json:"data"`
	Error   *string `json:"error"`
}

// EnvironmentFlags tells which connection settings are present.
type EnvironmentFlags struct {
	DatabaseURL bool
	AnonKey     bool
}

// DebugService runs diagnostics against the data layer.
type DebugService interface {
	// Probe checks the connection and read access to every table.
	Probe(ctx context.Context) (*DebugReport, error)

	// TestCreate performs one of the debug write actions.
	TestCreate(ctx context.Context, in TestCreateInput) (*TestCreateResult, error)
}

type debugService struct {
	profiles repository.ProfileRepository
	chats    repository.ChatRepository
	messages repository.MessageRepository
	store    storage.Storage
	env      EnvironmentFlags
	log      zerolog.Logger
	now      func() time.Time
}

// NewDebugService constructs a DebugService.
func NewDebugService(
	profiles repository.ProfileRepository,
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	store storage.Storage,
	env EnvironmentFlags,
	log zerolog.Logger,
) DebugService {
	return &debugService{
		profiles: profiles,
		chats:    chats,
		messages: messages,
		store:    store,
		env:      env,
		log:      log.With().Str("component", "debug").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *debugService) Probe(ctx context.Context) (*DebugReport, error) {
	if _, err := s.profiles.Count(ctx); err != nil {
		s.log.Error().Str("event", "debug_connection_failed").Err(err).Send()
		return nil, upstream(err, "connection error")
	}

	report := &DebugReport{
		Status:     "SUCCESS",
		Timestamp:  s.now(),
		Connection: "OK",
		DataAccess: map[string]Probe{
			"chats":    probe(s.chats.Recent(ctx, 10)),
			"messages": probe(s.messages.Recent(ctx, 10)),
			"profiles": probe(s.profiles.List(ctx, 10)),
			"complex_query": probe(s.chats.ListActive(ctx, repository.ChatFilter{
				WithMessagesOnly:   true,
				OrderByLastMessage: true,
				Limit:              5,
			})),
			"storage": storageProbe(s.store.Ping(ctx)),
		},
		RecentData: RecentData{
			Chats:    []model.Chat{},
			Messages: []model.Message{},
		},
		Environment: map[string]string{
			"database_url": setFlag(s.env.DatabaseURL),
			"anon_key":     setFlag(s.env.AnonKey),
		},
	}

	if chats, err := s.chats.Recent(ctx, 3); err == nil {
		report.RecentData.Chats = chats
	}
	if msgs, err := s.messages.Recent(ctx, 3); err == nil {
		report.RecentData.Messages = msgs
	}
	return report, nil
}

func (s *debugService) TestCreate(ctx context.Context, in TestCreateInput) (*TestCreateResult, error) {
	switch in.Action {
	case ActionTestCreateChat:
		title := "Debug test chat"
		psy := orNewID(in.PsychologistID)
		chat, err := s.chats.Create(ctx, &model.Chat{
			UserID:         orNewID(in.UserID),
			PsychologistID: &psy,
			Title:          &title,
		})
		return result(in.Action, chat, err), nil

	case ActionTestCreateMessage:
		sender := "debug"
		msg, err := s.messages.Create(ctx, &model.Message{
			ChatID:      orNewID(in.ChatID),
			SenderID:    orNewID(in.UserID),
			SenderName:  &sender,
			Content:     "Debug test message",
			MessageType: model.MessageTypeText,
		})
		return result(in.Action, msg, err), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, in.Action)
	}
}

func result[T any](action string, data *T, err error) *TestCreateResult {
	res := &TestCreateResult{Action: action, Success: err == nil}
	if err != nil {
		msg := err.Error()
		res.Error = &msg
		return res
	}
	res.Data = data
	return res
}

func probe[T any](rows []T, err error) Probe {
	if err != nil {
		msg := err.Error()
		return Probe{Error: &msg}
	}
	return Probe{Accessible: true, Count: len(rows)}
}

func storageProbe(err error) Probe {
	if err != nil {
		msg := err.Error()
		return Probe{Error: &msg}
	}
	return Probe{Accessible: true}
}

func setFlag(ok bool) string {
	if ok {
		return "SET"
	}
	return "NOT_SET"
}

func orNewID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
