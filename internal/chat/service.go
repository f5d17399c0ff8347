package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/RichardoC/lms-chat/internal/analytics"
	"github.com/RichardoC/lms-chat/internal/apperr"
	"github.com/RichardoC/lms-chat/internal/db"
	"github.com/RichardoC/lms-chat/internal/llm"
	"github.com/RichardoC/lms-chat/internal/models"
	"github.com/RichardoC/lms-chat/internal/tools"
	"github.com/RichardoC/lms-chat/internal/usage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxInputLength = 8000
	maxTitleLength = 50
)

// Request is one chat turn as sent by a client.
type Request struct {
	Messages       []llm.Message `json:"messages"`
	ConversationID int64         `json:"conversation_id,omitempty"`
	CanvasUserID   int64         `json:"canvas_user_id,omitempty"`
	Role           string        `json:"user_role,omitempty"`
	SessionID      string        `json:"session_id,omitempty"`
	TurnID         string        `json:"turn_id,omitempty"`
	PendingTool    string        `json:"pending_tool,omitempty"`
	PendingArgs    tools.Args    `json:"pending_args,omitempty"`
	Temperature    *float64      `json:"temperature,omitempty"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
}

// Response is the reply plus the ids a client needs for the next turn.
type Response struct {
	Reply
	SessionID      string              `json:"session_id"`
	ConversationID int64               `json:"conversation_id,omitempty"`
	TurnID         string              `json:"turn_id"`
	Replayed       bool                `json:"replayed,omitempty"`
	LatencyMS      int64               `json:"latency_ms"`
	Analytics      *analytics.Snapshot `json:"analytics,omitempty"`
}

type Deps struct {
	Orchestrator *Orchestrator
	Formatter    *Formatter
	DB           *db.Database
	Usage        *usage.Store       // optional
	Analytics    *analytics.Service // optional
	HistoryLimit int
	Logger       *zap.Logger
}

type Service struct {
	orchestrator *Orchestrator
	formatter    *Formatter
	db           *db.Database
	usage        *usage.Store
	analytics    *analytics.Service
	historyLimit int
	logger       *zap.Logger
	now          func() time.Time
}

func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := deps.HistoryLimit
	if limit <= 0 {
		limit = 20
	}
	return &Service{
		orchestrator: deps.Orchestrator,
		formatter:    deps.Formatter,
		db:           deps.DB,
		usage:        deps.Usage,
		analytics:    deps.Analytics,
		historyLimit: limit,
		logger:       logger,
		now:          time.Now,
	}
}

// ProcessMessage runs one turn end to end. A turn already stored under the
// same conversation and turn id is returned as is and nothing new is written.
func (s *Service) ProcessMessage(ctx context.Context, req Request) (*Response, error) {
	start := s.now()

	input, clientHistory, err := splitInput(req.Messages)
	if err != nil {
		return nil, err
	}
	role := models.ParseRole(req.Role)

	resp := &Response{
		SessionID:      req.SessionID,
		ConversationID: req.ConversationID,
		TurnID:         req.TurnID,
	}
	if resp.SessionID == "" {
		resp.SessionID = uuid.NewString()
	}
	if resp.TurnID == "" {
		resp.TurnID = uuid.NewString()
	}

	history := clientHistory
	switch {
	case req.ConversationID != 0:
		conv, err := s.db.GetConversation(ctx, req.ConversationID)
		if err != nil {
			return nil, err
		}
		if req.CanvasUserID != 0 && conv.OwnerID != req.CanvasUserID {
			return nil, apperr.New(apperr.KindNotFound, "conversation %d not found", req.ConversationID)
		}
		stored, err := s.db.FindTurn(ctx, conv.ID, req.TurnID)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, err, "Failed to load the conversation")
		}
		if stored != nil {
			s.logger.Info("replaying stored turn",
				zap.Int64("conversation_id", conv.ID),
				zap.String("turn_id", req.TurnID))
			resp.Reply = replayed(stored)
			resp.Replayed = true
			return resp, nil
		}
		history, err = s.db.GetConversationHistory(ctx, conv.ID, s.historyLimit)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, err, "Failed to load the conversation")
		}

	case req.CanvasUserID != 0:
		conv, err := s.db.CreateConversation(ctx, req.CanvasUserID, Title(input))
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, err, "Failed to create a conversation")
		}
		resp.ConversationID = conv.ID
	}

	turn := Turn{
		Input:       input,
		Caller:      tools.Caller{Role: role, CanvasUserID: req.CanvasUserID},
		History:     history,
		PendingTool: req.PendingTool,
		PendingArgs: req.PendingArgs,
	}
	trace := s.orchestrator.Run(ctx, turn)

	var opts []llm.Option
	if req.Temperature != nil {
		opts = append(opts, llm.WithTemperature(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(req.MaxTokens))
	}
	resp.Reply = *s.formatter.Format(ctx, turn, trace, opts...)

	s.logger.Info("turn finished",
		zap.String("session_id", resp.SessionID),
		zap.String("role", string(role)),
		zap.String("status", string(resp.Status)),
		zap.Strings("tools", resp.Tools),
		zap.Int("iterations", resp.Iterations))

	if resp.ConversationID != 0 {
		record := &models.Turn{
			ConvID:      resp.ConversationID,
			TurnID:      resp.TurnID,
			User:        models.Message{Role: models.RoleUser, Content: input},
			Assistant:   models.Message{Role: models.RoleAssistant, Content: resp.Content},
			Status:      string(resp.Status),
			PendingTool: resp.PendingTool,
			PendingArgs: resp.PendingArgs,
		}
		saved, err := s.db.SaveTurn(ctx, record)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, err, "Failed to save the conversation")
		}
		// A concurrent request stored this turn first; its answer wins.
		if saved != record {
			stored := replayed(saved)
			resp.Content = stored.Content
			resp.Status = stored.Status
			resp.PendingTool, resp.PendingArgs = stored.PendingTool, stored.PendingArgs
			resp.Replayed = true
		}
	}

	resp.LatencyMS = s.now().Sub(start).Milliseconds()
	s.logUsage(ctx, req, role, resp, history, input)

	if s.analytics != nil && req.CanvasUserID != 0 {
		resp.Analytics, _ = s.analytics.Quick(ctx, role, req.CanvasUserID)
	}
	return resp, nil
}

func (s *Service) logUsage(ctx context.Context, req Request, role models.Role, resp *Response, history []models.Message, input string) {
	if s.usage == nil {
		return
	}
	in, out := resp.Usage.InputTokens, resp.Usage.OutputTokens
	// Some local backends report no usage; template replies cost nothing.
	if in+out == 0 && resp.Backend != BackendTemplate {
		for _, m := range history {
			in += llm.CountTokens(m.Content)
		}
		in += llm.CountTokens(input)
		out = llm.CountTokens(resp.Content)
	}
	rec := &models.UsageRecord{
		UserID:          req.CanvasUserID,
		UserRole:        string(role),
		SessionID:       resp.SessionID,
		ConversationID:  resp.ConversationID,
		InferenceSystem: resp.Backend,
		ModelName:       resp.Model,
		InputTokens:     in,
		OutputTokens:    out,
		ToolUsed:        resp.ToolUsed,
		Status:          string(resp.Status),
		LatencyMS:       resp.LatencyMS,
	}
	if n := len(resp.Tools); n > 0 {
		rec.ToolName = resp.Tools[n-1]
	}
	if err := s.usage.Log(ctx, rec); err != nil {
		s.logger.Warn("failed to record usage", zap.Error(err))
	}
}

// replayed rebuilds the reply of a stored turn. Turns saved before the
// status was recorded count as completed.
func replayed(t *models.Turn) Reply {
	status := Status(t.Status)
	if status == "" {
		status = StatusCompleted
	}
	return Reply{
		Content:     t.Assistant.Content,
		Status:      status,
		Backend:     BackendTemplate,
		PendingTool: t.PendingTool,
		PendingArgs: tools.Args(t.PendingArgs),
	}
}

// splitInput returns the last user message and everything before it.
func splitInput(messages []llm.Message) (string, []models.Message, error) {
	last := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			last = i
			break
		}
	}
	if last < 0 {
		return "", nil, apperr.New(apperr.KindValidation, "At least one user message is required")
	}
	input := strings.TrimSpace(messages[last].Content)
	if input == "" {
		return "", nil, apperr.New(apperr.KindValidation, "Message content must not be empty")
	}
	if utf8.RuneCountInString(input) > maxInputLength {
		return "", nil, apperr.New(apperr.KindValidation, "Message is too long (limit %d characters)", maxInputLength)
	}

	history := make([]models.Message, 0, last)
	for _, m := range messages[:last] {
		switch m.Role {
		case llm.RoleUser:
			history = append(history, models.Message{Role: models.RoleUser, Content: m.Content})
		case llm.RoleAssistant:
			history = append(history, models.Message{Role: models.RoleAssistant, Content: m.Content})
		}
	}
	return input, history, nil
}

// Title derives a conversation title from its first message.
func Title(input string) string {
	title := strings.Join(strings.Fields(input), " ")
	if utf8.RuneCountInString(title) <= maxTitleLength {
		return title
	}
	runes := []rune(title)
	cut := string(runes[:maxTitleLength])
	if i := strings.LastIndex(cut, " "); i > maxTitleLength/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
