package service

import (
	"context"
	"fmt"

	"pdf-qa-be/internal/constant"
	"pdf-qa-be/internal/dto"
	"pdf-qa-be/internal/pkg/logger"
	"pdf-qa-be/pkg/engine"
	"pdf-qa-be/pkg/llm"
	"pdf-qa-be/pkg/processor"
	"pdf-qa-be/pkg/session"
)

type IChatService interface {
	Ask(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error)
	Summarize(ctx context.Context, req *dto.SummarizeRequest) (*dto.SummarizeResponse, error)
	Compare(ctx context.Context, req *dto.CompareRequest) (*dto.CompareResponse, error)
	History(ctx context.Context, sessionId string) (*dto.ChatHistoryResponse, error)
}

type chatService struct {
	store     *session.Store
	engine    engine.Engine
	sysLogger logger.ILogger
}

func NewChatService(store *session.Store, eng engine.Engine, sysLogger logger.ILogger) IChatService {
	return &chatService{
		store:     store,
		engine:    eng,
		sysLogger: sysLogger,
	}
}

// Ask answers a question against the session's document. The lease taken
// here pins the index for the whole query, so a concurrent re-upload or
// reset cannot release it mid-flight.
func (s *chatService) Ask(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error) {
	lease, err := s.store.AcquireForQuery(req.SessionId)
	if err != nil {
		return nil, err
	}
	defer lease.Close()

	handle, ok := lease.Index().(*processor.IndexHandle)
	if !ok {
		return nil, fmt.Errorf("session %s holds an unexpected index type", req.SessionId)
	}

	// Read the log through the lease so it is the one paired with the pinned
	// handle; an id-keyed read could return a replacement session's turns.
	history := historyToMessages(lease.History())

	result, err := s.engine.Ask(ctx, engine.Document{Label: req.SessionId, Handle: handle}, req.Question, history)
	if err != nil {
		s.sysLogger.Error("ChatService", "Ask failed", map[string]interface{}{
			"session_id": req.SessionId,
			"error":      err.Error(),
		})
		return nil, err
	}

	// Record the exchange only on success; AppendTurn refuses silently-noop
	// appends if the session was replaced while the query ran, keeping the
	// new session's log clean.
	if err := lease.AppendTurn(constant.ChatMessageRoleUser, req.Question); err == nil {
		_ = lease.AppendTurn(constant.ChatMessageRoleAssistant, result.Answer)
	}

	return &dto.AskResponse{
		SessionId: req.SessionId,
		Answer:    result.Answer,
		Citations: citationsToDTO(result.Citations),
	}, nil
}

func (s *chatService) Summarize(ctx context.Context, req *dto.SummarizeRequest) (*dto.SummarizeResponse, error) {
	lease, err := s.store.AcquireForQuery(req.SessionId)
	if err != nil {
		return nil, err
	}
	defer lease.Close()

	handle, ok := lease.Index().(*processor.IndexHandle)
	if !ok {
		return nil, fmt.Errorf("session %s holds an unexpected index type", req.SessionId)
	}

	result, err := s.engine.Summarize(ctx, engine.Document{Label: req.SessionId, Handle: handle})
	if err != nil {
		s.sysLogger.Error("ChatService", "Summarize failed", map[string]interface{}{
			"session_id": req.SessionId,
			"error":      err.Error(),
		})
		return nil, err
	}

	return &dto.SummarizeResponse{
		SessionId: req.SessionId,
		Summary:   result.Answer,
		Citations: citationsToDTO(result.Citations),
	}, nil
}

// Compare runs one question across several sessions' documents. Every
// session is leased up front; if any id is unusable the whole request fails
// before touching the model. Cross-session answers are not appended to any
// conversation log.
func (s *chatService) Compare(ctx context.Context, req *dto.CompareRequest) (*dto.CompareResponse, error) {
	leases := make([]*session.Lease, 0, len(req.SessionIds))
	defer func() {
		for _, l := range leases {
			l.Close()
		}
	}()

	docs := make([]engine.Document, 0, len(req.SessionIds))
	for _, id := range req.SessionIds {
		lease, err := s.store.AcquireForQuery(id)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", id, err)
		}
		leases = append(leases, lease)

		handle, ok := lease.Index().(*processor.IndexHandle)
		if !ok {
			return nil, fmt.Errorf("session %s holds an unexpected index type", id)
		}
		docs = append(docs, engine.Document{Label: id, Handle: handle})
	}

	result, err := s.engine.Compare(ctx, docs, req.Question)
	if err != nil {
		s.sysLogger.Error("ChatService", "Compare failed", map[string]interface{}{
			"session_ids": req.SessionIds,
			"error":       err.Error(),
		})
		return nil, err
	}

	return &dto.CompareResponse{
		SessionIds: req.SessionIds,
		Answer:     result.Answer,
		Citations:  citationsToDTO(result.Citations),
	}, nil
}

func (s *chatService) History(ctx context.Context, sessionId string) (*dto.ChatHistoryResponse, error) {
	turns := s.store.History(sessionId)
	if turns == nil {
		if _, ok := s.store.Snapshot(sessionId); ok {
			return nil, session.ErrSessionExpired
		}
		return nil, session.ErrNoDocumentUploaded
	}

	res := &dto.ChatHistoryResponse{
		SessionId: sessionId,
		Turns:     make([]dto.TurnDTO, 0, len(turns)),
	}
	for _, t := range turns {
		res.Turns = append(res.Turns, dto.TurnDTO{Role: t.Role, Text: t.Text, At: t.At})
	}
	return res, nil
}

func historyToMessages(turns []session.Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Text})
	}
	return msgs
}

func citationsToDTO(cites []engine.Citation) []dto.CitationDTO {
	out := make([]dto.CitationDTO, 0, len(cites))
	for _, c := range cites {
		out = append(out, dto.CitationDTO{Source: c.Source, Page: c.Page})
	}
	return out
}
