package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"pdf-qa-be/internal/dto"
	"pdf-qa-be/internal/pkg/logger"
	"pdf-qa-be/pkg/processor"
	"pdf-qa-be/pkg/session"
)

type IDocumentService interface {
	Process(ctx context.Context, req *dto.ProcessDocumentRequest) (*dto.ProcessDocumentResponse, error)
	Reset(ctx context.Context, req *dto.ResetSessionRequest) (*dto.ResetSessionResponse, error)
	Status(ctx context.Context, sessionId string) (*dto.SessionStatusResponse, error)
}

type documentService struct {
	store            *session.Store
	processor        processor.Processor
	publisherService IPublisherService
	sysLogger        logger.ILogger
}

func NewDocumentService(
	store *session.Store,
	proc processor.Processor,
	publisherService IPublisherService,
	sysLogger logger.ILogger,
) IDocumentService {
	return &documentService{
		store:            store,
		processor:        proc,
		publisherService: publisherService,
		sysLogger:        sysLogger,
	}
}

// Process ingests a document and installs the resulting index under a
// session id. The expensive build happens before the store is touched, so a
// failed upload leaves any existing session fully usable.
func (s *documentService) Process(ctx context.Context, req *dto.ProcessDocumentRequest) (*dto.ProcessDocumentResponse, error) {
	raw, err := os.ReadFile(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", processor.ErrProcessingFailed, req.FilePath, err)
	}

	handle, err := s.processor.Process(ctx, raw, processor.Format(req.Format))
	if err != nil {
		s.sysLogger.Warn("DocumentService", "Document processing failed", map[string]interface{}{
			"file_path": req.FilePath,
			"error":     err.Error(),
		})
		return nil, err
	}

	sessionId := req.SessionId
	if sessionId == "" {
		sessionId = session.NewSessionID()
	}

	replaced, err := s.store.CreateOrReplace(sessionId, handle)
	if err != nil {
		// Retired id: the freshly built handle never became reachable, so
		// release it here.
		handle.Release()
		return nil, err
	}

	evtType := session.EventCreated
	if replaced {
		evtType = session.EventReplaced
	}
	if err := s.publisherService.PublishLifecycle(ctx, session.Event{
		Type:      evtType,
		SessionID: sessionId,
		At:        time.Now(),
	}); err != nil {
		s.sysLogger.Warn("DocumentService", "Failed to publish lifecycle event", map[string]interface{}{
			"session_id": sessionId,
			"error":      err.Error(),
		})
	}

	s.sysLogger.Info("DocumentService", "Document indexed", map[string]interface{}{
		"session_id": sessionId,
		"pages":      handle.PageCount(),
		"chunks":     handle.ChunkCount(),
		"replaced":   replaced,
	})

	return &dto.ProcessDocumentResponse{
		SessionId:     sessionId,
		UploadTime:    time.Now(),
		PageCount:     handle.PageCount(),
		ChunksCreated: handle.ChunkCount(),
		Replaced:      replaced,
	}, nil
}

// Reset invalidates a session: index released (once the last in-flight query
// finishes), conversation cleared, id retired for good.
func (s *documentService) Reset(ctx context.Context, req *dto.ResetSessionRequest) (*dto.ResetSessionResponse, error) {
	meta, ok := s.store.Invalidate(req.SessionId)
	if !ok {
		// Idempotent: resetting an unknown or already-reset session succeeds.
		return &dto.ResetSessionResponse{SessionId: req.SessionId}, nil
	}

	if err := s.publisherService.PublishLifecycle(ctx, session.Event{
		Type:      session.EventInvalidated,
		SessionID: req.SessionId,
		At:        time.Now(),
	}); err != nil {
		s.sysLogger.Warn("DocumentService", "Failed to publish lifecycle event", map[string]interface{}{
			"session_id": req.SessionId,
			"error":      err.Error(),
		})
	}

	return &dto.ResetSessionResponse{
		SessionId:    req.SessionId,
		TurnsCleared: meta.Turns,
	}, nil
}

func (s *documentService) Status(ctx context.Context, sessionId string) (*dto.SessionStatusResponse, error) {
	snap, ok := s.store.Snapshot(sessionId)
	if !ok {
		return nil, session.ErrNoDocumentUploaded
	}

	res := &dto.SessionStatusResponse{
		SessionId: snap.SessionID,
		Live:      snap.Live,
		Expired:   snap.Expired,
		Turns:     snap.Turns,
	}
	if snap.Live {
		t := snap.CreatedAt
		res.UploadTime = &t
	}
	return res, nil
}
