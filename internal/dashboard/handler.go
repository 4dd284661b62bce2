package dashboard

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/troopkit/rostersync/internal/orchestrator"
	"github.com/troopkit/rostersync/internal/staging"
	"github.com/troopkit/rostersync/internal/types"
)

// Broadcaster is the sink a Handler publishes to. *Server satisfies it.
type Broadcaster interface {
	Broadcast(msg Message)
}

// Handler turns pipeline events into dashboard messages.
type Handler struct {
	out    Broadcaster
	logger *zap.Logger
}

// NewHandler creates a handler publishing to out.
func NewHandler(out Broadcaster, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{out: out, logger: logger}
}

// SyncResultData summarises a finished sync run.
type SyncResultData struct {
	SessionID    string               `json:"session_id"`
	Status       string               `json:"status"`
	PagesVisited int                  `json:"pages_visited"`
	Members      int                  `json:"members"`
	Profiles     int                  `json:"profiles"`
	Errors       []types.SessionError `json:"errors"`
}

// StagedData summarises a staging pass.
type StagedData struct {
	SessionID string `json:"session_id"`
	*staging.Summary
}

// CommittedData summarises a commit.
type CommittedData struct {
	SessionID string `json:"session_id"`
	*types.ImportResult
}

// OnProgress is an orchestrator.ProgressFunc.
func (h *Handler) OnProgress(p orchestrator.Progress) {
	h.send(MessageTypeProgress, p)
}

// OnSyncResult publishes the outcome of a sync run.
func (h *Handler) OnSyncResult(res *orchestrator.Result) {
	if res == nil || res.Session == nil {
		return
	}
	h.send(MessageTypeSyncResult, SyncResultData{
		SessionID:    res.Session.ID,
		Status:       string(res.Session.Status),
		PagesVisited: res.Session.PagesVisited,
		Members:      len(res.Members),
		Profiles:     len(res.Profiles),
		Errors:       res.Session.Errors,
	})
}

// OnStaged publishes a staging summary.
func (h *Handler) OnStaged(sessionID string, sum *staging.Summary) {
	h.send(MessageTypeStaged, StagedData{SessionID: sessionID, Summary: sum})
}

// OnCommitted publishes a commit result.
func (h *Handler) OnCommitted(sessionID string, res *types.ImportResult) {
	h.send(MessageTypeCommitted, CommittedData{SessionID: sessionID, ImportResult: res})
}

func (h *Handler) send(t MessageType, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("failed to marshal dashboard message", zap.String("type", string(t)), zap.Error(err))
		return
	}
	h.out.Broadcast(Message{Type: t, Data: data})
}
