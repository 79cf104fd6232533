// Package chat provides the workspace chat transcript API.
package chat

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	chatclient "github.com/nestgrid-labs/nestgrid/internal/chat"
	"github.com/nestgrid-labs/nestgrid/internal/ui/features/common"
	"github.com/nestgrid-labs/nestgrid/internal/ui/notifier"
	"github.com/nestgrid-labs/nestgrid/pkg/core"
)

// historyLimit bounds how many transcript turns are replayed into the
// completion request.
const historyLimit = 20

// Handlers holds the feature's dependencies.
type Handlers struct {
	store  core.Store
	client *chatclient.Client
	model  string
	notify *notifier.Notifier
}

// NewHandlers creates the chat handlers. client may be nil when no
// completion endpoint is configured.
func NewHandlers(store core.Store, client *chatclient.Client, model string, notify *notifier.Notifier) *Handlers {
	return &Handlers{store: store, client: client, model: model, notify: notify}
}

type messageInfo struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// List handles GET /api/workspaces/{workspaceID}/chat.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	messages, err := h.store.ListChatMessages(chi.URLParam(r, "workspaceID"))
	if err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}
	infos := make([]messageInfo, 0, len(messages))
	for _, m := range messages {
		infos = append(infos, messageInfo{m.ID, m.Role, m.Content})
	}
	common.JSON(w, http.StatusOK, infos)
}

// Send handles POST /api/workspaces/{workspaceID}/chat: the user turn
// is persisted, the completion endpoint answers with the workspace's
// column layout as context, and the assistant turn is persisted and
// returned.
func (h *Handlers) Send(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		common.Error(w, http.StatusServiceUnavailable, "no chat endpoint configured")
		return
	}
	workspaceID := chi.URLParam(r, "workspaceID")

	var req struct {
		Content string `json:"content"`
	}
	if err := common.Decode(r, &req); err != nil {
		common.Error(w, http.StatusBadRequest, "%v", err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		common.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	userMsg := &core.ChatMessage{WorkspaceID: workspaceID, Role: "user", Content: req.Content}
	if err := h.store.AppendChatMessage(userMsg); err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}

	messages, err := h.buildMessages(workspaceID)
	if err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}

	answer, err := h.client.Stream(r.Context(), chatclient.Request{
		Messages: messages,
		Model:    h.model,
	}, func(token string) {
		h.notify.Broadcast(notifier.Event{WorkspaceID: workspaceID, Kind: "progress", Message: token})
	})
	if err != nil {
		common.Error(w, http.StatusBadGateway, "%v", err)
		return
	}

	assistantMsg := &core.ChatMessage{WorkspaceID: workspaceID, Role: "assistant", Content: answer}
	if err := h.store.AppendChatMessage(assistantMsg); err != nil {
		common.Error(w, http.StatusInternalServerError, "%v", err)
		return
	}

	h.notify.Broadcast(notifier.Event{WorkspaceID: workspaceID, Kind: "change"})
	common.JSON(w, http.StatusOK, []messageInfo{
		{userMsg.ID, userMsg.Role, userMsg.Content},
		{assistantMsg.ID, assistantMsg.Role, assistantMsg.Content},
	})
}

// buildMessages assembles the completion request: a system turn
// describing the workspace, then the recent transcript.
func (h *Handlers) buildMessages(workspaceID string) ([]chatclient.Message, error) {
	cols, err := h.store.ListColumns(workspaceID)
	if err != nil {
		return nil, err
	}
	rows, err := h.store.CountRows(workspaceID)
	if err != nil {
		return nil, err
	}

	var layout strings.Builder
	for _, col := range cols {
		fmt.Fprintf(&layout, "- %s (%s)\n", col.Name, col.Type)
	}
	system := fmt.Sprintf(
		"You are the assistant for a data enrichment workspace with %d rows and these columns:\n%s",
		rows, layout.String())

	transcript, err := h.store.ListChatMessages(workspaceID)
	if err != nil {
		return nil, err
	}
	if len(transcript) > historyLimit {
		transcript = transcript[len(transcript)-historyLimit:]
	}

	messages := make([]chatclient.Message, 0, len(transcript)+1)
	messages = append(messages, chatclient.Message{Role: "system", Content: system})
	for _, m := range transcript {
		messages = append(messages, chatclient.Message{Role: m.Role, Content: m.Content})
	}
	return messages, nil
}
