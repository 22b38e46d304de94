package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mlahtinen/formcoach/internal/assistant"
)

type chatRequest struct {
	// ConversationID zero starts a new conversation.
	ConversationID int    `json:"conversation_id"`
	Content        string `json:"content"`
}

type chatMessageResponse struct {
	ID        int     `json:"id"`
	Role      string  `json:"role"`
	Content   string  `json:"content"`
	ToolName  *string `json:"tool_name,omitempty"`
	CreatedAt string  `json:"created_at"`
}

func newChatMessageResponse(msg assistant.ChatMessage) chatMessageResponse {
	return chatMessageResponse{
		ID:        msg.ID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		ToolName:  msg.ToolName,
		CreatedAt: msg.CreatedAt.Format(time.RFC3339),
	}
}

type chatResponse struct {
	ConversationID int                 `json:"conversation_id"`
	Message        chatMessageResponse `json:"message"`
	HTML           string              `json:"html"`
	ToolsUsed      []string            `json:"tools_used,omitempty"`
}

type conversationResponse struct {
	ID        int     `json:"id"`
	Title     *string `json:"title"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func (app *application) chatPOST(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		app.badRequest(w, r, err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		app.writeJSONError(w, r, http.StatusBadRequest, "content is required")
		return
	}

	reply, err := app.assistantService.Ask(r.Context(), req.ConversationID, req.Content)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, chatResponse{
		ConversationID: reply.ConversationID,
		Message:        newChatMessageResponse(reply.Message),
		HTML:           reply.HTML,
		ToolsUsed:      reply.ToolsUsed,
	})
}

// chatHistoryGET lists conversations, or the messages of one conversation
// when conversationID is given.
func (app *application) chatHistoryGET(w http.ResponseWriter, r *http.Request) {
	if conversationIDStr := r.URL.Query().Get("conversationID"); conversationIDStr != "" {
		conversationID, err := strconv.Atoi(conversationIDStr)
		if err != nil {
			app.writeJSONError(w, r, http.StatusBadRequest, "conversationID must be an integer")
			return
		}
		messages, err := app.assistantService.Messages(r.Context(), conversationID)
		if errors.Is(err, assistant.ErrNotFound) {
			app.writeJSONError(w, r, http.StatusNotFound, "no such conversation")
			return
		}
		if err != nil {
			app.serverError(w, r, err)
			return
		}
		resp := make([]chatMessageResponse, 0, len(messages))
		for _, msg := range messages {
			resp = append(resp, newChatMessageResponse(msg))
		}
		app.writeJSON(w, r, http.StatusOK, resp)
		return
	}

	conversations, err := app.assistantService.Conversations(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	resp := make([]conversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		resp = append(resp, conversationResponse{
			ID:        conv.ID,
			Title:     conv.Title,
			CreatedAt: conv.CreatedAt.Format(time.RFC3339),
			UpdatedAt: conv.UpdatedAt.Format(time.RFC3339),
		})
	}
	app.writeJSON(w, r, http.StatusOK, resp)
}
