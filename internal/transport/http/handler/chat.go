package handler

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"lawchat/internal/conversation"
	"lawchat/internal/model"
	"lawchat/internal/transport/http/middleware"
	"lawchat/internal/transport/http/response"
)

type ChatHandler struct{}

type AskRequest struct {
	Q string `json:"q"`
}

type DraftRequest struct {
	Text string `json:"text"`
}

type LabelRequest struct {
	Correct *bool `json:"correct" binding:"required"`
}

type CommentRequest struct {
	Comment string `json:"comment"`
}

type AskResult struct {
	Reply    *conversation.Reply   `json:"reply"`
	Snapshot conversation.Snapshot `json:"snapshot"`
}

func NewChatHandler() *ChatHandler {
	return &ChatHandler{}
}

func (h *ChatHandler) Snapshot(c *gin.Context) {
	ws := middleware.Workspace(c)
	response.OK(c, ws.Controller.Snapshot(c.Request.Context()))
}

func (h *ChatHandler) Ask(c *gin.Context) {
	ws := middleware.Workspace(c)

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}

	reply, err := ws.Controller.Send(c.Request.Context(), req.Q)
	if err != nil {
		writeError(c, err, "ask failed")
		return
	}
	response.OK(c, AskResult{
		Reply:    reply,
		Snapshot: ws.Controller.Snapshot(c.Request.Context()),
	})
}

func (h *ChatHandler) Reset(c *gin.Context) {
	ws := middleware.Workspace(c)
	ws.Controller.Reset(c.Request.Context())
	response.OK(c, ws.Controller.Snapshot(c.Request.Context()))
}

func (h *ChatHandler) SetDraft(c *gin.Context) {
	ws := middleware.Workspace(c)

	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	ws.Controller.SetDraft(req.Text)
	response.OK(c, gin.H{"text": ws.Controller.Draft()})
}

func (h *ChatHandler) History(c *gin.Context) {
	ws := middleware.Workspace(c)

	history, err := ws.Controller.History(c.Request.Context())
	if err != nil {
		writeError(c, err, "load history failed")
		return
	}
	response.OK(c, model.Transcript{
		SID:     ws.Controller.SID(c.Request.Context()),
		History: history,
	})
}

// DownloadHistory serves the history as chat-<sid>.json.
func (h *ChatHandler) DownloadHistory(c *gin.Context) {
	ws := middleware.Workspace(c)
	ctx := c.Request.Context()

	history, err := ws.Controller.History(ctx)
	if err != nil {
		writeError(c, err, "load history failed")
		return
	}
	sid := ws.Controller.SID(ctx)

	var buf bytes.Buffer
	if err := conversation.WriteTranscript(&buf, model.Transcript{SID: sid, History: history}); err != nil {
		writeError(c, err, "encode history failed")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+conversation.ExportFileName(sid)+`"`)
	c.Data(http.StatusOK, "application/json", buf.Bytes())
}

func (h *ChatHandler) SetLabel(c *gin.Context) {
	ws := middleware.Workspace(c)
	index, ok := indexParam(c)
	if !ok {
		return
	}

	var req LabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "correct must be true or false")
		return
	}
	if err := ws.Controller.SetLabel(c.Request.Context(), index, *req.Correct); err != nil {
		writeError(c, err, "set label failed")
		return
	}
	h.message(c, index)
}

func (h *ChatHandler) SetComment(c *gin.Context) {
	ws := middleware.Workspace(c)
	index, ok := indexParam(c)
	if !ok {
		return
	}

	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	if err := ws.Controller.SetComment(c.Request.Context(), index, req.Comment); err != nil {
		writeError(c, err, "set comment failed")
		return
	}
	h.message(c, index)
}

func (h *ChatHandler) SubmitFeedback(c *gin.Context) {
	ws := middleware.Workspace(c)
	index, ok := indexParam(c)
	if !ok {
		return
	}

	if err := ws.Controller.SubmitFeedback(c.Request.Context(), index); err != nil {
		writeError(c, err, "submit feedback failed")
		return
	}
	h.message(c, index)
}

func (h *ChatHandler) message(c *gin.Context, index int) {
	ws := middleware.Workspace(c)
	msg, _ := ws.Controller.Log().At(index)
	response.OK(c, msg)
}
