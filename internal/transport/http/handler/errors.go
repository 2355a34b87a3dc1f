package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lawchat/internal/app"
	"lawchat/internal/backend"
	"lawchat/internal/conversation"
	"lawchat/internal/observability"
	"lawchat/internal/transport/http/response"
)

// writeError maps service and backend errors onto the response envelope.
// fallback is the message used for unexpected failures.
func writeError(c *gin.Context, err error, fallback string) {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, conversation.ErrEmptyQuery):
		response.Error(c, http.StatusBadRequest, response.CodeEmptyQuery, err.Error())
	case errors.Is(err, conversation.ErrFeedbackEmpty):
		response.Error(c, http.StatusBadRequest, response.CodeFeedbackEmpty, err.Error())
	case errors.Is(err, conversation.ErrBusy):
		response.Error(c, http.StatusConflict, response.CodeBusy, err.Error())
	case errors.Is(err, conversation.ErrStale):
		response.Error(c, http.StatusConflict, response.CodeStale, err.Error())
	case errors.Is(err, conversation.ErrNoSession):
		response.Error(c, http.StatusNotFound, response.CodeNoSession, "No conversation yet.")
	case errors.Is(err, conversation.ErrNoFeedbackTarget):
		response.Error(c, http.StatusNotFound, response.CodeNoFeedbackTarget, err.Error())
	case errors.Is(err, app.ErrUnknownModel):
		response.Error(c, http.StatusBadRequest, response.CodeUnknownModel, err.Error())
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidCredential):
		response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())
	case errors.Is(err, app.ErrTokenExpired):
		response.Error(c, http.StatusUnauthorized, response.CodeTokenExpired, err.Error())
	case errors.Is(err, app.ErrNotLoggedIn):
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, err.Error())
	case errors.Is(err, backend.ErrUnauthorized):
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "backend rejected the admin token")
	case errors.Is(err, backend.ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.As(err, &apiErr):
		response.Error(c, http.StatusBadGateway, response.CodeBackend, apiErr.Error())
	default:
		observability.LoggerFromContext(c.Request.Context()).Error(fallback, "error", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func badRequest(c *gin.Context, message string) {
	response.Error(c, http.StatusBadRequest, response.CodeBadRequest, message)
}

func indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "invalid message index")
		return 0, false
	}
	return index, true
}
