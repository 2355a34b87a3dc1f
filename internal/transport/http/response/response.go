package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeEmptyQuery         = 40001
	CodeFeedbackEmpty      = 40002
	CodeUnknownModel       = 40003
	CodeUnauthorized       = 40100
	CodeInvalidCredentials = 40101
	CodeTokenExpired       = 40102
	CodeNotFound           = 40400
	CodeNoSession          = 40401
	CodeNoFeedbackTarget   = 40402
	CodeBusy               = 40900
	CodeStale              = 40901
	CodeInternalServer     = 50000
	CodeBackend            = 50200
)

type APIResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func OK(c *gin.Context, data any) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// Abort writes the error and stops the handler chain.
func Abort(c *gin.Context, httpStatus, code int, message string) {
	c.AbortWithStatusJSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}
