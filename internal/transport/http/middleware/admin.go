package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lawchat/internal/app"
	"lawchat/internal/transport/http/response"
)

const (
	ContextAdminKey    = "admin_service"
	ContextUsernameKey = "username"
	ContextRoleKey     = "role"
)

// AdminFactory builds an admin API bound to one token.
type AdminFactory func(token string) app.AdminAPI

// AdminAuth requires a stored admin login for the calling client and puts
// an AdminService for its token into the context. Must run after
// ClientIdentity.
func AdminAuth(factory AdminFactory, pageSize, concurrency int) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws := Workspace(c)
		if ws == nil {
			response.Abort(c, http.StatusInternalServerError, response.CodeInternalServer, "missing client workspace")
			return
		}

		login, err := ws.Auth.Current(c.Request.Context())
		if err != nil {
			switch {
			case errors.Is(err, app.ErrTokenExpired):
				response.Abort(c, http.StatusUnauthorized, response.CodeTokenExpired, "admin token expired")
			case errors.Is(err, app.ErrNotLoggedIn), errors.Is(err, app.ErrInvalidToken):
				response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "admin login required")
			default:
				response.Abort(c, http.StatusInternalServerError, response.CodeInternalServer, "load admin login failed")
			}
			return
		}

		c.Set(ContextUsernameKey, login.Username)
		c.Set(ContextRoleKey, login.Role)
		c.Set(ContextAdminKey, app.NewAdminService(factory(login.Token), pageSize, concurrency))
		c.Next()
	}
}

func AdminService(c *gin.Context) *app.AdminService {
	v, ok := c.Get(ContextAdminKey)
	if !ok {
		return nil
	}
	svc, _ := v.(*app.AdminService)
	return svc
}
