package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/maigie-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError writes a stable code and the status text. err is attached to
// the gin context for the request logger and never written to the client.
func RespondError(c *gin.Context, status int, code string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: http.StatusText(status),
			Code:    code,
		},
	})
}

// RespondAPIError unwraps an apierr.Error, defaulting to 500.
func RespondAPIError(c *gin.Context, err error) {
	ae := apierr.From(err)
	RespondError(c, ae.Status, ae.Code, ae.Err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
