package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/cukee-curation/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAPIError writes a classified error. 5xx messages are replaced so
// upstream details do not leak to clients.
func RespondAPIError(c *gin.Context, ae *apierr.Error) {
	if ae == nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	var err error = ae
	if ae.Status >= http.StatusInternalServerError {
		err = errorString(http.StatusText(ae.Status))
	}
	RespondError(c, ae.Status, ae.Code, err)
}

type errorString string

func (e errorString) Error() string { return string(e) }

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
