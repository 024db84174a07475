package server

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ozzaii/beatflow/pkg/patterns"
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

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// StatusForKind maps an error kind to its HTTP status.
func StatusForKind(k patterns.Kind) int {
	switch k {
	case patterns.KindNotFound:
		return http.StatusNotFound
	case patterns.KindParse:
		return http.StatusBadRequest
	case patterns.KindValidation:
		return http.StatusUnprocessableEntity
	case patterns.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondPatternError writes err with the status and code of its kind.
func respondPatternError(c *gin.Context, err error) {
	var perr *patterns.Error
	if !errors.As(err, &perr) {
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	RespondError(c, StatusForKind(perr.Kind), string(perr.Kind), err)
}

// attachmentDisposition builds a Content-Disposition header for a download.
// Names outside printable ASCII get an ASCII fallback in filename and the
// exact name in filename* (RFC 6266).
func attachmentDisposition(name string) string {
	fallback := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '_'
		}
		return r
	}, name)
	v := mime.FormatMediaType("attachment", map[string]string{"filename": fallback})
	if fallback == name {
		return v
	}
	return v + "; filename*=UTF-8''" + encodeExtValue(name)
}

// encodeExtValue percent-encodes every byte outside attr-char (RFC 5987).
func encodeExtValue(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			strings.IndexByte("!#$&+-.^_`|~", c) >= 0:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
	return b.String()
}
