package response

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fx-blockstream/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	EntityName string `json:"entity_name,omitempty"`
	ErrorKey   string `json:"error_key,omitempty"`
	RequestID  string `json:"request_id"`
	Timestamp  string `json:"timestamp"`
}

// OK sends a 200 response with data as the body.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response with data and a Location header.
func Created(c *gin.Context, location string, data interface{}) {
	c.Header("Location", location)
	c.JSON(http.StatusCreated, data)
}

// NoContent sends a bare 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
	c.Writer.WriteHeaderNow()
}

// ETag sets a strong entity tag for a document version. Zero versions are skipped.
func ETag(c *gin.Context, version int64) {
	if version > 0 {
		c.Header("ETag", FormatETag(version))
	}
}

// FormatETag renders a version as a quoted entity tag.
func FormatETag(version int64) string {
	return `"` + strconv.FormatInt(version, 10) + `"`
}

// ParseETag parses an If-Match value produced by FormatETag. Weak tags are accepted.
func ParseETag(tag string) (int64, error) {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "W/")
	v, err := strconv.ParseInt(strings.Trim(tag, `"`), 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid entity tag %q", tag)
	}
	return v, nil
}

// Alert sets the application alert headers for a successful write.
// action is one of created, updated, deleted.
func Alert(c *gin.Context, app, entity, action, id string) {
	c.Header("X-"+app+"-alert", app+"."+entity+"."+action)
	c.Header("X-"+app+"-params", url.QueryEscape(id))
}

// Paginate sets X-Total-Count and an RFC 5988 Link header for a paged list.
func Paginate(c *gin.Context, page, size, lastPage int, total int64) {
	c.Header("X-Total-Count", strconv.FormatInt(total, 10))

	link := func(p int, rel string) string {
		u := *c.Request.URL
		q := u.Query()
		q.Set("page", strconv.Itoa(p))
		q.Set("size", strconv.Itoa(size))
		u.RawQuery = q.Encode()
		return fmt.Sprintf(`<%s>; rel="%s"`, u.RequestURI(), rel)
	}

	var links []string
	if page < lastPage {
		links = append(links, link(page+1, "next"))
	}
	if page > 0 {
		links = append(links, link(page-1, "prev"))
	}
	links = append(links, link(lastPage, "last"), link(0, "first"))
	c.Header("Link", strings.Join(links, ","))
}

// Error sends an error response. It checks if err is an *apperror.AppError
// and maps it accordingly, otherwise returns 500.
// Not-found answers carry no body.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus < http.StatusInternalServerError {
		if appErr.HTTPStatus == http.StatusNotFound {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		c.AbortWithStatusJSON(appErr.HTTPStatus, ErrorResponse{
			ErrorCode:  appErr.Code,
			Message:    appErr.Message,
			EntityName: appErr.EntityName,
			ErrorKey:   appErr.ErrorKey,
			RequestID:  getRequestID(c),
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	// Unknown error -> 500
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		ErrorCode: "SYS_000",
		Message:   "Internal server error",
		RequestID: getRequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// getRequestID retrieves request ID from context, or generates one.
func getRequestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return uuid.New().String()
}
