package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

// DocsHandler serves the OpenAPI document and a Swagger UI page for it.
type DocsHandler struct {
	yamlDoc []byte
	jsonDoc []byte
	etag    string
	title   string
}

// NewDocsHandler parses the OpenAPI YAML once so it can also be served as
// JSON. A nil doc yields a handler that answers 404.
func NewDocsHandler(doc []byte, title string) (*DocsHandler, error) {
	h := &DocsHandler{title: title}
	if len(doc) == 0 {
		return h, nil
	}
	var tree any
	if err := yaml.Unmarshal(doc, &tree); err != nil {
		return nil, fmt.Errorf("parsing openapi document: %w", err)
	}
	js, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("rendering openapi document as json: %w", err)
	}
	sum := sha256.Sum256(doc)
	h.yamlDoc = doc
	h.jsonDoc = js
	h.etag = `"` + hex.EncodeToString(sum[:8]) + `"`
	return h, nil
}

// Register mounts /swagger and /swagger/spec on r.
func (h *DocsHandler) Register(r gin.IRouter) {
	g := r.Group("/swagger")
	g.GET("", h.UI)
	g.GET("/spec", h.Spec)
}

// Spec serves the OpenAPI document, as JSON when the client asks for it
// with ?format=json or an Accept header, as YAML otherwise.
func (h *DocsHandler) Spec(c *gin.Context) {
	if h.yamlDoc == nil {
		c.String(http.StatusNotFound, "OpenAPI spec not loaded")
		return
	}
	c.Header("ETag", h.etag)
	if c.GetHeader("If-None-Match") == h.etag {
		c.Status(http.StatusNotModified)
		return
	}
	if c.Query("format") == "json" || strings.Contains(c.GetHeader("Accept"), gin.MIMEJSON) {
		c.Data(http.StatusOK, gin.MIMEJSON+"; charset=utf-8", h.jsonDoc)
		return
	}
	c.Data(http.StatusOK, "application/x-yaml", h.yamlDoc)
}

const swaggerPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>%s - API Docs</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/swagger/spec?format=json',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`

// UI serves the Swagger UI page.
func (h *DocsHandler) UI(c *gin.Context) {
	page := fmt.Sprintf(swaggerPage, template.HTMLEscapeString(h.title))
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}
