package handlers

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	ghhtml "github.com/yuin/goldmark/renderer/html"

	"moracollect-api/internal/contextutil"
)

//go:embed api.md
var apiReference []byte

var docsTemplate = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>MoraCollect API</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
      margin: 0 auto;
      padding: 2rem;
      max-width: 900px;
      line-height: 1.6;
    }
    table { border-collapse: collapse; }
    th, td { border: 1px solid #ccc; padding: 0.3rem 0.6rem; text-align: left; }
    code { background: #f3f3f3; padding: 0 0.2rem; }
  </style>
</head>
<body>
  <article>{{.}}</article>
</body>
</html>`))

// DocsHandler serves the API reference as HTML.
type DocsHandler struct {
	page []byte
}

// NewDocsHandler renders the embedded API reference once.
func NewDocsHandler() (*DocsHandler, error) {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Table,
			extension.TaskList,
			extension.Strikethrough,
			extension.Linkify,
			extension.Typographer,
		),
		goldmark.WithRendererOptions(
			ghhtml.WithUnsafe(),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)

	var body bytes.Buffer
	if err := md.Convert(apiReference, &body); err != nil {
		return nil, fmt.Errorf("render api reference: %w", err)
	}
	var page bytes.Buffer
	if err := docsTemplate.Execute(&page, template.HTML(body.String())); err != nil {
		return nil, fmt.Errorf("render docs page: %w", err)
	}
	return &DocsHandler{page: page.Bytes()}, nil
}

// ServeHTTP writes the rendered reference.
func (h *DocsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(h.page); err != nil {
		ctx := r.Context()
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to write docs page", "error", err)
	}
}
