package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"mxmoney/internal/core"
	"mxmoney/internal/services"
)

// Raw HTML in model output is dropped by the default renderer.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

type analysisResponse struct {
	services.ReportAnalysis
	Format string `json:"format"`
	HTML   string `json:"html,omitempty"`
}

func (s *Server) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.app.Reports.Summary(r.Context())
	if err != nil {
		writeServiceError(w, r, "report_summary", err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

// handleReportAnalysis returns the written analysis in the language given by
// ?language or else Accept-Language. format=html adds a rendered copy.
func (s *Server) handleReportAnalysis(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := strings.ToLower(strings.TrimSpace(q.Get("format")))
	switch format {
	case "":
		format = "markdown"
	case "markdown", "html":
	default:
		writeServiceError(w, r, "report_analysis", fmt.Errorf("%w: format must be markdown or html", core.ErrInvalidArgument))
		return
	}
	lang := q.Get("language")
	if lang == "" {
		lang = r.Header.Get("Accept-Language")
	}

	analysis, err := s.app.Reports.GenerateAnalysis(r.Context(), lang)
	if err != nil {
		writeServiceError(w, r, "report_analysis", err)
		return
	}

	resp := analysisResponse{ReportAnalysis: analysis, Format: format}
	if format == "html" && analysis.Analysis != "" {
		html, err := renderMarkdown(analysis.Analysis)
		if err != nil {
			writeServiceError(w, r, "report_analysis", err)
			return
		}
		resp.HTML = html
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func renderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
