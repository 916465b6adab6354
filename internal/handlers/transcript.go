package handlers

import (
	"bytes"
	"html/template"
	"net/http"
	"regexp"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/jwebster45206/tabletop-session/pkg/chat"
)

// unsafeHrefRe matches href/src attributes with dangerous URL schemes in goldmark output.
var unsafeHrefRe = regexp.MustCompile(`(?i)(href|src)="(?:javascript|vbscript|data):[^"]*"`)

var markdown = goldmark.New(
	goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()),
)

var transcriptTemplate = template.Must(template.New("transcript").Funcs(template.FuncMap{
	"render": renderTurn,
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{range .Turns}}<div class="turn {{.Role}}">{{render .}}</div>
{{end}}</body>
</html>
`))

// TranscriptResponse is the JSON form of a campaign's turn log.
type TranscriptResponse struct {
	CampaignID string            `json:"campaignId"`
	Turns      []chat.TurnRecord `json:"turns"`
}

// renderTurn formats narration as markdown; every other role is shown as
// escaped plain text.
func renderTurn(t chat.TurnRecord) template.HTML {
	if t.Role != chat.RoleNarration {
		return template.HTML("<p>" + template.HTMLEscapeString(t.Text) + "</p>")
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(t.Text), &buf); err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(t.Text) + "</p>")
	}
	return template.HTML(unsafeHrefRe.ReplaceAllString(buf.String(), `$1="#"`))
}

func (h *CampaignHandler) handleTranscript(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	c, err := h.storage.LoadCampaign(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load campaign", "error", err, "campaign_id", id.String())
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to load campaign"})
		return
	}
	if c == nil {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Campaign not found"})
		return
	}

	turns, err := h.storage.ListTurns(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to list turns", "error", err, "campaign_id", id.String())
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to load transcript"})
		return
	}
	if turns == nil {
		turns = []chat.TurnRecord{}
	}

	if r.URL.Query().Get("format") != "html" {
		h.writeJSON(w, http.StatusOK, TranscriptResponse{CampaignID: id.String(), Turns: turns})
		return
	}

	var buf bytes.Buffer
	if err := transcriptTemplate.Execute(&buf, struct {
		Title string
		Turns []chat.TurnRecord
	}{Title: c.Title, Turns: turns}); err != nil {
		h.logger.Error("Failed to render transcript", "error", err, "campaign_id", id.String())
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to render transcript"})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("Failed to write transcript", "error", err)
	}
}
