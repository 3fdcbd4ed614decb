package render

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"document-chat/internal/commands"
	"document-chat/internal/models"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

var transcriptTmpl = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Conversation {{.ConversationID}}</title></head>
<body>
{{- range .Messages}}
<section class="message {{.Role}}" id="{{.ID}}">
<h3>{{.Role}} <time datetime="{{.CreatedAt}}">{{.CreatedAt}}</time></h3>
{{.HTML}}
</section>
{{- end}}
</body>
</html>
`))

// Markdown renders message content as HTML. Viewer command lines are removed first,
// raw HTML in the content is not passed through.
func Markdown(content string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(commands.Strip(content)), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

type renderedMessage struct {
	ID        string
	Role      models.Role
	CreatedAt string
	HTML      template.HTML
}

// Transcript renders a whole conversation as an HTML page.
func Transcript(conversationID string, messages []models.Message) (string, error) {
	data := struct {
		ConversationID string
		Messages       []renderedMessage
	}{ConversationID: conversationID}

	for _, msg := range messages {
		body, err := Markdown(msg.Content)
		if err != nil {
			return "", err
		}
		data.Messages = append(data.Messages, renderedMessage{
			ID:        msg.ID,
			Role:      msg.Role,
			CreatedAt: msg.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			HTML:      template.HTML(body),
		})
	}

	var buf bytes.Buffer
	if err := transcriptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
