package transcript

import (
	_ "embed"
	"fmt"
	"io"
	"strings"
	"text/template"
)

//go:embed transcript_template.tmpl
var transcriptMarkdownTemplate string

var markdownTemplate = template.Must(template.New("transcript").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"title": func(r Role) string {
		s := string(r)
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}).Parse(transcriptMarkdownTemplate))

type markdownData struct {
	Messages []Message
	Count    int
	Turns    int
}

// RenderMarkdown writes a readable markdown view of msgs to w
func RenderMarkdown(w io.Writer, msgs []Message) error {
	data := markdownData{
		Messages: msgs,
		Count:    len(msgs),
	}
	for _, m := range msgs {
		if m.Role == RoleAssistant {
			data.Turns++
		}
	}
	if err := markdownTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute transcript template: %w", err)
	}
	return nil
}
