package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	texttemplate "text/template"
)

//go:embed templates/base.html templates/*/*.txt
var templateFS embed.FS

type templateData struct {
	Board     string
	Recipient Recipient
	Vars      map[string]any
}

type htmlData struct {
	Language   string
	Subject    string
	Board      string
	Paragraphs []string
}

// Renderer turns a template name plus variables into a Message. Each
// language directory under templates/ provides a subject and body per
// template; missing languages fall back to DefaultLanguage.
type Renderer struct {
	from     string
	board    string
	base     *template.Template
	byLocale map[string]map[Template]*texttemplate.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer(from, board string) (*Renderer, error) {
	base, err := template.ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("renderer: parse base.html: %w", err)
	}

	entries, err := fs.ReadDir(templateFS, "templates")
	if err != nil {
		return nil, err
	}

	r := &Renderer{
		from:     from,
		board:    board,
		base:     base,
		byLocale: make(map[string]map[Template]*texttemplate.Template),
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		lang := entry.Name()
		set := make(map[Template]*texttemplate.Template, len(Templates))
		for _, name := range Templates {
			file := path.Join("templates", lang, string(name)+".txt")
			tmpl, err := texttemplate.ParseFS(templateFS, file)
			if err != nil {
				return nil, fmt.Errorf("renderer: parse %s: %w", file, err)
			}
			set[name] = tmpl
		}
		r.byLocale[lang] = set
	}

	if _, ok := r.byLocale[DefaultLanguage]; !ok {
		return nil, fmt.Errorf("renderer: missing %q templates", DefaultLanguage)
	}
	return r, nil
}

// Render produces the message for the recipient in their language.
func (r *Renderer) Render(name Template, to Recipient, vars map[string]any) (*Message, error) {
	lang := r.language(to.Language)
	tmpl, ok := r.byLocale[lang][name]
	if !ok {
		return nil, fmt.Errorf("renderer: unknown template %q", name)
	}
	if vars == nil {
		vars = map[string]any{}
	}
	data := templateData{Board: r.board, Recipient: to, Vars: vars}

	var subject, body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subject, "subject", data); err != nil {
		return nil, fmt.Errorf("renderer: %s subject: %w", name, err)
	}
	if err := tmpl.ExecuteTemplate(&body, "body", data); err != nil {
		return nil, fmt.Errorf("renderer: %s body: %w", name, err)
	}

	msg := &Message{
		From:    r.from,
		To:      to.Email,
		Subject: strings.TrimSpace(subject.String()),
		Text:    strings.TrimSpace(body.String()) + "\n",
	}

	var html bytes.Buffer
	if err := r.base.Execute(&html, htmlData{
		Language:   lang,
		Subject:    msg.Subject,
		Board:      r.board,
		Paragraphs: paragraphs(msg.Text),
	}); err != nil {
		return nil, fmt.Errorf("renderer: %s html: %w", name, err)
	}
	msg.HTML = html.String()
	return msg, nil
}

func (r *Renderer) language(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if _, ok := r.byLocale[lang]; ok {
		return lang
	}
	return DefaultLanguage
}

func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
