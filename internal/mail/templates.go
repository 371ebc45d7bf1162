package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

type Kind string

const (
	KindPasswordReset   Kind = "password_reset"
	KindWelcome         Kind = "welcome"
	KindPasswordChanged Kind = "password_changed"
)

type templateDef struct {
	file    string
	subject string
	accent  template.CSS
}

var defs = map[Kind]templateDef{
	KindPasswordReset:   {file: "password_reset.html", subject: "Password Reset Request - %s", accent: "#3B82F6"},
	KindWelcome:         {file: "welcome.html", subject: "Welcome to %s!", accent: "#10B981"},
	KindPasswordChanged: {file: "password_changed.html", subject: "Password Changed - %s", accent: "#F59E0B"},
}

// Templates renders the account emails. Each kind gets its own set because
// every content file defines the same "content" block.
type Templates struct {
	appName  string
	resetTTL time.Duration
	sets     map[Kind]*template.Template
}

func LoadTemplates(appName string, resetTTL time.Duration) (*Templates, error) {
	t := &Templates{
		appName:  appName,
		resetTTL: resetTTL,
		sets:     make(map[Kind]*template.Template, len(defs)),
	}
	for kind, def := range defs {
		set, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+def.file)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", kind, err)
		}
		t.sets[kind] = set
	}
	return t, nil
}

type templateData struct {
	Subject   string
	AppName   string
	Accent    template.CSS
	Year      int
	FirstName string
	ResetURL  string
	ResetTTL  string
}

// Render returns the subject and HTML body for msg.
func (t *Templates) Render(msg Message) (string, string, error) {
	def, ok := defs[msg.Kind]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownKind, msg.Kind)
	}

	data := templateData{
		Subject:   fmt.Sprintf(def.subject, t.appName),
		AppName:   t.appName,
		Accent:    def.accent,
		Year:      time.Now().Year(),
		FirstName: msg.FirstName,
		ResetURL:  msg.ResetURL,
		ResetTTL:  humanDuration(t.resetTTL),
	}

	var body bytes.Buffer
	if err := t.sets[msg.Kind].ExecuteTemplate(&body, "layout", data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", msg.Kind, err)
	}
	return data.Subject, body.String(), nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}
