package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

const verifyTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>StoryTime - Email Confirmation</title></head>
<body>
	<h2>Hi {{.Name}},</h2>
	<p>Thanks for signing up to StoryTime. Please confirm your email address:</p>
	<p><a href="{{.Link}}">Verify my email</a></p>
	<p>The link expires in two hours.</p>
</body>
</html>`

const resetTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>StoryTime - Password Reset</title></head>
<body>
	<h2>Hi {{.Name}},</h2>
	<p>We received a request to reset your StoryTime password.</p>
	<p><a href="{{.Link}}">Choose a new password</a></p>
	<p>If you did not ask for this you can ignore this email. The link expires in two hours.</p>
</body>
</html>`

type templateSpec struct {
	subject string
	path    string
	body    *template.Template
}

type templateData struct {
	Name string
	Link string
}

// Renderer builds subject and HTML body for each message kind. Links are
// the public base URL joined with a per-kind path and the escaped token.
type Renderer struct {
	baseURL string
	specs   map[Kind]templateSpec
}

func NewRenderer(baseURL string) (*Renderer, error) {
	r := &Renderer{
		baseURL: strings.TrimRight(baseURL, "/"),
		specs:   make(map[Kind]templateSpec, 2),
	}
	for kind, def := range map[Kind]struct{ subject, path, text string }{
		KindVerify: {"StoryTime - Email Confirmation", "/api/users/verifyEmail/", verifyTemplate},
		KindReset:  {"StoryTime - Password Reset", "/resetpassword/", resetTemplate},
	} {
		tpl, err := template.New(string(kind)).Parse(def.text)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", kind, err)
		}
		r.specs[kind] = templateSpec{subject: def.subject, path: def.path, body: tpl}
	}
	return r, nil
}

// Link returns the URL the user follows for msg.
func (r *Renderer) Link(msg Message) (string, error) {
	spec, ok := r.specs[msg.Kind]
	if !ok {
		return "", fmt.Errorf("unknown message kind %q", msg.Kind)
	}
	return r.baseURL + spec.path + url.PathEscape(msg.Token), nil
}

// Render returns the subject and HTML body for msg.
func (r *Renderer) Render(msg Message) (string, string, error) {
	spec, ok := r.specs[msg.Kind]
	if !ok {
		return "", "", fmt.Errorf("unknown message kind %q", msg.Kind)
	}
	link, err := r.Link(msg)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := spec.body.Execute(&buf, templateData{Name: msg.Name, Link: link}); err != nil {
		return "", "", fmt.Errorf("render %s template: %w", msg.Kind, err)
	}
	return spec.subject, buf.String(), nil
}
