// Package digest renders the AccumulatorFile into the daily HTML digest
// email, as a pure function. Caching pattern adapted from
// utils/preview/template.go's LoadTemplate/RenderTemplate.
package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"sync"

	"github.com/inboxtriage/engine/domain"
)

const defaultTemplate = `
<html><body>
<h1>Inbox Triage Digest</h1>
<p>{{.TotalProcessed}} messages processed, {{.FirstDate}} to {{.LastDate}}.</p>
<h2>Must Do ({{len .MustDo}})</h2>
<ul>
{{range .MustDo}}<li><b>{{.Topic}}</b> - {{.Subject}} ({{.Sender}})</li>
{{end}}</ul>
<h2>Must Know ({{len .MustKnow}})</h2>
<ul>
{{range .MustKnow}}<li><b>{{.Topic}}</b> - {{.Subject}} ({{.Sender}})</li>
{{end}}</ul>
</body></html>
`

var templateCache sync.Map // src string -> *template.Template

func parsedTemplate(src string) (*template.Template, error) {
	if tmpl, ok := templateCache.Load(src); ok {
		return tmpl.(*template.Template), nil
	}
	tmpl, err := template.New("digest").Parse(src)
	if err != nil {
		return nil, err
	}
	templateCache.Store(src, tmpl)
	return tmpl, nil
}

// Renderer renders AccumulatorFile values using a single cached template.
// The zero value uses the built-in default template.
type Renderer struct {
	TemplateSource string
}

// New builds a Renderer. An empty source falls back to the built-in
// default template.
func New(templateSource string) *Renderer {
	return &Renderer{TemplateSource: templateSource}
}

// Render implements engine.DigestRenderer.
func (r *Renderer) Render(acc domain.AccumulatorFile) (string, error) {
	src := r.TemplateSource
	if src == "" {
		src = defaultTemplate
	}
	tmpl, err := parsedTemplate(src)
	if err != nil {
		return "", fmt.Errorf("parse digest template: %w", err)
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, acc); err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return out.String(), nil
}
