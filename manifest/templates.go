package manifest

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"text/template"

	"github.com/fwojciec/idedocs"
)

var funcs = template.FuncMap{
	"json": func(s string) (string, error) {
		b, err := json.Marshal(s)
		return string(b), err
	},
	"xml": func(s string) (string, error) {
		var buf bytes.Buffer
		err := xml.EscapeText(&buf, []byte(s))
		return buf.String(), err
	},
	"shell": func(s string) string {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	},
}

var templateBodies = map[idedocs.Format]string{
	idedocs.FormatJSON: `{"tool": {{json .Tool}}, "task": {{json .Task}}, "context": {{json .Context}}, "constraints": [{{range $i, $c := .Constraints}}{{if $i}}, {{end}}{{json $c}}{{end}}]}`,

	idedocs.FormatMarkdown: `# {{.Tool}}

## Task
{{.Task}}

## Context
{{.Context}}
{{- if .Constraints}}

## Constraints
{{- range .Constraints}}
- {{.}}
{{- end}}
{{- end}}
`,

	idedocs.FormatPlaintext: `You are helping with {{.Tool}}.

{{.Task}}

{{.Context}}
{{- range .Constraints}}
Constraint: {{.}}
{{- end}}
`,

	idedocs.FormatCLI: `{{.Tool}} {{shell .Task}}{{range .Constraints}} --constraint {{shell .}}{{end}} <<'CONTEXT'
{{.Context}}
CONTEXT
`,

	idedocs.FormatXML: `<prompt tool="{{xml .Tool}}">
<task>{{xml .Task}}</task>
<context>{{xml .Context}}</context>
{{- range .Constraints}}
<constraint>{{xml .}}</constraint>
{{- end}}
</prompt>
`,

	idedocs.FormatCustom: `{{.Tool}}
---
{{.Task}}
---
{{.Context}}
{{- range .Constraints}}
* {{.}}
{{- end}}
`,
}

var rulesByFormat = map[idedocs.Format]idedocs.ValidationRules{
	idedocs.FormatJSON: {
		Format:           idedocs.FormatJSON,
		MaxPromptTokens:  4000,
		RequiredSections: []string{`"task"`, `"context"`},
		MustParseAs:      "json",
	},
	idedocs.FormatMarkdown: {
		Format:           idedocs.FormatMarkdown,
		MaxPromptTokens:  8000,
		RequiredSections: []string{"## Task", "## Context"},
	},
	idedocs.FormatPlaintext: {
		Format:          idedocs.FormatPlaintext,
		MaxPromptTokens: 4000,
	},
	idedocs.FormatCLI: {
		Format:           idedocs.FormatCLI,
		MaxPromptTokens:  2000,
		ForbiddenPattern: []string{"$(", "`"},
	},
	idedocs.FormatXML: {
		Format:           idedocs.FormatXML,
		MaxPromptTokens:  8000,
		RequiredSections: []string{"<task>", "<context>"},
		MustParseAs:      "xml",
	},
	idedocs.FormatCustom: {
		Format:          idedocs.FormatCustom,
		MaxPromptTokens: 4000,
	},
}

// TemplateFor returns the prompt template of a format.
func TemplateFor(f idedocs.Format) (idedocs.Template, error) {
	body, ok := templateBodies[f]
	if !ok {
		return idedocs.Template{}, idedocs.Errorf(idedocs.EINVALID, "no template for format %q", f)
	}
	return idedocs.Template{Format: f, Body: body}, nil
}

// RulesFor returns the validation rules of a format.
func RulesFor(f idedocs.Format) (idedocs.ValidationRules, error) {
	rules, ok := rulesByFormat[f]
	if !ok {
		return idedocs.ValidationRules{}, idedocs.Errorf(idedocs.EINVALID, "no validation rules for format %q", f)
	}
	rules.RequiredSections = append([]string(nil), rules.RequiredSections...)
	rules.ForbiddenPattern = append([]string(nil), rules.ForbiddenPattern...)
	return rules, nil
}

// Render executes a manifest template.
func Render(t idedocs.Template, data idedocs.PromptData) (string, error) {
	tmpl, err := template.New(string(t.Format)).Funcs(funcs).Parse(t.Body)
	if err != nil {
		return "", idedocs.Errorf(idedocs.EINVALID, "parse %s template: %v", t.Format, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", idedocs.Errorf(idedocs.EINVALID, "render %s template: %v", t.Format, err)
	}
	return buf.String(), nil
}

// Check validates a rendered prompt against rules.
// Returns EINVALID describing the first violation.
func Check(rules idedocs.ValidationRules, prompt string) error {
	if rules.MaxPromptTokens > 0 {
		if n := idedocs.EstimateTokens(prompt); n > rules.MaxPromptTokens {
			return idedocs.Errorf(idedocs.EINVALID, "prompt has about %d tokens, limit is %d", n, rules.MaxPromptTokens)
		}
	}
	for _, section := range rules.RequiredSections {
		if !strings.Contains(prompt, section) {
			return idedocs.Errorf(idedocs.EINVALID, "prompt is missing %q", section)
		}
	}
	for _, pattern := range rules.ForbiddenPattern {
		if strings.Contains(prompt, pattern) {
			return idedocs.Errorf(idedocs.EINVALID, "prompt contains forbidden %q", pattern)
		}
	}
	switch rules.MustParseAs {
	case "json":
		if !json.Valid([]byte(prompt)) {
			return idedocs.Errorf(idedocs.EINVALID, "prompt is not valid JSON")
		}
	case "xml":
		if err := wellFormedXML(prompt); err != nil {
			return idedocs.Errorf(idedocs.EINVALID, "prompt is not well-formed XML: %v", err)
		}
	}
	return nil
}

func wellFormedXML(s string) error {
	dec := xml.NewDecoder(strings.NewReader(s))
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
