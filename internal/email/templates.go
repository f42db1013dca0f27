package email

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/jwalitptl/onboarding-api/internal/model"
)

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

// Renderer turns a template key and payload into a subject and plain-text body.
type Renderer struct {
	templates map[model.TemplateKey]messageTemplate
}

var funcMap = template.FuncMap{
	"default": func(def string, v interface{}) string {
		if v == nil {
			return def
		}
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			return s
		}
		return def
	},
}

var sources = map[model.TemplateKey][2]string{
	model.TemplateDoctorApprovalRequested: {
		`Doctor approval requested: {{default "a doctor" .doctor_name}}`,
		`{{default "A doctor" .doctor_name}} ({{default "" .doctor_email}}) submitted their profile for review.

Request: {{default "" .request_id}}
Queue: {{default "" .scope}}
`,
	},
	model.TemplateClinicApprovalRequested: {
		`Clinic approval requested: {{default "a clinic" .clinic_name}}`,
		`{{default "A clinic" .clinic_name}} submitted its profile for review.

Request: {{default "" .request_id}}
`,
	},
	model.TemplateClinicDocumentsUpdated: {
		`Clinic documents updated: {{default "a clinic" .clinic_name}}`,
		`{{default "A clinic" .clinic_name}} uploaded new documents. No review request was opened.
`,
	},
	model.TemplateDoctorApproved: {
		`Your doctor profile has been approved`,
		`Hello {{default "Doctor" .name}},

Your profile was approved by the platform administrators. You can now use all doctor features.
`,
	},
	model.TemplateClinicApproved: {
		`Your clinic has been approved`,
		`Hello {{default "there" .name}},

{{default "Your clinic" .clinic_name}} was approved by the platform administrators.
`,
	},
	model.TemplateDoctorRejected: {
		`Your doctor profile needs changes`,
		`Hello {{default "Doctor" .name}},

Your profile was not approved.
Reason: {{default "" .reason}}
`,
	},
	model.TemplateClinicRejected: {
		`Your clinic profile needs changes`,
		`Hello {{default "there" .name}},

{{default "Your clinic" .clinic_name}} was not approved.
Reason: {{default "" .reason}}
`,
	},
	model.TemplateClinicApprovedDoctor: {
		`{{default "Your clinic" .clinic_name}} approved your profile`,
		`Hello {{default "Doctor" .name}},

{{default "Your clinic" .clinic_name}} approved your profile.{{if .renewal_date}}
Next review: {{default "" .renewal_date}}{{end}}
`,
	},
	model.TemplateClinicRejectedDoctor: {
		`{{default "Your clinic" .clinic_name}} did not approve your profile`,
		`Hello {{default "Doctor" .name}},

{{default "Your clinic" .clinic_name}} did not approve your profile.
Reason: {{default "" .reason}}
`,
	},
	model.TemplateDoctorWelcome: {
		`Welcome to {{default "your clinic" .clinic_name}}`,
		`Hello {{default "Doctor" .name}},

{{default "A clinic" .clinic_name}} created an account for you.

Email: {{default "" .email}}
Temporary password: {{default "" .temporary_password}}

Please sign in and change your password.
`,
	},
}

// NewRenderer parses every known template.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[model.TemplateKey]messageTemplate, len(sources))}
	for key, src := range sources {
		subject, err := template.New(string(key) + ".subject").Funcs(funcMap).Option("missingkey=zero").Parse(src[0])
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s subject: %w", key, err)
		}
		body, err := template.New(string(key) + ".body").Funcs(funcMap).Option("missingkey=zero").Parse(src[1])
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s body: %w", key, err)
		}
		r.templates[key] = messageTemplate{subject: subject, body: body}
	}
	return r, nil
}

func (r *Renderer) Render(key model.TemplateKey, payload map[string]interface{}) (subject, body string, err error) {
	t, ok := r.templates[key]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", key)
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}

	var buf bytes.Buffer
	if err := t.subject.Execute(&buf, payload); err != nil {
		return "", "", fmt.Errorf("failed to render %s subject: %w", key, err)
	}
	subject = strings.TrimSpace(buf.String())

	buf.Reset()
	if err := t.body.Execute(&buf, payload); err != nil {
		return "", "", fmt.Errorf("failed to render %s body: %w", key, err)
	}
	return subject, buf.String(), nil
}
