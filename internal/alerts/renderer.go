package alerts

import (
	"fmt"
	"html/template"
	"strings"

	"lexflow/internal/types"
)

// Renderer builds email subject and bodies from an alert plan. Layout is
// intentionally minimal; the surrounding product owns real templates.
type Renderer struct {
	appBaseURL string
	tmpl       *template.Template
}

var emailBodyTemplate = template.Must(template.New("alert_email").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1a1a2e;">
  <h2>{{.Title}}</h2>
  <p>{{.Message}}</p>
  <p><a href="{{.DeadlineURL}}">Ver prazo no LexFlow</a></p>
  <p style="color: #666; font-size: 12px;">
    Você recebeu este lembrete porque ativou alertas de prazo por e-mail.
  </p>
</body>
</html>
`))

// NewRenderer creates a Renderer that links back into the application at the
// given base URL.
func NewRenderer(appBaseURL string) *Renderer {
	return &Renderer{
		appBaseURL: strings.TrimSuffix(appBaseURL, "/"),
		tmpl:       emailBodyTemplate,
	}
}

// Render produces the subject, HTML body, and plain-text body for a plan.
func (r *Renderer) Render(plan types.AlertPlan) (subject, bodyHTML, bodyText string, err error) {
	deadlineURL := fmt.Sprintf("%s/prazos/%s", r.appBaseURL, plan.DeadlineID)

	var sb strings.Builder
	if execErr := r.tmpl.Execute(&sb, struct {
		Title       string
		Message     string
		DeadlineURL string
	}{
		Title:       plan.Title,
		Message:     plan.Message,
		DeadlineURL: deadlineURL,
	}); execErr != nil {
		return "", "", "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to render email body", execErr)
	}

	bodyText = fmt.Sprintf("%s\n\n%s\n\nVer prazo: %s\n", plan.Title, plan.Message, deadlineURL)

	return plan.Title, sb.String(), bodyText, nil
}
