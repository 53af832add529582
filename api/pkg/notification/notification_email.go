package notification

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/nikoksr/notify"
	"github.com/nikoksr/notify/service/mail"
	"github.com/rs/zerolog/log"

	"github.com/bigkevmcd/capomastro/api/pkg/config"
)

type Email struct {
	cfg     *config.Notifications
	enabled bool
}

func NewEmail(cfg *config.Notifications) (*Email, error) {
	e := &Email{
		cfg: cfg,
	}

	if cfg.Email.SMTP.Host != "" {
		e.enabled = true
	}

	return e, nil
}

func (e *Email) Enabled() bool {
	return e.enabled
}

func (e *Email) Notify(ctx context.Context, n *Notification) error {
	if n.Email == "" {
		log.Ctx(ctx).Warn().Str("build_key", n.BuildKey).Msg("no email address provided for notification")
		return nil
	}

	client := e.getClient(n.Email)

	title, message, err := e.getEmailMessage(n)
	if err != nil {
		return err
	}

	if err := client.Send(ctx, title, message); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", n.Email, err)
	}
	return nil
}

func (e *Email) getClient(email string) *notify.Notify {
	ntf := notify.New()

	smtp := mail.New(e.cfg.Email.SenderAddress, e.cfg.Email.SMTP.Host+":"+e.cfg.Email.SMTP.Port)
	smtp.AuthenticateSMTP(e.cfg.Email.SMTP.Identity, e.cfg.Email.SMTP.Username, e.cfg.Email.SMTP.Password, e.cfg.Email.SMTP.Host)
	smtp.AddReceivers(email)
	ntf.UseServices(smtp)

	return ntf
}

func (e *Email) getEmailMessage(n *Notification) (title, message string, err error) {
	switch n.Event {
	case EventProjectBuildComplete:
		var buf bytes.Buffer
		err = projectBuildCompleteTmpl.Execute(&buf, &templateData{
			FirstName:       n.FirstName,
			ProjectName:     n.ProjectName,
			BuildKey:        n.BuildKey,
			Status:          string(n.ProjectBuild.Status),
			ProjectBuildURL: fmt.Sprintf("%s/projects/builds/%s", e.cfg.AppURL, n.ProjectBuild.ID),
		})
		if err != nil {
			return "", "", fmt.Errorf("failed to execute template: %w", err)
		}
		return fmt.Sprintf("Project build %s %s completed", n.ProjectName, n.BuildKey), buf.String(), nil
	default:
		return "", "", fmt.Errorf("unknown event '%s'", n.Event)
	}
}

type templateData struct {
	FirstName       string
	ProjectName     string
	BuildKey        string
	Status          string
	ProjectBuildURL string
}

var projectBuildCompleteTmpl = template.Must(template.New("").Parse(projectBuildCompleteTemplate))

const projectBuildCompleteTemplate = `Hello{{ if .FirstName }} {{ .FirstName }}{{ end }},

Build {{ .BuildKey }} of project {{ .ProjectName }} has completed with
status {{ .Status }}.

You can see the details here:

    {{ .ProjectBuildURL }}
`
