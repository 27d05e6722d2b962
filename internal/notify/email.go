// Package notify sends transactional email for domain events: team
// invites, public listing inquiries, and maintenance status changes.
// Sends are best effort; an unconfigured SMTP host downgrades every
// send to a logged skip so the triggering request never fails on mail.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/rentzentro/platform/pkg/config"
	"github.com/rentzentro/platform/pkg/email"
	"github.com/rentzentro/platform/pkg/logging"
)

type Config struct {
	SMTP      email.Config
	WebAppURL string
}

func LoadConfig() Config {
	return Config{
		SMTP:      email.ConfigFromEnv(),
		WebAppURL: config.GetEnv("WEB_APP_URL", ""),
	}
}

type EmailNotifier struct {
	sender     *email.Sender
	smtpConfig email.Config
	webAppURL  string
	logger     logging.Logger
}

func NewEmailNotifier(cfg Config, logger logging.Logger) *EmailNotifier {
	return &EmailNotifier{
		sender:     email.NewSender(cfg.SMTP),
		smtpConfig: cfg.SMTP,
		webAppURL:  cfg.WebAppURL,
		logger:     logger,
	}
}

func (n *EmailNotifier) IsConfigured() bool {
	return n.smtpConfig.Host != "" && n.smtpConfig.From != ""
}

// TeamInvite asks someone to join a landlord's team. The token is the
// single-use invite token the accept endpoint consumes.
type TeamInvite struct {
	RecipientEmail string
	InviterName    string
	Role           string
	Token          string
}

func (n *EmailNotifier) SendTeamInvite(ctx context.Context, invite TeamInvite) error {
	if !n.IsConfigured() {
		n.logger.Warn("Email notifier not configured, skipping team invite email")
		return nil
	}
	if invite.RecipientEmail == "" {
		return fmt.Errorf("team invite recipient email missing")
	}

	acceptURL := ""
	if n.webAppURL != "" && invite.Token != "" {
		acceptURL = fmt.Sprintf("%s/team/accept?token=%s", strings.TrimRight(n.webAppURL, "/"), url.QueryEscape(invite.Token))
	}

	body, err := renderTemplate("team_invite", teamInviteTemplate, struct {
		InviterName string
		Role        string
		AcceptURL   string
	}{
		InviterName: invite.InviterName,
		Role:        invite.Role,
		AcceptURL:   acceptURL,
	})
	if err != nil {
		return fmt.Errorf("render team invite email: %w", err)
	}

	subject := "You've been invited to a RentZentro team"
	if invite.InviterName != "" {
		subject = fmt.Sprintf("%s invited you to their RentZentro team", invite.InviterName)
	}

	if err := n.sender.SendMail(ctx, invite.RecipientEmail, subject, body); err != nil {
		n.logger.WithFields(logging.Fields{
			"error": err.Error(),
			"to":    invite.RecipientEmail,
		}).Error("Failed to send team invite email")
		return err
	}

	n.logger.WithFields(logging.Fields{
		"to":   invite.RecipientEmail,
		"role": invite.Role,
	}).Info("Team invite email sent")

	return nil
}

// InquiryAlert tells a landlord that someone asked about a published
// listing. Inquirer fields are untrusted public input; the template
// escapes them.
type InquiryAlert struct {
	RecipientEmail string
	ListingID      string
	ListingTitle   string
	InquirerName   string
	InquirerEmail  string
	InquirerPhone  string
	Message        string
}

func (n *EmailNotifier) SendInquiryAlert(ctx context.Context, alert InquiryAlert) error {
	if !n.IsConfigured() {
		n.logger.Warn("Email notifier not configured, skipping inquiry alert email")
		return nil
	}
	if alert.RecipientEmail == "" {
		return fmt.Errorf("inquiry alert recipient email missing")
	}

	listingURL := ""
	if n.webAppURL != "" && alert.ListingID != "" {
		listingURL = fmt.Sprintf("%s/listings/%s", strings.TrimRight(n.webAppURL, "/"), url.PathEscape(alert.ListingID))
	}

	body, err := renderTemplate("inquiry_alert", inquiryAlertTemplate, struct {
		ListingTitle  string
		InquirerName  string
		InquirerEmail string
		InquirerPhone string
		Message       string
		ListingURL    string
	}{
		ListingTitle:  alert.ListingTitle,
		InquirerName:  alert.InquirerName,
		InquirerEmail: alert.InquirerEmail,
		InquirerPhone: alert.InquirerPhone,
		Message:       alert.Message,
		ListingURL:    listingURL,
	})
	if err != nil {
		return fmt.Errorf("render inquiry alert email: %w", err)
	}

	subject := "New inquiry on your listing"
	if alert.ListingTitle != "" {
		subject = fmt.Sprintf("New inquiry for %s", alert.ListingTitle)
	}

	if err := n.sender.SendMail(ctx, alert.RecipientEmail, subject, body); err != nil {
		n.logger.WithFields(logging.Fields{
			"error":      err.Error(),
			"to":         alert.RecipientEmail,
			"listing_id": alert.ListingID,
		}).Error("Failed to send inquiry alert email")
		return err
	}

	n.logger.WithFields(logging.Fields{
		"to":         alert.RecipientEmail,
		"listing_id": alert.ListingID,
	}).Info("Inquiry alert email sent")

	return nil
}

// MaintenanceUpdate tells a tenant (or landlord) that a maintenance
// request changed status.
type MaintenanceUpdate struct {
	RecipientEmail string
	RecipientName  string
	RequestTitle   string
	PropertyLabel  string
	Status         string
	Note           string
}

func (n *EmailNotifier) SendMaintenanceUpdate(ctx context.Context, update MaintenanceUpdate) error {
	if !n.IsConfigured() {
		n.logger.Warn("Email notifier not configured, skipping maintenance update email")
		return nil
	}
	if update.RecipientEmail == "" {
		return fmt.Errorf("maintenance update recipient email missing")
	}

	body, err := renderTemplate("maintenance_update", maintenanceUpdateTemplate, update)
	if err != nil {
		return fmt.Errorf("render maintenance update email: %w", err)
	}

	subject := "Maintenance request update"
	if update.RequestTitle != "" {
		subject = fmt.Sprintf("Maintenance update: %s", update.RequestTitle)
	}

	if err := n.sender.SendMail(ctx, update.RecipientEmail, subject, body); err != nil {
		n.logger.WithFields(logging.Fields{
			"error": err.Error(),
			"to":    update.RecipientEmail,
		}).Error("Failed to send maintenance update email")
		return err
	}

	n.logger.WithFields(logging.Fields{
		"to":     update.RecipientEmail,
		"status": update.Status,
	}).Info("Maintenance update email sent")

	return nil
}

func renderTemplate(name, text string, data interface{}) (string, error) {
	funcs := template.FuncMap{
		"displayStatus": func(status string) string {
			return strings.ReplaceAll(status, "_", " ")
		},
	}

	tpl, err := template.New(name).Funcs(funcs).Parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

const teamInviteTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Team Invitation</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 640px; margin: 0 auto; padding: 24px;">
        <h2 style="color: #2c3e50;">You're invited</h2>

        {{if .InviterName}}
        <p>{{.InviterName}} invited you to join their property management team on RentZentro{{if .Role}} as a <strong>{{.Role}}</strong>{{end}}.</p>
        {{else}}
        <p>You've been invited to join a property management team on RentZentro{{if .Role}} as a <strong>{{.Role}}</strong>{{end}}.</p>
        {{end}}

        {{if .AcceptURL}}
        <p style="text-align: center; margin: 30px 0;">
            <a href="{{.AcceptURL}}" style="background-color: #3498db; color: white; padding: 12px 24px; text-decoration: none; border-radius: 5px; display: inline-block;">Accept Invitation</a>
        </p>
        <p style="color: #6c757d; font-size: 12px;">This link is tied to your email address and can be used once.</p>
        {{else}}
        <p>Sign in to RentZentro with this email address to accept the invitation.</p>
        {{end}}

        <p>If you weren't expecting this invitation, you can ignore this email.</p>
    </div>
</body>
</html>`

const inquiryAlertTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New Listing Inquiry</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 640px; margin: 0 auto; padding: 24px;">
        <h2 style="color: #2c3e50;">New inquiry{{if .ListingTitle}} for {{.ListingTitle}}{{end}}</h2>

        <div style="background-color: #f8f9fa; padding: 16px; border-radius: 6px; margin: 20px 0;">
            <p style="margin: 0;"><strong>From:</strong> {{.InquirerName}} &lt;{{.InquirerEmail}}&gt;</p>
            {{if .InquirerPhone}}<p style="margin: 10px 0 0 0;"><strong>Phone:</strong> {{.InquirerPhone}}</p>{{end}}
        </div>

        {{if .Message}}
        <div style="border-left: 3px solid #3498db; padding-left: 16px; margin: 20px 0;">
            <p style="margin: 0; white-space: pre-line;">{{.Message}}</p>
        </div>
        {{end}}

        {{if .ListingURL}}
        <p style="text-align: center; margin: 30px 0;">
            <a href="{{.ListingURL}}" style="background-color: #3498db; color: white; padding: 12px 24px; text-decoration: none; border-radius: 5px; display: inline-block;">View Listing</a>
        </p>
        {{end}}

        <p>Reply directly to the inquirer's email address to follow up.</p>
    </div>
</body>
</html>`

const maintenanceUpdateTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Maintenance Update</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 640px; margin: 0 auto; padding: 24px;">
        <h2 style="color: #2c3e50;">Maintenance request update</h2>

        {{if .RecipientName}}
        <p>Hello {{.RecipientName}},</p>
        {{else}}
        <p>Hello,</p>
        {{end}}

        <div style="background-color: #f8f9fa; padding: 16px; border-radius: 6px; margin: 20px 0;">
            {{if .RequestTitle}}<p style="margin: 0;"><strong>Request:</strong> {{.RequestTitle}}</p>{{end}}
            {{if .PropertyLabel}}<p style="margin: 10px 0 0 0;"><strong>Property:</strong> {{.PropertyLabel}}</p>{{end}}
            {{if .Status}}<p style="margin: 10px 0 0 0;"><strong>Status:</strong> {{displayStatus .Status}}</p>{{end}}
        </div>

        {{if .Note}}
        <div style="border-left: 3px solid #3498db; padding-left: 16px; margin: 20px 0;">
            <p style="margin: 0; white-space: pre-line;">{{.Note}}</p>
        </div>
        {{end}}

        <p>Sign in to your portal for the full request history.</p>
    </div>
</body>
</html>`
