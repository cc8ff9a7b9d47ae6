// Package mailer sends guardian confirmation e-mails through Amazon SES.
package mailer

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog"

	"comfyguardians/internal/config"
)

// Notice describes the decision being confirmed to the guardian.
type Notice struct {
	GuardianEmail string
	GuardianName  string
	ChildName     string
	Username      string
}

// Mailer sends decision confirmations.
type Mailer interface {
	GuardianAuthorized(ctx context.Context, n Notice) error
	GuardianRejected(ctx context.Context, n Notice) error
}

// sender is the part of *sesv2.Client the mailer uses.
type sender interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES is the Amazon SES v2 Mailer. A zero FromEmail disables sending.
type SES struct {
	client    sender
	fromEmail string
	fromName  string
	baseURL   string
	log       zerolog.Logger
}

var _ Mailer = (*SES)(nil)

// NewSES builds the mailer from config. When SES_FROM_EMAIL is empty the
// returned mailer logs and skips every send.
func NewSES(ctx context.Context, mc config.MailConfig, baseURL string, log zerolog.Logger) (*SES, error) {
	log = log.With().Str("component", "mailer").Logger()

	if mc.FromEmail == "" {
		log.Info().Str("event", "mailer_disabled").Msg("SES_FROM_EMAIL not configured")
		return &SES{baseURL: baseURL, log: log}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(mc.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	log.Info().
		Str("event", "mailer_enabled").
		Str("region", mc.Region).
		Str("from", mc.FromEmail).
		Send()

	return newSES(sesv2.NewFromConfig(awsCfg), mc, baseURL, log), nil
}

func newSES(client sender, mc config.MailConfig, baseURL string, log zerolog.Logger) *SES {
	return &SES{
		client:    client,
		fromEmail: mc.FromEmail,
		fromName:  mc.FromName,
		baseURL:   baseURL,
		log:       log,
	}
}

// Enabled reports whether messages are actually sent.
func (s *SES) Enabled() bool {
	return s.client != nil
}

func (s *SES) GuardianAuthorized(ctx context.Context, n Notice) error {
	subject := fmt.Sprintf("%s's account is now active", n.ChildName)
	text := fmt.Sprintf(`Hello %s,

Thank you for authorizing the account of %s (username: %s).
The account is now active and can be used in the app.

Your consent was recorded on our side. If this was not you, reply to this message.

%s
`, n.GuardianName, n.ChildName, n.Username, s.baseURL)

	return s.send(ctx, n.GuardianEmail, subject, text)
}

func (s *SES) GuardianRejected(ctx context.Context, n Notice) error {
	subject := fmt.Sprintf("%s's account was not authorized", n.ChildName)
	text := fmt.Sprintf(`Hello,

You declined the account of %s (username: %s). The account will stay inactive.

If this was a mistake, contact us so the request can be reviewed.

%s
`, n.ChildName, n.Username, s.baseURL)

	return s.send(ctx, n.GuardianEmail, subject, text)
}

func (s *SES) send(ctx context.Context, to, subject, text string) error {
	if !s.Enabled() {
		s.log.Debug().Str("event", "mail_skipped").Str("subject", subject).Send()
		return nil
	}

	from := s.fromEmail
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(text), Charset: aws.String("UTF-8")},
					Html: &types.Content{Data: aws.String(textToHTML(text)), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	ev := s.log.Info().Str("event", "mail_sent").Str("subject", subject)
	if out != nil && out.MessageId != nil {
		ev = ev.Str("message_id", *out.MessageId)
	}
	ev.Send()
	return nil
}

// textToHTML wraps each escaped paragraph in <p>.
func textToHTML(text string) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><body style="font-family: Arial, sans-serif; color: #333;">`)
	for _, para := range strings.Split(strings.TrimSpace(text), "\n\n") {
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		b.WriteString("</p>")
	}
	b.WriteString("</body></html>")
	return b.String()
}
