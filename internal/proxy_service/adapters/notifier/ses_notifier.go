package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/Tech-Aware/ProxyCall/internal/platform/logger"
	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

const charset = "UTF-8"

// SESAPI is the subset of the SES v2 client used by SESNotifier.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESNotifier delivers client notifications by e-mail through AWS SES.
type SESNotifier struct {
	client SESAPI
	from   string
	logger *slog.Logger
}

// NewSESNotifier loads the default AWS credential chain for region.
func NewSESNotifier(ctx context.Context, region, from string, log *slog.Logger) (*SESNotifier, error) {
	if from == "" {
		return nil, errors.New("ses: empty from address")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("ses: load aws config: %w", err)
	}
	return NewSESNotifierWithClient(sesv2.NewFromConfig(cfg), from, log), nil
}

func NewSESNotifierWithClient(client SESAPI, from string, log *slog.Logger) *SESNotifier {
	return &SESNotifier{client: client, from: from, logger: log.With("component", "ses_notifier")}
}

// Notify sends n as a plain-text e-mail.
func (s *SESNotifier) Notify(ctx context.Context, n domain.Notification) error {
	if n.Mail == "" {
		return domain.NewValidationError("client_mail", "missing value", "")
	}
	greeting := "Hello,"
	if n.Name != "" {
		greeting = fmt.Sprintf("Hello %s,", n.Name)
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{n.Mail}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(n.Subject), Charset: aws.String(charset)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(greeting + "\n\n" + n.Body + "\n"), Charset: aws.String(charset)},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("kind"), Value: aws.String("confirmation")},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.ErrorContext(ctx, "SES send failed", "error", err, "client_id", n.ClientID,
			"to", logger.RedactEmail(n.Mail))
		return fmt.Errorf("ses send: %w", err)
	}
	messageID := ""
	if out != nil && out.MessageId != nil {
		messageID = *out.MessageId
	}
	s.logger.InfoContext(ctx, "Notification e-mail sent", "client_id", n.ClientID,
		"to", logger.RedactEmail(n.Mail), "message_id", messageID)
	return nil
}

var _ domain.NotificationSink = (*SESNotifier)(nil)
