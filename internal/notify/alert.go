package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// LockoutAlert describes a lockout triggered on one browser tab
type LockoutAlert struct {
	Identifier string // already masked
	BrowserID  string
	TabID      string
	ClientIP   string
	LockedAt   time.Time
	Duration   time.Duration
}

// Alerter delivers lockout alerts to administrators
type Alerter interface {
	SendLockoutAlert(ctx context.Context, alert LockoutAlert) error
}

// NopAlerter drops alerts; used when no recipients are configured
type NopAlerter struct{}

func (NopAlerter) SendLockoutAlert(context.Context, LockoutAlert) error { return nil }

// sesSender is the slice of the SES client the alerter needs
type sesSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESAlerter sends lockout alerts through AWS SES
type SESAlerter struct {
	client      sesSender
	fromAddress string
	recipients  []string
	logger      *slog.Logger
}

// NewSESAlerter creates an alerter using the default AWS credential chain for region
func NewSESAlerter(ctx context.Context, region, fromAddress string, recipients []string, logger *slog.Logger) (*SESAlerter, error) {
	if fromAddress == "" || len(recipients) == 0 {
		return nil, fmt.Errorf("alert sender and recipients are required")
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newSESAlerter(ses.NewFromConfig(cfg), fromAddress, recipients, logger), nil
}

func newSESAlerter(client sesSender, fromAddress string, recipients []string, logger *slog.Logger) *SESAlerter {
	return &SESAlerter{
		client:      client,
		fromAddress: fromAddress,
		recipients:  recipients,
		logger:      logger,
	}
}

// SendLockoutAlert e-mails every recipient a plain text notice
func (s *SESAlerter) SendLockoutAlert(ctx context.Context, alert LockoutAlert) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: s.recipients,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Admin dashboard login locked"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(lockoutBody(alert)),
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send lockout alert via SES",
			slog.String("tab_id", alert.TabID),
			slog.Any("error", err))
		return fmt.Errorf("failed to send lockout alert: %w", err)
	}

	s.logger.Info("lockout alert sent",
		slog.String("tab_id", alert.TabID),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}

func lockoutBody(alert LockoutAlert) string {
	var b strings.Builder
	b.WriteString("Too many failed login attempts on the admin dashboard.\n\n")
	fmt.Fprintf(&b, "Identifier: %s\n", alert.Identifier)
	fmt.Fprintf(&b, "Client IP:  %s\n", alert.ClientIP)
	fmt.Fprintf(&b, "Browser:    %s\n", alert.BrowserID)
	fmt.Fprintf(&b, "Tab:        %s\n", alert.TabID)
	fmt.Fprintf(&b, "Locked at:  %s\n", alert.LockedAt.UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "Duration:   %s\n\n", alert.Duration)
	b.WriteString("No action is needed if this was you. Logins resume automatically when the lockout ends.\n")
	return b.String()
}

var (
	_ Alerter = NopAlerter{}
	_ Alerter = (*SESAlerter)(nil)
)
