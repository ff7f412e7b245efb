// internal/services/notification/service.go
// Package notification delivers generation lifecycle notifications over SES
// email and SNS SMS. Delivery failures never propagate to the pipeline that
// triggered them.
package notification

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"

	appconfig "prompt-pipeline/internal/common/config"
	pipelineerrors "prompt-pipeline/internal/common/errors"
	"prompt-pipeline/internal/common/logger"
)

// SESService and SNSService mirror the AWS client methods used, for mocking.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Service sends lifecycle notifications to project owners.
type Service struct {
	config    *appconfig.NotificationConfig
	db        *sql.DB
	sesClient SESService
	snsClient SNSService
	templates map[Event]map[string]string
	logger    logger.Logger
}

func NewService(ctx context.Context, cfg *appconfig.NotificationConfig, db *sql.DB, log logger.Logger) (*Service, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &Service{
		config:    cfg,
		db:        db,
		sesClient: ses.NewFromConfig(awsCfg),
		snsClient: sns.NewFromConfig(awsCfg),
		templates: defaultTemplates(),
		logger:    log.WithFields(map[string]interface{}{"service": "notification"}),
	}, nil
}

// NewServiceWithClients wires explicit clients, used by tests.
func NewServiceWithClients(cfg *appconfig.NotificationConfig, db *sql.DB, sesClient SESService, snsClient SNSService, log logger.Logger) *Service {
	return &Service{
		config:    cfg,
		db:        db,
		sesClient: sesClient,
		snsClient: snsClient,
		templates: defaultTemplates(),
		logger:    log.WithFields(map[string]interface{}{"service": "notification"}),
	}
}

// Notify delivers one message. An unknown recipient or disabled channels yield
// a disabled receipt; a channel failure yields a failed receipt plus a
// degraded error the caller may log and drop.
func (s *Service) Notify(ctx context.Context, msg Message) (*Receipt, error) {
	receipt := &Receipt{
		NotificationID: uuid.NewString(),
		SentAt:         time.Now().UTC().Format(time.RFC3339),
		Status:         StatusDisabled,
	}

	email, phone, err := s.recipientContact(ctx, msg.RecipientID)
	if err != nil {
		s.logger.Warn("recipient not found, skipping notification", map[string]interface{}{
			"recipientId": msg.RecipientID,
			"event":       string(msg.Event),
		})
		return receipt, nil
	}

	template, ok := s.templates[msg.Event]
	if !ok {
		return nil, pipelineerrors.NewValidationError(fmt.Sprintf("no template for event: %s", msg.Event))
	}

	data := map[string]interface{}{
		"recipientId": msg.RecipientID,
		"projectId":   msg.ProjectID,
		"event":       string(msg.Event),
	}
	for k, v := range msg.Metadata {
		data[k] = v
	}

	subject := renderTemplate(template["subject"], data)
	body := renderTemplate(template["body"], data)

	sent := false

	if s.config.Email.Enabled && email != "" {
		if err := s.sendEmail(ctx, email, subject, body); err != nil {
			s.logger.Error("email send failed", map[string]interface{}{
				"recipientId": msg.RecipientID,
				"error":       err.Error(),
			})
			receipt.Status = StatusFailed
			return receipt, pipelineerrors.NewNotificationSendFailedError("email", err)
		}
		sent = true
	}

	if s.config.SMS.Enabled && phone != "" && msg.Priority == "high" {
		if err := s.sendSMS(ctx, phone, body); err != nil {
			s.logger.Error("SMS send failed", map[string]interface{}{
				"recipientId": msg.RecipientID,
				"error":       err.Error(),
			})
			receipt.Status = StatusFailed
			return receipt, pipelineerrors.NewNotificationSendFailedError("sms", err)
		}
		sent = true
	}

	if sent {
		receipt.Status = StatusSent
	}
	return receipt, nil
}

func (s *Service) recipientContact(ctx context.Context, recipientID string) (string, string, error) {
	var email, phone string
	err := s.db.QueryRowContext(ctx,
		`SELECT email, phone FROM users WHERE id = $1`, recipientID).Scan(&email, &phone)
	return email, phone, err
}

func (s *Service) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := s.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
				Html: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(s.config.Email.FromEmail),
	})
	return err
}

func (s *Service) sendSMS(ctx context.Context, to, message string) error {
	_, err := s.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}

// renderTemplate substitutes {{key}} placeholders and strips any left over.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		switch t := v.(type) {
		case string:
			value = t
		case int:
			value = fmt.Sprintf("%d", t)
		default:
			if v != nil {
				value = fmt.Sprintf("%v", v)
			}
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}

func defaultTemplates() map[Event]map[string]string {
	return map[Event]map[string]string{
		EventGenerationCompleted: {
			"subject": "Generation Completed",
			"body":    "Your generation for project {{projectId}} has completed.",
		},
		EventGenerationFailed: {
			"subject": "Generation Failed",
			"body":    "Your generation for project {{projectId}} failed at the {{stage}} stage.",
		},
		EventBulkCompleted: {
			"subject": "Bulk Generation Finished",
			"body":    "Bulk generation for project {{projectId}} finished: {{successful}} succeeded, {{failed}} failed.",
		},
	}
}
