// Package email sends notification emails through Amazon SES.
package email

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

// Sender is the subset of the SES v2 client used here.
type Sender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type Config struct {
	Region       string
	FromEmail    string
	FromName     string
	AppBaseURL   string
	NativeScheme string
}

// Service отправляет письма. Без FromEmail сервис выключен и только логирует.
type Service struct {
	client  Sender
	cfg     Config
	links   *Links
	enabled bool
	logger  *zap.Logger
}

// New создаёт сервис с клиентом SES из стандартной конфигурации AWS
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Service, error) {
	links, err := NewLinks(cfg.AppBaseURL, cfg.NativeScheme)
	if err != nil {
		return nil, err
	}

	if cfg.FromEmail == "" {
		logger.Info("Email service disabled: SES_FROM_EMAIL not configured")
		return &Service{cfg: cfg, links: links, logger: logger}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	logger.Info("Email service enabled",
		zap.String("from", cfg.FromEmail),
		zap.String("region", cfg.Region))

	return NewWithClient(sesv2.NewFromConfig(awsCfg), cfg, links, logger), nil
}

// NewWithClient создаёт включённый сервис с заданным клиентом
func NewWithClient(client Sender, cfg Config, links *Links, logger *zap.Logger) *Service {
	return &Service{
		client:  client,
		cfg:     cfg,
		links:   links,
		enabled: true,
		logger:  logger,
	}
}

func (s *Service) IsEnabled() bool {
	return s.enabled
}

func (s *Service) Links() *Links {
	return s.links
}

func (s *Service) send(ctx context.Context, to string, msg *rendered) error {
	if !s.enabled {
		s.logger.Debug("Skipping email send (service disabled)",
			zap.String("to", to),
			zap.String("subject", msg.Subject))
		return nil
	}

	from := s.cfg.FromEmail
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}

	s.logger.Info("Email sent",
		zap.String("to", to),
		zap.String("subject", msg.Subject),
		zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}
