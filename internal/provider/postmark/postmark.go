package postmark

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/mrz1836/postmark"

	"github.com/jwalitptl/certify-api/internal/model"
	"github.com/jwalitptl/certify-api/internal/provider"
	apperrors "github.com/jwalitptl/certify-api/pkg/errors"
)

const ID = "postmark"

// Postmark API error codes that mean the credentials are wrong.
const (
	errCodeBadServerToken  = 10
	errCodeInactiveAccount = 406
)

// Client is the subset of the postmark client used here.
type Client interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
	GetCurrentServer(ctx context.Context) (postmark.Server, error)
}

type Config struct {
	ServerToken  string
	AccountToken string
	From         string
	Stream       string
}

type Backend struct {
	client Client
	config Config
}

func New(cfg Config) (*Backend, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("postmark server token is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("postmark sender address is required")
	}
	return NewWithClient(postmark.NewClient(cfg.ServerToken, cfg.AccountToken), cfg), nil
}

func NewWithClient(client Client, cfg Config) *Backend {
	return &Backend{client: client, config: cfg}
}

func (b *Backend) ID() string { return ID }

func (b *Backend) Check(ctx context.Context) error {
	if _, err := b.client.GetCurrentServer(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (b *Backend) NewSender(setting model.ProviderSetting) (provider.Sender, error) {
	from := b.config.From
	if setting.FromAddress != "" {
		from = setting.FromAddress
	}
	return &sender{backend: b, from: from}, nil
}

type sender struct {
	backend *Backend
	from    string
}

func (s *sender) ProviderID() string { return ID }

func (s *sender) Send(ctx context.Context, msg provider.Message) (string, error) {
	from := s.from
	if msg.From != "" {
		from = msg.From
	}

	email := postmark.Email{
		From:          from,
		To:            msg.To,
		Subject:       msg.Subject,
		Tag:           msg.Tag,
		HTMLBody:      msg.HTMLBody,
		TrackOpens:    true,
		MessageStream: s.backend.config.Stream,
	}
	for _, a := range msg.Attachments {
		email.Attachments = append(email.Attachments, postmark.Attachment{
			Name:        a.Name,
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			ContentType: a.ContentType,
		})
	}

	resp, err := s.backend.client.SendEmail(ctx, email)
	if err != nil {
		return "", classify(err)
	}
	if resp.ErrorCode > 0 {
		return "", classifyCode(resp.ErrorCode, resp.Message)
	}
	return resp.MessageID, nil
}

func classifyCode(code int64, message string) error {
	err := fmt.Errorf("postmark error %d: %s", code, message)
	if code == errCodeBadServerToken || code == errCodeInactiveAccount {
		return apperrors.ProviderAuth(ID, err)
	}
	return apperrors.TransientBackend(ID, err)
}

// classify maps transport errors. The client reports API failures as plain
// errors whose text carries the code, so auth is detected from that text.
func classify(err error) error {
	text := strings.ToLower(err.Error())
	if strings.Contains(text, "401") || strings.Contains(text, "unauthorized") ||
		strings.Contains(text, "server token") {
		return apperrors.ProviderAuth(ID, err)
	}
	return apperrors.TransientBackend(ID, err)
}
