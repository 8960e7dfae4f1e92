package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/certify-api/internal/model"
	"github.com/jwalitptl/certify-api/internal/provider"
	apperrors "github.com/jwalitptl/certify-api/pkg/errors"
)

const (
	ID              = "webhook"
	signatureHeader = "X-Certify-Signature"
)

type Config struct {
	// URL is the platform default endpoint; tenants may override it.
	URL     string
	Secret  string
	Timeout time.Duration
}

type Backend struct {
	client *http.Client
	config Config
}

func New(cfg Config) *Backend {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return NewWithClient(&http.Client{Timeout: cfg.Timeout}, cfg)
}

func NewWithClient(client *http.Client, cfg Config) *Backend {
	return &Backend{client: client, config: cfg}
}

func (b *Backend) ID() string { return ID }

// Check probes the platform default endpoint. Without one there is nothing
// shared to probe and the backend reports healthy.
func (b *Backend) Check(ctx context.Context) error {
	if b.config.URL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, b.config.URL, nil)
	if err != nil {
		return apperrors.TransientBackend(ID, err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return apperrors.TransientBackend(ID, err)
	}
	defer resp.Body.Close()
	return classifyStatus(resp.StatusCode, nil)
}

func (b *Backend) NewSender(setting model.ProviderSetting) (provider.Sender, error) {
	endpoint := setting.Endpoint
	if endpoint == "" {
		endpoint = b.config.URL
	}
	if endpoint == "" {
		return nil, fmt.Errorf("webhook endpoint is not configured")
	}
	return &sender{backend: b, endpoint: endpoint}, nil
}

type payloadAttachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

type payload struct {
	ID          string              `json:"id"`
	To          string              `json:"to"`
	Subject     string              `json:"subject"`
	HTMLBody    string              `json:"html_body"`
	Tag         string              `json:"tag,omitempty"`
	Attachments []payloadAttachment `json:"attachments,omitempty"`
}

type sender struct {
	backend  *Backend
	endpoint string
}

func (s *sender) ProviderID() string { return ID }

func (s *sender) Send(ctx context.Context, msg provider.Message) (string, error) {
	p := payload{
		ID:       uuid.NewString(),
		To:       msg.To,
		Subject:  msg.Subject,
		HTMLBody: msg.HTMLBody,
		Tag:      msg.Tag,
	}
	for _, a := range msg.Attachments {
		p.Attachments = append(p.Attachments, payloadAttachment{
			Name:        a.Name,
			ContentType: a.ContentType,
			Content:     base64.StdEncoding.EncodeToString(a.Content),
		})
	}

	body, err := json.Marshal(p)
	if err != nil {
		return "", apperrors.Internal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Internal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.backend.config.Secret != "" {
		req.Header.Set(signatureHeader, Sign(s.backend.config.Secret, body))
	}

	resp, err := s.backend.client.Do(req)
	if err != nil {
		return "", apperrors.TransientBackend(ID, err)
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err := classifyStatus(resp.StatusCode, snippet); err != nil {
		return "", err
	}
	return p.ID, nil
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func classifyStatus(status int, body []byte) error {
	if status < 300 {
		return nil
	}
	err := fmt.Errorf("webhook responded %d: %s", status, bytes.TrimSpace(body))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.ProviderAuth(ID, err)
	case status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout:
		return apperrors.TransientBackend(ID, err)
	default:
		return apperrors.Validation("webhook rejected the delivery", err)
	}
}
