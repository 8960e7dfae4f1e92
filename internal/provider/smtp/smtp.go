package smtp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/certify-api/internal/model"
	"github.com/jwalitptl/certify-api/internal/provider"
	apperrors "github.com/jwalitptl/certify-api/pkg/errors"
)

const ID = "smtp"

// codeAuthFailed is the SMTP reply for rejected credentials.
const codeAuthFailed = 535

// Dialer opens SMTP sessions. *gomail.Dialer satisfies it.
type Dialer interface {
	Dial() (gomail.SendCloser, error)
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type Backend struct {
	dialer Dialer
	from   string
	host   string
}

func New(cfg Config) (*Backend, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp sender address is required")
	}
	return NewWithDialer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg), nil
}

func NewWithDialer(dialer Dialer, cfg Config) *Backend {
	return &Backend{dialer: dialer, from: cfg.From, host: cfg.Host}
}

func (b *Backend) ID() string { return ID }

func (b *Backend) Check(ctx context.Context) error {
	return bounded(ctx, func() error {
		conn, err := b.dialer.Dial()
		if err != nil {
			return err
		}
		return conn.Close()
	})
}

func (b *Backend) NewSender(setting model.ProviderSetting) (provider.Sender, error) {
	from := b.from
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
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.backend.host)

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", messageID)
	if msg.Tag != "" {
		m.SetHeader("X-Tag", msg.Tag)
	}
	m.SetBody("text/html", msg.HTMLBody)
	for _, a := range msg.Attachments {
		content := a.Content
		m.Attach(a.Name,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}),
		)
	}

	err := bounded(ctx, func() error {
		conn, err := s.backend.dialer.Dial()
		if err != nil {
			return err
		}
		defer conn.Close()
		return gomail.Send(conn, m)
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// bounded runs fn until it returns or ctx is done. gomail has no context
// support, so an abandoned call finishes in the background.
func bounded(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		if err != nil {
			return classify(err)
		}
		return nil
	case <-ctx.Done():
		return apperrors.TransientBackend(ID, fmt.Errorf("smtp call aborted: %w", ctx.Err()))
	}
}

func classify(err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) && protoErr.Code == codeAuthFailed {
		return apperrors.ProviderAuth(ID, err)
	}
	return apperrors.TransientBackend(ID, err)
}
