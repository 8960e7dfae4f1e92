package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/jwalitptl/certify-api/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/certify-api/pkg/errors"
)

const convertPath = "/forms/chromium/convert/html"

var pdfMagic = []byte("%PDF")

type HTTPConverterConfig struct {
	// Endpoint is the base URL of a Gotenberg-compatible service.
	Endpoint string
	Username string
	Password string
	Timeout  time.Duration
	// MaxFailures consecutive transient failures open the breaker for OpenTimeout.
	MaxFailures int
	OpenTimeout time.Duration
}

// HTTPConverter posts the document as index.html to a chromium conversion
// endpoint. Credential rejections map to ProviderAuth, everything else that
// goes wrong on the backend side maps to TransientBackend.
type HTTPConverter struct {
	client  *http.Client
	config  HTTPConverterConfig
	breaker *circuitbreaker.CircuitBreaker
}

func NewHTTPConverter(cfg HTTPConverterConfig, client *http.Client) *HTTPConverter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPConverter{
		client: client,
		config: cfg,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "render",
			MaxFailures: cfg.MaxFailures,
			Timeout:     cfg.OpenTimeout,
			IsFailure:   apperrors.IsRetryable,
		}),
	}
}

func (c *HTTPConverter) Convert(ctx context.Context, html string) ([]byte, error) {
	var pdf []byte
	err := c.breaker.Execute(func() error {
		var err error
		pdf, err = c.convert(ctx, html)
		return err
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return nil, apperrors.TransientBackend(backendName, err)
	}
	return pdf, err
}

func (c *HTTPConverter) convert(parent context.Context, html string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(parent, c.config.Timeout)
	defer cancel()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if _, err := io.WriteString(part, html); err != nil {
		return nil, apperrors.Internal(err)
	}
	if err := form.Close(); err != nil {
		return nil, apperrors.Internal(err)
	}

	url := strings.TrimRight(c.config.Endpoint, "/") + convertPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			if parentErr := parent.Err(); parentErr != nil {
				return nil, apperrors.TransientBackend(backendName, parentErr)
			}
			return nil, apperrors.TransientBackend(backendName, fmt.Errorf("timed out after %s", c.config.Timeout))
		}
		return nil, apperrors.TransientBackend(backendName, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperrors.ProviderAuth(backendName, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 500,
		resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperrors.TransientBackend(backendName, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 300:
		return nil, apperrors.Internal(fmt.Errorf("render backend rejected request with status %d", resp.StatusCode))
	}

	pdf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.TransientBackend(backendName, err)
	}
	if !bytes.HasPrefix(pdf, pdfMagic) {
		return nil, apperrors.TransientBackend(backendName, errors.New("response is not a pdf document"))
	}
	return pdf, nil
}
