// Package render turns a stored certificate snapshot into HTML and PDF.
package render

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"github.com/jwalitptl/certify-api/internal/model"
	apperrors "github.com/jwalitptl/certify-api/pkg/errors"
	"github.com/jwalitptl/certify-api/pkg/logger"
	"github.com/jwalitptl/certify-api/pkg/metrics"
)

// backendName is the name failures are reported under.
const backendName = "render backend"

const (
	FormatHTML = "html"
	FormatPDF  = "pdf"
)

//go:embed templates/*.html
var templateFS embed.FS

// Converter turns an HTML document into PDF bytes.
type Converter interface {
	Convert(ctx context.Context, html string) ([]byte, error)
}

type Config struct {
	// PublicBaseURL prefixes the verification link printed as a QR code.
	PublicBaseURL string
	QRSize        int
}

type Renderer struct {
	tmpl      *template.Template
	converter Converter
	baseURL   string
	qrSize    int
	metrics   *metrics.Metrics
	log       *logger.Logger
}

func NewRenderer(cfg Config, converter Converter, m *metrics.Metrics, log *logger.Logger) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/certificate.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate template: %w", err)
	}
	if cfg.QRSize <= 0 {
		cfg.QRSize = 256
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Renderer{
		tmpl:      tmpl,
		converter: converter,
		baseURL:   strings.TrimRight(cfg.PublicBaseURL, "/"),
		qrSize:    cfg.QRSize,
		metrics:   m,
		log:       log.With("renderer"),
	}, nil
}

// VerificationURL is the public page a certificate's QR code points to.
func (r *Renderer) VerificationURL(guid uuid.UUID) string {
	return fmt.Sprintf("%s/public/certificates/%s", r.baseURL, guid)
}

type templateData struct {
	Cert      model.CertificateView
	IssuedOn  string
	VerifyURL string
	QRCode    template.URL
}

func (r *Renderer) RenderHTML(ctx context.Context, view model.CertificateView) (string, error) {
	start := time.Now()
	html, err := r.renderHTML(view)
	r.observe(FormatHTML, start, err)
	return html, err
}

func (r *Renderer) renderHTML(view model.CertificateView) (string, error) {
	verifyURL := r.VerificationURL(view.GUID)
	png, err := qrcode.Encode(verifyURL, qrcode.Medium, r.qrSize)
	if err != nil {
		return "", apperrors.Internal(fmt.Errorf("failed to encode qr code: %w", err))
	}

	data := templateData{
		Cert:      view,
		IssuedOn:  view.IssuedOn.Format("January 2, 2006"),
		VerifyURL: verifyURL,
		QRCode:    template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)),
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "certificate.html", data); err != nil {
		return "", apperrors.Internal(fmt.Errorf("failed to execute certificate template: %w", err))
	}
	return buf.String(), nil
}

// RenderPDF renders the HTML document and converts it. It never returns an
// empty document without an error.
func (r *Renderer) RenderPDF(ctx context.Context, view model.CertificateView) ([]byte, error) {
	start := time.Now()
	pdf, err := r.renderPDF(ctx, view)
	r.observe(FormatPDF, start, err)
	if err != nil {
		r.log.Error(err, "certificate pdf render failed", "certificate_id", view.ID)
	}
	return pdf, err
}

func (r *Renderer) renderPDF(ctx context.Context, view model.CertificateView) ([]byte, error) {
	if r.converter == nil {
		return nil, apperrors.Internal(errors.New("pdf converter is not configured"))
	}
	html, err := r.renderHTML(view)
	if err != nil {
		return nil, err
	}
	pdf, err := r.converter.Convert(ctx, html)
	if err != nil {
		return nil, err
	}
	if len(pdf) == 0 {
		return nil, apperrors.TransientBackend(backendName, errors.New("empty document"))
	}
	return pdf, nil
}

func (r *Renderer) observe(format string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = apperrors.KindOf(err).String()
	}
	r.metrics.RenderTotal.WithLabelValues(format, result).Inc()
	r.metrics.RenderLatency.WithLabelValues(format).Observe(time.Since(start).Seconds())
}
