package certificate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/certify-api/internal/model"
	certService "github.com/jwalitptl/certify-api/internal/service/certificate"
	apperrors "github.com/jwalitptl/certify-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubService struct {
	cert    *model.Certificate
	issued  certService.IssueResult
	opts    certService.IssueOptions
	err     error
	updated int
}

func (s *stubService) IssueForEvent(_ context.Context, _ int64, opts certService.IssueOptions) (certService.IssueResult, error) {
	s.opts = opts
	return s.issued, s.err
}

func (s *stubService) RefreshForEvent(context.Context, int64) (certService.RefreshResult, error) {
	return certService.RefreshResult{Updated: s.updated}, s.err
}

func (s *stubService) Get(_ context.Context, id int64) (*model.Certificate, error) {
	if s.cert == nil || s.cert.ID != id {
		return nil, apperrors.NotFound("certificate", nil)
	}
	return s.cert, nil
}

func (s *stubService) GetByGUID(_ context.Context, guid uuid.UUID) (*model.Certificate, error) {
	if s.cert == nil || s.cert.GUID != guid {
		return nil, apperrors.NotFound("certificate", nil)
	}
	return s.cert, nil
}

type stubRenderer struct {
	pdfErr error
}

func (r stubRenderer) RenderHTML(_ context.Context, v model.CertificateView) (string, error) {
	return "<html>" + v.RecipientName + "</html>", nil
}

func (r stubRenderer) RenderPDF(context.Context, model.CertificateView) ([]byte, error) {
	if r.pdfErr != nil {
		return nil, r.pdfErr
	}
	return []byte("%PDF-1.7"), nil
}

func testCert() *model.Certificate {
	return &model.Certificate{
		ID:            5,
		GUID:          uuid.New(),
		TenantID:      3,
		Title:         "Completion",
		RecipientName: "Alan Turing",
		IssuedOn:      time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
	}
}

func newRouter(svc *stubService, renderer Renderer) *gin.Engine {
	r := gin.New()
	h := NewHandler(svc, renderer)
	h.RegisterRoutes(r.Group("/api/v1"))
	h.RegisterPublicRoutes(r.Group("/public"))
	return r
}

func do(r http.Handler, method, target, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIssueCertificatesReturnsCount(t *testing.T) {
	svc := &stubService{issued: certService.IssueResult{Issued: 3}}
	w := do(newRouter(svc, stubRenderer{}), http.MethodPost, "/api/v1/event/10/certificates/issue?send=true", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"issued":3}`, w.Body.String())
	assert.True(t, svc.opts.Send)
}

func TestIssueCertificatesValidation(t *testing.T) {
	r := newRouter(&stubService{}, stubRenderer{})

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/event/abc/certificates/issue", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/event/10/certificates/issue?send=maybe", "").Code)
}

func TestIssueCertificatesUnknownEvent(t *testing.T) {
	svc := &stubService{err: apperrors.NotFound("event", nil)}
	w := do(newRouter(svc, stubRenderer{}), http.MethodPost, "/api/v1/event/10/certificates/issue", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateCertificatesReturnsCount(t *testing.T) {
	w := do(newRouter(&stubService{updated: 2}, stubRenderer{}), http.MethodPost, "/api/v1/event/10/certificates/update", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"updated":2}`, w.Body.String())
}

func TestGetCertificateFormats(t *testing.T) {
	cert := testCert()
	r := newRouter(&stubService{cert: cert}, stubRenderer{})

	tests := []struct {
		name        string
		target      string
		accept      string
		status      int
		contentType string
	}{
		{"default json", "/api/v1/certificates/5", "", http.StatusOK, "application/json; charset=utf-8"},
		{"query html", "/api/v1/certificates/5?format=html", "", http.StatusOK, "text/html; charset=utf-8"},
		{"query pdf", "/api/v1/certificates/5?format=pdf", "", http.StatusOK, "application/pdf"},
		{"accept pdf", "/api/v1/certificates/5", "application/pdf", http.StatusOK, "application/pdf"},
		{"accept html", "/api/v1/certificates/5", "text/html,application/xhtml+xml;q=0.9", http.StatusOK, "text/html; charset=utf-8"},
		{"query wins over accept", "/api/v1/certificates/5?format=json", "application/pdf", http.StatusOK, "application/json; charset=utf-8"},
		{"unsupported query", "/api/v1/certificates/5?format=docx", "", http.StatusBadRequest, ""},
		{"unsupported accept", "/api/v1/certificates/5", "image/png", http.StatusBadRequest, ""},
		{"missing", "/api/v1/certificates/6", "", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodGet, tt.target, tt.accept)
			assert.Equal(t, tt.status, w.Code)
			if tt.contentType != "" {
				assert.Equal(t, tt.contentType, w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestGetCertificateJSONUsesSnapshot(t *testing.T) {
	cert := testCert()
	w := do(newRouter(&stubService{cert: cert}, stubRenderer{}), http.MethodGet, "/api/v1/certificates/5", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Alan Turing", body["recipient_name"])
	assert.Equal(t, cert.GUID.String(), body["guid"])
	assert.Contains(t, body, "issuing_date")
}

func TestGetCertificateRenderFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "backend credentials rejected",
			err:     apperrors.ProviderAuth("render backend", errors.New("status 401")),
			status:  http.StatusServiceUnavailable,
			message: "render backend could not authenticate",
		},
		{
			name:   "backend timeout",
			err:    apperrors.TransientBackend("render backend", errors.New("timed out")),
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(&stubService{cert: testCert()}, stubRenderer{pdfErr: tt.err})
			w := do(r, http.MethodGet, "/api/v1/certificates/5?format=pdf", "")

			assert.Equal(t, tt.status, w.Code)
			assert.NotEqual(t, "application/pdf", w.Header().Get("Content-Type"))
			if tt.message != "" {
				assert.Contains(t, w.Body.String(), tt.message)
			}
		})
	}
}

func TestVerifyCertificateByGUID(t *testing.T) {
	cert := testCert()
	r := newRouter(&stubService{cert: cert}, stubRenderer{})

	w := do(r, http.MethodGet, "/public/certificates/"+cert.GUID.String()+"?format=html", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Alan Turing")

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/public/certificates/not-a-guid", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/public/certificates/"+uuid.NewString(), "").Code)
}
