package certificate

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/certify-api/internal/middleware"
	"github.com/jwalitptl/certify-api/internal/model"
	certService "github.com/jwalitptl/certify-api/internal/service/certificate"
	apperrors "github.com/jwalitptl/certify-api/pkg/errors"
	"github.com/jwalitptl/certify-api/pkg/httputil"
)

const (
	formatJSON = "json"
	formatHTML = "html"
	formatPDF  = "pdf"
)

var acceptedTypes = map[string]string{
	gin.MIMEJSON:      formatJSON,
	gin.MIMEHTML:      formatHTML,
	"application/pdf": formatPDF,
}

type Renderer interface {
	RenderHTML(ctx context.Context, view model.CertificateView) (string, error)
	RenderPDF(ctx context.Context, view model.CertificateView) ([]byte, error)
}

type Handler struct {
	service  certService.CertificateServicer
	renderer Renderer
}

func NewHandler(service certService.CertificateServicer, renderer Renderer) *Handler {
	return &Handler{service: service, renderer: renderer}
}

// RegisterRoutes mounts the authenticated certificate endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	events := r.Group("/event/:id/certificates")
	{
		events.POST("/issue", h.IssueCertificates)
		events.POST("/update", h.UpdateCertificates)
	}
	r.GET("/certificates/:id", h.GetCertificate)
}

// RegisterPublicRoutes mounts the unauthenticated verification page.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/certificates/:guid", h.VerifyCertificate)
}

func (h *Handler) IssueCertificates(c *gin.Context) {
	eventID, err := parseID(c.Param("id"), "event id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	opts := certService.IssueOptions{}
	if opts.Send, err = boolQuery(c, "send"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if opts.Recompute, err = boolQuery(c, "recompute"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	result, err := h.service.IssueForEvent(c.Request.Context(), eventID, opts)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issued": result.Issued})
}

func (h *Handler) UpdateCertificates(c *gin.Context) {
	eventID, err := parseID(c.Param("id"), "event id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	result, err := h.service.RefreshForEvent(c.Request.Context(), eventID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": result.Updated})
}

func (h *Handler) GetCertificate(c *gin.Context) {
	id, err := parseID(c.Param("id"), "certificate id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	format, err := negotiateFormat(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	cert, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	// certificates of other tenants are reported as missing
	if tenantID, ok := middleware.TenantID(c); ok && tenantID != cert.TenantID {
		httputil.RespondWithError(c, apperrors.NotFound("certificate", nil))
		return
	}

	h.respond(c, cert, format)
}

func (h *Handler) VerifyCertificate(c *gin.Context) {
	guid, err := uuid.Parse(c.Param("guid"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid certificate guid", err))
		return
	}

	format, err := negotiateFormat(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	cert, err := h.service.GetByGUID(c.Request.Context(), guid)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	h.respond(c, cert, format)
}

func (h *Handler) respond(c *gin.Context, cert *model.Certificate, format string) {
	view := cert.View()
	switch format {
	case formatHTML:
		html, err := h.renderer.RenderHTML(c.Request.Context(), view)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
	case formatPDF:
		pdf, err := h.renderer.RenderPDF(c.Request.Context(), view)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="certificate-%s.pdf"`, cert.GUID))
		c.Data(http.StatusOK, "application/pdf", pdf)
	default:
		c.JSON(http.StatusOK, view)
	}
}

// negotiateFormat prefers the format query parameter, then the Accept
// header, and defaults to json.
func negotiateFormat(c *gin.Context) (string, error) {
	if q := c.Query("format"); q != "" {
		switch q {
		case formatJSON, formatHTML, formatPDF:
			return q, nil
		}
		return "", apperrors.Validation(fmt.Sprintf("unsupported format %q", q), nil)
	}

	if c.GetHeader("Accept") == "" {
		return formatJSON, nil
	}
	mime := c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML, "application/pdf")
	format, ok := acceptedTypes[mime]
	if !ok {
		return "", apperrors.Validation("unsupported format in Accept header", nil)
	}
	return format, nil
}

func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Validation("invalid "+what, err)
	}
	return id, nil
}

func boolQuery(c *gin.Context, name string) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.Validation(fmt.Sprintf("invalid %s flag", name), err)
	}
	return v, nil
}
