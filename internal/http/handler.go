package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"fines-service/internal/document"
	"fines-service/internal/domain/fine"
	"fines-service/internal/erap"
	"fines-service/internal/repository"
	"fines-service/internal/service"
)

const maxUploadBytes = 20 << 20

type Handler struct {
	fineService *service.FineService
	log         zerolog.Logger
}

func NewHandler(fineService *service.FineService, log zerolog.Logger) *Handler {
	return &Handler{
		fineService: fineService,
		log:         log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.GET("/health", h.health)

	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.POST("/fines/fetch", h.fetchFines)
		protected.POST("/fines/upload", h.uploadFine)
		protected.GET("/fines", h.listFines)
		protected.GET("/fines/:id", h.getFine)
		protected.PATCH("/fines/:id/mark-paid", h.markPaid)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// fetchFines triggers a listing ingestion batch for one vehicle.
func (h *Handler) fetchFines(c *gin.Context) {
	plate := strings.TrimSpace(c.Query("plate_number"))
	passport := strings.TrimSpace(c.Query("tech_passport"))

	result, err := h.fineService.IngestFromListing(c.Request.Context(), plate, passport)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(result))
}

// uploadFine ingests a single uploaded PDF notice. A duplicate prescription
// number is answered with the existing record rather than an error.
func (h *Handler) uploadFine(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("file is required"))
		return
	}
	if ct := fileHeader.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/pdf") {
		c.JSON(http.StatusUnsupportedMediaType, errorResponse("only PDF files are accepted"))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("cannot read uploaded file"))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("cannot read uploaded file"))
		return
	}

	record, created, err := h.fineService.IngestFromDocument(c.Request.Context(), data)
	if err != nil {
		h.handleError(c, err)
		return
	}

	status := http.StatusCreated
	message := "fine successfully processed and saved"
	if !created {
		status = http.StatusOK
		message = "fine already exists"
	}

	c.JSON(status, gin.H{
		"success":             created,
		"message":             message,
		"fine_id":             record.ID,
		"prescription_number": record.PrescriptionNumber,
	})
}

func (h *Handler) listFines(c *gin.Context) {
	var filter repository.ListFilter

	if plate := strings.TrimSpace(c.Query("license_plate")); plate != "" {
		filter.LicensePlate = &plate
	}
	if from := strings.TrimSpace(c.Query("violation_date_from")); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid violation_date_from"))
			return
		}
		filter.DateFrom = &t
	}
	if to := strings.TrimSpace(c.Query("violation_date_to")); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid violation_date_to"))
			return
		}
		filter.DateTo = &t
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		c.JSON(http.StatusBadRequest, errorResponse("violation_date_to must be after violation_date_from"))
		return
	}
	if paid := c.Query("is_paid"); paid != "" {
		v, err := strconv.ParseBool(paid)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid is_paid"))
			return
		}
		filter.IsPaid = &v
	}
	filter.DiscountOnly = c.Query("discount_available_only") == "true"

	filter.Limit = 100
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			filter.Limit = parsed
		}
	}
	if o := c.Query("skip"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			filter.Offset = parsed
		}
	}

	fines, total, err := h.fineService.ListFines(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	now := time.Now().UTC()
	items := make([]FineResponse, 0, len(fines))
	for i := range fines {
		items = append(items, toFineResponse(&fines[i], now))
	}

	c.JSON(http.StatusOK, gin.H{
		"total": total,
		"items": items,
	})
}

func (h *Handler) getFine(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid fine id"))
		return
	}

	record, err := h.fineService.GetFine(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(toFineResponse(record, time.Now().UTC())))
}

func (h *Handler) markPaid(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid fine id"))
		return
	}

	record, err := h.fineService.MarkPaid(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(toFineResponse(record, time.Now().UTC())))
}

// handleError maps the service taxonomy onto HTTP statuses without leaking
// internal error detail for unexpected failures.
func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrValidation), errors.Is(err, document.ErrRead):
		c.JSON(http.StatusUnprocessableEntity, errorResponse(err.Error()))
	case errors.Is(err, erap.ErrNetwork), errors.Is(err, erap.ErrParse):
		h.log.Error().Err(err).Msg("upstream listing service failure")
		c.JSON(http.StatusBadGateway, errorResponse("listing service unavailable"))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

// FineResponse is the read DTO: the persisted record plus the derived
// discount fields, recomputed on every read.
type FineResponse struct {
	fine.Fine
	DiscountAvailable        bool `json:"discount_available"`
	DaysRemainingForDiscount int  `json:"days_remaining_for_discount"`
}

func toFineResponse(f *fine.Fine, now time.Time) FineResponse {
	return FineResponse{
		Fine:                     *f,
		DiscountAvailable:        f.DiscountAvailable(now),
		DaysRemainingForDiscount: f.DaysRemainingForDiscount(now),
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
