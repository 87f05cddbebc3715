package valuation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/ternarybob/arbor"

	"peer_valuation/pkg/core/export"
	"peer_valuation/pkg/core/pipeline"
	"peer_valuation/pkg/models"
)

// Runner executes one valuation.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*models.ValuationResult, error)
}

// ResultReader returns the most recent stored run for a company.
type ResultReader interface {
	Latest(ctx context.Context, companyName string) (*models.ValuationResult, error)
}

// DefaultTimeout bounds one report request.
const DefaultTimeout = 120 * time.Second

// Handler serves valuation endpoints.
type Handler struct {
	runner   Runner
	results  ResultReader
	defaults pipeline.Request
	logger   arbor.ILogger
	Timeout  time.Duration
}

// NewHandler creates a valuation handler. results may be nil. Fields omitted
// from a request body take their value from defaults.
func NewHandler(runner Runner, results ResultReader, defaults pipeline.Request, logger arbor.ILogger) *Handler {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	return &Handler{runner: runner, results: results, defaults: defaults, logger: logger, Timeout: DefaultTimeout}
}

// newRequest copies the defaults. Pointer fields are cloned so decoding a body
// never writes through to the shared defaults.
func (h *Handler) newRequest() pipeline.Request {
	req := h.defaults
	req.CompanyName = ""
	if h.defaults.SanityBand != nil {
		band := *h.defaults.SanityBand
		req.SanityBand = &band
	}
	if h.defaults.DescriptionWeight != nil {
		w := *h.defaults.DescriptionWeight
		req.DescriptionWeight = &w
	}
	return req
}

// RegisterRoutes sets up the valuation routes.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/valuation/report", h.HandleValuationReport).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/valuation/latest/{company}", h.HandleLatest).Methods(http.MethodGet)
}

// StatusFor maps pipeline errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNoValidPeers), errors.Is(err, models.ErrUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// HandleValuationReport runs a valuation. The body is a pipeline.Request;
// omitted fields take the configured defaults. ?format=json|markdown|html.
func (h *Handler) HandleValuationReport(w http.ResponseWriter, r *http.Request) {
	// CORS
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "markdown" && format != "html" {
		respondError(w, http.StatusBadRequest, "unsupported format: "+format)
		return
	}

	req := h.newRequest()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	result, err := h.runner.Run(ctx, req)
	if err != nil {
		status := StatusFor(err)
		h.logger.Warn().Err(err).Str("company", req.CompanyName).Int("status", status).Msg("Valuation request failed")
		respondError(w, status, err.Error())
		return
	}

	rec := export.ToRecord(result)
	switch format {
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(export.RenderMarkdown(rec)))
	case "html":
		html, err := export.RenderHTML(rec)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	default:
		respondJSON(w, http.StatusOK, rec)
	}
}

// HandleLatest returns the last stored run for {company}.
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if h.results == nil {
		respondError(w, http.StatusServiceUnavailable, "result storage is not configured")
		return
	}
	company := mux.Vars(r)["company"]
	result, err := h.results.Latest(r.Context(), company)
	if err != nil {
		respondError(w, StatusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, export.ToRecord(result))
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
