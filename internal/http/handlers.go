package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stockledger/internal/domain"
	"stockledger/internal/service"
	"stockledger/internal/store"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	svc *service.Service
	log *zap.Logger
}

func NewHandler(svc *service.Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log.Named("handler")}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset, err := parsePage(query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.svc.ListProducts(r.Context(), query.Get("search"), limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.svc.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req service.CreateProductInput
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	created, err := h.svc.CreateProduct(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) ListVariants(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset, err := parsePage(query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.svc.ListVariants(r.Context(), store.VariantFilter{
		ProductID: strings.TrimSpace(query.Get("product_id")),
		Search:    query.Get("search"),
		Status:    domain.VariantStatus(strings.ToUpper(strings.TrimSpace(query.Get("status")))),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) LookupVariant(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		h.fail(w, r, domain.Validationf("code: is required"))
		return
	}
	variant, err := h.svc.LookupVariant(r.Context(), code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, variant)
}

func (h *Handler) GetVariant(w http.ResponseWriter, r *http.Request) {
	variant, err := h.svc.GetVariant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, variant)
}

func (h *Handler) CreateVariant(w http.ResponseWriter, r *http.Request) {
	var req service.CreateVariantInput
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	created, err := h.svc.CreateVariant(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) PatchVariant(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateVariantInput
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.svc.UpdateVariant(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteVariant(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteVariant(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListSuppliers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) GetSupplier(w http.ResponseWriter, r *http.Request) {
	supplier, err := h.svc.GetSupplier(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, supplier)
}

func (h *Handler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req service.CreateSupplierInput
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	created, err := h.svc.CreateSupplier(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserInput
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	created, err := h.svc.CreateUser(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.GetSettings(r.Context()))
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateSettingsInput
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.svc.UpdateSettings(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// fail writes err with the status its kind maps to. Only unexpected
// failures are logged here; rejected requests are already logged by the
// service at debug level.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("code", code),
			zap.Error(err),
		)
	}
	writeError(w, status, code, err.Error())
}

func statusFor(code string) int {
	switch code {
	case "NOT_FOUND":
		return http.StatusNotFound
	case "INSUFFICIENT_STOCK", "ALREADY_VOIDED", "DUPLICATE_KEY", "REFERENCED":
		return http.StatusConflict
	case "VALIDATION", "TOTALS_MISMATCH":
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return domain.Validationf("invalid JSON body: %v", err)
	}
	return nil
}

func parsePage(query url.Values) (int, int, error) {
	limit, err := parseOptionalInt(query.Get("limit"), 0)
	if err != nil {
		return 0, 0, err
	}
	offset, err := parseOptionalInt(query.Get("offset"), 0)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func parseOptionalInt(raw string, defaultValue int) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, domain.Validationf("invalid integer: %s", raw)
	}
	if parsed < 0 {
		return 0, domain.Validationf("value cannot be negative")
	}
	return parsed, nil
}

func parseOptionalBool(raw, name string) (bool, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return false, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, domain.Validationf("%s must be true or false", name)
	}
	return parsed, nil
}

// parseOptionalTime accepts RFC 3339 or a bare date. A bare date used as an
// upper bound covers the whole day.
func parseOptionalTime(raw string, endOfDay bool) (*time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, domain.Validationf("invalid time: %s", raw)
	}
	if endOfDay {
		parsed = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return &parsed, nil
}

func parseListFilter(r *http.Request) (store.ListFilter, error) {
	query := r.URL.Query()
	limit, offset, err := parsePage(query)
	if err != nil {
		return store.ListFilter{}, err
	}
	from, err := parseOptionalTime(query.Get("from"), false)
	if err != nil {
		return store.ListFilter{}, err
	}
	to, err := parseOptionalTime(query.Get("to"), true)
	if err != nil {
		return store.ListFilter{}, err
	}
	return store.ListFilter{From: from, To: to, Limit: limit, Offset: offset}, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": message, "code": code})
}

func idempotencyKey(r *http.Request, fromBody string) string {
	if key := strings.TrimSpace(fromBody); key != "" {
		return key
	}
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}

func attachmentName(prefix, name string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	return fmt.Sprintf("%s-%s.xlsx", prefix, clean)
}
