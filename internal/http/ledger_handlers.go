package http

import (
	"bytes"
	"net/http"
	"strings"

	"stockledger/internal/domain"
	"stockledger/internal/excel"
	"stockledger/internal/ledger"
	"stockledger/internal/service"

	"github.com/go-chi/chi/v5"
)

const maxUploadBytes = 32 << 20

func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req ledger.PurchaseInput
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.IdempotencyKey = idempotencyKey(r, req.IdempotencyKey)
	created, err := h.svc.CreatePurchase(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.svc.ListPurchases(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	purchase, err := h.svc.GetPurchase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purchase)
}

// DeletePurchase requires ?retain_stock_effect=true: the stock and cost the
// purchase added stay on its variants.
func (h *Handler) DeletePurchase(w http.ResponseWriter, r *http.Request) {
	retain, err := parseOptionalBool(r.URL.Query().Get("retain_stock_effect"), "retain_stock_effect")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.svc.DeletePurchase(r.Context(), chi.URLParam(r, "id"), ledger.DeletePurchaseOptions{RetainStockEffect: retain})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req ledger.SaleInput
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.IdempotencyKey = idempotencyKey(r, req.IdempotencyKey)
	created, err := h.svc.CreateSale(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.svc.ListSales(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.svc.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

type voidSaleRequest struct {
	VoidedBy string `json:"voided_by"`
	Reason   string `json:"reason"`
}

func (h *Handler) VoidSale(w http.ResponseWriter, r *http.Request) {
	var req voidSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	sale, err := h.svc.VoidSale(r.Context(), chi.URLParam(r, "id"), req.VoidedBy, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (h *Handler) SalesStats(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	stats, err := h.svc.SalesStats(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) CreateStockAdjustment(w http.ResponseWriter, r *http.Request) {
	var req ledger.AdjustmentInput
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.IdempotencyKey = idempotencyKey(r, req.IdempotencyKey)
	created, err := h.svc.CreateStockAdjustment(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) ListStockAdjustments(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.svc.ListStockAdjustments(r.Context(), strings.TrimSpace(r.URL.Query().Get("variant_id")), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) InventorySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.InventorySummary(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	var threshold *int
	if raw := strings.TrimSpace(r.URL.Query().Get("threshold")); raw != "" {
		value, err := parseOptionalInt(raw, 0)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		threshold = &value
	}
	items, err := h.svc.LowStock(r.Context(), threshold)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) VariantMovements(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.MovementReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) VariantSuppliers(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.SupplierSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// ExportVariantMovements renders the workbook fully before writing so that a
// failure still produces a JSON error response.
func (h *Handler) ExportVariantMovements(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.MovementReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := excel.WriteMovementReport(&buf, report); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+attachmentName("movements", report.Variant.SKU)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// ImportOpeningStock takes a multipart form with a "file" field plus
// created_by, and optional dry_run and batch_key fields.
func (h *Handler) ImportOpeningStock(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.fail(w, r, domain.Validationf("failed to parse multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, domain.Validationf("file field is required"))
		return
	}
	defer file.Close()

	dryRun, err := parseOptionalBool(r.FormValue("dry_run"), "dry_run")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rows, err := excel.ParseOpeningStockFile(header.Filename, file)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	result, err := h.svc.ImportOpeningStock(r.Context(), rows, service.OpeningStockOptions{
		CreatedBy: r.FormValue("created_by"),
		DryRun:    dryRun,
		BatchKey:  strings.TrimSpace(r.FormValue("batch_key")),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file_name": header.Filename,
		"dry_run":   dryRun,
		"result":    result,
	})
}
