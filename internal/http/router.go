package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(handler *Handler, log *zap.Logger) http.Handler {
	log = log.Named("http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(Timeout)
	r.Use(CORS)

	r.Get("/healthz", handler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", handler.ListProducts)
		r.Get("/products/{id}", handler.GetProduct)
		r.Post("/products", handler.CreateProduct)

		r.Get("/variants", handler.ListVariants)
		r.Get("/variants/lookup", handler.LookupVariant)
		r.Get("/variants/{id}", handler.GetVariant)
		r.Post("/variants", handler.CreateVariant)
		r.Patch("/variants/{id}", handler.PatchVariant)
		r.Delete("/variants/{id}", handler.DeleteVariant)
		r.Get("/variants/{id}/movements", handler.VariantMovements)
		r.Get("/variants/{id}/movements/export", handler.ExportVariantMovements)
		r.Get("/variants/{id}/suppliers", handler.VariantSuppliers)

		r.Get("/suppliers", handler.ListSuppliers)
		r.Get("/suppliers/{id}", handler.GetSupplier)
		r.Post("/suppliers", handler.CreateSupplier)

		r.Get("/users", handler.ListUsers)
		r.Get("/users/{id}", handler.GetUser)
		r.Post("/users", handler.CreateUser)

		r.Get("/settings", handler.GetSettings)
		r.Patch("/settings", handler.UpdateSettings)

		r.Get("/inventory/summary", handler.InventorySummary)
		r.Get("/inventory/low-stock", handler.LowStock)
		r.Post("/inventory/opening-stock", handler.ImportOpeningStock)

		r.Get("/purchases", handler.ListPurchases)
		r.Get("/purchases/{id}", handler.GetPurchase)
		r.Post("/purchases", handler.CreatePurchase)
		r.Delete("/purchases/{id}", handler.DeletePurchase)

		r.Get("/sales", handler.ListSales)
		r.Get("/sales/stats", handler.SalesStats)
		r.Get("/sales/{id}", handler.GetSale)
		r.Post("/sales", handler.CreateSale)
		r.Post("/sales/{id}/void", handler.VoidSale)

		r.Get("/stock-adjustments", handler.ListStockAdjustments)
		r.Post("/stock-adjustments", handler.CreateStockAdjustment)
	})

	return r
}
