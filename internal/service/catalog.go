package service

import (
	"context"
	"strings"

	"stockledger/internal/domain"
	"stockledger/internal/store"

	"go.uber.org/zap"
)

type CreateProductInput struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Category    *string `json:"category" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (domain.Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validate.Struct(input); err != nil {
		return domain.Product{}, err
	}
	now := s.now()
	return s.store.CreateProduct(ctx, domain.Product{
		ID:          s.newID(),
		Name:        input.Name,
		Category:    normalizeNullable(input.Category),
		Description: normalizeNullable(input.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, search string, limit, offset int) ([]domain.Product, error) {
	return s.store.ListProducts(ctx, search, limit, offset)
}

// CreateVariantInput has no stock or cost fields: a new variant starts at
// zero and receives stock through purchases or opening-stock adjustments.
type CreateVariantInput struct {
	ProductID    string               `json:"product_id" validate:"required"`
	SKU          string               `json:"sku" validate:"required,max=64"`
	Barcode      string               `json:"barcode" validate:"omitempty,max=64"`
	Size         *string              `json:"size" validate:"omitempty,max=32"`
	Color        *string              `json:"color" validate:"omitempty,max=32"`
	SellingPrice float64              `json:"selling_price" validate:"gte=0"`
	Status       domain.VariantStatus `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
}

func (s *Service) CreateVariant(ctx context.Context, input CreateVariantInput) (domain.Variant, error) {
	input.SKU = strings.TrimSpace(input.SKU)
	input.Barcode = strings.TrimSpace(input.Barcode)
	if err := s.validate.Struct(input); err != nil {
		return domain.Variant{}, err
	}
	if input.Status == "" {
		input.Status = domain.VariantActive
	}

	now := s.now()
	variant, err := s.store.CreateVariant(ctx, domain.Variant{
		ID:           s.newID(),
		ProductID:    input.ProductID,
		SKU:          input.SKU,
		Barcode:      input.Barcode,
		Size:         normalizeNullable(input.Size),
		Color:        normalizeNullable(input.Color),
		SellingPrice: input.SellingPrice,
		Status:       input.Status,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return domain.Variant{}, err
	}
	s.log.Info("variant created", zap.String("variant_id", variant.ID), zap.String("sku", variant.SKU))
	return variant, nil
}

type UpdateVariantInput struct {
	SellingPrice *float64             `json:"selling_price" validate:"omitempty,gte=0"`
	Status       *domain.VariantStatus `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	Size         *string              `json:"size" validate:"omitempty,max=32"`
	Color        *string              `json:"color" validate:"omitempty,max=32"`
}

func (s *Service) UpdateVariant(ctx context.Context, id string, input UpdateVariantInput) (domain.Variant, error) {
	if err := s.validate.Struct(input); err != nil {
		return domain.Variant{}, err
	}
	return s.store.UpdateVariantMeta(ctx, id, store.VariantMetaPatch{
		SellingPrice: input.SellingPrice,
		Status:       input.Status,
		Size:         input.Size,
		Color:        input.Color,
	}, s.now())
}

func (s *Service) DeleteVariant(ctx context.Context, id string) error {
	if err := s.store.DeleteVariant(ctx, id); err != nil {
		return err
	}
	s.log.Info("variant deleted", zap.String("variant_id", id))
	return nil
}

func (s *Service) GetVariant(ctx context.Context, id string) (domain.Variant, error) {
	return s.store.GetVariant(ctx, id)
}

// LookupVariant resolves a scanned or typed code against SKU first, then
// barcode.
func (s *Service) LookupVariant(ctx context.Context, code string) (domain.Variant, error) {
	return s.store.FindVariantByCode(ctx, code)
}

func (s *Service) ListVariants(ctx context.Context, filter store.VariantFilter) ([]domain.Variant, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.Validationf("status: must be one of ACTIVE INACTIVE")
	}
	return s.store.ListVariants(ctx, filter)
}

type CreateSupplierInput struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Phone   *string `json:"phone" validate:"omitempty,max=32"`
	Address *string `json:"address" validate:"omitempty,max=500"`
}

func (s *Service) CreateSupplier(ctx context.Context, input CreateSupplierInput) (domain.Supplier, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validate.Struct(input); err != nil {
		return domain.Supplier{}, err
	}
	return s.store.CreateSupplier(ctx, domain.Supplier{
		ID:        s.newID(),
		Name:      input.Name,
		Phone:     normalizeNullable(input.Phone),
		Address:   normalizeNullable(input.Address),
		CreatedAt: s.now(),
	})
}

func (s *Service) GetSupplier(ctx context.Context, id string) (domain.Supplier, error) {
	return s.store.GetSupplier(ctx, id)
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.store.ListSuppliers(ctx)
}

type CreateUserInput struct {
	Username string          `json:"username" validate:"required,min=3,max=64"`
	FullName *string         `json:"full_name" validate:"omitempty,max=200"`
	Role     domain.UserRole `json:"role" validate:"required,oneof=ADMIN STAFF"`
}

func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (domain.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	if err := s.validate.Struct(input); err != nil {
		return domain.User{}, err
	}
	return s.store.CreateUser(ctx, domain.User{
		ID:        s.newID(),
		Username:  input.Username,
		FullName:  normalizeNullable(input.FullName),
		Role:      input.Role,
		CreatedAt: s.now(),
	})
}

func (s *Service) GetUser(ctx context.Context, id string) (domain.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.store.ListUsers(ctx)
}

// GetSettings is display-only, so a failed read falls back to defaults.
func (s *Service) GetSettings(ctx context.Context) domain.Settings {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		s.log.Warn("read settings; using defaults", zap.Error(err))
		return domain.DefaultSettings()
	}
	return settings
}

type UpdateSettingsInput struct {
	ShopName          *string  `json:"shop_name" validate:"omitnil,min=1,max=200"`
	Address           *string  `json:"address" validate:"omitempty,max=500"`
	Phone             *string  `json:"phone" validate:"omitempty,max=32"`
	BillPrefix        *string  `json:"bill_prefix" validate:"omitnil,min=1,max=10,alphanum"`
	LowStockThreshold *int     `json:"low_stock_threshold" validate:"omitempty,gte=0"`
	DefaultTaxPercent *float64 `json:"default_tax_percent" validate:"omitempty,gte=0,lte=100"`
}

// UpdateSettings never touches the bill counter; only sales advance it.
func (s *Service) UpdateSettings(ctx context.Context, input UpdateSettingsInput) (domain.Settings, error) {
	if input.ShopName != nil {
		trimmed := strings.TrimSpace(*input.ShopName)
		input.ShopName = &trimmed
	}
	if input.BillPrefix != nil {
		upper := strings.ToUpper(strings.TrimSpace(*input.BillPrefix))
		input.BillPrefix = &upper
	}
	if err := s.validate.Struct(input); err != nil {
		return domain.Settings{}, err
	}
	settings, err := s.store.UpdateSettings(ctx, store.SettingsPatch{
		ShopName:          input.ShopName,
		Address:           input.Address,
		Phone:             input.Phone,
		BillPrefix:        input.BillPrefix,
		LowStockThreshold: input.LowStockThreshold,
		DefaultTaxPercent: input.DefaultTaxPercent,
	}, s.now())
	if err != nil {
		return domain.Settings{}, err
	}
	s.log.Info("settings updated", zap.String("bill_prefix", settings.BillPrefix))
	return settings, nil
}
