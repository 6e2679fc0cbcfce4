package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateProductRequest struct {
	SKU         string `json:"sku" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateProductRequest struct {
	SKU         string `json:"sku" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type ProductResponse struct {
	ID          string `json:"id"`
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// --- Interface ---

type ProductService interface {
	GetProducts(ctx context.Context, page, limit int, search string) ([]ProductResponse, int64, error)
	CreateProduct(ctx context.Context, userID string, req CreateProductRequest) (ProductResponse, error)
	UpdateProduct(ctx context.Context, userID string, id string, req UpdateProductRequest) (ProductResponse, error)
	DeleteProduct(ctx context.Context, userID string, id string) error
}

type productService struct {
	productRepo repository.ProductRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewProductService(
	productRepo repository.ProductRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) ProductService {
	return &productService{
		productRepo: productRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

// --- Implementation ---

func (s *productService) GetProducts(ctx context.Context, page, limit int, search string) ([]ProductResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	products, total, err := s.productRepo.List(ctx, page, limit, search)
	if err != nil {
		return nil, 0, err
	}

	res := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		res = append(res, toProductResponse(&p))
	}

	return res, total, nil
}

func (s *productService) CreateProduct(ctx context.Context, userID string, req CreateProductRequest) (ProductResponse, error) {
	if _, err := s.productRepo.FindBySKU(ctx, req.SKU); err == nil {
		return ProductResponse{}, model.NewValidationError("sku already exists: %s", req.SKU)
	}

	product := model.Product{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.Create(txCtx, &product); err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		return s.auditCatalog(txCtx, userID, model.ActionCreateProduct, product.ID.String(), product.Name, req)
	})
	if err != nil {
		return ProductResponse{}, err
	}

	return toProductResponse(&product), nil
}

func (s *productService) UpdateProduct(ctx context.Context, userID string, id string, req UpdateProductRequest) (ProductResponse, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return ProductResponse{}, model.NewValidationError("invalid product id: %s", id)
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProductResponse{}, &model.NotFoundError{Entity: "product", ID: id}
		}
		return ProductResponse{}, fmt.Errorf("database error: %w", err)
	}

	product.SKU = req.SKU
	product.Name = req.Name
	product.Description = req.Description

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.Update(txCtx, product); err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		return s.auditCatalog(txCtx, userID, model.ActionUpdateProduct, product.ID.String(), product.Name, req)
	})
	if err != nil {
		return ProductResponse{}, err
	}

	return toProductResponse(product), nil
}

func (s *productService) DeleteProduct(ctx context.Context, userID string, id string) error {
	productID, err := uuid.Parse(id)
	if err != nil {
		return model.NewValidationError("invalid product id: %s", id)
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.NotFoundError{Entity: "product", ID: id}
		}
		return fmt.Errorf("database error: %w", err)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.Delete(txCtx, productID); err != nil {
			return fmt.Errorf("failed to delete product: %w", err)
		}
		return s.auditCatalog(txCtx, userID, model.ActionDeleteProduct, product.ID.String(), product.Name, map[string]bool{"deleted": true})
	})
}

func (s *productService) auditCatalog(ctx context.Context, userID, action, entityID, entityName string, payload interface{}) error {
	var uid *uuid.UUID
	if parsed, err := uuid.Parse(userID); err == nil {
		uid = &parsed
	}

	details, _ := json.Marshal(payload)
	entry := &model.AuditLog{
		UserID:     uid,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(details),
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func toProductResponse(p *model.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID.String(),
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
	}
}
