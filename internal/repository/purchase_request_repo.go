package repository

import (
	"context"
	"time"

	"procurement/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestQuery carries a fully normalized query: the service layer clamps
// paging and whitelists the sort column before it reaches the repository.
type RequestQuery struct {
	Search      string
	Status      model.RequestStatus
	RequestedBy *uuid.UUID
	UserName    string
	FromDate    *time.Time
	ToDate      *time.Time
	OrderBy     string
	Offset      int
	Limit       int
}

type PurchaseRequestRepository interface {
	Create(ctx context.Context, req *model.PurchaseRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error)
	FindByIDWithDetails(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error)
	Save(ctx context.Context, req *model.PurchaseRequest) error
	MaxRequestNo(ctx context.Context, prefix string) (string, error)
	ExistsByRequestNo(ctx context.Context, requestNo string) (bool, error)
	Query(ctx context.Context, q RequestQuery) ([]model.PurchaseRequest, int64, error)
}

type purchaseRequestRepository struct {
	db *gorm.DB
}

func NewPurchaseRequestRepository(db *gorm.DB) PurchaseRequestRepository {
	return &purchaseRequestRepository{db: db}
}

func (r *purchaseRequestRepository) Create(ctx context.Context, req *model.PurchaseRequest) error {
	// Lines are inserted together with the aggregate root.
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *purchaseRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	var req model.PurchaseRequest
	if err := GetDB(ctx, r.db).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *purchaseRequestRepository) FindByIDWithDetails(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	var req model.PurchaseRequest
	if err := GetDB(ctx, r.db).
		Preload("Requester").
		Preload("Approver").
		Preload("Lines").
		Preload("Lines.Product").
		Preload("Lines.Unit").
		First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *purchaseRequestRepository) Save(ctx context.Context, req *model.PurchaseRequest) error {
	// Omit associations: transitions touch the root only, lines are immutable.
	return GetDB(ctx, r.db).Omit("Lines", "Requester", "Approver").Save(req).Error
}

func (r *purchaseRequestRepository) MaxRequestNo(ctx context.Context, prefix string) (string, error) {
	var max *string
	err := GetDB(ctx, r.db).
		Model(&model.PurchaseRequest{}).
		Where("request_no LIKE ?", prefix+"%").
		Select("MAX(request_no)").
		Scan(&max).Error
	if err != nil {
		return "", err
	}
	if max == nil {
		return "", nil
	}
	return *max, nil
}

func (r *purchaseRequestRepository) ExistsByRequestNo(ctx context.Context, requestNo string) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).
		Model(&model.PurchaseRequest{}).
		Where("request_no = ?", requestNo).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter adds the WHERE clauses shared by the count and fetch queries.
func applyFilter(db *gorm.DB, q RequestQuery) *gorm.DB {
	if q.Search != "" {
		pattern := "%" + q.Search + "%"
		db = db.Where("purchase_requests.request_no ILIKE ? OR purchase_requests.description ILIKE ?", pattern, pattern)
	}
	if q.Status != "" {
		db = db.Where("purchase_requests.status = ?", q.Status)
	}
	if q.RequestedBy != nil {
		db = db.Where("purchase_requests.requested_by = ?", *q.RequestedBy)
	}
	if q.UserName != "" {
		db = db.Joins("JOIN users ON users.id = purchase_requests.requested_by").
			Where("users.username ILIKE ?", "%"+q.UserName+"%")
	}
	if q.FromDate != nil {
		db = db.Where("purchase_requests.request_date >= ?", *q.FromDate)
	}
	if q.ToDate != nil {
		db = db.Where("purchase_requests.request_date <= ?", *q.ToDate)
	}
	return db
}

func (r *purchaseRequestRepository) Query(ctx context.Context, q RequestQuery) ([]model.PurchaseRequest, int64, error) {
	db := GetDB(ctx, r.db)

	var total int64
	countQuery := applyFilter(db.Model(&model.PurchaseRequest{}), q)
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var requests []model.PurchaseRequest
	fetchQuery := applyFilter(db.Model(&model.PurchaseRequest{}), q).
		Preload("Requester").
		Preload("Approver").
		Preload("Lines").
		Preload("Lines.Product").
		Preload("Lines.Unit")
	if err := fetchQuery.
		Order(q.OrderBy).
		Offset(q.Offset).
		Limit(q.Limit).
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}
