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

type CreateUnitRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

type UpdateUnitRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

type UnitResponse struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// --- Interface ---

type UnitService interface {
	GetUnits(ctx context.Context, page, limit int, search string) ([]UnitResponse, int64, error)
	CreateUnit(ctx context.Context, userID string, req CreateUnitRequest) (UnitResponse, error)
	UpdateUnit(ctx context.Context, userID string, id string, req UpdateUnitRequest) (UnitResponse, error)
	DeleteUnit(ctx context.Context, userID string, id string) error
}

type unitService struct {
	unitRepo  repository.UnitRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
}

func NewUnitService(
	unitRepo repository.UnitRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) UnitService {
	return &unitService{
		unitRepo:  unitRepo,
		auditRepo: auditRepo,
		txManager: txManager,
	}
}

// --- Implementation ---

func (s *unitService) GetUnits(ctx context.Context, page, limit int, search string) ([]UnitResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	units, total, err := s.unitRepo.List(ctx, page, limit, search)
	if err != nil {
		return nil, 0, err
	}

	res := make([]UnitResponse, 0, len(units))
	for _, u := range units {
		res = append(res, toUnitResponse(&u))
	}

	return res, total, nil
}

func (s *unitService) CreateUnit(ctx context.Context, userID string, req CreateUnitRequest) (UnitResponse, error) {
	if _, err := s.unitRepo.FindByCode(ctx, req.Code); err == nil {
		return UnitResponse{}, model.NewValidationError("unit code already exists: %s", req.Code)
	}

	unit := model.Unit{
		Code: req.Code,
		Name: req.Name,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.unitRepo.Create(txCtx, &unit); err != nil {
			return fmt.Errorf("failed to create unit: %w", err)
		}
		return s.auditUnit(txCtx, userID, model.ActionCreateUnit, unit.ID.String(), unit.Code, req)
	})
	if err != nil {
		return UnitResponse{}, err
	}

	return toUnitResponse(&unit), nil
}

func (s *unitService) UpdateUnit(ctx context.Context, userID string, id string, req UpdateUnitRequest) (UnitResponse, error) {
	unitID, err := uuid.Parse(id)
	if err != nil {
		return UnitResponse{}, model.NewValidationError("invalid unit id: %s", id)
	}

	unit, err := s.unitRepo.FindByID(ctx, unitID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UnitResponse{}, &model.NotFoundError{Entity: "unit", ID: id}
		}
		return UnitResponse{}, fmt.Errorf("database error: %w", err)
	}

	unit.Code = req.Code
	unit.Name = req.Name

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.unitRepo.Update(txCtx, unit); err != nil {
			return fmt.Errorf("failed to update unit: %w", err)
		}
		return s.auditUnit(txCtx, userID, model.ActionUpdateUnit, unit.ID.String(), unit.Code, req)
	})
	if err != nil {
		return UnitResponse{}, err
	}

	return toUnitResponse(unit), nil
}

func (s *unitService) DeleteUnit(ctx context.Context, userID string, id string) error {
	unitID, err := uuid.Parse(id)
	if err != nil {
		return model.NewValidationError("invalid unit id: %s", id)
	}

	unit, err := s.unitRepo.FindByID(ctx, unitID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.NotFoundError{Entity: "unit", ID: id}
		}
		return fmt.Errorf("database error: %w", err)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.unitRepo.Delete(txCtx, unitID); err != nil {
			return fmt.Errorf("failed to delete unit: %w", err)
		}
		return s.auditUnit(txCtx, userID, model.ActionDeleteUnit, unit.ID.String(), unit.Code, map[string]bool{"deleted": true})
	})
}

func (s *unitService) auditUnit(ctx context.Context, userID, action, entityID, entityName string, payload interface{}) error {
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

func toUnitResponse(u *model.Unit) UnitResponse {
	return UnitResponse{
		ID:   u.ID.String(),
		Code: u.Code,
		Name: u.Name,
	}
}
