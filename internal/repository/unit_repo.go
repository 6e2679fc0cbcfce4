package repository

import (
	"context"

	"procurement/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UnitRepository interface {
	Create(ctx context.Context, unit *model.Unit) error
	Update(ctx context.Context, unit *model.Unit) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Unit, error)
	FindByCode(ctx context.Context, code string) (*model.Unit, error)
	List(ctx context.Context, page, limit int, search string) ([]model.Unit, int64, error)
	CountByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}

type unitRepository struct {
	db *gorm.DB
}

func NewUnitRepository(db *gorm.DB) UnitRepository {
	return &unitRepository{db: db}
}

func (r *unitRepository) Create(ctx context.Context, unit *model.Unit) error {
	return GetDB(ctx, r.db).Create(unit).Error
}

func (r *unitRepository) Update(ctx context.Context, unit *model.Unit) error {
	return GetDB(ctx, r.db).Save(unit).Error
}

func (r *unitRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Unit{}).Error
}

func (r *unitRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Unit, error) {
	var unit model.Unit
	if err := GetDB(ctx, r.db).First(&unit, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *unitRepository) FindByCode(ctx context.Context, code string) (*model.Unit, error) {
	var unit model.Unit
	if err := GetDB(ctx, r.db).Where("code = ?", code).First(&unit).Error; err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *unitRepository) List(ctx context.Context, page, limit int, search string) ([]model.Unit, int64, error) {
	var units []model.Unit
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Unit{})
	if search != "" {
		db = db.Where("name ILIKE ? OR code ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("code asc").Offset(offset).Limit(limit).Find(&units).Error; err != nil {
		return nil, 0, err
	}

	return units, total, nil
}

func (r *unitRepository) CountByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).
		Model(&model.Unit{}).
		Where("id IN ?", ids).
		Count(&count).Error
	return count, err
}
