package implementation

import (
	"context"
	"errors"

	"ai-bookchat-be/internal/entity"
	"ai-bookchat-be/internal/mapper"
	"ai-bookchat-be/internal/model"
	"ai-bookchat-be/internal/repository/contract"
	"ai-bookchat-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ApiCredentialRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ApiCredentialMapper
}

func NewApiCredentialRepository(db *gorm.DB) contract.ApiCredentialRepository {
	return &ApiCredentialRepositoryImpl{
		db:     db,
		mapper: mapper.NewApiCredentialMapper(),
	}
}

func (r *ApiCredentialRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ApiCredentialRepositoryImpl) Upsert(ctx context.Context, cred *entity.ApiCredential) error {
	m := r.mapper.ToModel(cred)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"api_key", "updated_at"}),
	}).Create(m).Error
	if err != nil {
		return err
	}
	*cred = *r.mapper.ToEntity(m)
	return nil
}

func (r *ApiCredentialRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.ApiCredential{}, id).Error
}

func (r *ApiCredentialRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ApiCredential, error) {
	var m model.ApiCredential
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ApiCredentialRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ApiCredential, error) {
	var models []*model.ApiCredential
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}
