package mapper

import (
	"time"

	"ai-bookchat-be/internal/entity"
	"ai-bookchat-be/internal/model"
)

type ApiCredentialMapper struct{}

func NewApiCredentialMapper() *ApiCredentialMapper {
	return &ApiCredentialMapper{}
}

func (m *ApiCredentialMapper) ToEntity(c *model.ApiCredential) *entity.ApiCredential {
	if c == nil {
		return nil
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	return &entity.ApiCredential{
		Id:        c.Id,
		UserId:    c.UserId,
		Provider:  c.Provider,
		ApiKey:    c.ApiKey,
		CreatedAt: c.CreatedAt,
		UpdatedAt: updatedAt,
	}
}

func (m *ApiCredentialMapper) ToModel(c *entity.ApiCredential) *model.ApiCredential {
	if c == nil {
		return nil
	}

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	return &model.ApiCredential{
		Id:        c.Id,
		UserId:    c.UserId,
		Provider:  c.Provider,
		ApiKey:    c.ApiKey,
		CreatedAt: c.CreatedAt,
		UpdatedAt: updatedAt,
	}
}

func (m *ApiCredentialMapper) ToEntities(creds []*model.ApiCredential) []*entity.ApiCredential {
	entities := make([]*entity.ApiCredential, len(creds))
	for i, c := range creds {
		entities[i] = m.ToEntity(c)
	}
	return entities
}
