package service

import (
	"context"
	"time"

	"ai-bookchat-be/internal/dto"
	"ai-bookchat-be/internal/entity"
	"ai-bookchat-be/internal/pkg/serverutils"
	"ai-bookchat-be/internal/repository/specification"
	"ai-bookchat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type IUserService interface {
	GetProfile(ctx context.Context, userId uuid.UUID) (*dto.UserProfileResponse, error)
	SaveCredential(ctx context.Context, userId uuid.UUID, req *dto.SaveCredentialRequest) (*dto.SaveCredentialResponse, error)
	GetCredentials(ctx context.Context, userId uuid.UUID) ([]*dto.CredentialResponse, error)
	DeleteCredential(ctx context.Context, userId uuid.UUID, id uuid.UUID) error
}

type userService struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewUserService(uowFactory unitofwork.RepositoryFactory) IUserService {
	return &userService{
		uowFactory: uowFactory,
	}
}

func (s *userService) GetProfile(ctx context.Context, userId uuid.UUID) (*dto.UserProfileResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, serverutils.ErrNotFound(userId, "user")
	}

	return &dto.UserProfileResponse{
		Id:        user.Id,
		Email:     user.Email,
		FullName:  user.FullName,
		Role:      string(user.Role),
		Status:    string(user.Status),
		CreatedAt: user.CreatedAt,
	}, nil
}

func (s *userService) SaveCredential(ctx context.Context, userId uuid.UUID, req *dto.SaveCredentialRequest) (*dto.SaveCredentialResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	cred := entity.ApiCredential{
		Id:        uuid.New(),
		UserId:    userId,
		Provider:  req.Provider,
		ApiKey:    req.ApiKey,
		CreatedAt: time.Now(),
	}

	if err := uow.ApiCredentialRepository().Upsert(ctx, &cred); err != nil {
		return nil, err
	}

	return &dto.SaveCredentialResponse{
		Id:       cred.Id,
		Provider: cred.Provider,
	}, nil
}

func (s *userService) GetCredentials(ctx context.Context, userId uuid.UUID) ([]*dto.CredentialResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	creds, err := uow.ApiCredentialRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	// Keys never leave the server; callers only see which providers have one.
	resp := make([]*dto.CredentialResponse, len(creds))
	for i, c := range creds {
		resp[i] = &dto.CredentialResponse{
			Id:        c.Id,
			Provider:  c.Provider,
			CreatedAt: c.CreatedAt,
		}
	}
	return resp, nil
}

func (s *userService) DeleteCredential(ctx context.Context, userId uuid.UUID, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	cred, err := uow.ApiCredentialRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return err
	}
	if cred == nil {
		return serverutils.ErrNotFound(id, "credential")
	}

	return uow.ApiCredentialRepository().Delete(ctx, id)
}
