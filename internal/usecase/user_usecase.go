package usecase

import (
	"context"
	"io"
	"time"

	"chatapp/internal/domain/entity"
	"chatapp/internal/domain/repository"
	"chatapp/pkg/errors"
	"chatapp/pkg/logger"
)

// AvatarStorage uploads profile images and returns their download URLs.
type AvatarStorage interface {
	UploadAvatar(ctx context.Context, file io.Reader, contentType, userID string) (string, error)
	DeleteAvatar(ctx context.Context, fileURL string) error
}

type UserUseCase struct {
	userRepo repository.UserRepository
	avatars  AvatarStorage
}

func NewUserUseCase(userRepo repository.UserRepository, avatars AvatarStorage) *UserUseCase {
	return &UserUseCase{
		userRepo: userRepo,
		avatars:  avatars,
	}
}

type UpdateProfileInput struct {
	Name string
	Bio  string
	Age  int
}

func (uc *UserUseCase) GetProfile(ctx context.Context, userID string) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.NotFound("User", err)
	}
	return user, nil
}

// ListUsers backs the people-finder: everyone a user could start a
// conversation with.
func (uc *UserUseCase) ListUsers(ctx context.Context, limit, offset int) ([]*entity.User, int64, error) {
	return uc.userRepo.List(ctx, limit, offset)
}

func (uc *UserUseCase) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.NotFound("User", err)
	}

	if input.Name != "" {
		user.Name = input.Name
	}
	if input.Bio != "" {
		user.Bio = input.Bio
	}
	if input.Age > 0 {
		user.Age = input.Age
	}
	user.UpdatedAt = time.Now()

	if err := uc.userRepo.Update(ctx, user); err != nil {
		return nil, errors.Internal("Failed to update user profile", err)
	}

	return user, nil
}

// UpdateAvatar uploads a new profile image and writes its URL back to the
// profile. The previous image is removed on a best-effort basis; messages
// already sent keep their snapshotted URL.
func (uc *UserUseCase) UpdateAvatar(ctx context.Context, userID string, file io.Reader, contentType string) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.NotFound("User", err)
	}

	url, err := uc.avatars.UploadAvatar(ctx, file, contentType, userID)
	if err != nil {
		return nil, errors.Internal("Failed to upload avatar", err)
	}

	oldURL := user.AvatarURL
	user.AvatarURL = url
	user.UpdatedAt = time.Now()

	if err := uc.userRepo.Update(ctx, user); err != nil {
		return nil, errors.Internal("Failed to update user profile", err)
	}

	if oldURL != "" {
		if err := uc.avatars.DeleteAvatar(ctx, oldURL); err != nil {
			logger.Warn("UpdateAvatar: failed to delete previous avatar for %s: %v", userID, err)
		}
	}

	return user, nil
}
