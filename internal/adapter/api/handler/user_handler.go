package handler

import (
	"github.com/labstack/echo/v4"

	"chatapp/internal/domain/entity"
	"chatapp/internal/usecase"
	"chatapp/pkg/errors"
	"chatapp/pkg/response"
	"chatapp/pkg/utils"
)

type UserHandler struct {
	userUseCase *usecase.UserUseCase
}

func NewUserHandler(userUseCase *usecase.UserUseCase) *UserHandler {
	return &UserHandler{
		userUseCase: userUseCase,
	}
}

type updateProfileRequest struct {
	Name string `json:"name" validate:"omitempty,min=2"`
	Bio  string `json:"bio" validate:"omitempty,max=500"`
	Age  int    `json:"age" validate:"omitempty,gte=13,lte=120"`
}

func toUserResponse(user *entity.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Bio:       user.Bio,
		AvatarURL: user.AvatarURL,
		Age:       user.Age,
	}
}

func (h *UserHandler) GetProfile(c echo.Context) error {
	uid := c.Get("uid").(string)

	user, err := h.userUseCase.GetProfile(c.Request().Context(), uid)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, toUserResponse(user))
}

func (h *UserHandler) GetUser(c echo.Context) error {
	userID := c.Param("id")

	user, err := h.userUseCase.GetProfile(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, toUserResponse(user))
}

// ListUsers backs the people finder on the new-conversation screen.
func (h *UserHandler) ListUsers(c echo.Context) error {
	pagination := utils.GetPaginationParams(c)

	users, total, err := h.userUseCase.ListUsers(c.Request().Context(), pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	items := make([]userResponse, 0, len(users))
	for _, user := range users {
		items = append(items, toUserResponse(user))
	}

	return response.Paginated(c, items, total, pagination.Page, pagination.PageSize)
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	uid := c.Get("uid").(string)

	user, err := h.userUseCase.UpdateProfile(c.Request().Context(), uid, usecase.UpdateProfileInput{
		Name: req.Name,
		Bio:  req.Bio,
		Age:  req.Age,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, toUserResponse(user))
}

func (h *UserHandler) UploadAvatar(c echo.Context) error {
	uid := c.Get("uid").(string)

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return response.Error(c, errors.BadRequest("Avatar file is required", err))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.Error(c, errors.BadRequest("Unable to read avatar file", err))
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")

	user, err := h.userUseCase.UpdateAvatar(c.Request().Context(), uid, file, contentType)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, toUserResponse(user))
}
