package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/epitrello/epitrello/internal/domain"
	"github.com/epitrello/epitrello/internal/server/middleware"
)

type UserOutput struct {
	Body *UserResponse
}

type UpdateMeInput struct {
	Body struct {
		Username          *string `json:"username,omitempty" maxLength:"255" doc:"Display name"`
		ProfilePictureURL *string `json:"profile_picture_url,omitempty" maxLength:"2048" doc:"Avatar URL"`
	}
}

type GetUserInput struct {
	UserID uuid.UUID `path:"userID" doc:"User ID"`
}

type ListUsersOutput struct {
	Body struct {
		Users []*UserResponse `json:"users"`
	}
}

func RegisterUserRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/users/me",
		Summary:     "Get the current user",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, _ *struct{}) (*UserOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		user, err := store.Users().GetByID(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load user", err)
		}
		return &UserOutput{Body: toUserResponse(user)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-me",
		Method:      http.MethodPatch,
		Path:        "/users/me",
		Summary:     "Update the current user's profile",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, input *UpdateMeInput) (*UserOutput, error) {
		userID, err := currentUser(ctx)
		if err != nil {
			return nil, err
		}

		user, err := store.Users().GetByID(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load user", err)
		}

		if input.Body.Username != nil && *input.Body.Username != "" {
			user.Username = *input.Body.Username
		}
		if input.Body.ProfilePictureURL != nil {
			user.ProfilePictureURL = *input.Body.ProfilePictureURL
		}
		if err := store.Users().Update(ctx, user); err != nil {
			return nil, huma.Error500InternalServerError("failed to update user", err)
		}
		return &UserOutput{Body: toUserResponse(user)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{userID}",
		Summary:     "Get a user's public profile",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, input *GetUserInput) (*UserOutput, error) {
		if _, err := currentUser(ctx); err != nil {
			return nil, err
		}

		user, err := store.Users().GetByID(ctx, input.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("user not found")
			}
			return nil, huma.Error500InternalServerError("failed to load user", err)
		}

		// Board membership is private to the user themselves and admins.
		resp := toUserResponse(user)
		role, _ := middleware.RoleFromContext(ctx)
		if input.UserID != mustCurrentUser(ctx) && role != middleware.RoleAdmin {
			resp.Email = ""
			resp.Boards = []uuid.UUID{}
		}
		return &UserOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List all users",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, _ *struct{}) (*ListUsersOutput, error) {
		if _, err := currentUser(ctx); err != nil {
			return nil, err
		}
		if role, _ := middleware.RoleFromContext(ctx); role != middleware.RoleAdmin {
			return nil, huma.Error403Forbidden("admin role required")
		}

		users, err := store.Users().List(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list users", err)
		}

		out := &ListUsersOutput{}
		out.Body.Users = make([]*UserResponse, 0, len(users))
		for _, user := range users {
			out.Body.Users = append(out.Body.Users, toUserResponse(user))
		}
		return out, nil
	})
}

func mustCurrentUser(ctx context.Context) uuid.UUID {
	userID, _ := middleware.UserIDFromContext(ctx)
	return userID
}
