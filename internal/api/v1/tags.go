package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/epitrello/epitrello/internal/domain"
)

type ListTagsOutput struct {
	Body struct {
		Tags []*TagResponse `json:"tags"`
	}
}

type CreateTagInput struct {
	Body struct {
		Name       string   `json:"name" minLength:"1" maxLength:"255" doc:"Tag name"`
		Type       string   `json:"type,omitempty" maxLength:"64" doc:"Tag category"`
		Attributes []string `json:"attributes,omitempty" doc:"Free-form attributes, e.g. a display color"`
	}
}

type TagOutput struct {
	Body *TagResponse
}

type GetTagInput struct {
	TagID uuid.UUID `path:"tagID" doc:"Tag ID"`
}

type UpdateTagInput struct {
	TagID uuid.UUID `path:"tagID" doc:"Tag ID"`
	Body  struct {
		Name       *string  `json:"name,omitempty" maxLength:"255" doc:"Tag name"`
		Type       *string  `json:"type,omitempty" maxLength:"64" doc:"Tag category"`
		Attributes []string `json:"attributes,omitempty" doc:"Free-form attributes"`
	}
}

type DeleteTagOutput struct {
	Body struct {
		Deleted bool `json:"deleted"`
	}
}

// Tags are a shared vocabulary rather than per-board data, so these routes
// only require an authenticated user. Attaching a tag to a card goes through
// the card routes and their board access checks.
func RegisterTagRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tags",
		Method:      http.MethodGet,
		Path:        "/tags",
		Summary:     "List all tags",
		Tags:        []string{"Tags"},
	}, func(ctx context.Context, _ *struct{}) (*ListTagsOutput, error) {
		if _, err := currentUser(ctx); err != nil {
			return nil, err
		}

		tags, err := store.Tags().List(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list tags", err)
		}

		out := &ListTagsOutput{}
		out.Body.Tags = make([]*TagResponse, 0, len(tags))
		for _, tag := range tags {
			out.Body.Tags = append(out.Body.Tags, toTagResponse(tag))
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-tag",
		Method:      http.MethodPost,
		Path:        "/tags",
		Summary:     "Create a tag",
		Tags:        []string{"Tags"},
	}, func(ctx context.Context, input *CreateTagInput) (*TagOutput, error) {
		if _, err := currentUser(ctx); err != nil {
			return nil, err
		}

		tag := &domain.Tag{
			ID:         uuid.New(),
			Name:       input.Body.Name,
			Type:       input.Body.Type,
			Attributes: input.Body.Attributes,
		}
		if err := store.Tags().Create(ctx, tag); err != nil {
			return nil, huma.Error500InternalServerError("failed to create tag", err)
		}
		return &TagOutput{Body: toTagResponse(tag)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tag",
		Method:      http.MethodGet,
		Path:        "/tags/{tagID}",
		Summary:     "Get a tag",
		Tags:        []string{"Tags"},
	}, func(ctx context.Context, input *GetTagInput) (*TagOutput, error) {
		if _, err := currentUser(ctx); err != nil {
			return nil, err
		}

		tag, err := store.Tags().GetByID(ctx, input.TagID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("tag not found")
			}
			return nil, huma.Error500InternalServerError("failed to load tag", err)
		}
		return &TagOutput{Body: toTagResponse(tag)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-tag",
		Method:      http.MethodPatch,
		Path:        "/tags/{tagID}",
		Summary:     "Update a tag",
		Tags:        []string{"Tags"},
	}, func(ctx context.Context, input *UpdateTagInput) (*TagOutput, error) {
		if _, err := currentUser(ctx); err != nil {
			return nil, err
		}

		tag, err := store.Tags().GetByID(ctx, input.TagID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("tag not found")
			}
			return nil, huma.Error500InternalServerError("failed to load tag", err)
		}

		if input.Body.Name != nil && *input.Body.Name != "" {
			tag.Name = *input.Body.Name
		}
		if input.Body.Type != nil {
			tag.Type = *input.Body.Type
		}
		if input.Body.Attributes != nil {
			tag.Attributes = input.Body.Attributes
		}
		if err := store.Tags().Update(ctx, tag); err != nil {
			return nil, huma.Error500InternalServerError("failed to update tag", err)
		}
		return &TagOutput{Body: toTagResponse(tag)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-tag",
		Method:      http.MethodDelete,
		Path:        "/tags/{tagID}",
		Summary:     "Delete a tag",
		Tags:        []string{"Tags"},
	}, func(ctx context.Context, input *GetTagInput) (*DeleteTagOutput, error) {
		if _, err := currentUser(ctx); err != nil {
			return nil, err
		}

		if err := store.Tags().Delete(ctx, input.TagID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("tag not found")
			}
			return nil, huma.Error500InternalServerError("failed to delete tag", err)
		}

		out := &DeleteTagOutput{}
		out.Body.Deleted = true
		return out, nil
	})
}
