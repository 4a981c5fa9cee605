package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"desakita/internal/engine"
	"desakita/internal/notify"
)

func notifyScope(ctx context.Context) (notify.Scope, huma.StatusError) {
	id, authErr := identityFromContext(ctx)
	if authErr != nil {
		return notify.Scope{}, authErr
	}
	return notify.Scope{UserID: id.UserID, Admin: id.IsAdmin()}, nil
}

func registerNotifications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List own notifications",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Limit      int  `query:"limit" required:"false" minimum:"0" maximum:"100"`
		UnreadOnly bool `query:"unread_only" required:"false"`
	}) (*struct {
		Body struct {
			Items       []NotificationResponse `json:"items"`
			UnreadCount int                    `json:"unread_count"`
		} `json:"body"`
	}, error) {
		scope, authErr := notifyScope(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Notify.List(ctx, scope, input.Limit, input.UnreadOnly)
		if err != nil {
			return nil, handleError(err)
		}
		unread, err := e.Notify.UnreadCount(ctx, scope)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Items       []NotificationResponse `json:"items"`
				UnreadCount int                    `json:"unread_count"`
			} `json:"body"`
		}{}
		out.Body.Items = mapNotifications(items)
		out.Body.UnreadCount = unread
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-notification",
		Method:      http.MethodPatch,
		Path:        "/notifications/{id}/read",
		Summary:     "Mark one notification read",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body map[string]bool `json:"body"`
	}, error) {
		scope, authErr := notifyScope(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Notify.MarkRead(ctx, scope, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]bool `json:"body"`
		}{Body: map[string]bool{"read": true}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-all-notifications",
		Method:      http.MethodPatch,
		Path:        "/notifications/read-all",
		Summary:     "Mark every notification read",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]bool `json:"body"`
	}, error) {
		scope, authErr := notifyScope(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Notify.MarkAllRead(ctx, scope); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]bool `json:"body"`
		}{Body: map[string]bool{"read": true}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-notification",
		Method:        http.MethodDelete,
		Path:          "/notifications/{id}",
		Summary:       "Delete one notification",
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		scope, authErr := notifyScope(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Notify.Delete(ctx, scope, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "clear-notifications",
		Method:        http.MethodDelete,
		Path:          "/notifications",
		Summary:       "Delete every notification",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		scope, authErr := notifyScope(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Notify.ClearAll(ctx, scope); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
