package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"desakita/internal/domain"
	"desakita/internal/engine"
	"desakita/internal/repo"
)

func registerLayanan(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-layanan",
		Method:      http.MethodGet,
		Path:        "/layanan",
		Summary:     "List the service catalog",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Layanan `json:"body"`
	}, error) {
		items, err := e.ListLayanan(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Layanan{}
		}
		return &struct {
			Body []domain.Layanan `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-layanan",
		Method:      http.MethodGet,
		Path:        "/layanan/{slug}",
		Summary:     "Get one service by slug",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Slug string `path:"slug"`
	}) (*struct {
		Body domain.Layanan `json:"body"`
	}, error) {
		l, err := e.GetLayananBySlug(ctx, input.Slug)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Layanan `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-layanan",
		Method:        http.MethodPost,
		Path:          "/layanan",
		Summary:       "Create a service (admin)",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateLayananRequest `json:"body"`
	}) (*struct {
		Body domain.Layanan `json:"body"`
	}, error) {
		if _, authErr := requireAdmin(ctx); authErr != nil {
			return nil, authErr
		}
		l, err := e.CreateLayanan(ctx, domain.Layanan{
			Nama:         input.Body.Nama,
			Slug:         input.Body.Slug,
			Deskripsi:    input.Body.Deskripsi,
			Icon:         input.Body.Icon,
			Persyaratan:  input.Body.Persyaratan,
			EstimasiHari: input.Body.EstimasiHari,
			Biaya:        input.Body.Biaya,
			Kategori:     input.Body.Kategori,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Layanan `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-layanan",
		Method:      http.MethodPut,
		Path:        "/layanan/{id}",
		Summary:     "Update a service (admin)",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64                `path:"id"`
		Body UpdateLayananRequest `json:"body"`
	}) (*struct {
		Body domain.Layanan `json:"body"`
	}, error) {
		if _, authErr := requireAdmin(ctx); authErr != nil {
			return nil, authErr
		}
		l, err := e.UpdateLayanan(ctx, input.ID, repo.LayananUpdate{
			Nama:         input.Body.Nama,
			Deskripsi:    input.Body.Deskripsi,
			Icon:         input.Body.Icon,
			Persyaratan:  input.Body.Persyaratan,
			EstimasiHari: input.Body.EstimasiHari,
			Biaya:        input.Body.Biaya,
			Kategori:     input.Body.Kategori,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Layanan `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-layanan",
		Method:        http.MethodDelete,
		Path:          "/layanan/{id}",
		Summary:       "Delete a service (admin)",
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct{}, error) {
		if _, authErr := requireAdmin(ctx); authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteLayanan(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
