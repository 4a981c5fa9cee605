package server

import (
	"context"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"desakita/internal/domain"
	"desakita/internal/engine"
	"desakita/internal/metrics"
	"desakita/internal/storage"
)

func formValue(form multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// openUploads turns multipart file headers into engine uploads. The returned
// closer must run after the engine call so the streams stay readable.
func openUploads(headers []*multipart.FileHeader) ([]engine.Upload, func(), error) {
	var files []multipart.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	uploads := make([]engine.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		files = append(files, f)
		uploads = append(uploads, engine.Upload{
			Filename: fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Content:  f,
		})
	}
	return uploads, closeAll, nil
}

func registerPermohonan(api huma.API, e engine.Engine, m *metrics.Metrics) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-permohonan",
		Method:        http.MethodPost,
		Path:          "/permohonan",
		Summary:       "Submit a request",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		RawBody multipart.Form
	}) (*struct {
		Body CreatedResponse `json:"body"`
	}, error) {
		actor, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		form := input.RawBody
		layananID, err := strconv.ParseInt(formValue(form, "layanan_id"), 10, 64)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "layanan harus dipilih", nil)
		}
		uploads, closeAll, err := openUploads(form.File["dokumen"])
		if err != nil {
			return nil, handleError(err)
		}
		defer closeAll()

		p, err := e.CreateRequest(ctx, actor, engine.CreateRequestOptions{
			LayananID: layananID,
			Keperluan: formValue(form, "keperluan"),
			Pemohon: domain.Pemohon{
				Nama:   formValue(form, "nama_pemohon"),
				NIK:    formValue(form, "nik_pemohon"),
				Email:  formValue(form, "email_pemohon"),
				NoHp:   formValue(form, "no_hp_pemohon"),
				Alamat: formValue(form, "alamat_pemohon"),
			},
			Documents: uploads,
		})
		if err != nil {
			return nil, handleError(err)
		}
		m.RequestsCreated.Inc()
		m.NotificationsPosted.Inc()
		for _, up := range uploads {
			m.UploadsStored.WithLabelValues(storage.FolderFor(up.MimeType)).Inc()
		}
		return &struct {
			Body CreatedResponse `json:"body"`
		}{Body: CreatedResponse{
			ID:           p.ID,
			NoRegistrasi: p.NoRegistrasi,
			Layanan:      p.LayananNama,
			Status:       p.Status,
			CreatedAt:    p.CreatedAt,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-own-permohonan",
		Method:      http.MethodGet,
		Path:        "/permohonan/saya",
		Summary:     "List own requests",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []PermohonanSummary `json:"body"`
	}, error) {
		actor, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListOwnerRequests(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []PermohonanSummary `json:"body"`
		}{Body: mapSummaries(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-permohonan",
		Method:      http.MethodGet,
		Path:        "/permohonan",
		Summary:     "List all requests (admin)",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
		},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" required:"false" enum:",diajukan,diverifikasi,diproses,selesai,ditolak"`
		Search string `query:"search" required:"false"`
		Page   int    `query:"page" required:"false" minimum:"0"`
		Limit  int    `query:"limit" required:"false" minimum:"0"`
	}) (*struct {
		Body PageResponse `json:"body"`
	}, error) {
		if _, authErr := requireAdmin(ctx); authErr != nil {
			return nil, authErr
		}
		page, err := e.ListAllRequests(ctx, engine.ListFilters{
			Status: input.Status,
			Search: input.Search,
			Page:   input.Page,
			Limit:  input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PageResponse `json:"body"`
		}{Body: PageResponse{
			Items:      mapSummaries(page.Items),
			Total:      page.Total,
			Page:       page.Page,
			Limit:      page.Limit,
			TotalPages: page.TotalPages,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "permohonan-stats",
		Method:      http.MethodGet,
		Path:        "/permohonan/stats/summary",
		Summary:     "Request counts per status (admin)",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StatsResponse `json:"body"`
	}, error) {
		if _, authErr := requireAdmin(ctx); authErr != nil {
			return nil, authErr
		}
		stats, err := e.RequestStats(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StatsResponse `json:"body"`
		}{Body: StatsResponse{Total: stats.Total, ByStatus: stats.ByStatus}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-permohonan",
		Method:      http.MethodGet,
		Path:        "/permohonan/check/{no_registrasi}",
		Summary:     "Public status check by registration number",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		NoRegistrasi string `path:"no_registrasi"`
	}) (*struct {
		Body CheckResponse `json:"body"`
	}, error) {
		check, err := e.CheckStatus(ctx, input.NoRegistrasi)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CheckResponse `json:"body"`
		}{Body: checkResponse(check)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-permohonan",
		Method:      http.MethodGet,
		Path:        "/permohonan/{id}",
		Summary:     "Request detail",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body DetailResponse `json:"body"`
	}, error) {
		actor, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.RequestDetail(ctx, actor, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DetailResponse `json:"body"`
		}{Body: detailResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-permohonan-status",
		Method:      http.MethodPut,
		Path:        "/permohonan/{id}/status",
		Summary:     "Transition a request (admin)",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID      string `path:"id"`
		RawBody multipart.Form
	}) (*struct {
		Body TransitionResponse `json:"body"`
	}, error) {
		actor, authErr := requireAdmin(ctx)
		if authErr != nil {
			return nil, authErr
		}
		form := input.RawBody
		opts := engine.TransitionOptions{
			Status:  formValue(form, "status"),
			Catatan: formValue(form, "catatan"),
			Petugas: actor.Nama,
		}
		if headers := form.File["dokumen_hasil"]; len(headers) > 0 {
			uploads, closeAll, err := openUploads(headers[:1])
			if err != nil {
				return nil, handleError(err)
			}
			defer closeAll()
			opts.Result = &uploads[0]
		}
		p, err := e.TransitionRequest(ctx, input.ID, opts)
		if err != nil {
			return nil, handleError(err)
		}
		m.StatusTransitions.WithLabelValues(p.Status).Inc()
		m.NotificationsPosted.Inc()
		if opts.Result != nil && p.Status == domain.StatusSelesai {
			m.UploadsStored.WithLabelValues(storage.FolderResults).Inc()
		}
		return &struct {
			Body TransitionResponse `json:"body"`
		}{Body: TransitionResponse{
			ID:           p.ID,
			Status:       p.Status,
			DokumenHasil: uploadURLPtr(p.DokumenHasil),
			UpdatedAt:    p.UpdatedAt,
		}}, nil
	})
}
