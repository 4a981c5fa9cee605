package server

import (
	"desakita/internal/domain"
	"desakita/internal/engine"
)

// Response payloads

type PermohonanSummary struct {
	ID           string  `json:"id"`
	NoRegistrasi string  `json:"no_registrasi"`
	Layanan      string  `json:"layanan"`
	LayananSlug  string  `json:"layanan_slug,omitempty"`
	NamaPemohon  string  `json:"nama_pemohon"`
	Keperluan    string  `json:"keperluan,omitempty"`
	Status       string  `json:"status" enum:"diajukan,diverifikasi,diproses,selesai,ditolak"`
	StatusLabel  string  `json:"status_label"`
	Catatan      *string `json:"catatan,omitempty"`
	DokumenHasil *string `json:"dokumen_hasil,omitempty"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	UpdatedAt    string  `json:"updated_at" format:"date-time"`
}

func permohonanSummary(p domain.Permohonan) PermohonanSummary {
	return PermohonanSummary{
		ID:           p.ID,
		NoRegistrasi: p.NoRegistrasi,
		Layanan:      p.LayananNama,
		LayananSlug:  p.LayananSlug,
		NamaPemohon:  p.Pemohon.Nama,
		Keperluan:    p.Keperluan,
		Status:       p.Status,
		StatusLabel:  domain.StatusLabels[p.Status],
		Catatan:      p.Catatan,
		DokumenHasil: uploadURLPtr(p.DokumenHasil),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func mapSummaries(items []domain.Permohonan) []PermohonanSummary {
	out := make([]PermohonanSummary, 0, len(items))
	for _, p := range items {
		out = append(out, permohonanSummary(p))
	}
	return out
}

type CreatedResponse struct {
	ID           string `json:"id"`
	NoRegistrasi string `json:"no_registrasi"`
	Layanan      string `json:"layanan"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type LayananInfo struct {
	Nama         string   `json:"nama"`
	Slug         string   `json:"slug,omitempty"`
	Persyaratan  []string `json:"persyaratan"`
	EstimasiHari int      `json:"estimasi_hari"`
	Biaya        string   `json:"biaya,omitempty"`
}

type DokumenResponse struct {
	ID         string `json:"id"`
	Nama       string `json:"nama"`
	URL        string `json:"url"`
	Type       string `json:"type"`
	Size       int64  `json:"size"`
	UploadedAt string `json:"uploaded_at" format:"date-time"`
}

type TimelineResponse struct {
	Status  string  `json:"status"`
	Tanggal string  `json:"tanggal" format:"date-time"`
	Catatan *string `json:"catatan,omitempty"`
	Petugas string  `json:"petugas"`
}

func mapTimeline(entries []domain.TimelineEntry) []TimelineResponse {
	out := make([]TimelineResponse, 0, len(entries))
	for _, t := range entries {
		out = append(out, TimelineResponse{
			Status:  t.Status,
			Tanggal: t.CreatedAt,
			Catatan: t.Catatan,
			Petugas: t.Petugas,
		})
	}
	return out
}

type DetailResponse struct {
	PermohonanSummary
	UserID   string             `json:"user_id"`
	Pemohon  domain.Pemohon     `json:"pemohon"`
	Layanan  LayananInfo        `json:"layanan_info"`
	Dokumen  []DokumenResponse  `json:"dokumen"`
	Timeline []TimelineResponse `json:"timeline"`
}

func detailResponse(d engine.Detail) DetailResponse {
	docs := make([]DokumenResponse, 0, len(d.Dokumen))
	for _, doc := range d.Dokumen {
		docs = append(docs, DokumenResponse{
			ID:         doc.ID,
			Nama:       doc.Nama,
			URL:        uploadURL(doc.FilePath),
			Type:       doc.FileType,
			Size:       doc.FileSize,
			UploadedAt: doc.CreatedAt,
		})
	}
	return DetailResponse{
		PermohonanSummary: permohonanSummary(d.Permohonan),
		UserID:            d.Permohonan.UserID,
		Pemohon:           d.Permohonan.Pemohon,
		Layanan: LayananInfo{
			Nama:         d.Layanan.Nama,
			Slug:         d.Layanan.Slug,
			Persyaratan:  d.Layanan.Persyaratan,
			EstimasiHari: d.Layanan.EstimasiHari,
			Biaya:        d.Layanan.Biaya,
		},
		Dokumen:  docs,
		Timeline: mapTimeline(d.Timeline),
	}
}

// CheckResponse is the public projection; it carries no user id, NIK, or
// address.
type CheckResponse struct {
	NoRegistrasi string             `json:"no_registrasi"`
	Layanan      string             `json:"layanan"`
	NamaPemohon  string             `json:"nama_pemohon"`
	Status       string             `json:"status"`
	StatusLabel  string             `json:"status_label"`
	Catatan      *string            `json:"catatan,omitempty"`
	DokumenHasil *HasilResponse     `json:"dokumen_hasil,omitempty"`
	Timeline     []TimelineResponse `json:"timeline"`
	CreatedAt    string             `json:"created_at" format:"date-time"`
	UpdatedAt    string             `json:"updated_at" format:"date-time"`
}

type HasilResponse struct {
	Nama string `json:"nama"`
	URL  string `json:"url"`
}

func checkResponse(c engine.StatusCheck) CheckResponse {
	out := CheckResponse{
		NoRegistrasi: c.NoRegistrasi,
		Layanan:      c.Layanan,
		NamaPemohon:  c.NamaPemohon,
		Status:       c.Status,
		StatusLabel:  c.StatusLabel,
		Catatan:      c.Catatan,
		Timeline:     mapTimeline(c.Timeline),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if c.DokumenHasil != nil {
		out.DokumenHasil = &HasilResponse{Nama: "Dokumen Hasil", URL: uploadURL(*c.DokumenHasil)}
	}
	return out
}

type PageResponse struct {
	Items      []PermohonanSummary `json:"items"`
	Total      int                 `json:"total"`
	Page       int                 `json:"page"`
	Limit      int                 `json:"limit"`
	TotalPages int                 `json:"total_pages"`
}

type StatsResponse struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

type TransitionResponse struct {
	ID           string  `json:"id"`
	Status       string  `json:"status"`
	DokumenHasil *string `json:"dokumen_hasil,omitempty"`
	UpdatedAt    string  `json:"updated_at" format:"date-time"`
}

type NotificationResponse struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	Kind      string  `json:"kind" enum:"info,success,error"`
	Link      *string `json:"link,omitempty"`
	Read      bool    `json:"read"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

func mapNotifications(items []domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, NotificationResponse{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Kind:      n.Kind,
			Link:      n.Link,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}

type CreateLayananRequest struct {
	Nama         string   `json:"nama"`
	Slug         string   `json:"slug,omitempty"`
	Deskripsi    string   `json:"deskripsi,omitempty"`
	Icon         string   `json:"icon,omitempty"`
	Persyaratan  []string `json:"persyaratan,omitempty"`
	EstimasiHari int      `json:"estimasi_hari,omitempty"`
	Biaya        string   `json:"biaya,omitempty"`
	Kategori     string   `json:"kategori,omitempty"`
}

type UpdateLayananRequest struct {
	Nama         *string  `json:"nama,omitempty"`
	Deskripsi    *string  `json:"deskripsi,omitempty"`
	Icon         *string  `json:"icon,omitempty"`
	Persyaratan  []string `json:"persyaratan,omitempty"`
	EstimasiHari *int     `json:"estimasi_hari,omitempty"`
	Biaya        *string  `json:"biaya,omitempty"`
	Kategori     *string  `json:"kategori,omitempty"`
}

func uploadURL(relPath string) string {
	if relPath == "" {
		return ""
	}
	return "/uploads/" + relPath
}

func uploadURLPtr(relPath *string) *string {
	if relPath == nil {
		return nil
	}
	u := uploadURL(*relPath)
	return &u
}
