package engine

import (
	"context"
	"regexp"
	"strings"

	"desakita/internal/domain"
	"desakita/internal/repo"
)

var (
	slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	slugScrub   = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify derives a URL slug from a service name.
func Slugify(nama string) string {
	s := strings.ToLower(strings.TrimSpace(nama))
	return strings.Trim(slugScrub.ReplaceAllString(s, "-"), "-")
}

// ListLayanan returns the full catalog.
func (e Engine) ListLayanan(ctx context.Context) ([]domain.Layanan, error) {
	return e.Repo.ListLayanan(ctx)
}

// GetLayananBySlug looks up one service by its slug.
func (e Engine) GetLayananBySlug(ctx context.Context, slug string) (domain.Layanan, error) {
	return e.Repo.GetLayananBySlug(ctx, slug)
}

// CreateLayanan adds a catalog entry. A missing slug is derived from the
// name; a duplicate slug surfaces as Conflict.
func (e Engine) CreateLayanan(ctx context.Context, l domain.Layanan) (domain.Layanan, error) {
	if l.Nama == "" {
		return domain.Layanan{}, InvalidInputError{Reason: "nama layanan wajib diisi"}
	}
	if l.Slug == "" {
		l.Slug = Slugify(l.Nama)
	}
	if !slugPattern.MatchString(l.Slug) {
		return domain.Layanan{}, InvalidInputError{Reason: "slug tidak valid"}
	}
	if l.EstimasiHari <= 0 {
		l.EstimasiHari = 3
	}
	if l.Biaya == "" {
		l.Biaya = "Gratis"
	}
	id, err := e.Repo.InsertLayanan(ctx, l)
	if err != nil {
		return domain.Layanan{}, err
	}
	return e.Repo.GetLayanan(ctx, id)
}

// UpdateLayanan applies a partial edit; nil fields keep current values, an
// empty non-nil Persyaratan clears the list.
func (e Engine) UpdateLayanan(ctx context.Context, id int64, u repo.LayananUpdate) (domain.Layanan, error) {
	if u.Nama != nil && *u.Nama == "" {
		return domain.Layanan{}, InvalidInputError{Reason: "nama layanan wajib diisi"}
	}
	if u.EstimasiHari != nil && *u.EstimasiHari <= 0 {
		return domain.Layanan{}, InvalidInputError{Reason: "estimasi hari harus positif"}
	}
	if err := e.Repo.UpdateLayanan(ctx, id, u); err != nil {
		return domain.Layanan{}, err
	}
	return e.Repo.GetLayanan(ctx, id)
}

// DeleteLayanan removes a service; Conflict while any request references it.
func (e Engine) DeleteLayanan(ctx context.Context, id int64) error {
	return e.Repo.DeleteLayanan(ctx, id)
}
