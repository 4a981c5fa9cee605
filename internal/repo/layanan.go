package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"desakita/internal/domain"
)

func marshalPersyaratan(in []string) any {
	if len(in) == 0 {
		return nil
	}
	b, _ := json.Marshal(in)
	return string(b)
}

// marshalPersyaratanUpdate keeps the COALESCE semantics of partial edits: nil
// keeps the stored list, an empty non-nil slice clears it to [].
func marshalPersyaratanUpdate(in []string) any {
	if in == nil {
		return nil
	}
	b, _ := json.Marshal(in)
	return string(b)
}

func unmarshalPersyaratan(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return []string{}
	}
	return out
}

func scanLayanan(row rowScanner) (domain.Layanan, error) {
	var l domain.Layanan
	var deskripsi, icon, persyaratan, kategori sql.NullString
	err := row.Scan(&l.ID, &l.Nama, &l.Slug, &deskripsi, &icon, &persyaratan, &l.EstimasiHari, &l.Biaya, &kategori)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	if err != nil {
		return l, err
	}
	l.Deskripsi = deskripsi.String
	l.Icon = icon.String
	l.Persyaratan = unmarshalPersyaratan(persyaratan)
	l.Kategori = kategori.String
	return l, nil
}

const layananColumns = `id, nama, slug, deskripsi, icon, persyaratan, estimasi_hari, biaya, kategori`

func (r Repo) InsertLayanan(ctx context.Context, l domain.Layanan) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO layanan(nama, slug, deskripsi, icon, persyaratan, estimasi_hari, biaya, kategori)
		VALUES (?,?,?,?,?,?,?,?)`,
		l.Nama, l.Slug, nullable(l.Deskripsi), nullable(l.Icon), marshalPersyaratan(l.Persyaratan),
		l.EstimasiHari, l.Biaya, nullable(l.Kategori))
	if err != nil {
		return 0, mapUnique(err)
	}
	return res.LastInsertId()
}

func (r Repo) GetLayanan(ctx context.Context, id int64) (domain.Layanan, error) {
	return scanLayanan(r.DB.QueryRowContext(ctx, `SELECT `+layananColumns+` FROM layanan WHERE id=?`, id))
}

func (r Repo) GetLayananBySlug(ctx context.Context, slug string) (domain.Layanan, error) {
	return scanLayanan(r.DB.QueryRowContext(ctx, `SELECT `+layananColumns+` FROM layanan WHERE slug=?`, slug))
}

func (r Repo) ListLayanan(ctx context.Context) ([]domain.Layanan, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+layananColumns+` FROM layanan ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Layanan
	for rows.Next() {
		l, err := scanLayanan(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

// LayananUpdate carries partial catalog edits; nil fields keep current
// values. An empty non-nil Persyaratan clears the stored list.
type LayananUpdate struct {
	Nama         *string
	Deskripsi    *string
	Icon         *string
	Persyaratan  []string
	EstimasiHari *int
	Biaya        *string
	Kategori     *string
}

func (r Repo) UpdateLayanan(ctx context.Context, id int64, u LayananUpdate) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE layanan SET
		nama = COALESCE(?, nama),
		deskripsi = COALESCE(?, deskripsi),
		icon = COALESCE(?, icon),
		persyaratan = COALESCE(?, persyaratan),
		estimasi_hari = COALESCE(?, estimasi_hari),
		biaya = COALESCE(?, biaya),
		kategori = COALESCE(?, kategori)
		WHERE id=?`,
		nullableStringPtr(u.Nama), nullableStringPtr(u.Deskripsi), nullableStringPtr(u.Icon),
		marshalPersyaratanUpdate(u.Persyaratan), nullableIntPtr(u.EstimasiHari), nullableStringPtr(u.Biaya),
		nullableStringPtr(u.Kategori), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteLayanan refuses to remove a service that is still referenced by any
// request; the reference count is the guard, not a cascading delete.
func (r Repo) DeleteLayanan(ctx context.Context, id int64) error {
	var refs int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM permohonan WHERE layanan_id=?`, id).Scan(&refs); err != nil {
		return err
	}
	if refs > 0 {
		return ErrConflict
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM layanan WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
