package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"desakita/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// mapUnique rewrites a unique-constraint violation into ErrConflict so callers
// can distinguish duplicates from storage failures.
func mapUnique(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrConflict
	}
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

const permohonanColumns = `p.id, p.no_registrasi, p.user_id, p.layanan_id,
	p.nama_pemohon, p.nik_pemohon, p.email_pemohon, p.no_hp_pemohon, p.alamat_pemohon,
	p.keperluan, p.status, p.catatan, p.dokumen_hasil, p.created_at, p.updated_at,
	l.nama, l.slug`

const permohonanJoin = `FROM permohonan p LEFT JOIN layanan l ON p.layanan_id = l.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPermohonan(row rowScanner) (domain.Permohonan, error) {
	var p domain.Permohonan
	var email, noHp, alamat, keperluan, catatan, hasil, lNama, lSlug sql.NullString
	err := row.Scan(&p.ID, &p.NoRegistrasi, &p.UserID, &p.LayananID,
		&p.Pemohon.Nama, &p.Pemohon.NIK, &email, &noHp, &alamat,
		&keperluan, &p.Status, &catatan, &hasil, &p.CreatedAt, &p.UpdatedAt,
		&lNama, &lSlug)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Pemohon.Email = email.String
	p.Pemohon.NoHp = noHp.String
	p.Pemohon.Alamat = alamat.String
	p.Keperluan = keperluan.String
	if catatan.Valid {
		p.Catatan = &catatan.String
	}
	if hasil.Valid {
		p.DokumenHasil = &hasil.String
	}
	p.LayananNama = lNama.String
	p.LayananSlug = lSlug.String
	return p, nil
}

func (r Repo) InsertPermohonanTx(ctx context.Context, tx *sql.Tx, p domain.Permohonan) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO permohonan(
		id, no_registrasi, user_id, layanan_id,
		nama_pemohon, nik_pemohon, email_pemohon, no_hp_pemohon, alamat_pemohon,
		keperluan, status, catatan, dokumen_hasil, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.NoRegistrasi, p.UserID, p.LayananID,
		p.Pemohon.Nama, p.Pemohon.NIK, nullable(p.Pemohon.Email), nullable(p.Pemohon.NoHp), nullable(p.Pemohon.Alamat),
		nullable(p.Keperluan), p.Status, nullableStringPtr(p.Catatan), nullableStringPtr(p.DokumenHasil),
		p.CreatedAt, p.UpdatedAt)
	return mapUnique(err)
}

func (r Repo) UpdatePermohonanStatusTx(ctx context.Context, tx *sql.Tx, id, status string, catatan, dokumenHasil *string, updatedAt string) error {
	var res sql.Result
	var err error
	if dokumenHasil != nil {
		res, err = tx.ExecContext(ctx, `UPDATE permohonan SET status=?, catatan=?, dokumen_hasil=?, updated_at=? WHERE id=?`,
			status, nullableStringPtr(catatan), *dokumenHasil, updatedAt, id)
	} else {
		res, err = tx.ExecContext(ctx, `UPDATE permohonan SET status=?, catatan=?, updated_at=? WHERE id=?`,
			status, nullableStringPtr(catatan), updatedAt, id)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetPermohonan(ctx context.Context, id string) (domain.Permohonan, error) {
	return scanPermohonan(r.DB.QueryRowContext(ctx,
		`SELECT `+permohonanColumns+` `+permohonanJoin+` WHERE p.id=?`, id))
}

func (r Repo) GetPermohonanByNoRegistrasi(ctx context.Context, noRegistrasi string) (domain.Permohonan, error) {
	return scanPermohonan(r.DB.QueryRowContext(ctx,
		`SELECT `+permohonanColumns+` `+permohonanJoin+` WHERE p.no_registrasi=?`, noRegistrasi))
}

func (r Repo) ListPermohonanByUser(ctx context.Context, userID string) ([]domain.Permohonan, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+permohonanColumns+` `+permohonanJoin+` WHERE p.user_id=? ORDER BY p.created_at DESC, p.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Permohonan
	for rows.Next() {
		p, err := scanPermohonan(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// PermohonanFilters narrows admin listings. Search matches registration
// number, applicant name, or NIK substring, case-insensitively.
type PermohonanFilters struct {
	Status string
	Search string
	Limit  int
	Offset int
}

func permohonanWhere(f PermohonanFilters) (string, []any) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "p.status=?")
		args = append(args, f.Status)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		clauses = append(clauses, "(p.no_registrasi LIKE ? OR p.nama_pemohon LIKE ? OR p.nik_pemohon LIKE ?)")
		args = append(args, like, like, like)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func (r Repo) ListPermohonan(ctx context.Context, f PermohonanFilters) ([]domain.Permohonan, error) {
	where, args := permohonanWhere(f)
	query := `SELECT ` + permohonanColumns + ` ` + permohonanJoin + ` ` + where +
		` ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Permohonan
	for rows.Next() {
		p, err := scanPermohonan(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// CountPermohonan applies the same filters as ListPermohonan so pagination
// totals stay consistent with the page query.
func (r Repo) CountPermohonan(ctx context.Context, f PermohonanFilters) (int, error) {
	where, args := permohonanWhere(f)
	var total int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM permohonan p `+where, args...).Scan(&total)
	return total, err
}

func (r Repo) CountPermohonanByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM permohonan GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

func (r Repo) InsertTimelineTx(ctx context.Context, tx *sql.Tx, t domain.TimelineEntry) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO timeline_permohonan(permohonan_id, status, catatan, petugas, created_at)
		VALUES (?,?,?,?,?)`,
		t.PermohonanID, t.Status, nullableStringPtr(t.Catatan), t.Petugas, t.CreatedAt)
	return err
}

func (r Repo) ListTimeline(ctx context.Context, permohonanID string) ([]domain.TimelineEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT permohonan_id, status, catatan, petugas, created_at
		FROM timeline_permohonan WHERE permohonan_id=? ORDER BY created_at ASC, id ASC`, permohonanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TimelineEntry
	for rows.Next() {
		var t domain.TimelineEntry
		var catatan sql.NullString
		if err := rows.Scan(&t.PermohonanID, &t.Status, &catatan, &t.Petugas, &t.CreatedAt); err != nil {
			return nil, err
		}
		if catatan.Valid {
			t.Catatan = &catatan.String
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) InsertDokumenTx(ctx context.Context, tx *sql.Tx, d domain.Dokumen) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO dokumen_permohonan(id, permohonan_id, nama, file_path, file_type, file_size, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		d.ID, d.PermohonanID, d.Nama, d.FilePath, d.FileType, d.FileSize, d.CreatedAt)
	return err
}

func (r Repo) ListDokumen(ctx context.Context, permohonanID string) ([]domain.Dokumen, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, permohonan_id, nama, file_path, file_type, file_size, created_at
		FROM dokumen_permohonan WHERE permohonan_id=? ORDER BY created_at ASC, id ASC`, permohonanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Dokumen
	for rows.Next() {
		var d domain.Dokumen
		if err := rows.Scan(&d.ID, &d.PermohonanID, &d.Nama, &d.FilePath, &d.FileType, &d.FileSize, &d.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}
