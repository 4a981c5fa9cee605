// Package engine implements the request lifecycle: submission, status
// transitions with their audit trail, detail aggregation, public status
// checks, and the service catalog.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"desakita/internal/config"
	"desakita/internal/domain"
	"desakita/internal/notify"
	"desakita/internal/regnum"
	"desakita/internal/repo"
	"desakita/internal/storage"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Store  *storage.Store
	Notify notify.Sink
	Regnum regnum.Generator
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, store *storage.Store, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Store:  store,
		Notify: notify.New(db),
		Regnum: regnum.New(),
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// ForbiddenError means the actor may not access the resource.
type ForbiddenError struct {
	Reason string
}

func (e ForbiddenError) Error() string { return e.Reason }

// InvalidInputError means the request payload failed domain validation.
type InvalidInputError struct {
	Reason string
}

func (e InvalidInputError) Error() string { return e.Reason }

// Identity is the authenticated caller as carried in the token, plus the
// profile fields used to default the applicant snapshot.
type Identity struct {
	UserID string
	Nama   string
	Role   string
	NIK    string
	Email  string
	NoHp   string
	Alamat string
}

func (id Identity) IsAdmin() bool { return id.Role == domain.RoleAdmin }

// Upload is one incoming file. Size limits are enforced while writing.
type Upload struct {
	Filename string
	MimeType string
	Content  io.Reader
}

// CreateRequestOptions are parameters for submitting a request. Empty
// applicant fields fall back to the submitting identity's profile.
type CreateRequestOptions struct {
	LayananID int64
	Keperluan string
	Pemohon   domain.Pemohon
	Documents []Upload
}

// CreateRequest submits a new request: the row, its initial timeline entry,
// and the attached documents are written in one transaction. Admins get a
// best-effort notification after commit.
func (e Engine) CreateRequest(ctx context.Context, actor Identity, opts CreateRequestOptions) (domain.Permohonan, error) {
	if opts.LayananID == 0 {
		return domain.Permohonan{}, InvalidInputError{Reason: "layanan harus dipilih"}
	}
	if len(opts.Documents) > e.Config.Uploads.MaxDocuments {
		return domain.Permohonan{}, InvalidInputError{Reason: fmt.Sprintf("maksimal %d dokumen", e.Config.Uploads.MaxDocuments)}
	}
	layanan, err := e.Repo.GetLayanan(ctx, opts.LayananID)
	if err != nil {
		return domain.Permohonan{}, err
	}

	now := e.now().UTC().Format(time.RFC3339)
	p := domain.Permohonan{
		ID:           uuid.New().String(),
		NoRegistrasi: e.Regnum.Next(),
		UserID:       actor.UserID,
		LayananID:    layanan.ID,
		Pemohon:      applicantSnapshot(actor, opts.Pemohon),
		Keperluan:    opts.Keperluan,
		Status:       domain.StatusDiajukan,
		CreatedAt:    now,
		UpdatedAt:    now,
		LayananNama:  layanan.Nama,
		LayananSlug:  layanan.Slug,
	}

	// Files land on disk before the transaction so a failed write aborts
	// cleanly; on any later error the saved files are removed again.
	var saved []storage.Saved
	cleanup := func() {
		for _, s := range saved {
			e.Store.Remove(s.Path)
		}
	}
	var docs []domain.Dokumen
	for _, up := range opts.Documents {
		s, err := e.Store.SaveDocument(up.Filename, up.MimeType, up.Content, e.Config.Uploads.MaxDocumentBytes)
		if err != nil {
			cleanup()
			return domain.Permohonan{}, uploadError(up.Filename, err)
		}
		saved = append(saved, s)
		docs = append(docs, domain.Dokumen{
			ID:           uuid.New().String(),
			PermohonanID: p.ID,
			Nama:         up.Filename,
			FilePath:     s.Path,
			FileType:     up.MimeType,
			FileSize:     s.Size,
			CreatedAt:    now,
		})
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		cleanup()
		return domain.Permohonan{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertPermohonanTx(ctx, tx, p); err != nil {
		cleanup()
		return domain.Permohonan{}, err
	}
	note := "Permohonan berhasil diajukan"
	if err := e.Repo.InsertTimelineTx(ctx, tx, domain.TimelineEntry{
		PermohonanID: p.ID,
		Status:       domain.StatusDiajukan,
		Catatan:      &note,
		Petugas:      p.Pemohon.Nama,
		CreatedAt:    now,
	}); err != nil {
		cleanup()
		return domain.Permohonan{}, err
	}
	for _, d := range docs {
		if err := e.Repo.InsertDokumenTx(ctx, tx, d); err != nil {
			cleanup()
			return domain.Permohonan{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		cleanup()
		return domain.Permohonan{}, err
	}

	e.Notify.NotifyAdmins(ctx,
		"Permohonan Baru",
		fmt.Sprintf("%s mengajukan %s (%s)", p.Pemohon.Nama, layanan.Nama, p.NoRegistrasi),
		domain.NotifInfo,
		"/admin/permohonan/"+p.ID)

	return p, nil
}

func applicantSnapshot(actor Identity, override domain.Pemohon) domain.Pemohon {
	out := domain.Pemohon{
		Nama:   actor.Nama,
		NIK:    actor.NIK,
		Email:  actor.Email,
		NoHp:   actor.NoHp,
		Alamat: actor.Alamat,
	}
	if override.Nama != "" {
		out.Nama = override.Nama
	}
	if override.NIK != "" {
		out.NIK = override.NIK
	}
	if override.Email != "" {
		out.Email = override.Email
	}
	if override.NoHp != "" {
		out.NoHp = override.NoHp
	}
	if override.Alamat != "" {
		out.Alamat = override.Alamat
	}
	return out
}

func uploadError(filename string, err error) error {
	switch err {
	case storage.ErrTooLarge:
		return InvalidInputError{Reason: fmt.Sprintf("file %s melebihi batas ukuran", filename)}
	case storage.ErrTypeNotAllowed:
		return InvalidInputError{Reason: fmt.Sprintf("tipe file %s tidak diizinkan", filename)}
	}
	return err
}

// TransitionOptions are parameters for an admin status change. Result is
// stored under results/ and recorded on the request only when the target
// status is selesai; with any other status it is ignored.
type TransitionOptions struct {
	Status  string
	Catatan string
	Result  *Upload
	Petugas string
}

// TransitionRequest moves a request to a new status, appends the timeline
// entry in the same transaction, and notifies the owner after commit.
// Transitions out of selesai or ditolak are not blocked.
func (e Engine) TransitionRequest(ctx context.Context, id string, opts TransitionOptions) (domain.Permohonan, error) {
	if !domain.ValidStatus(opts.Status) {
		return domain.Permohonan{}, InvalidInputError{Reason: "status tidak valid"}
	}
	current, err := e.Repo.GetPermohonan(ctx, id)
	if err != nil {
		return domain.Permohonan{}, err
	}

	var catatan *string
	if opts.Catatan != "" {
		catatan = &opts.Catatan
	}
	var resultPath *string
	cleanup := func() {}
	if opts.Result != nil && opts.Status == domain.StatusSelesai {
		s, err := e.Store.SaveResult(opts.Result.Filename, opts.Result.MimeType, opts.Result.Content, e.Config.Uploads.MaxResultBytes)
		if err != nil {
			return domain.Permohonan{}, uploadError(opts.Result.Filename, err)
		}
		resultPath = &s.Path
		cleanup = func() { e.Store.Remove(s.Path) }
	}

	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		cleanup()
		return domain.Permohonan{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdatePermohonanStatusTx(ctx, tx, id, opts.Status, catatan, resultPath, now); err != nil {
		cleanup()
		return domain.Permohonan{}, err
	}
	if err := e.Repo.InsertTimelineTx(ctx, tx, domain.TimelineEntry{
		PermohonanID: id,
		Status:       opts.Status,
		Catatan:      catatan,
		Petugas:      opts.Petugas,
		CreatedAt:    now,
	}); err != nil {
		cleanup()
		return domain.Permohonan{}, err
	}
	if err := tx.Commit(); err != nil {
		cleanup()
		return domain.Permohonan{}, err
	}

	label := domain.StatusLabels[opts.Status]
	body := fmt.Sprintf("Permohonan %s (%s) telah %s", current.LayananNama, current.NoRegistrasi, strings.ToLower(label))
	if opts.Catatan != "" {
		body += ". Catatan: " + opts.Catatan
	}
	e.Notify.NotifyUser(ctx, current.UserID,
		"Permohonan "+label, body, notifKind(opts.Status), "/user/riwayat/"+id)

	current.Status = opts.Status
	current.Catatan = catatan
	if resultPath != nil {
		current.DokumenHasil = resultPath
	}
	current.UpdatedAt = now
	return current, nil
}

func notifKind(status string) string {
	switch status {
	case domain.StatusSelesai:
		return domain.NotifSuccess
	case domain.StatusDitolak:
		return domain.NotifError
	}
	return domain.NotifInfo
}

// Detail aggregates a request with its service info, documents, and timeline.
type Detail struct {
	Permohonan domain.Permohonan
	Layanan    domain.Layanan
	Dokumen    []domain.Dokumen
	Timeline   []domain.TimelineEntry
}

// RequestDetail returns the aggregate for the owner or an admin.
func (e Engine) RequestDetail(ctx context.Context, actor Identity, id string) (Detail, error) {
	p, err := e.Repo.GetPermohonan(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if !actor.IsAdmin() && p.UserID != actor.UserID {
		return Detail{}, ForbiddenError{Reason: "akses ditolak"}
	}
	layanan, err := e.Repo.GetLayanan(ctx, p.LayananID)
	if err != nil && err != repo.ErrNotFound {
		return Detail{}, err
	}
	docs, err := e.Repo.ListDokumen(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	timeline, err := e.Repo.ListTimeline(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Permohonan: p, Layanan: layanan, Dokumen: docs, Timeline: timeline}, nil
}

// StatusCheck is the public projection served by registration number. It
// carries no user id and no applicant NIK or address.
type StatusCheck struct {
	NoRegistrasi string
	Layanan      string
	NamaPemohon  string
	Status       string
	StatusLabel  string
	Catatan      *string
	DokumenHasil *string
	Timeline     []domain.TimelineEntry
	CreatedAt    string
	UpdatedAt    string
}

// CheckStatus looks up a request by registration number without auth.
func (e Engine) CheckStatus(ctx context.Context, noRegistrasi string) (StatusCheck, error) {
	p, err := e.Repo.GetPermohonanByNoRegistrasi(ctx, noRegistrasi)
	if err != nil {
		return StatusCheck{}, err
	}
	timeline, err := e.Repo.ListTimeline(ctx, p.ID)
	if err != nil {
		return StatusCheck{}, err
	}
	return StatusCheck{
		NoRegistrasi: p.NoRegistrasi,
		Layanan:      p.LayananNama,
		NamaPemohon:  p.Pemohon.Nama,
		Status:       p.Status,
		StatusLabel:  domain.StatusLabels[p.Status],
		Catatan:      p.Catatan,
		DokumenHasil: p.DokumenHasil,
		Timeline:     timeline,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}, nil
}

// ListOwnerRequests returns the actor's own requests, newest first.
func (e Engine) ListOwnerRequests(ctx context.Context, actor Identity) ([]domain.Permohonan, error) {
	return e.Repo.ListPermohonanByUser(ctx, actor.UserID)
}

// ListFilters narrows the admin listing. Page is 1-based.
type ListFilters struct {
	Status string
	Search string
	Page   int
	Limit  int
}

// Page is one page of the admin listing with pagination totals.
type Page struct {
	Items      []domain.Permohonan
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// ListAllRequests returns a filtered page of every request. The count query
// runs with the same filters so totals match the page.
func (e Engine) ListAllRequests(ctx context.Context, f ListFilters) (Page, error) {
	if f.Status != "" && !domain.ValidStatus(f.Status) {
		return Page{}, InvalidInputError{Reason: "status tidak valid"}
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = e.Config.Listing.DefaultPageSize
	}
	if f.Limit > e.Config.Listing.MaxPageSize {
		f.Limit = e.Config.Listing.MaxPageSize
	}
	filters := repo.PermohonanFilters{
		Status: f.Status,
		Search: f.Search,
		Limit:  f.Limit,
		Offset: (f.Page - 1) * f.Limit,
	}
	items, err := e.Repo.ListPermohonan(ctx, filters)
	if err != nil {
		return Page{}, err
	}
	total, err := e.Repo.CountPermohonan(ctx, filters)
	if err != nil {
		return Page{}, err
	}
	totalPages := (total + f.Limit - 1) / f.Limit
	return Page{Items: items, Total: total, Page: f.Page, Limit: f.Limit, TotalPages: totalPages}, nil
}

// Stats counts requests per status. Every status appears even when zero.
type Stats struct {
	Total    int
	ByStatus map[string]int
}

func (e Engine) RequestStats(ctx context.Context) (Stats, error) {
	counts, err := e.Repo.CountPermohonanByStatus(ctx)
	if err != nil {
		return Stats{}, err
	}
	s := Stats{ByStatus: map[string]int{}}
	for _, status := range domain.Statuses() {
		s.ByStatus[status] = counts[status]
		s.Total += counts[status]
	}
	return s, nil
}
