package engine_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"desakita/internal/config"
	"desakita/internal/db"
	"desakita/internal/domain"
	"desakita/internal/engine"
	"desakita/internal/migrate"
	"desakita/internal/notify"
	"desakita/internal/repo"
	"desakita/internal/storage"
)

type testEnv struct {
	Engine  engine.Engine
	DB      *sql.DB
	Ctx     context.Context
	Layanan domain.Layanan
}

var (
	warga = engine.Identity{
		UserID: "warga-1",
		Nama:   "Budi Santoso",
		Role:   domain.RoleWarga,
		NIK:    "3201234567890001",
		Email:  "budi@example.com",
		NoHp:   "081234567890",
		Alamat: "Jl. Merdeka No. 1",
	}
	admin = engine.Identity{UserID: "admin-1", Nama: "Petugas Desa", Role: domain.RoleAdmin}
)

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	eng := engine.New(conn, store, config.Default())

	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	tick := 0
	eng.Now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	eng.Regnum.Now = eng.Now
	eng.Notify.Now = eng.Now
	seq := 0
	eng.Regnum.Rand = func(n int) int {
		seq++
		return seq
	}

	ctx := context.Background()
	layanan, err := eng.CreateLayanan(ctx, domain.Layanan{
		Nama:        "Surat Keterangan Domisili",
		Persyaratan: []string{"KTP", "Kartu Keluarga"},
	})
	if err != nil {
		t.Fatalf("seed layanan: %v", err)
	}
	return testEnv{Engine: eng, DB: conn, Ctx: ctx, Layanan: layanan}
}

func submit(t *testing.T, env testEnv, docs ...engine.Upload) domain.Permohonan {
	t.Helper()
	p, err := env.Engine.CreateRequest(env.Ctx, warga, engine.CreateRequestOptions{
		LayananID: env.Layanan.ID,
		Keperluan: "pindah domisili",
		Documents: docs,
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return p
}

func timelineLen(t *testing.T, env testEnv, id string) int {
	t.Helper()
	entries, err := env.Engine.Repo.ListTimeline(env.Ctx, id)
	if err != nil {
		t.Fatalf("list timeline: %v", err)
	}
	return len(entries)
}

func TestCreateRequestDefaultsApplicantFromIdentity(t *testing.T) {
	env := newTestEnv(t)
	p := submit(t, env)

	if p.Status != domain.StatusDiajukan {
		t.Fatalf("status = %s", p.Status)
	}
	if !strings.HasPrefix(p.NoRegistrasi, "REG-202603-") {
		t.Fatalf("no_registrasi = %s", p.NoRegistrasi)
	}
	if p.Pemohon.Nama != warga.Nama || p.Pemohon.NIK != warga.NIK || p.Pemohon.Alamat != warga.Alamat {
		t.Fatalf("applicant snapshot not defaulted from identity: %+v", p.Pemohon)
	}
	if n := timelineLen(t, env, p.ID); n != 1 {
		t.Fatalf("timeline length = %d, want 1", n)
	}

	// explicit fields override the identity profile
	p2, err := env.Engine.CreateRequest(env.Ctx, warga, engine.CreateRequestOptions{
		LayananID: env.Layanan.ID,
		Pemohon:   domain.Pemohon{Nama: "Siti Aminah", NIK: "3209999999999999"},
	})
	if err != nil {
		t.Fatalf("create with override: %v", err)
	}
	if p2.Pemohon.Nama != "Siti Aminah" || p2.Pemohon.Email != warga.Email {
		t.Fatalf("override merge wrong: %+v", p2.Pemohon)
	}
}

func TestCreateRequestUnknownLayanan(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateRequest(env.Ctx, warga, engine.CreateRequestOptions{LayananID: 999})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// nothing persisted
	var count int
	if err := env.DB.QueryRow(`SELECT COUNT(*) FROM permohonan`).Scan(&count); err != nil || count != 0 {
		t.Fatalf("permohonan rows = %d (err %v)", count, err)
	}
	if err := env.DB.QueryRow(`SELECT COUNT(*) FROM timeline_permohonan`).Scan(&count); err != nil || count != 0 {
		t.Fatalf("timeline rows = %d (err %v)", count, err)
	}
}

func TestCreateRequestStoresDocuments(t *testing.T) {
	env := newTestEnv(t)
	p := submit(t, env,
		engine.Upload{Filename: "ktp.png", MimeType: "image/png", Content: strings.NewReader("ktp")},
		engine.Upload{Filename: "kk.pdf", MimeType: "application/pdf", Content: strings.NewReader("kk")},
	)
	docs, err := env.Engine.Repo.ListDokumen(env.Ctx, p.ID)
	if err != nil {
		t.Fatalf("list dokumen: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("dokumen rows = %d", len(docs))
	}
	byName := map[string]domain.Dokumen{}
	for _, d := range docs {
		byName[d.Nama] = d
	}
	if !strings.HasPrefix(byName["ktp.png"].FilePath, "images/") {
		t.Fatalf("image not under images/: %+v", byName["ktp.png"])
	}
	if !strings.HasPrefix(byName["kk.pdf"].FilePath, "documents/") {
		t.Fatalf("pdf not under documents/: %+v", byName["kk.pdf"])
	}
}

func TestCreateRequestRejectsBadUpload(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateRequest(env.Ctx, warga, engine.CreateRequestOptions{
		LayananID: env.Layanan.ID,
		Documents: []engine.Upload{{Filename: "virus.exe", MimeType: "application/x-msdownload", Content: strings.NewReader("x")}},
	})
	var invalid engine.InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
}

func TestTransitionEveryValidStatus(t *testing.T) {
	env := newTestEnv(t)
	for _, status := range domain.Statuses() {
		p := submit(t, env)
		before, err := env.Engine.Repo.ListTimeline(env.Ctx, p.ID)
		if err != nil {
			t.Fatalf("timeline before: %v", err)
		}
		got, err := env.Engine.TransitionRequest(env.Ctx, p.ID, engine.TransitionOptions{
			Status:  status,
			Petugas: admin.Nama,
		})
		if err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
		if got.Status != status {
			t.Fatalf("status = %s, want %s", got.Status, status)
		}
		after, err := env.Engine.Repo.ListTimeline(env.Ctx, p.ID)
		if err != nil {
			t.Fatalf("timeline after: %v", err)
		}
		if len(after) != len(before)+1 {
			t.Fatalf("transition to %s appended %d entries", status, len(after)-len(before))
		}
		last := after[len(after)-1]
		if last.Status != status {
			t.Fatalf("last timeline status = %s", last.Status)
		}
		if last.CreatedAt < before[len(before)-1].CreatedAt {
			t.Fatalf("timeline timestamp went backwards: %s < %s", last.CreatedAt, before[len(before)-1].CreatedAt)
		}
	}
}

func TestTransitionInvalidStatusIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	p := submit(t, env)

	_, err := env.Engine.TransitionRequest(env.Ctx, p.ID, engine.TransitionOptions{Status: "invalid_status", Petugas: admin.Nama})
	var invalid engine.InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
	if n := timelineLen(t, env, p.ID); n != 1 {
		t.Fatalf("timeline length = %d after rejected transition", n)
	}
	owner, err := env.Engine.Notify.List(env.Ctx, notify.Scope{UserID: warga.UserID}, 20, false)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(owner) != 0 {
		t.Fatalf("rejected transition still notified the owner: %+v", owner)
	}
}

func TestTransitionUnknownRequest(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.TransitionRequest(env.Ctx, "missing-id", engine.TransitionOptions{Status: domain.StatusDiproses, Petugas: admin.Nama})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDetailAuthorization(t *testing.T) {
	env := newTestEnv(t)
	p := submit(t, env)

	stranger := engine.Identity{UserID: "warga-2", Nama: "Orang Lain", Role: domain.RoleWarga}
	_, err := env.Engine.RequestDetail(env.Ctx, stranger, p.ID)
	var forbidden engine.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}

	for _, actor := range []engine.Identity{warga, admin} {
		d, err := env.Engine.RequestDetail(env.Ctx, actor, p.ID)
		if err != nil {
			t.Fatalf("detail as %s: %v", actor.Role, err)
		}
		if d.Layanan.Nama != "Surat Keterangan Domisili" {
			t.Fatalf("layanan not joined: %+v", d.Layanan)
		}
		for i := 1; i < len(d.Timeline); i++ {
			if d.Timeline[i].CreatedAt < d.Timeline[i-1].CreatedAt {
				t.Fatalf("timeline not ascending")
			}
		}
	}
}

func TestCheckStatusProjection(t *testing.T) {
	env := newTestEnv(t)
	p := submit(t, env)

	if _, err := env.Engine.CheckStatus(env.Ctx, "REG-000000-0000"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown regnum: %v", err)
	}
	check, err := env.Engine.CheckStatus(env.Ctx, p.NoRegistrasi)
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	if check.Layanan != "Surat Keterangan Domisili" || check.NamaPemohon != warga.Nama {
		t.Fatalf("unexpected projection %+v", check)
	}
	if check.StatusLabel != "Diajukan" {
		t.Fatalf("label = %s", check.StatusLabel)
	}
	if len(check.Timeline) != 1 {
		t.Fatalf("timeline length = %d", len(check.Timeline))
	}
}

func TestListOwnerRequestsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	first := submit(t, env)
	second := submit(t, env)

	got, err := env.Engine.ListOwnerRequests(env.Ctx, warga)
	if err != nil {
		t.Fatalf("list own: %v", err)
	}
	if len(got) != 2 || got[0].ID != second.ID || got[1].ID != first.ID {
		t.Fatalf("expected newest first, got %v then %v", got[0].ID, got[1].ID)
	}

	none, err := env.Engine.ListOwnerRequests(env.Ctx, engine.Identity{UserID: "warga-2"})
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("stranger sees %d requests", len(none))
	}
}

func TestListAllRequestsFiltersAndPaginates(t *testing.T) {
	env := newTestEnv(t)
	var ditolak domain.Permohonan
	for i := 0; i < 3; i++ {
		p := submit(t, env)
		if i == 0 {
			ditolak = p
		}
	}
	if _, err := env.Engine.TransitionRequest(env.Ctx, ditolak.ID, engine.TransitionOptions{Status: domain.StatusDitolak, Petugas: admin.Nama}); err != nil {
		t.Fatalf("transition: %v", err)
	}

	page, err := env.Engine.ListAllRequests(env.Ctx, engine.ListFilters{Status: domain.StatusDitolak})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != ditolak.ID {
		t.Fatalf("status filter wrong: total=%d items=%d", page.Total, len(page.Items))
	}

	page, err = env.Engine.ListAllRequests(env.Ctx, engine.ListFilters{Search: ditolak.NoRegistrasi})
	if err != nil {
		t.Fatalf("search list: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("search by regnum found %d", page.Total)
	}

	page, err = env.Engine.ListAllRequests(env.Ctx, engine.ListFilters{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("paged list: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 1 || page.TotalPages != 2 {
		t.Fatalf("pagination wrong: total=%d items=%d pages=%d", page.Total, len(page.Items), page.TotalPages)
	}

	if _, err := env.Engine.ListAllRequests(env.Ctx, engine.ListFilters{Status: "bogus"}); err == nil {
		t.Fatal("bogus status filter accepted")
	}
}

func TestRequestStatsCoversEveryStatus(t *testing.T) {
	env := newTestEnv(t)
	p := submit(t, env)
	submit(t, env)
	if _, err := env.Engine.TransitionRequest(env.Ctx, p.ID, engine.TransitionOptions{Status: domain.StatusSelesai, Petugas: admin.Nama}); err != nil {
		t.Fatalf("transition: %v", err)
	}

	stats, err := env.Engine.RequestStats(env.Ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.ByStatus[domain.StatusSelesai] != 1 || stats.ByStatus[domain.StatusDiajukan] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if _, ok := stats.ByStatus[domain.StatusDitolak]; !ok {
		t.Fatalf("zero statuses missing from stats: %+v", stats.ByStatus)
	}
}

func TestDeleteLayananRefusedWhileReferenced(t *testing.T) {
	env := newTestEnv(t)
	submit(t, env)

	if err := env.Engine.DeleteLayanan(env.Ctx, env.Layanan.ID); !errors.Is(err, repo.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	unused, err := env.Engine.CreateLayanan(env.Ctx, domain.Layanan{Nama: "Surat Pengantar KTP"})
	if err != nil {
		t.Fatalf("create layanan: %v", err)
	}
	if err := env.Engine.DeleteLayanan(env.Ctx, unused.ID); err != nil {
		t.Fatalf("delete unreferenced layanan: %v", err)
	}
}

func TestTransitionResultRecordedOnlyForSelesai(t *testing.T) {
	env := newTestEnv(t)
	p := submit(t, env)

	got, err := env.Engine.TransitionRequest(env.Ctx, p.ID, engine.TransitionOptions{
		Status:  domain.StatusDiverifikasi,
		Petugas: admin.Nama,
		Result:  &engine.Upload{Filename: "draft.pdf", MimeType: "application/pdf", Content: strings.NewReader("draft")},
	})
	if err != nil {
		t.Fatalf("verify with stray result: %v", err)
	}
	if got.DokumenHasil != nil {
		t.Fatalf("dokumen_hasil set on %s: %q", got.Status, *got.DokumenHasil)
	}
	stored, err := env.Engine.Repo.GetPermohonan(env.Ctx, p.ID)
	if err != nil {
		t.Fatalf("re-read: %v", err)
	}
	if stored.DokumenHasil != nil {
		t.Fatalf("stray result persisted: %q", *stored.DokumenHasil)
	}

	done, err := env.Engine.TransitionRequest(env.Ctx, p.ID, engine.TransitionOptions{
		Status:  domain.StatusSelesai,
		Petugas: admin.Nama,
		Result:  &engine.Upload{Filename: "sk.pdf", MimeType: "application/pdf", Content: strings.NewReader("hasil")},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.DokumenHasil == nil || !strings.HasPrefix(*done.DokumenHasil, "results/") {
		t.Fatalf("result doc not recorded on selesai: %+v", done.DokumenHasil)
	}
}

func TestUpdateLayananValidation(t *testing.T) {
	env := newTestEnv(t)

	zero := 0
	_, err := env.Engine.UpdateLayanan(env.Ctx, env.Layanan.ID, repo.LayananUpdate{EstimasiHari: &zero})
	var invalid engine.InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("estimasi_hari=0 accepted: %v", err)
	}

	empty := ""
	_, err = env.Engine.UpdateLayanan(env.Ctx, env.Layanan.ID, repo.LayananUpdate{Nama: &empty})
	if !errors.As(err, &invalid) {
		t.Fatalf("empty nama accepted: %v", err)
	}
}

func TestUpdateLayananPersyaratan(t *testing.T) {
	env := newTestEnv(t)

	// nil keeps the stored list
	updated, err := env.Engine.UpdateLayanan(env.Ctx, env.Layanan.ID, repo.LayananUpdate{})
	if err != nil {
		t.Fatalf("no-op update: %v", err)
	}
	if len(updated.Persyaratan) != 2 {
		t.Fatalf("nil persyaratan overwrote stored list: %v", updated.Persyaratan)
	}

	// empty non-nil clears it
	updated, err = env.Engine.UpdateLayanan(env.Ctx, env.Layanan.ID, repo.LayananUpdate{Persyaratan: []string{}})
	if err != nil {
		t.Fatalf("clearing update: %v", err)
	}
	if len(updated.Persyaratan) != 0 {
		t.Fatalf("empty persyaratan did not clear: %v", updated.Persyaratan)
	}
}

func TestCreateLayananDuplicateSlug(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateLayanan(env.Ctx, domain.Layanan{Nama: "Surat Keterangan Domisili"})
	if !errors.Is(err, repo.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate slug, got %v", err)
	}
}

// The full citizen journey from submission to completion.
func TestEndToEndSuratKeteranganDomisili(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.Ctx

	p, err := env.Engine.CreateRequest(ctx, warga, engine.CreateRequestOptions{
		LayananID: env.Layanan.ID,
		Keperluan: "syarat melamar kerja",
		Documents: []engine.Upload{{Filename: "ktp.png", MimeType: "image/png", Content: strings.NewReader("ktp")}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if p.Status != domain.StatusDiajukan || timelineLen(t, env, p.ID) != 1 {
		t.Fatalf("after submit: status=%s timeline=%d", p.Status, timelineLen(t, env, p.ID))
	}
	adminInbox, _ := env.Engine.Notify.List(ctx, notify.Scope{UserID: admin.UserID, Admin: true}, 20, false)
	if len(adminInbox) != 1 || adminInbox[0].Title != "Permohonan Baru" {
		t.Fatalf("admins not notified of submission: %+v", adminInbox)
	}

	if _, err := env.Engine.TransitionRequest(ctx, p.ID, engine.TransitionOptions{
		Status:  domain.StatusDiverifikasi,
		Catatan: "ok",
		Petugas: admin.Nama,
	}); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if n := timelineLen(t, env, p.ID); n != 2 {
		t.Fatalf("after verify: timeline=%d", n)
	}
	inbox, _ := env.Engine.Notify.List(ctx, notify.Scope{UserID: warga.UserID}, 20, false)
	if len(inbox) != 1 || inbox[0].Kind != domain.NotifInfo {
		t.Fatalf("owner notification after verify: %+v", inbox)
	}
	if !strings.Contains(inbox[0].Message, "ok") {
		t.Fatalf("note missing from notification: %s", inbox[0].Message)
	}

	done, err := env.Engine.TransitionRequest(ctx, p.ID, engine.TransitionOptions{
		Status:  domain.StatusSelesai,
		Petugas: admin.Nama,
		Result:  &engine.Upload{Filename: "sk-domisili.pdf", MimeType: "application/pdf", Content: strings.NewReader("hasil")},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.DokumenHasil == nil || !strings.HasPrefix(*done.DokumenHasil, "results/") {
		t.Fatalf("result doc not recorded: %+v", done.DokumenHasil)
	}
	inbox, _ = env.Engine.Notify.List(ctx, notify.Scope{UserID: warga.UserID}, 20, false)
	if len(inbox) != 2 || inbox[0].Kind != domain.NotifSuccess {
		t.Fatalf("owner notification after completion: %+v", inbox)
	}

	before := timelineLen(t, env, p.ID)
	_, err = env.Engine.TransitionRequest(ctx, p.ID, engine.TransitionOptions{Status: "invalid_status", Petugas: admin.Nama})
	var invalid engine.InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
	if timelineLen(t, env, p.ID) != before {
		t.Fatalf("rejected transition changed the timeline")
	}
}
