package domain

// Request statuses. The set is fixed by the service workflow; every status
// change is recorded as a timeline entry.
const (
	StatusDiajukan     = "diajukan"
	StatusDiverifikasi = "diverifikasi"
	StatusDiproses     = "diproses"
	StatusSelesai      = "selesai"
	StatusDitolak      = "ditolak"
)

// StatusLabels maps a status to the display label used in notifications.
var StatusLabels = map[string]string{
	StatusDiajukan:     "Diajukan",
	StatusDiverifikasi: "Diverifikasi",
	StatusDiproses:     "Sedang Diproses",
	StatusSelesai:      "Selesai",
	StatusDitolak:      "Ditolak",
}

// ValidStatus reports whether s is one of the five workflow statuses.
func ValidStatus(s string) bool {
	_, ok := StatusLabels[s]
	return ok
}

// Statuses returns the workflow statuses in lifecycle order.
func Statuses() []string {
	return []string{StatusDiajukan, StatusDiverifikasi, StatusDiproses, StatusSelesai, StatusDitolak}
}

// Notification kinds.
const (
	NotifInfo    = "info"
	NotifSuccess = "success"
	NotifError   = "error"
)

// Notification recipient kinds. A notification is addressed either to one
// user or to every administrator.
const (
	RecipientUser   = "user"
	RecipientAdmins = "admins"
)

// Identity roles as carried in the auth token.
const (
	RoleWarga = "warga"
	RoleAdmin = "admin"
)

type Layanan struct {
	ID           int64    `json:"id"`
	Nama         string   `json:"nama"`
	Slug         string   `json:"slug"`
	Deskripsi    string   `json:"deskripsi,omitempty"`
	Icon         string   `json:"icon,omitempty"`
	Persyaratan  []string `json:"persyaratan"`
	EstimasiHari int      `json:"estimasi_hari"`
	Biaya        string   `json:"biaya"`
	Kategori     string   `json:"kategori,omitempty"`
}

// Pemohon is the applicant snapshot captured at submission time. It is
// independent of later profile edits.
type Pemohon struct {
	Nama   string `json:"nama"`
	NIK    string `json:"nik"`
	Email  string `json:"email,omitempty"`
	NoHp   string `json:"no_hp,omitempty"`
	Alamat string `json:"alamat,omitempty"`
}

type Permohonan struct {
	ID           string  `json:"id"`
	NoRegistrasi string  `json:"no_registrasi"`
	UserID       string  `json:"user_id"`
	LayananID    int64   `json:"layanan_id"`
	Pemohon      Pemohon `json:"pemohon"`
	Keperluan    string  `json:"keperluan,omitempty"`
	Status       string  `json:"status" enum:"diajukan,diverifikasi,diproses,selesai,ditolak"`
	Catatan      *string `json:"catatan,omitempty"`
	DokumenHasil *string `json:"dokumen_hasil,omitempty"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	UpdatedAt    string  `json:"updated_at" format:"date-time"`

	// Joined layanan fields, populated on list/detail reads.
	LayananNama string `json:"layanan_nama,omitempty"`
	LayananSlug string `json:"layanan_slug,omitempty"`
}

// TimelineEntry is one append-only audit record of a status change.
type TimelineEntry struct {
	PermohonanID string  `json:"permohonan_id"`
	Status       string  `json:"status"`
	Catatan      *string `json:"catatan,omitempty"`
	Petugas      string  `json:"petugas"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

type Dokumen struct {
	ID           string `json:"id"`
	PermohonanID string `json:"permohonan_id"`
	Nama         string `json:"nama"`
	FilePath     string `json:"file_path"`
	FileType     string `json:"file_type"`
	FileSize     int64  `json:"file_size"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type Notification struct {
	ID            string  `json:"id"`
	RecipientKind string  `json:"recipient_kind" enum:"user,admins"`
	UserID        *string `json:"user_id,omitempty"`
	Title         string  `json:"title"`
	Message       string  `json:"message"`
	Kind          string  `json:"kind" enum:"info,success,error"`
	Link          *string `json:"link,omitempty"`
	Read          bool    `json:"read"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
}
