// Package desakitasdk is a minimal Desakita HTTP API client for integrators:
// the public status check, the catalog reads, and authenticated listings.
package desakitasdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Desakita HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Layanan is one catalog entry.
type Layanan struct {
	ID           int64    `json:"id"`
	Nama         string   `json:"nama"`
	Slug         string   `json:"slug"`
	Deskripsi    string   `json:"deskripsi,omitempty"`
	Persyaratan  []string `json:"persyaratan"`
	EstimasiHari int      `json:"estimasi_hari"`
	Biaya        string   `json:"biaya"`
	Kategori     string   `json:"kategori,omitempty"`
}

// TimelineEntry is one audit record of a status change.
type TimelineEntry struct {
	Status  string  `json:"status"`
	Tanggal string  `json:"tanggal"`
	Catatan *string `json:"catatan,omitempty"`
	Petugas string  `json:"petugas"`
}

// StatusCheck is the public tracking projection.
type StatusCheck struct {
	NoRegistrasi string          `json:"no_registrasi"`
	Layanan      string          `json:"layanan"`
	NamaPemohon  string          `json:"nama_pemohon"`
	Status       string          `json:"status"`
	StatusLabel  string          `json:"status_label"`
	Catatan      *string         `json:"catatan,omitempty"`
	Timeline     []TimelineEntry `json:"timeline"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

// PermohonanSummary is one request in a listing.
type PermohonanSummary struct {
	ID           string `json:"id"`
	NoRegistrasi string `json:"no_registrasi"`
	Layanan      string `json:"layanan"`
	NamaPemohon  string `json:"nama_pemohon"`
	Status       string `json:"status"`
	StatusLabel  string `json:"status_label"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// Page wraps the admin listing with pagination totals.
type Page struct {
	Items      []PermohonanSummary `json:"items"`
	Total      int                 `json:"total"`
	Page       int                 `json:"page"`
	Limit      int                 `json:"limit"`
	TotalPages int                 `json:"total_pages"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CheckStatus looks up a request by its public registration number. No auth
// required.
func (c *Client) CheckStatus(ctx context.Context, noRegistrasi string) (StatusCheck, error) {
	var resp StatusCheck
	err := c.do(ctx, http.MethodGet, "v1/permohonan/check/"+url.PathEscape(noRegistrasi), nil, &resp)
	return resp, err
}

// Layanan lists the service catalog. No auth required.
func (c *Client) Layanan(ctx context.Context) ([]Layanan, error) {
	var resp []Layanan
	err := c.do(ctx, http.MethodGet, "v1/layanan", nil, &resp)
	return resp, err
}

// LayananBySlug fetches one service. No auth required.
func (c *Client) LayananBySlug(ctx context.Context, slug string) (Layanan, error) {
	var resp Layanan
	err := c.do(ctx, http.MethodGet, "v1/layanan/"+url.PathEscape(slug), nil, &resp)
	return resp, err
}

// OwnRequests lists the authenticated citizen's requests, newest first.
func (c *Client) OwnRequests(ctx context.Context) ([]PermohonanSummary, error) {
	var resp []PermohonanSummary
	err := c.do(ctx, http.MethodGet, "v1/permohonan/saya", nil, &resp)
	return resp, err
}

// Requests lists every request with filters. Requires an admin token.
func (c *Client) Requests(ctx context.Context, status, search string, page, limit int) (Page, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if search != "" {
		q.Set("search", search)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	endpoint := "v1/permohonan"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp Page
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
