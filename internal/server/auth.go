package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"desakita/internal/domain"
	"desakita/internal/engine"
)

type AuthConfig struct {
	JWTSecret string
	// DevLogin enables the token-minting endpoint for local testing.
	DevLogin bool
}

// Principal is the authenticated caller, decoded from the JWT. The profile
// claims default the applicant snapshot on submission.
type Principal struct {
	UserID string
	Nama   string
	Role   string
	NIK    string
	Email  string
	NoHp   string
	Alamat string
}

func (p Principal) identity() engine.Identity {
	return engine.Identity{
		UserID: p.UserID,
		Nama:   p.Nama,
		Role:   p.Role,
		NIK:    p.NIK,
		Email:  p.Email,
		NoHp:   p.NoHp,
		Alamat: p.Alamat,
	}
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func identityFromContext(ctx context.Context) (engine.Identity, huma.StatusError) {
	if p, ok := principalFromContext(ctx); ok && p.UserID != "" {
		return p.identity(), nil
	}
	return engine.Identity{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

func requireAdmin(ctx context.Context) (engine.Identity, huma.StatusError) {
	id, authErr := identityFromContext(ctx)
	if authErr != nil {
		return engine.Identity{}, authErr
	}
	if !id.IsAdmin() {
		return engine.Identity{}, newAPIError(http.StatusForbidden, "forbidden", "akses ditolak", nil)
	}
	return id, nil
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
	NIK    string `json:"nik,omitempty"`
	Email  string `json:"email,omitempty"`
	NoHp   string `json:"no_hp,omitempty"`
	Alamat string `json:"alamat,omitempty"`
}

func authenticateJWT(token string, secret string) (Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("subject claim required")
	}
	role := claims.Role
	if role == "" {
		role = domain.RoleWarga
	}
	return Principal{
		UserID: claims.Subject,
		Nama:   claims.Name,
		Role:   role,
		NIK:    claims.NIK,
		Email:  claims.Email,
		NoHp:   claims.NoHp,
		Alamat: claims.Alamat,
	}, nil
}

func signToken(secret string, p Principal, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:   p.Nama,
		Role:   p.Role,
		NIK:    p.NIK,
		Email:  p.Email,
		NoHp:   p.NoHp,
		Alamat: p.Alamat,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// publicPath reports whether the request may proceed without a token.
func publicPath(basePath, reqPath, method string) bool {
	rel := strings.TrimPrefix(reqPath, basePath)
	rel = strings.TrimPrefix(rel, "/")
	switch {
	case rel == "health", rel == "openapi.json", rel == "auth/dev/login":
		return true
	case strings.HasPrefix(rel, "permohonan/check/"):
		return true
	case rel == "layanan" || strings.HasPrefix(rel, "layanan/"):
		return method == http.MethodGet
	}
	return false
}

func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// Only enforce for the API base path; docs, uploads, and
			// metrics live outside it.
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			if authz == "" {
				if publicPath(basePath, req.URL.Path, req.Method) {
					next.ServeHTTP(w, req)
					return
				}
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
				return
			}
			token, ok := bearerToken(authz)
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			principal, err := authenticateJWT(token, cfg.JWTSecret)
			if err != nil {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}

// DevLoginRequest mints a token for local testing when dev login is enabled.
type DevLoginRequest struct {
	UserID string `json:"user_id"`
	Nama   string `json:"nama,omitempty"`
	Role   string `json:"role,omitempty" enum:"warga,admin"`
	NIK    string `json:"nik,omitempty"`
	Email  string `json:"email,omitempty"`
	NoHp   string `json:"no_hp,omitempty"`
	Alamat string `json:"alamat,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if !authCfg.DevLogin {
			return nil, newAPIError(http.StatusNotFound, "not_found", "not found", nil)
		}
		userID := strings.TrimSpace(input.Body.UserID)
		if userID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "user_id is required", nil)
		}
		role := input.Body.Role
		if role == "" {
			role = domain.RoleWarga
		}
		token, err := signToken(authCfg.JWTSecret, Principal{
			UserID: userID,
			Nama:   input.Body.Nama,
			Role:   role,
			NIK:    input.Body.NIK,
			Email:  input.Body.Email,
			NoHp:   input.Body.NoHp,
			Alamat: input.Body.Alamat,
		}, 24*time.Hour)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}
