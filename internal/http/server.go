package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"skolar/auth-authority/internal/auth"
	"skolar/auth-authority/internal/config"
	"skolar/auth-authority/internal/model"
)

type Server struct {
	cfg     config.Config
	service *auth.Service
}

func NewServer(cfg config.Config, service *auth.Service) *Server {
	return &Server{cfg: cfg, service: service}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/validate", s.handleValidate)
	r.Post("/auth/logout", s.handleLogout)
	r.Post("/auth/password", s.handleResetOwnPassword)

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Post("/schools", s.handleProvisionSchool)
		r.Post("/schools/{schoolID}/password-reset", s.handleForceReset)
	})

	return r
}

type loginRequest struct {
	Kind       string `json:"kind"`
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type principalSummary struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Identifier string `json:"identifier"`
}

type loginResponse struct {
	Token                 string           `json:"token"`
	RequiresPasswordReset bool             `json:"requiresPasswordReset"`
	Principal             principalSummary `json:"principal"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Kind == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	result, err := s.service.Login(r.Context(), auth.LoginInput{
		Kind:       model.Kind(req.Kind),
		Identifier: req.Identifier,
		Password:   req.Password,
		IPAddress:  clientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		s.writeLoginError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:                 result.Token,
		RequiresPasswordReset: result.RequiresPasswordReset,
		Principal: principalSummary{
			ID:         result.PrincipalID,
			Kind:       string(result.Kind),
			Identifier: result.Identifier,
		},
	})
}

func (s *Server) writeLoginError(w http.ResponseWriter, err error) {
	var rateLimited *auth.RateLimitedError
	switch {
	case errors.As(err, &rateLimited):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":       "rate_limited",
			"waitSeconds": rateLimited.WaitSeconds(),
		})
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
	case errors.Is(err, auth.ErrAccountSuspended):
		writeError(w, http.StatusForbidden, "account_suspended")
	default:
		log.Printf("login: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

type validateRequest struct {
	Token        string `json:"token"`
	ExpectedKind string `json:"expectedKind,omitempty"`
}

type validateResponse struct {
	Valid       bool   `json:"valid"`
	PrincipalID string `json:"principalId,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// handleValidate always answers 200. Callers treat any non-valid result
// identically; the reason a token is dead is never on the wire.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	result, err := s.service.ValidateSession(r.Context(), req.Token, model.Kind(req.ExpectedKind))
	if err != nil {
		log.Printf("validate: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, validateResponse{
		Valid:       result.Valid,
		PrincipalID: result.PrincipalID,
		Kind:        string(result.Kind),
	})
}

type logoutRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := s.service.Logout(r.Context(), req.Token); err != nil {
		log.Printf("logout: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type resetOwnPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleResetOwnPassword(w http.ResponseWriter, r *http.Request) {
	var req resetOwnPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	token, err := s.service.ResetOwnPassword(r.Context(), req.Token, req.NewPassword, clientIP(r), r.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrSessionInvalid):
			writeError(w, http.StatusUnauthorized, "session_invalid")
		case errors.Is(err, auth.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, "weak_password")
		default:
			log.Printf("password reset: %v", err)
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type provisionSchoolRequest struct {
	Name     string `json:"name"`
	District string `json:"district"`
	FeePaid  bool   `json:"feePaid"`
}

type schoolSummary struct {
	ID       string `json:"id"`
	LoginID  string `json:"loginId"`
	Name     string `json:"name"`
	District string `json:"district"`
	FeePaid  bool   `json:"feePaid"`
}

type provisionSchoolResponse struct {
	School      schoolSummary `json:"school"`
	Credentials struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	} `json:"credentials"`
}

func (s *Server) handleProvisionSchool(w http.ResponseWriter, r *http.Request) {
	var req provisionSchoolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing_name")
		return
	}

	school, cred, err := s.service.ProvisionTenant(r.Context(), auth.ProvisionInput{
		Name:     req.Name,
		District: strings.TrimSpace(req.District),
		FeePaid:  req.FeePaid,
	})
	if err != nil {
		log.Printf("provision school: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	// The only place the generated password is ever readable.
	resp := provisionSchoolResponse{
		School: schoolSummary{
			ID:       school.ID,
			LoginID:  school.LoginID,
			Name:     school.Name,
			District: school.District,
			FeePaid:  school.FeePaid,
		},
	}
	resp.Credentials.Identifier = cred.Identifier
	resp.Credentials.Password = cred.Password()
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleForceReset(w http.ResponseWriter, r *http.Request) {
	schoolID := chi.URLParam(r, "schoolID")
	if schoolID == "" {
		writeError(w, http.StatusBadRequest, "missing_school_id")
		return
	}

	password, err := s.service.ForcePasswordReset(r.Context(), schoolID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "school_not_found")
			return
		}
		log.Printf("force reset: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"password": password})
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i > 0 {
		host = host[:i]
	}
	return host
}
