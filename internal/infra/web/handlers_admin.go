package web

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"voice-clone-studio/internal/domain"
	"voice-clone-studio/internal/domain/model"
)

const maxImportBytes = 10 << 20

type adminLoginRequest struct {
	Password string `json:"password"`
}

type generateCodeRequest struct {
	MaxVoices     int    `json:"max_voices"`
	MaxCharacters int    `json:"max_characters"`
	ExpiresAt     string `json:"expires_at"`
	Note          string `json:"note"`
}

type updateCodeRequest struct {
	MaxVoices     *int    `json:"max_voices"`
	MaxCharacters *int    `json:"max_characters"`
	ExpiresAt     *string `json:"expires_at"`
	Note          *string `json:"note"`
	Disabled      *bool   `json:"disabled"`
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "admin_login") {
		return
	}
	var req adminLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", s.tr.T("error.invalid_argument"))
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.adminPassword)) != 1 {
		s.log.Warn().Str("ip", clientIP(r)).Msg("admin login rejected")
		writeError(w, http.StatusUnauthorized, "bad_password", s.tr.T("admin.bad_password"))
		return
	}
	tok, err := s.auth.Mint(w)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.log.Info().Str("ip", clientIP(r)).Msg("admin signed in")
	writeJSON(w, http.StatusOK, map[string]string{
		"token":   tok,
		"message": s.tr.T("admin.login_ok"),
	})
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, _ *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// Admin endpoints always show full codes.
func (s *Server) handleListCodes(w http.ResponseWriter, r *http.Request) {
	list, err := s.admin.List(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	views := make([]activationView, 0, len(list))
	for _, info := range list {
		views = append(views, s.view(info, true, ""))
	}
	writeJSON(w, http.StatusOK, map[string]any{"codes": views, "count": len(views)})
}

func (s *Server) handleGenerateCode(w http.ResponseWriter, r *http.Request) {
	var req generateCodeRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", s.tr.T("error.invalid_argument"))
		return
	}
	info, err := s.admin.Generate(r.Context(), req.MaxVoices, req.MaxCharacters, req.ExpiresAt, req.Note)
	if err != nil {
		s.adminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.view(info, true, ""))
}

func (s *Server) handleExportCodes(w http.ResponseWriter, r *http.Request) {
	doc, err := s.admin.Export(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="activation_codes.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// handleImportCodes takes a {"codes": {...}} document, the same shape the
// export and DEFAULT_ACTIVATION_CODES use.
func (s *Server) handleImportCodes(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", s.tr.T("error.invalid_argument"))
		return
	}
	doc, err := model.DecodeDocument(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", s.tr.T("error.invalid_argument")+" "+err.Error())
		return
	}
	recs := make([]model.ActivationRecord, 0, len(doc))
	for code, rec := range doc {
		rec.Code = code
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Code < recs[j].Code })

	report, err := s.admin.Import(r.Context(), recs)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetCode(w http.ResponseWriter, r *http.Request) {
	info, err := s.admin.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.adminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(info, true, ""))
}

func (s *Server) handleUpdateCode(w http.ResponseWriter, r *http.Request) {
	var req updateCodeRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", s.tr.T("error.invalid_argument"))
		return
	}
	info, err := s.admin.Update(r.Context(), chi.URLParam(r, "code"), model.CodePatch{
		MaxVoices:     req.MaxVoices,
		MaxCharacters: req.MaxCharacters,
		ExpiresAt:     req.ExpiresAt,
		Note:          req.Note,
		Disabled:      req.Disabled,
	})
	if err != nil {
		s.adminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(info, true, ""))
}

func (s *Server) handleSetDisabled(disabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := s.admin.SetDisabled(r.Context(), chi.URLParam(r, "code"), disabled)
		if err != nil {
			s.adminError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s.view(info, true, ""))
	}
}

func (s *Server) adminError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.deny(w, http.StatusNotFound, model.ReasonCodeNotFound)
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		s.internalError(w, r, err)
	}
}
