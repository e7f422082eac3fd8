package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"voice-clone-studio/internal/domain"
	"voice-clone-studio/internal/domain/model"
)

type activationLoginRequest struct {
	Code string `json:"code"`
}

// handleActivationLogin checks that a code exists and is usable. Quota is not
// checked here; an exhausted code can still sign in and see its balance.
func (s *Server) handleActivationLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, "activation_login") {
		return
	}
	var req activationLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", s.tr.T("error.invalid_argument"))
		return
	}
	code := model.CanonicalCode(req.Code)
	if code == "" {
		writeError(w, http.StatusBadRequest, "empty_code", s.tr.T("login.empty"))
		return
	}

	info, err := s.admin.Get(r.Context(), code)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.deny(w, http.StatusNotFound, model.ReasonCodeNotFound)
		return
	case err != nil:
		s.internalError(w, r, err)
		return
	case info.Disabled:
		s.deny(w, http.StatusForbidden, model.ReasonDisabled)
		return
	case info.Expired:
		s.deny(w, http.StatusForbidden, model.ReasonExpired)
		return
	}
	writeJSON(w, http.StatusOK, s.view(info, false, s.tr.T("login.ok")))
}

func (s *Server) handleActivationInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.admin.Get(r.Context(), chi.URLParam(r, "code"))
	if errors.Is(err, domain.ErrNotFound) {
		s.deny(w, http.StatusNotFound, model.ReasonCodeNotFound)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(info, truthy(r.URL.Query().Get("reveal")), ""))
}

func (s *Server) handleSpeechStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.speech.Status(r.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("speech status probe failed")
		writeJSON(w, http.StatusBadGateway, struct {
			Status any    `json:"status"`
			Error  string `json:"error"`
		}{st, err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) deny(w http.ResponseWriter, status int, reason model.DenyReason) {
	writeError(w, status, string(reason), s.denyMessage(reason))
}

func (s *Server) denyMessage(reason model.DenyReason) string {
	if key := "deny." + string(reason); s.tr.Has(key) {
		return s.tr.T(key)
	}
	return reason.Message()
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "yes", "y":
		return true
	}
	b, _ := strconv.ParseBool(strings.TrimSpace(v))
	return b
}
