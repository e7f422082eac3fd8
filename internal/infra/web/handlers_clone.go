package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"voice-clone-studio/internal/domain"
	"voice-clone-studio/internal/domain/model"
	"voice-clone-studio/internal/domain/ports/adapter"
	"voice-clone-studio/internal/usecase"
)

var audioContentTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"flac": "audio/flac",
}

// handleClone accepts a multipart form and answers with the synthesized
// audio. Quota denials are 402 with the reason and current balance.
func (s *Server) handleClone(w http.ResponseWriter, r *http.Request) {
	// reference + emotion audio + form fields
	r.Body = http.MaxBytesReader(w, r.Body, 2*s.maxRefBytes+(1<<20))
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "reference_too_large", s.tr.T("error.reference_too_large", s.maxRefBytes>>20))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", s.tr.T("error.invalid_argument"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req, err := s.parseCloneRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", s.tr.T("error.invalid_argument")+" "+err.Error())
		return
	}

	res, err := s.clone.Clone(r.Context(), req)
	if err != nil {
		s.cloneError(w, r, err)
		return
	}

	h := w.Header()
	ct, ok := audioContentTypes[res.Format]
	if !ok {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	h.Set("Content-Length", strconv.Itoa(len(res.Audio)))
	h.Set("X-Voice-URI", res.VoiceURI)
	h.Set("X-Voice-Created", strconv.FormatBool(res.CreatedVoice))
	h.Set("X-Characters-Used", strconv.Itoa(res.Characters))
	if res.Info != nil {
		h.Set("X-Remaining-Characters", remaining(res.Info.RemainingCharacters))
		h.Set("X-Available-Voices", remaining(res.Info.AvailableVoices))
	}
	if res.Warning != "" {
		h.Set("X-Usage-Warning", url.QueryEscape(s.tr.T("clone.usage_warning", res.Warning)))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Audio)
}

func remaining(v *int) string {
	if v == nil {
		return "unlimited"
	}
	return strconv.Itoa(*v)
}

func (s *Server) parseCloneRequest(r *http.Request) (usecase.CloneRequest, error) {
	form := r.MultipartForm
	req := usecase.CloneRequest{
		Code:          r.FormValue("code"),
		Text:          r.FormValue("text"),
		UseSavedVoice: truthy(r.FormValue("use_saved_voice")),
		SavedVoiceURI: r.FormValue("saved_voice_uri"),
		CustomName:    r.FormValue("custom_name"),
		Params:        adapter.DefaultSpeechParams(),
		EmotionMode:   usecase.ParseEmotionMode(r.FormValue("emotion_mode")),
		EmotionText:   r.FormValue("emotion_text"),
	}
	if p := strings.TrimSpace(r.FormValue("params")); p != "" {
		if err := json.Unmarshal([]byte(p), &req.Params); err != nil {
			return req, fmt.Errorf("params: %w", err)
		}
	}
	if v := strings.TrimSpace(r.FormValue("emotion_vector")); v != "" {
		vec, err := parseVector(v)
		if err != nil {
			return req, fmt.Errorf("emotion_vector: %w", err)
		}
		req.EmotionVector = vec
	}

	var err error
	if req.Reference, err = formFile(form, "reference_audio"); err != nil {
		return req, err
	}
	if req.EmotionAudio, err = formFile(form, "emotion_audio"); err != nil {
		return req, err
	}
	return req, nil
}

// parseVector accepts a JSON array or a comma separated list.
func parseVector(s string) ([]float64, error) {
	var out []float64
	if strings.HasPrefix(s, "[") {
		err := json.Unmarshal([]byte(s), &out)
		return out, err
	}
	for _, part := range strings.Split(s, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func formFile(form *multipart.Form, field string) (*usecase.AudioFile, error) {
	if form == nil || len(form.File[field]) == 0 {
		return nil, nil
	}
	fh := form.File[field][0]
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &usecase.AudioFile{
		FileName: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

func (s *Server) cloneError(w http.ResponseWriter, r *http.Request, err error) {
	var denied *usecase.QuotaDeniedError
	if errors.As(err, &denied) {
		body := struct {
			errorBody
			Summary []string `json:"summary,omitempty"`
			Info    any      `json:"info,omitempty"`
		}{errorBody: errorBody{
			Error:   string(denied.Decision.Reason),
			Message: s.denyMessage(denied.Decision.Reason),
			TraceID: w.Header().Get("X-Trace-ID"),
		}}
		if denied.Decision.Info != nil {
			v := s.view(denied.Decision.Info, false, "")
			body.Summary, body.Info = v.Summary, v.Info
		}
		writeJSON(w, http.StatusPaymentRequired, body)
		return
	}

	switch {
	case errors.Is(err, domain.ErrEmptyText):
		writeError(w, http.StatusBadRequest, "empty_text", s.tr.T("error.empty_text"))
	case errors.Is(err, domain.ErrCodeNotFound):
		s.deny(w, http.StatusNotFound, model.ReasonCodeNotFound)
	case errors.Is(err, domain.ErrReferenceAudio):
		writeError(w, http.StatusBadRequest, "reference_required", s.tr.T("error.reference_required"))
	case errors.Is(err, domain.ErrReferenceTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "reference_too_large", s.tr.T("error.reference_too_large", s.maxRefBytes>>20))
	case errors.Is(err, domain.ErrInvalidEmotion):
		writeError(w, http.StatusBadRequest, "invalid_emotion", s.tr.T("error.invalid_emotion"))
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "bad_request", s.tr.T("error.invalid_argument"))
	case errors.Is(err, domain.ErrAPIKeyMissing):
		writeError(w, http.StatusServiceUnavailable, "api_key_missing", s.tr.T("error.api_key_missing"))
	case errors.Is(err, domain.ErrSpeechUpstream):
		l := requestLogger(r, s.log)
		l.Warn().Err(err).Msg("speech upstream failed")
		writeError(w, http.StatusBadGateway, "speech_upstream", s.tr.T("error.upstream"))
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", s.tr.T("error.upstream"))
	default:
		s.internalError(w, r, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	l := requestLogger(r, s.log)
	l.Error().Err(err).Msg("request failed")
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrStorageUnavailable) {
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, "internal", s.tr.T("error.internal"))
}
