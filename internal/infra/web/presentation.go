package web

import (
	"fmt"
	"strings"
	"time"

	"voice-clone-studio/internal/domain/model"
	"voice-clone-studio/internal/infra/i18n"
)

// MaskCode hides the middle of an activation code: four leading characters,
// four trailing ones (two for codes of eight or fewer) and at least three
// stars in between. Codes of four characters or fewer become "***".
func MaskCode(code string, reveal bool) string {
	code = strings.TrimSpace(code)
	if code == "" || reveal {
		return code
	}
	r := []rune(code)
	if len(r) <= 4 {
		return "***"
	}
	suffixLen := 2
	if len(r) > 8 {
		suffixLen = 4
	}
	middle := len(r) - 4 - suffixLen
	if middle < 3 {
		middle = 3
	}
	return string(r[:4]) + strings.Repeat("*", middle) + string(r[len(r)-suffixLen:])
}

// Summary renders the account view shown after activation login.
func Summary(info *model.ActivationInfo, reveal bool, tr *i18n.Translator) []string {
	voices := tr.T("summary.unlimited_voices")
	if info.AvailableVoices != nil {
		voices = fmt.Sprintf("%d / %d", *info.AvailableVoices, info.MaxVoices)
	}
	chars := tr.T("summary.unlimited_characters")
	if info.RemainingCharacters != nil {
		chars = fmt.Sprintf("%d / %d", *info.RemainingCharacters, info.MaxCharacters)
	}
	expires := tr.T("summary.never_expires")
	if info.ExpiresAt != nil {
		expires = info.ExpiresAt.String()
	}

	var flags []string
	if info.Disabled {
		flags = append(flags, tr.T("status.disabled"))
	}
	if info.Expired {
		flags = append(flags, tr.T("status.expired"))
	}
	if len(flags) == 0 {
		flags = append(flags, tr.T("status.ok"))
	}

	lines := []string{
		tr.T("summary.code", MaskCode(info.Code, reveal)),
		tr.T("summary.voices", voices),
		tr.T("summary.characters", chars),
		tr.T("summary.expires", expires),
		tr.T("summary.status", strings.Join(flags, tr.T("summary.separator"))),
	}
	if info.Note != "" {
		lines = append(lines, tr.T("summary.note", info.Note))
	}
	lines = append(lines, tr.T("summary.last_used", formatTime(info.LastUsedAt, tr)))
	return lines
}

func formatTime(t *time.Time, tr *i18n.Translator) string {
	if t == nil || t.IsZero() {
		return tr.T("summary.never_used")
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// activationView is the client-facing payload for one code.
type activationView struct {
	Code    string                `json:"code"`
	Info    *model.ActivationInfo `json:"info"`
	Summary []string              `json:"summary"`
	Message string                `json:"message,omitempty"`
}

func (s *Server) view(info *model.ActivationInfo, reveal bool, msg string) activationView {
	masked := *info
	masked.Code = MaskCode(info.Code, reveal)
	return activationView{
		Code:    masked.Code,
		Info:    &masked,
		Summary: Summary(info, reveal, s.tr),
		Message: msg,
	}
}
