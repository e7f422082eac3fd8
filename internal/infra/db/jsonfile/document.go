package jsonfile

import (
	"bytes"
	"encoding/json"
	"time"

	"voice-clone-studio/internal/domain/model"
)

// fileRecord is the on-disk shape of a record. Fields are declared in
// alphabetical order so the encoded document has sorted keys throughout.
type fileRecord struct {
	Code           string  `json:"code"`
	CreatedAt      *string `json:"created_at"`
	Disabled       bool    `json:"disabled"`
	ExpiresAt      *string `json:"expires_at"`
	LastUsedAt     *string `json:"last_used_at"`
	MaxCharacters  int     `json:"max_characters"`
	MaxVoices      int     `json:"max_voices"`
	Note           string  `json:"note"`
	UsedCharacters int     `json:"used_characters"`
	UsedVoices     int     `json:"used_voices"`
}

type fileDocument struct {
	Codes map[string]fileRecord `json:"codes"`
}

func toFileRecord(r model.ActivationRecord) fileRecord {
	fr := fileRecord{
		Code:           r.Code,
		Disabled:       r.Disabled,
		MaxCharacters:  r.MaxCharacters,
		MaxVoices:      r.MaxVoices,
		Note:           r.Note,
		UsedCharacters: r.UsedCharacters,
		UsedVoices:     r.UsedVoices,
	}
	if !r.CreatedAt.IsZero() {
		s := model.EncodeTime(r.CreatedAt)
		fr.CreatedAt = &s
	}
	if r.ExpiresAt != nil {
		s := r.ExpiresAt.String()
		fr.ExpiresAt = &s
	}
	if r.LastUsedAt != nil {
		s := model.EncodeTime(*r.LastUsedAt)
		fr.LastUsedAt = &s
	}
	return fr
}

// encodeDocument renders codes with two-space indentation, sorted keys and
// unescaped non-ASCII text.
func encodeDocument(codes map[string]model.ActivationRecord) ([]byte, error) {
	doc := fileDocument{Codes: make(map[string]fileRecord, len(codes))}
	for code, rec := range codes {
		doc.Codes[code] = toFileRecord(rec)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportDocument renders codes as a compact single-line document, the form
// accepted by DEFAULT_ACTIVATION_CODES.
func ExportDocument(infos []*model.ActivationInfo) ([]byte, error) {
	doc := fileDocument{Codes: make(map[string]fileRecord, len(infos))}
	for _, info := range infos {
		rec := info.Record()
		doc.Codes[rec.Code] = toFileRecord(rec)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func corruptBackupName(path string, now time.Time) string {
	return path + ".corrupt-" + now.UTC().Format("20060102T150405")
}
