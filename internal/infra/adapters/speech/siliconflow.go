package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"voice-clone-studio/internal/domain"
	"voice-clone-studio/internal/domain/ports/adapter"
	"voice-clone-studio/internal/infra/metrics"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.SpeechSynthesizer = (*SiliconFlowClient)(nil)

const (
	DefaultBaseURL = "https://api.siliconflow.cn/v1"
	DefaultModel   = "IndexTeam/IndexTTS-2"

	maxErrorDetail = 500
)

// SiliconFlowClient talks to the SiliconFlow OpenAI-style audio API.
// Authorization: Bearer <API_KEY>
//
//	POST {base}/uploads/audio/voice  multipart: model, customName, text, file -> {"uri": ...}
//	POST {base}/audio/speech         JSON payload -> raw audio bytes
//	GET  {base}/models               -> {"data": [{"id": ...}]}
type SiliconFlowClient struct {
	apiKey string
	base   string
	model  string
	client *http.Client
	log    *zerolog.Logger
}

// NewSiliconFlowClient never fails on a missing key; calls that need one
// return domain.ErrAPIKeyMissing and Status reports the key as not loaded.
func NewSiliconFlowClient(apiKey, model, base string, timeout time.Duration, logger *zerolog.Logger) *SiliconFlowClient {
	if model == "" {
		model = DefaultModel
	}
	if base == "" {
		base = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	l := logger.With().Str("component", "SiliconFlowClient").Logger()
	return &SiliconFlowClient{
		apiKey: strings.TrimSpace(apiKey),
		base:   strings.TrimRight(base, "/"),
		model:  model,
		client: &http.Client{Timeout: timeout},
		log:    &l,
	}
}

func (c *SiliconFlowClient) UploadVoice(ctx context.Context, up adapter.VoiceUpload) (uri string, err error) {
	if c.apiKey == "" {
		return "", domain.ErrAPIKeyMissing
	}
	defer c.observe("upload_voice", time.Now(), &err)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("model", c.model)
	_ = w.WriteField("customName", up.CustomName)
	if t := strings.TrimSpace(up.SampleText); t != "" {
		_ = w.WriteField("text", t)
	}
	name := up.FileName
	if name == "" {
		name = "reference.wav"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filepath.Base(name))))
	h.Set("Content-Type", mimeTypeFor(name, up.MimeType))
	part, err := w.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(up.Audio); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/uploads/audio/voice", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: upload voice: %v", domain.ErrSpeechUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", upstreamError("upload voice", resp)
	}

	var payload struct {
		URI string `json:"uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: upload voice: invalid JSON response: %v", domain.ErrSpeechUpstream, err)
	}
	if payload.URI == "" {
		return "", fmt.Errorf("%w: upload voice: response has no voice uri", domain.ErrSpeechUpstream)
	}
	return payload.URI, nil
}

type speechPayload struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
	adapter.SpeechParams
	EmotionAudio  string    `json:"emotion_audio,omitempty"`
	EmotionVector []float64 `json:"emotion_vector,omitempty"`
	EmotionText   string    `json:"emotion_text,omitempty"`
}

func (c *SiliconFlowClient) Synthesize(ctx context.Context, sr adapter.SpeechRequest) (out *adapter.SpeechAudio, err error) {
	if c.apiKey == "" {
		return nil, domain.ErrAPIKeyMissing
	}
	defer c.observe("synthesize", time.Now(), &err)

	format := sr.Params.ResponseFormat
	if format == "" {
		format = "mp3"
	}
	p := speechPayload{
		Model:         c.model,
		Input:         sr.Input,
		Voice:         sr.Voice,
		SpeechParams:  sr.Params,
		EmotionAudio:  sr.EmotionAudio,
		EmotionVector: sr.EmotionVector,
		EmotionText:   sr.EmotionText,
	}
	p.ResponseFormat = format

	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/audio/speech", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: synthesize: %v", domain.ErrSpeechUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError("synthesize", resp)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: synthesize: read audio: %v", domain.ErrSpeechUpstream, err)
	}
	metrics.AddSpeechAudioBytes(len(audio))
	c.log.Debug().Str("model", c.model).Int("audio_bytes", len(audio)).Msg("speech synthesized")
	return &adapter.SpeechAudio{Format: format, Audio: audio}, nil
}

// Status lists the upstream models and reports whether the configured one
// is among them. A missing key is a status, not an error.
func (c *SiliconFlowClient) Status(ctx context.Context) (st adapter.ServiceStatus, err error) {
	st = adapter.ServiceStatus{Model: c.model}
	if c.apiKey == "" {
		return st, nil
	}
	st.KeyLoaded = true
	st.KeyPreview = KeyPreview(c.apiKey)
	defer c.observe("status", time.Now(), &err)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/models", nil)
	if err != nil {
		return st, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return st, fmt.Errorf("%w: list models: %v", domain.ErrSpeechUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return st, upstreamError("list models", resp)
	}

	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return st, fmt.Errorf("%w: list models: invalid JSON response: %v", domain.ErrSpeechUpstream, err)
	}
	for _, m := range payload.Data {
		if m.ID == "" {
			continue
		}
		st.Models = append(st.Models, m.ID)
		if m.ID == c.model {
			st.ModelAvailable = true
		}
	}
	return st, nil
}

// KeyPreview shows the first and last four characters of a key of at least
// eight characters.
func KeyPreview(key string) string {
	if len(key) < 8 {
		return "***"
	}
	return key[:4] + "***" + key[len(key)-4:]
}

func (c *SiliconFlowClient) observe(op string, start time.Time, err *error) {
	ok := err == nil || *err == nil
	metrics.ObserveSpeechCall(op, time.Since(start).Milliseconds(), ok)
	if !ok {
		c.log.Warn().Err(*err).Str("op", op).Msg("speech api call failed")
	}
}

func upstreamError(op string, resp *http.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorDetail))
	return fmt.Errorf("%w: %s: http %d: %s", domain.ErrSpeechUpstream, op, resp.StatusCode, strings.TrimSpace(string(detail)))
}

func mimeTypeFor(name, given string) string {
	if given != "" {
		return given
	}
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return "application/octet-stream"
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }
