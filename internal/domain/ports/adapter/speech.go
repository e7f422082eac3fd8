package adapter

import "context"

// VoiceUpload is a reference sample registered as a reusable custom voice.
type VoiceUpload struct {
	FileName   string
	MimeType   string
	Audio      []byte
	CustomName string
	SampleText string
}

// SpeechParams are the tunables forwarded to the speech model as-is.
type SpeechParams struct {
	ResponseFormat    string  `json:"response_format"`
	Speed             float64 `json:"speed"`
	Pitch             float64 `json:"pitch"`
	Volume            float64 `json:"volume"`
	DoSample          bool    `json:"do_sample"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
	TopK              int     `json:"top_k"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
	LengthPenalty     float64 `json:"length_penalty"`
	NumBeams          int     `json:"num_beams"`
	MaxMelTokens      int     `json:"max_mel_tokens"`
	EmoAlpha          float64 `json:"emo_alpha"`
}

// DefaultSpeechParams mirrors the defaults of the web form.
func DefaultSpeechParams() SpeechParams {
	return SpeechParams{
		ResponseFormat:    "mp3",
		Speed:             1.0,
		Pitch:             0,
		Volume:            1.0,
		DoSample:          true,
		Temperature:       0.8,
		TopP:              0.8,
		TopK:              30,
		RepetitionPenalty: 10.0,
		LengthPenalty:     0,
		NumBeams:          3,
		MaxMelTokens:      1500,
		EmoAlpha:          1.0,
	}
}

// SpeechRequest is one synthesis call. At most one of EmotionAudio,
// EmotionVector, EmotionText is set.
type SpeechRequest struct {
	Input         string
	Voice         string
	Params        SpeechParams
	EmotionAudio  string // base64
	EmotionVector []float64
	EmotionText   string
}

type SpeechAudio struct {
	Format string
	Audio  []byte
}

// ServiceStatus is the result of probing the upstream API.
type ServiceStatus struct {
	KeyLoaded      bool     `json:"key_loaded"`
	KeyPreview     string   `json:"key_preview,omitempty"`
	Model          string   `json:"model"`
	ModelAvailable bool     `json:"model_available"`
	Models         []string `json:"models,omitempty"`
}

// SpeechSynthesizer is the port for the voice-clone TTS provider.
type SpeechSynthesizer interface {
	UploadVoice(ctx context.Context, up VoiceUpload) (string, error)
	Synthesize(ctx context.Context, req SpeechRequest) (*SpeechAudio, error)
	Status(ctx context.Context) (ServiceStatus, error)
}
