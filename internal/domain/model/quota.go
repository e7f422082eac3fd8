package model

// DenyReason names why a quota check refused a request. The empty reason
// means the request was authorized.
type DenyReason string

const (
	ReasonNone           DenyReason = ""
	ReasonCodeNotFound   DenyReason = "code_not_found"
	ReasonDisabled       DenyReason = "code_disabled"
	ReasonExpired        DenyReason = "code_expired"
	ReasonVoiceQuota     DenyReason = "voice_quota_exhausted"
	ReasonCharacterQuota DenyReason = "character_quota_exhausted"
)

var denyMessages = map[DenyReason]string{
	ReasonCodeNotFound:   "activation code does not exist or has been removed",
	ReasonDisabled:       "activation code is disabled, contact the administrator",
	ReasonExpired:        "activation code has expired, contact the administrator",
	ReasonVoiceQuota:     "no voice clone quota left, contact the administrator",
	ReasonCharacterQuota: "not enough characters left, shorten the text or contact the administrator",
}

// Message is the default English text for r.
func (r DenyReason) Message() string {
	return denyMessages[r]
}

// QuotaDecision is the outcome of a pre-flight quota check. Info is the
// snapshot the decision was made on and is nil when the code does not exist.
type QuotaDecision struct {
	Authorized bool            `json:"authorized"`
	Reason     DenyReason      `json:"reason,omitempty"`
	Message    string          `json:"message,omitempty"`
	Info       *ActivationInfo `json:"info,omitempty"`
}

func Allow(info *ActivationInfo) QuotaDecision {
	return QuotaDecision{Authorized: true, Info: info}
}

func Deny(reason DenyReason, info *ActivationInfo) QuotaDecision {
	return QuotaDecision{Reason: reason, Message: reason.Message(), Info: info}
}
