package stability

// FinishReason is the per-artifact outcome reported by the API.
type FinishReason string

const (
	FinishReasonSuccess         FinishReason = "SUCCESS"
	FinishReasonContentFiltered FinishReason = "CONTENT_FILTERED"
	FinishReasonError           FinishReason = "ERROR"
)

// Payload is the text-to-image request body.
type Payload struct {
	CfgScale           int          `json:"cfg_scale"`
	ClipGuidancePreset string       `json:"clip_guidance_preset"`
	StylePreset        string       `json:"style_preset"`
	Height             int          `json:"height"`
	Width              int          `json:"width"`
	Samples            int          `json:"samples"`
	Steps              int          `json:"steps"`
	TextPrompts        []TextPrompt `json:"text_prompts"`
}

// TextPrompt is one weighted prompt.
type TextPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

// Artifact is one generated image.
type Artifact struct {
	Base64       string       `json:"base64"`
	Seed         int64        `json:"seed"`
	FinishReason FinishReason `json:"finishReason"`
}

type artifactsResponse struct {
	Artifacts []Artifact `json:"artifacts"`
}

// Balance is the account's remaining credit.
type Balance struct {
	Credits float64 `json:"credits"`
}

// Engine describes one generation engine.
type Engine struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
}
