package picogen

// Job statuses reported by the status endpoint.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Job is the submission receipt. ID is the only key used to poll the job afterwards.
type Job struct {
	ID   string `json:"id"`
	Cost int    `json:"cost"`
}

// StatusItem is one snapshot of a job's progress.
type StatusItem struct {
	ID         string   `json:"id"`
	Status     string   `json:"status"`
	DurationMs int64    `json:"duration_ms"`
	Result     []string `json:"result"`
}

// StabilityRequest asks Picogen to run a Stable Diffusion generation.
type StabilityRequest struct {
	Model   string         `json:"model"`
	Command string         `json:"command"`
	Input   StabilityInput `json:"input"`
}

// StabilityInput holds the Stable Diffusion parameters.
type StabilityInput struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Model          string `json:"model"`
	Ratio          string `json:"ratio"`
	Steps          int    `json:"steps"`
	Guidance       int    `json:"guidance"`
	Samples        int    `json:"samples"`
}

// MidjourneyRequest asks Picogen to run a Midjourney-style generation.
type MidjourneyRequest struct {
	Model   string          `json:"model"`
	Command string          `json:"command"`
	Input   MidjourneyInput `json:"input"`
}

// MidjourneyInput holds the Midjourney parameters.
type MidjourneyInput struct {
	Prompt  string `json:"prompt"`
	Model   string `json:"model"`
	Ratio   string `json:"ratio"`
	Quality string `json:"quality,omitempty"`
}

const (
	// StabilityXL is the default Stable Diffusion model.
	StabilityXL = "xl-v1.0"
	// Midjourney52 is the default Midjourney model.
	Midjourney52 = "mj-5.2"

	defaultRatio = "1:1"
)

// NewStabilityRequest builds a square, single-sample Stable Diffusion job.
func NewStabilityRequest(prompt, model string) StabilityRequest {
	return StabilityRequest{
		Model:   "stability",
		Command: "generate",
		Input: StabilityInput{
			Prompt:   prompt,
			Model:    model,
			Ratio:    defaultRatio,
			Steps:    30,
			Guidance: 7,
			Samples:  1,
		},
	}
}

// NewMidjourneyRequest builds a square Midjourney job.
func NewMidjourneyRequest(prompt, model string) MidjourneyRequest {
	return MidjourneyRequest{
		Model:   "midjourney",
		Command: "imagine",
		Input: MidjourneyInput{
			Prompt: prompt,
			Model:  model,
			Ratio:  defaultRatio,
		},
	}
}
