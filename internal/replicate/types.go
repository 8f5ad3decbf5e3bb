// Package replicate provides an HTTP client for the Replicate predictions API.
package replicate

import "encoding/json"

// Status represents the status of a Replicate prediction.
type Status string

// Replicate prediction statuses.
const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// MotionControlVersion is the hosted Kling motion control model used for
// motion transfer predictions.
const MotionControlVersion = "kwaivgi/kling-v2.6-motion-control"

// PredictionInput is the model input for a motion control prediction.
type PredictionInput struct {
	Image                string `json:"image"`
	Video                string `json:"video"`
	Prompt               string `json:"prompt"`
	Mode                 string `json:"mode"`
	CharacterOrientation string `json:"character_orientation"`
	KeepOriginalSound    bool   `json:"keep_original_sound"`
}

// Prediction is the state of a prediction as reported by the API.
type Prediction struct {
	ID     string
	Status Status
	// OutputURL is set once the prediction succeeds.
	OutputURL string
	// Error carries the failure reason when the prediction fails.
	Error string
}

type predictionRequest struct {
	Version string          `json:"version"`
	Input   PredictionInput `json:"input"`
}

type predictionResponse struct {
	ID     string           `json:"id"`
	Status string           `json:"status"`
	Output predictionOutput `json:"output"`
	Error  string           `json:"error"`
}

// predictionOutput is a string URL for single-output models and a list
// for multi-output ones. Accept both, keeping the first entry.
type predictionOutput struct {
	URL string
}

func (o *predictionOutput) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '[' {
		var list []string
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		if len(list) > 0 {
			o.URL = list[0]
		}
		return nil
	}
	return json.Unmarshal(b, &o.URL)
}

type createFileRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type createFileResponse struct {
	UploadURL string   `json:"upload_url"`
	URLs      fileURLs `json:"urls"`
}

type fileURLs struct {
	Get string `json:"get"`
}
