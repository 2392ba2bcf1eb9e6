package models

// Endpoint identifies which backend route served a submission.
type Endpoint string

const (
	EndpointSingle   Endpoint = "analyze"
	EndpointMultiple Endpoint = "analyze-multiple"
)

// AnalysisResult is the normalized outcome of a successful submission.
// It is immutable once created.
type AnalysisResult struct {
	Text                 string   `json:"text" msgpack:"text"`
	Endpoint             Endpoint `json:"endpoint" msgpack:"endpoint"`
	Documents            []string `json:"documents,omitempty" msgpack:"documents,omitempty"`
	SegmentsAnalyzed     int      `json:"segmentsAnalyzed,omitempty" msgpack:"segmentsAnalyzed,omitempty"`
	Message              string   `json:"message,omitempty" msgpack:"message,omitempty"`
	DestructionConfirmed bool     `json:"destructionConfirmed" msgpack:"destructionConfirmed"`
}
