// Package transcribe adapts speech-to-text engines behind a single
// interface: given a path to audio, return a detected language and timed
// segments.
package transcribe

import "context"

// Segment is one timed caption cue. Times are seconds from audio start.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Result is a finished transcription.
type Result struct {
	Language string
	Segments []Segment
}

// Engine is a pluggable transcription backend. No retries happen at this
// layer; failures propagate to the orchestrator as fatal for that run.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string) (Result, error)
}
