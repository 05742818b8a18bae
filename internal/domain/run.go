package domain

// Stage enumerates the lifecycle states of a generation run.
type Stage string

const (
	StageCreated           Stage = "created"
	StageSummarizing       Stage = "summarizing"
	StageSynthesizingAudio Stage = "synthesizing_audio"
	StageHostingAssets     Stage = "hosting_assets"
	StageSynthesizingVideo Stage = "synthesizing_video"
	StagePollingVideo      Stage = "polling_video"
	StageComplete          Stage = "complete"
	StageError             Stage = "error"
)

// Terminal reports whether no further transitions occur from s.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// GenerationRequest is the immutable input to one pipeline run. The avatar
// image may arrive as inline bytes (to be hosted) or as an already public
// URL; both absent means an audio-only run. An empty VoiceID resolves to the
// speech provider's default voice.
type GenerationRequest struct {
	Text      string
	ImageURL  string
	ImageData []byte
	ImageMIME string
	VoiceID   string
}

// HasImage reports whether the request carries any avatar image source.
func (r GenerationRequest) HasImage() bool {
	return r.ImageURL != "" || len(r.ImageData) > 0
}

// ProgressEvent is one record pushed through the progress channel. Progress
// is a checkpoint percentage in [0,100], non-decreasing within a run; the
// final event carries either ArtifactURL with Progress=100 or Err with
// Progress at its last known value.
type ProgressEvent struct {
	Stage       Stage
	Progress    int
	ArtifactURL string
	Err         error
}

// PipelineRun tracks the mutable state of a single generation request. One
// run exists per invocation; it is never shared across requests.
type PipelineRun struct {
	ID       string
	Stage    Stage
	Progress int
	Artifact string
	Err      error
}

// Advance moves the run to stage at the given checkpoint. Progress never
// decreases even if a caller passes a lower checkpoint.
func (r *PipelineRun) Advance(stage Stage, progress int) {
	r.Stage = stage
	if progress > r.Progress {
		r.Progress = progress
	}
}
