package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/avatar"
	"server/internal/providers/hosting"
	"server/internal/providers/speech"
	"server/internal/providers/summary"
)

// Progress checkpoints reported to the caller. They are milestones, not a
// linear interpolation of remaining work.
const (
	checkpointSummarizing  = 10
	checkpointSummarized   = 30
	checkpointSynthesizing = 40
	checkpointSynthesized  = 70
	checkpointHosting      = 80
	checkpointSubmitting   = 85
	checkpointPolling      = 90
	checkpointDone         = 100
)

// Listener receives progress events for a single run. Exactly one terminal
// event is delivered: complete with progress 100, or error with progress at
// its last value.
type Listener func(domain.ProgressEvent)

// Options wires an Orchestrator. Avatar may be nil, in which case every run
// short-circuits to an audio-only artifact after hosting.
type Options struct {
	Summarizer summary.Summarizer
	Speech     speech.Synthesizer
	Host       hosting.Host
	Avatar     avatar.Client

	Logger infra.Logger

	PollInterval    time.Duration
	PollMaxAttempts int

	Background string
	Width      int
	Height     int
}

// Orchestrator drives one generation request through the stage machine:
// summarize, synthesize speech, host assets, submit the avatar render, poll
// to completion. It holds no state across runs; each invocation owns its own
// PipelineRun.
type Orchestrator struct {
	summarizer summary.Summarizer
	speech     speech.Synthesizer
	host       hosting.Host
	avatar     avatar.Client
	logger     infra.Logger

	pollInterval    time.Duration
	pollMaxAttempts int

	background string
	width      int
	height     int
}

// Result is the terminal artifact of a successful run.
type Result struct {
	ArtifactURL string
	AudioURL    string
	Script      string
	AudioOnly   bool
}

// New builds an Orchestrator from Options.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		summarizer:      opts.Summarizer,
		speech:          opts.Speech,
		host:            opts.Host,
		avatar:          opts.Avatar,
		logger:          opts.Logger,
		pollInterval:    opts.PollInterval,
		pollMaxAttempts: opts.PollMaxAttempts,
		background:      opts.Background,
		width:           opts.Width,
		height:          opts.Height,
	}
}

// Run executes the full pipeline for req, pushing progress to listener. The
// returned error is the same one carried by the terminal error event, so
// callers that only await the return value see an identical outcome.
func (o *Orchestrator) Run(ctx context.Context, req domain.GenerationRequest, listener Listener) (*Result, error) {
	run := &domain.PipelineRun{ID: uuid.NewString(), Stage: domain.StageCreated}
	logger := o.logger.With().Str("run_id", run.ID).Logger()

	result, err := o.execute(ctx, run, req, listener, logger)
	if err != nil {
		logger.Error().Err(err).Str("stage", string(run.Stage)).Msg("run failed")
		run.Err = err
		run.Stage = domain.StageError
		emit(listener, domain.ProgressEvent{Stage: domain.StageError, Progress: run.Progress, Err: err})
		return nil, err
	}

	run.Artifact = result.ArtifactURL
	run.Advance(domain.StageComplete, checkpointDone)
	logger.Info().Str("artifact", result.ArtifactURL).Bool("audio_only", result.AudioOnly).Msg("run complete")
	emit(listener, domain.ProgressEvent{Stage: domain.StageComplete, Progress: checkpointDone, ArtifactURL: result.ArtifactURL})
	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, run *domain.PipelineRun, req domain.GenerationRequest, listener Listener, logger infra.Logger) (*Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", domain.ErrInvalidInput)
	}

	// Stage: summarizing.
	o.advance(run, listener, domain.StageSummarizing, checkpointSummarizing)
	script, err := o.summarizer.Summarize(ctx, req.Text)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(script) == "" {
		return nil, domain.NewProviderError("gemini", 0, "empty summary")
	}
	logger.Debug().Int("script_chars", len(script)).Msg("script ready")
	o.advance(run, listener, domain.StageSummarizing, checkpointSummarized)

	// Stage: synthesizing_audio.
	o.advance(run, listener, domain.StageSynthesizingAudio, checkpointSynthesizing)
	audio, err := o.speech.Synthesize(ctx, script, req.VoiceID)
	if err != nil {
		return nil, err
	}
	o.advance(run, listener, domain.StageSynthesizingAudio, checkpointSynthesized)

	// Stage: hosting_assets. Audio hosting is mandatory; the synthesized
	// bytes cannot cross the provider boundary without a public URL.
	o.advance(run, listener, domain.StageHostingAssets, checkpointHosting)
	audioURL, err := o.host.Upload(ctx, domain.Asset{
		Filename: fmt.Sprintf("audio-%s.mp3", run.ID),
		MIME:     coalesceMIME(audio.ContentType, "audio/mpeg"),
		Data:     audio.Data,
	})
	if err != nil {
		return nil, err
	}
	if audioURL == "" {
		return nil, fmt.Errorf("%w: host returned no audio url", domain.ErrHostingFailed)
	}

	imageURL := req.ImageURL
	if imageURL == "" && len(req.ImageData) > 0 {
		hosted, err := o.host.Upload(ctx, domain.Asset{
			Filename: fmt.Sprintf("avatar-%s%s", run.ID, extensionForMIME(req.ImageMIME)),
			MIME:     coalesceMIME(req.ImageMIME, "image/png"),
			Data:     req.ImageData,
		})
		if err != nil {
			// The image is optional: degrade to an audio-only artifact
			// instead of failing the whole run.
			logger.Warn().Err(err).Msg("image hosting failed, continuing without avatar")
		} else {
			imageURL = hosted
		}
	}

	if imageURL == "" || o.avatar == nil {
		logger.Info().Str("audio_url", audioURL).Msg("avatar unavailable, returning audio-only artifact")
		return &Result{ArtifactURL: audioURL, AudioURL: audioURL, Script: script, AudioOnly: true}, nil
	}

	// Stage: synthesizing_video. Both registrations must succeed before the
	// render is requested.
	o.advance(run, listener, domain.StageSynthesizingVideo, checkpointSubmitting)
	photoID, err := o.avatar.RegisterTalkingPhoto(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	audioAssetID, err := o.avatar.RegisterAudio(ctx, audioURL)
	if err != nil {
		return nil, err
	}
	handle, err := o.avatar.SubmitVideo(ctx, avatar.VideoInput{
		TalkingPhotoID: photoID,
		AudioAssetID:   audioAssetID,
		Background:     o.background,
		Width:          o.width,
		Height:         o.height,
	})
	if err != nil {
		return nil, err
	}
	logger.Info().Str("job", string(handle)).Msg("video submitted")

	// Stage: polling_video.
	o.advance(run, listener, domain.StagePollingVideo, checkpointPolling)
	videoURL, err := o.awaitVideo(ctx, handle, logger)
	if err != nil {
		return nil, err
	}
	return &Result{ArtifactURL: videoURL, AudioURL: audioURL, Script: script}, nil
}

// awaitVideo polls the job until a terminal status. The same handle is used
// for every poll; transient status-check failures keep the loop alive while
// a provider-reported failure aborts it immediately.
func (o *Orchestrator) awaitVideo(ctx context.Context, handle domain.JobHandle, logger infra.Logger) (string, error) {
	var videoURL string
	var fatal error

	poller := Poller{Interval: o.pollInterval, MaxAttempts: o.pollMaxAttempts, Logger: logger}
	err := poller.Run(ctx, func(ctx context.Context) (bool, error) {
		status, err := o.avatar.JobStatus(ctx, handle)
		if err != nil {
			return false, err
		}
		switch status.State {
		case domain.JobCompleted:
			if status.VideoURL == "" {
				fatal = domain.NewProviderError("heygen", 0, "completed without a video url")
				return true, nil
			}
			videoURL = status.VideoURL
			return true, nil
		case domain.JobFailed:
			fatal = domain.NewProviderError("heygen", 0, status.Reason)
			return true, nil
		default:
			return false, nil
		}
	})
	if err != nil {
		return "", err
	}
	if fatal != nil {
		return "", fatal
	}
	return videoURL, nil
}

func (o *Orchestrator) advance(run *domain.PipelineRun, listener Listener, stage domain.Stage, progress int) {
	run.Advance(stage, progress)
	emit(listener, domain.ProgressEvent{Stage: run.Stage, Progress: run.Progress})
}

func emit(listener Listener, event domain.ProgressEvent) {
	if listener != nil {
		listener(event)
	}
}

func coalesceMIME(mime, fallback string) string {
	if strings.TrimSpace(mime) == "" {
		return fallback
	}
	return mime
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
