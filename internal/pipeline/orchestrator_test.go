package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/providers/avatar"
	"server/internal/providers/speech"
)

type fakeSummarizer struct {
	script string
	err    error
	calls  int
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	f.calls++
	return f.script, f.err
}

type fakeSpeech struct {
	audio *speech.Audio
	err   error
	voice string
}

func (f *fakeSpeech) Synthesize(ctx context.Context, text, voiceID string) (*speech.Audio, error) {
	f.voice = voiceID
	if f.err != nil {
		return nil, f.err
	}
	if f.audio != nil {
		return f.audio, nil
	}
	return &speech.Audio{Data: []byte{0xff, 0xfb}, ContentType: "audio/mpeg"}, nil
}

type fakeHost struct {
	urls    map[string]string
	failFor string
	uploads []domain.Asset
}

func (f *fakeHost) Upload(ctx context.Context, asset domain.Asset) (string, error) {
	f.uploads = append(f.uploads, asset)
	if f.failFor != "" && asset.MIME == f.failFor {
		return "", fmt.Errorf("%w: webhook down", domain.ErrHostingFailed)
	}
	if url, ok := f.urls[asset.MIME]; ok {
		return url, nil
	}
	return "https://drive.example.com/" + asset.Filename, nil
}

type fakeAvatar struct {
	photoErr    error
	audioErr    error
	submitErr   error
	statuses    []domain.JobStatus
	statusErrs  []error
	statusCalls int
	handles     []domain.JobHandle
	registered  bool
}

func (f *fakeAvatar) RegisterTalkingPhoto(ctx context.Context, imageURL string) (string, error) {
	f.registered = true
	if f.photoErr != nil {
		return "", f.photoErr
	}
	return "photo-1", nil
}

func (f *fakeAvatar) RegisterAudio(ctx context.Context, audioURL string) (string, error) {
	if f.audioErr != nil {
		return "", f.audioErr
	}
	return "asset-1", nil
}

func (f *fakeAvatar) SubmitVideo(ctx context.Context, input avatar.VideoInput) (domain.JobHandle, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "job-42", nil
}

func (f *fakeAvatar) JobStatus(ctx context.Context, handle domain.JobHandle) (*domain.JobStatus, error) {
	f.handles = append(f.handles, handle)
	idx := f.statusCalls
	f.statusCalls++
	if idx < len(f.statusErrs) && f.statusErrs[idx] != nil {
		return nil, f.statusErrs[idx]
	}
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	status := f.statuses[idx]
	return &status, nil
}

type recorder struct {
	events []domain.ProgressEvent
}

func (r *recorder) listen(event domain.ProgressEvent) {
	r.events = append(r.events, event)
}

func (r *recorder) last() domain.ProgressEvent {
	if len(r.events) == 0 {
		return domain.ProgressEvent{}
	}
	return r.events[len(r.events)-1]
}

func (r *recorder) assertMonotone(t *testing.T) {
	t.Helper()
	prev := -1
	for i, event := range r.events {
		if event.Progress < prev {
			t.Fatalf("progress decreased at event %d: %d -> %d", i, prev, event.Progress)
		}
		prev = event.Progress
	}
}

func (r *recorder) assertOneTerminal(t *testing.T) {
	t.Helper()
	terminals := 0
	for _, event := range r.events {
		if event.Stage.Terminal() {
			terminals++
		}
	}
	if terminals != 1 {
		t.Fatalf("terminal events = %d, want exactly 1", terminals)
	}
	if !r.last().Stage.Terminal() {
		t.Fatalf("last event is not terminal: %+v", r.last())
	}
}

func newOrchestrator(av avatar.Client, host *fakeHost) (*Orchestrator, *fakeSummarizer, *fakeSpeech) {
	summarizer := &fakeSummarizer{script: "A short script."}
	synth := &fakeSpeech{}
	o := New(Options{
		Summarizer:      summarizer,
		Speech:          synth,
		Host:            host,
		Avatar:          av,
		Logger:          zerolog.New(io.Discard),
		PollInterval:    time.Millisecond,
		PollMaxAttempts: 50,
	})
	return o, summarizer, synth
}

func TestRunAudioOnlyWhenNoImage(t *testing.T) {
	host := &fakeHost{urls: map[string]string{"audio/mpeg": "https://drive.example.com/audio.mp3"}}
	av := &fakeAvatar{}
	o, _, _ := newOrchestrator(av, host)

	rec := &recorder{}
	result, err := o.Run(context.Background(), domain.GenerationRequest{Text: "The sky is blue."}, rec.listen)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !result.AudioOnly {
		t.Fatalf("expected audio-only result")
	}
	if result.ArtifactURL != "https://drive.example.com/audio.mp3" {
		t.Fatalf("artifact = %q, want hosted audio url", result.ArtifactURL)
	}
	if av.registered {
		t.Fatalf("avatar provider must not be invoked without an image")
	}
	rec.assertMonotone(t)
	rec.assertOneTerminal(t)
	if last := rec.last(); last.Stage != domain.StageComplete || last.Progress != 100 {
		t.Fatalf("terminal event = %+v, want complete at 100", last)
	}
}

func TestRunAudioOnlyWhenAvatarUnconfigured(t *testing.T) {
	host := &fakeHost{}
	o, _, _ := newOrchestrator(nil, host)

	rec := &recorder{}
	result, err := o.Run(context.Background(), domain.GenerationRequest{
		Text:      "Some text.",
		ImageData: []byte{0x89, 'P', 'N', 'G'},
		ImageMIME: "image/png",
	}, rec.listen)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !result.AudioOnly {
		t.Fatalf("expected audio-only result when avatar is unconfigured")
	}
	rec.assertOneTerminal(t)
}

func TestRunRejectsEmptyText(t *testing.T) {
	host := &fakeHost{}
	o, summarizer, _ := newOrchestrator(&fakeAvatar{}, host)

	rec := &recorder{}
	_, err := o.Run(context.Background(), domain.GenerationRequest{Text: "   "}, rec.listen)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if summarizer.calls != 0 {
		t.Fatalf("summarizer called %d times, want 0 (no network calls)", summarizer.calls)
	}
	if len(host.uploads) != 0 {
		t.Fatalf("host called %d times, want 0", len(host.uploads))
	}
	rec.assertOneTerminal(t)
	if last := rec.last(); last.Stage != domain.StageError || last.Err == nil {
		t.Fatalf("terminal event = %+v, want error", last)
	}
}

func TestRunAudioHostingFailureIsFatal(t *testing.T) {
	host := &fakeHost{failFor: "audio/mpeg"}
	av := &fakeAvatar{}
	o, _, _ := newOrchestrator(av, host)

	rec := &recorder{}
	_, err := o.Run(context.Background(), domain.GenerationRequest{
		Text:      "Some text.",
		ImageData: []byte{0x01},
		ImageMIME: "image/png",
	}, rec.listen)
	if !errors.Is(err, domain.ErrHostingFailed) {
		t.Fatalf("expected ErrHostingFailed, got %v", err)
	}
	if av.registered {
		t.Fatalf("video synthesis must not start after audio hosting failure")
	}
	rec.assertOneTerminal(t)
	if rec.last().Progress == 100 {
		t.Fatalf("error run must not report progress 100")
	}
}

func TestRunImageHostingFailureDegradesToAudioOnly(t *testing.T) {
	host := &fakeHost{failFor: "image/png", urls: map[string]string{"audio/mpeg": "https://drive.example.com/a.mp3"}}
	av := &fakeAvatar{}
	o, _, _ := newOrchestrator(av, host)

	rec := &recorder{}
	result, err := o.Run(context.Background(), domain.GenerationRequest{
		Text:      "Some text.",
		ImageData: []byte{0x01},
		ImageMIME: "image/png",
	}, rec.listen)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !result.AudioOnly {
		t.Fatalf("expected degraded audio-only result")
	}
	if av.registered {
		t.Fatalf("avatar provider must not be invoked after image hosting failure")
	}
}

func TestRunFullVideoAfterProcessingTicks(t *testing.T) {
	host := &fakeHost{}
	statuses := make([]domain.JobStatus, 0, 11)
	for i := 0; i < 10; i++ {
		statuses = append(statuses, domain.JobStatus{State: domain.JobProcessing})
	}
	statuses = append(statuses, domain.JobStatus{State: domain.JobCompleted, VideoURL: "https://cdn.example.com/final.mp4"})
	av := &fakeAvatar{statuses: statuses}
	o, _, _ := newOrchestrator(av, host)

	rec := &recorder{}
	result, err := o.Run(context.Background(), domain.GenerationRequest{
		Text:     "Some text.",
		ImageURL: "https://drive.example.com/avatar.png",
	}, rec.listen)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.ArtifactURL != "https://cdn.example.com/final.mp4" {
		t.Fatalf("artifact = %q, want provider video url", result.ArtifactURL)
	}
	if av.statusCalls != 11 {
		t.Fatalf("status calls = %d, want 11 (stop at terminal)", av.statusCalls)
	}
	for _, handle := range av.handles {
		if handle != domain.JobHandle("job-42") {
			t.Fatalf("poll used handle %q, want job-42", handle)
		}
	}
	rec.assertMonotone(t)
	rec.assertOneTerminal(t)
}

func TestRunPollBudgetExhaustedIsTimeout(t *testing.T) {
	host := &fakeHost{}
	av := &fakeAvatar{statuses: []domain.JobStatus{{State: domain.JobProcessing}}}
	o, _, _ := newOrchestrator(av, host)

	rec := &recorder{}
	_, err := o.Run(context.Background(), domain.GenerationRequest{
		Text:     "Some text.",
		ImageURL: "https://drive.example.com/avatar.png",
	}, rec.listen)
	if !errors.Is(err, domain.ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
	if av.statusCalls != 50 {
		t.Fatalf("status calls = %d, want the full budget", av.statusCalls)
	}
	rec.assertOneTerminal(t)
	if rec.last().Progress == 100 {
		t.Fatalf("timeout run must not report progress 100")
	}
}

func TestRunProviderFailedStatusAborts(t *testing.T) {
	host := &fakeHost{}
	av := &fakeAvatar{statuses: []domain.JobStatus{
		{State: domain.JobProcessing},
		{State: domain.JobFailed, Reason: "render crashed"},
	}}
	o, _, _ := newOrchestrator(av, host)

	rec := &recorder{}
	_, err := o.Run(context.Background(), domain.GenerationRequest{
		Text:     "Some text.",
		ImageURL: "https://drive.example.com/avatar.png",
	}, rec.listen)
	pe, ok := domain.IsProviderError(err)
	if !ok {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Message != "render crashed" {
		t.Fatalf("message = %q, want provider reason", pe.Message)
	}
	if errors.Is(err, domain.ErrPollTimeout) {
		t.Fatalf("provider failure must be distinct from timeout")
	}
	if av.statusCalls != 2 {
		t.Fatalf("status calls = %d, want 2 (stop at terminal)", av.statusCalls)
	}
}

func TestRunSwallowsTransientStatusErrors(t *testing.T) {
	host := &fakeHost{}
	av := &fakeAvatar{
		statusErrs: []error{errors.New("connection reset"), errors.New("timeout")},
		statuses: []domain.JobStatus{
			{State: domain.JobProcessing},
			{State: domain.JobProcessing},
			{State: domain.JobCompleted, VideoURL: "https://cdn.example.com/out.mp4"},
		},
	}
	o, _, _ := newOrchestrator(av, host)

	result, err := o.Run(context.Background(), domain.GenerationRequest{
		Text:     "Some text.",
		ImageURL: "https://drive.example.com/avatar.png",
	}, nil)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if result.ArtifactURL != "https://cdn.example.com/out.mp4" {
		t.Fatalf("artifact = %q", result.ArtifactURL)
	}
}

func TestRunPhotoRegistrationFailureAborts(t *testing.T) {
	host := &fakeHost{}
	av := &fakeAvatar{photoErr: domain.NewProviderError("heygen", 400, "image resolution too low")}
	o, _, _ := newOrchestrator(av, host)

	rec := &recorder{}
	_, err := o.Run(context.Background(), domain.GenerationRequest{
		Text:     "Some text.",
		ImageURL: "https://drive.example.com/avatar.png",
	}, rec.listen)
	pe, ok := domain.IsProviderError(err)
	if !ok {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Message != "image resolution too low" {
		t.Fatalf("message = %q", pe.Message)
	}
	rec.assertOneTerminal(t)
}

func TestRunPassesVoiceIDThrough(t *testing.T) {
	host := &fakeHost{}
	o, _, synth := newOrchestrator(nil, host)

	if _, err := o.Run(context.Background(), domain.GenerationRequest{Text: "t", VoiceID: "voice-7"}, nil); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if synth.voice != "voice-7" {
		t.Fatalf("voice id = %q, want voice-7", synth.voice)
	}
}
