package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"server/internal/pipeline"
	"server/internal/providers/speech"
)

func dialGenerate(t *testing.T, app *App) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(app.Generate))
	t.Cleanup(ts.Close)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func readUntilTerminal(t *testing.T, conn *websocket.Conn) []progressMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var events []progressMessage
	for {
		var msg progressMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read progress: %v (events so far: %+v)", err, events)
		}
		events = append(events, msg)
		if msg.Stage == "complete" || msg.Stage == "error" {
			return events
		}
	}
}

func TestGenerateWebsocketAudioOnlyRun(t *testing.T) {
	app := newTestApp()
	summarizer := &stubSummarizer{script: "Short script."}
	synth := &stubSpeech{audio: &speech.Audio{Data: []byte{0x01}, ContentType: "audio/mpeg"}}
	host := &stubHost{url: "https://drive.example.com/audio.mp3"}
	app.Orchestrator = pipeline.New(pipeline.Options{
		Summarizer:      summarizer,
		Speech:          synth,
		Host:            host,
		Logger:          zerolog.New(io.Discard),
		PollInterval:    time.Millisecond,
		PollMaxAttempts: 5,
	})

	conn := dialGenerate(t, app)
	if err := conn.WriteJSON(map[string]string{"text": "The sky is blue."}); err != nil {
		t.Fatalf("write request: %v", err)
	}

	events := readUntilTerminal(t, conn)
	last := events[len(events)-1]
	if last.Stage != "complete" || last.Progress != 100 {
		t.Fatalf("terminal event = %+v, want complete at 100", last)
	}
	if last.VideoURL != "https://drive.example.com/audio.mp3" {
		t.Fatalf("video_url = %q, want hosted audio url", last.VideoURL)
	}
	prev := -1
	for i, event := range events {
		if event.Progress < prev {
			t.Fatalf("progress decreased at event %d: %+v", i, events)
		}
		prev = event.Progress
	}
}

func TestGenerateWebsocketEmptyTextReportsError(t *testing.T) {
	app := newTestApp()
	app.Orchestrator = pipeline.New(pipeline.Options{
		Summarizer: &stubSummarizer{script: "unused"},
		Speech:     &stubSpeech{audio: &speech.Audio{Data: []byte{0x01}}},
		Host:       &stubHost{url: "https://drive.example.com/a.mp3"},
		Logger:     zerolog.New(io.Discard),
	})

	conn := dialGenerate(t, app)
	if err := conn.WriteJSON(map[string]string{"text": "   "}); err != nil {
		t.Fatalf("write request: %v", err)
	}

	events := readUntilTerminal(t, conn)
	last := events[len(events)-1]
	if last.Stage != "error" {
		t.Fatalf("terminal stage = %q, want error", last.Stage)
	}
	if last.Error == "" {
		t.Fatalf("terminal event missing error reason")
	}
	if last.Progress == 100 {
		t.Fatalf("error run must not report progress 100")
	}
}
