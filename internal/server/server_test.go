package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/guiyumin/urduscribe/internal/core/ai/session"
	"github.com/guiyumin/urduscribe/internal/core/ai/transcriber"
	"github.com/guiyumin/urduscribe/internal/core/config"
	"github.com/guiyumin/urduscribe/internal/core/media"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubNormalizer struct{}

func (stubNormalizer) Normalize(ctx context.Context, data []byte, ext string) (*media.Audio, error) {
	return &media.Audio{
		Samples:    make([]float32, media.SampleRate),
		SampleRate: media.SampleRate,
		Duration:   time.Second,
	}, nil
}

// stubBackend streams fixed segments through a one-shot result.
type stubBackend struct {
	segments []string
}

func (b *stubBackend) Name() string    { return "stub" }
func (b *stubBackend) Streaming() bool { return true }

func (b *stubBackend) Transcribe(ctx context.Context, req transcriber.Request) (transcriber.Stream, error) {
	return &stubStream{texts: b.segments, duration: req.Audio.Duration}, nil
}

type stubStream struct {
	texts    []string
	segs     []transcriber.Segment
	duration time.Duration
	done     bool
}

func (s *stubStream) Next() (transcriber.Segment, error) {
	if len(s.segs) == len(s.texts) {
		s.done = true
		return transcriber.Segment{}, io.EOF
	}
	seg := transcriber.Segment{Text: s.texts[len(s.segs)]}
	s.segs = append(s.segs, seg)
	return seg, nil
}

func (s *stubStream) Result() *transcriber.Result {
	if !s.done {
		return nil
	}
	return &transcriber.Result{Segments: s.segs, Backend: "stub", Duration: s.duration, Confidence: 0.5, HasConfidence: true}
}

func (s *stubStream) Close() error { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.LocalASR.Device = "cpu"
	cfg.LocalASR.ModelsDir = t.TempDir()
	cfg.Media.TempDir = t.TempDir()
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(cfg, &stubBackend{segments: []string{"السلام", "علیکم"}}, stubNormalizer{})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func decode(t *testing.T, r io.Reader) Response {
	t.Helper()
	var resp Response
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	return resp
}

func upload(t *testing.T, baseURL, filename string, data []byte) (*http.Response, Response) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(data)
	}
	mw.Close()

	resp, err := http.Post(baseURL+"/api/sessions", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	return resp, decode(t, resp.Body)
}

func createSession(t *testing.T, baseURL string) string {
	t.Helper()
	resp, body := upload(t, baseURL, "clip.mp3", []byte("mp3 data"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create session: %d %s", resp.StatusCode, body.Message)
	}
	return body.Data.(map[string]interface{})["id"].(string)
}

type sseEvent struct {
	name string
	data session.Event
}

func readSSE(t *testing.T, r io.Reader) []sseEvent {
	t.Helper()
	var events []sseEvent
	var name string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			var e session.Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &e); err != nil {
				t.Fatalf("bad event data %q: %v", line, err)
			}
			events = append(events, sseEvent{name: name, data: e})
		}
	}
	return events
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, testConfig(t))

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body := decode(t, resp.Body)
	if body.Code != 200 {
		t.Errorf("code = %d", body.Code)
	}
	if body.Data.(map[string]interface{})["status"] != "ok" {
		t.Errorf("data = %v", body.Data)
	}
}

func TestIndexPage(t *testing.T) {
	_, ts := newTestServer(t, testConfig(t))

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	page, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") || !bytes.Contains(page, []byte("/api/sessions")) {
		t.Error("index page not served")
	}
}

func TestCreateSessionValidation(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.MaxUploadMB = 1
	_, ts := newTestServer(t, cfg)

	tests := []struct {
		name     string
		filename string
		data     []byte
		status   int
	}{
		{"accepted", "voice.m4a", []byte("m4a"), http.StatusOK},
		{"bad extension", "notes.txt", []byte("text"), http.StatusBadRequest},
		{"empty file", "clip.wav", nil, http.StatusBadRequest},
		{"no file field", "", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := upload(t, ts.URL, tt.filename, tt.data)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d (%s), want %d", resp.StatusCode, body.Message, tt.status)
			}
			if tt.status == http.StatusBadRequest && tt.filename == "notes.txt" {
				if body.Data.(map[string]interface{})["kind"] != string(session.KindInvalidInput) {
					t.Errorf("data = %v", body.Data)
				}
			}
		})
	}
}

func TestCreateSessionTooLarge(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.MaxUploadMB = 1
	s, _ := newTestServer(t, cfg)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "big.wav")
	fw.Write(make([]byte, 2<<20))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
	if s.store.Len() != 0 {
		t.Error("oversized upload created a session")
	}
}

func TestTranscribeSSEAndDownload(t *testing.T) {
	_, ts := newTestServer(t, testConfig(t))
	id := createSession(t, ts.URL)

	resp, err := http.Post(ts.URL+"/api/sessions/"+id+"/transcribe", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}
	events := readSSE(t, resp.Body)
	resp.Body.Close()

	var partials []string
	var final *session.Event
	for i, e := range events {
		if e.name != string(e.data.Type) {
			t.Errorf("event name %q does not match type %q", e.name, e.data.Type)
		}
		switch e.data.Type {
		case session.EventPartial:
			partials = append(partials, e.data.Text)
		case session.EventFinal:
			final = &events[i].data
		}
	}
	if len(partials) != 2 || partials[1] != "السلام علیکم" {
		t.Errorf("partials = %q", partials)
	}
	if final == nil || final.Text != "السلام علیکم" || final.Confidence == nil {
		t.Fatalf("final event = %+v", final)
	}

	dl, err := http.Get(ts.URL + "/api/sessions/" + id + "/transcript")
	if err != nil {
		t.Fatal(err)
	}
	defer dl.Body.Close()
	text, _ := io.ReadAll(dl.Body)
	if string(text) != "السلام علیکم" {
		t.Errorf("transcript = %q", text)
	}
	if cd := dl.Header.Get("Content-Disposition"); !strings.Contains(cd, "urdu_transcript.txt") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if ct := dl.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}

	// a finished session cannot be transcribed again
	again, err := http.Post(ts.URL+"/api/sessions/"+id+"/transcribe", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	again.Body.Close()
	if again.StatusCode != http.StatusConflict {
		t.Errorf("second transcribe status = %d, want 409", again.StatusCode)
	}
}

func TestTranscriptBeforeCompletion(t *testing.T) {
	_, ts := newTestServer(t, testConfig(t))
	id := createSession(t, ts.URL)

	resp, err := http.Get(ts.URL + "/api/sessions/" + id + "/transcript")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestTranscribeWebSocket(t *testing.T) {
	_, ts := newTestServer(t, testConfig(t))
	id := createSession(t, ts.URL)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"action": "transcribe"}); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got []session.Event
	for {
		var e session.Event
		if err := conn.ReadJSON(&e); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("read: %v", err)
			}
			break
		}
		got = append(got, e)
	}

	if len(got) == 0 || got[len(got)-1].Type != session.EventFinal {
		t.Fatalf("events = %+v", got)
	}
	if got[len(got)-1].Text != "السلام علیکم" {
		t.Errorf("final text = %q", got[len(got)-1].Text)
	}
}

func TestSessionNotFound(t *testing.T) {
	_, ts := newTestServer(t, testConfig(t))

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/api/sessions/missing"},
		{http.MethodPost, "/api/sessions/missing/transcribe"},
		{http.MethodGet, "/api/sessions/missing/transcript"},
		{http.MethodGet, "/api/sessions/missing/ws"},
		{http.MethodDelete, "/api/sessions/missing"},
	} {
		r, _ := http.NewRequest(req.method, ts.URL+req.path, nil)
		resp, err := http.DefaultClient.Do(r)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s %s = %d, want 404", req.method, req.path, resp.StatusCode)
		}
	}
}

func TestDeleteSession(t *testing.T) {
	s, ts := newTestServer(t, testConfig(t))
	id := createSession(t, ts.URL)

	r, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+id, nil)
	resp, err := http.DefaultClient.Do(r)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if s.store.Len() != 0 {
		t.Error("session still held after delete")
	}
}

func TestConfigNeverExposesCredential(t *testing.T) {
	t.Setenv("URDUSCRIBE_TEST_API_KEY", "sk-very-secret")
	cfg := testConfig(t)
	cfg.Backend = config.BackendRemote
	cfg.Remote.APIKeyEnv = "URDUSCRIBE_TEST_API_KEY"
	_, ts := newTestServer(t, cfg)

	resp, err := http.Get(ts.URL + "/api/config")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if bytes.Contains(raw, []byte("sk-very-secret")) {
		t.Fatal("config endpoint leaked the API key")
	}
	var body Response
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatal(err)
	}
	if body.Data.(map[string]interface{})["credential_present"] != true {
		t.Errorf("data = %v", body.Data)
	}
}

func TestStoreExpiresIdleSessions(t *testing.T) {
	st := NewStore(time.Minute)
	now := time.Now()
	st.now = func() time.Time { return now }

	sessA := session.New(session.Deps{})
	sessB := session.New(session.Deps{})
	st.Add(sessA, &relay{})
	st.Add(sessB, &relay{})

	// B is transcribing and must survive expiry
	if _, err := st.begin(sessB.ID(), func() {}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := st.begin(sessB.ID(), func() {}, nil); err != errSessionBusy {
		t.Errorf("second begin err = %v, want errSessionBusy", err)
	}

	now = now.Add(2 * time.Minute)
	if n := st.cleanupExpired(); n != 1 {
		t.Errorf("expired %d sessions, want 1", n)
	}
	if st.Get(sessA.ID()) != nil || st.Get(sessB.ID()) == nil {
		t.Error("wrong session expired")
	}
}

func TestStoreStopIsIdempotent(t *testing.T) {
	st := NewStore(time.Minute)
	st.Start()
	st.Start()

	sess := session.New(session.Deps{})
	st.Add(sess, &relay{})
	cancelled := 0
	if _, err := st.begin(sess.ID(), func() { cancelled++ }, nil); err != nil {
		t.Fatal(err)
	}

	st.Stop()
	st.Stop()
	if cancelled == 0 {
		t.Error("Stop should cancel running transcriptions")
	}

	// never started
	NewStore(time.Minute).Stop()
}

func TestServerStopRacesStart(t *testing.T) {
	for i := 0; i < 20; i++ {
		cfg := testConfig(t)
		cfg.Server.Port = 0
		s := NewServer(cfg, &stubBackend{}, stubNormalizer{})

		started := make(chan error, 1)
		go func() { started <- s.Start() }()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.Stop(ctx); err != nil {
			t.Errorf("Stop: %v", err)
		}
		if err := s.Stop(ctx); err != nil {
			t.Errorf("second Stop: %v", err)
		}
		cancel()

		select {
		case err := <-started:
			if !errors.Is(err, http.ErrServerClosed) {
				t.Fatalf("Start returned %v, want http.ErrServerClosed", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Start did not return after Stop")
		}
	}
}
