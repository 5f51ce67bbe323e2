package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"ai-interview-session-service/internal/audio"
	"ai-interview-session-service/internal/config"
	"ai-interview-session-service/internal/models"
	"ai-interview-session-service/internal/provision"
	"ai-interview-session-service/internal/realtime"
	"ai-interview-session-service/internal/session"
	"ai-interview-session-service/internal/store"
)

type fakeConn struct {
	events    chan realtime.Event
	mu        sync.Mutex
	appended  []string
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan realtime.Event, 64)}
}

func (f *fakeConn) Events() <-chan realtime.Event                { return f.events }
func (f *fakeConn) UpdateSession(realtime.SessionSettings) error { return nil }
func (f *fakeConn) CreateResponse() error                        { return nil }
func (f *fakeConn) CancelResponse() error                        { return nil }
func (f *fakeConn) Err() error                                   { return nil }

func (f *fakeConn) AppendAudio(audio string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, audio)
	return nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.events) })
	return nil
}

type fakeSubmitter struct{}

func (fakeSubmitter) Submit(_ context.Context, cfg models.SessionConfig, entries []models.TranscriptEntry, questionCount int) (models.InterviewResult, error) {
	return models.InterviewResult{
		SessionID:     cfg.SessionID,
		OverallScore:  85,
		Feedback:      "fine",
		QuestionCount: questionCount,
		Transcript:    entries,
	}, nil
}

func newTestAPI(t *testing.T, conn *fakeConn) *API {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	tokens := provision.NewStaticSource(
		config.RealtimeConfig{APIKey: "key", Model: "gpt-realtime-mini"},
		config.InterviewConfig{TimeLimit: 5 * time.Second, TargetQuestions: 3, Voice: "cedar"},
	)
	manager := session.NewManager(session.ManagerDeps{
		Tokens: tokens,
		Dial: func(context.Context, realtime.Options) (realtime.Conn, error) {
			return conn, nil
		},
		Submitter: fakeSubmitter{},
	})
	return New(manager, st)
}

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	body := `{"role":"Backend Engineer","organization":"Acme","jobDescription":"Build services."}`
	resp, err := http.Post(srv.URL+"/v1/sessions", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var created createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.SessionID == "" {
		t.Fatal("no session id")
	}
	return created.SessionID
}

func TestAPI_SessionLifecycleEndpoints(t *testing.T) {
	api := newTestAPI(t, newFakeConn())
	srv := httptest.NewServer(api.NewRouter())
	defer srv.Close()

	id := createSession(t, srv)

	resp, err := http.Get(srv.URL + "/v1/sessions/" + id)
	if err != nil {
		t.Fatal(err)
	}
	var snap session.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if snap.State != "IDLE" {
		t.Errorf("state = %q, want IDLE before attach", snap.State)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/sessions/"+id, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/v1/sessions/" + id)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status after delete = %d, want 404", resp.StatusCode)
	}
}

func TestAPI_CreateValidation(t *testing.T) {
	api := newTestAPI(t, newFakeConn())
	srv := httptest.NewServer(api.NewRouter())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/sessions", "application/json", bytes.NewBufferString(`{"role":""}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAPI_CreateProvisioningFailure(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	// No API key configured, so provisioning fails.
	manager := session.NewManager(session.ManagerDeps{
		Tokens: provision.NewStaticSource(config.RealtimeConfig{}, config.InterviewConfig{}),
	})
	srv := httptest.NewServer(New(manager, st).NewRouter())
	defer srv.Close()

	body := `{"role":"Backend Engineer","organization":"Acme"}`
	resp, err := http.Post(srv.URL+"/v1/sessions", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestAPI_ResultNotFound(t *testing.T) {
	api := newTestAPI(t, newFakeConn())
	srv := httptest.NewServer(api.NewRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/sessions/unknown/result")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestAPI_AudioBridge(t *testing.T) {
	conn := newFakeConn()
	api := newTestAPI(t, conn)
	srv := httptest.NewServer(api.NewRouter())
	defer srv.Close()

	id := createSession(t, srv)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/" + id + "/audio?rate=24000"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	// Agent speaks one utterance with audio.
	fragment := base64.StdEncoding.EncodeToString(audio.QuantizePCM16(make([]float32, 240)))
	conn.events <- realtime.Event{Type: realtime.EventResponseCreated}
	conn.events <- realtime.Event{Type: realtime.EventResponseAudioDelta, Delta: fragment}
	conn.events <- realtime.Event{Type: realtime.EventResponseTranscriptDone, Transcript: "Tell me about yourself?"}
	conn.events <- realtime.Event{Type: realtime.EventResponseDone, Response: &realtime.ResponseBody{}}

	// Candidate audio flows upstream.
	if err := ws.WriteMessage(websocket.BinaryMessage, audio.QuantizePCM16(make([]float32, 240))); err != nil {
		t.Fatal(err)
	}

	var sawAudio, sawTranscript, sawResult, sawEnded, sentStop bool
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && !(sawAudio && sawTranscript && sawResult && sawEnded) {
		ws.SetReadDeadline(time.Now().Add(time.Second))
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			break
		}
		if msgType == websocket.BinaryMessage {
			if len(data) == 480 {
				sawAudio = true
			}
			continue
		}
		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("bad frame: %s", data)
		}
		switch frame["type"] {
		case "transcript":
			if frame["text"] == "Tell me about yourself?" {
				sawTranscript = true
			}
		case "result":
			sawResult = true
		case "status":
			if frame["state"] == "ENDED" {
				sawEnded = true
			}
		}
		// Hang up once the utterance landed, the session must then score
		// what it has and report the result before ENDED.
		if sawTranscript && !sentStop {
			sentStop = true
			if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"stop"}`)); err != nil {
				t.Fatal(err)
			}
		}
	}

	if !sawAudio || !sawTranscript || !sawResult || !sawEnded {
		t.Errorf("frames: audio=%v transcript=%v result=%v ended=%v", sawAudio, sawTranscript, sawResult, sawEnded)
	}

	conn.mu.Lock()
	upstream := len(conn.appended)
	conn.mu.Unlock()
	if upstream != 1 {
		t.Errorf("upstream audio frames = %d, want 1", upstream)
	}
}

func TestAPI_AttachUnknownSession(t *testing.T) {
	api := newTestAPI(t, newFakeConn())
	srv := httptest.NewServer(api.NewRouter())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/unknown/audio"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatal(err)
	}
	if frame["type"] != "error" {
		t.Errorf("frame = %s", data)
	}
}
