package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"ai-interview-session-service/internal/audio"
	"ai-interview-session-service/internal/models"
	"ai-interview-session-service/internal/observability/logging"
	"ai-interview-session-service/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	// The bridge is meant to sit behind the product's own origin checks.
	CheckOrigin: func(*http.Request) bool { return true },
}

// attachAudio upgrades to a websocket and binds the client to its session.
// Inbound binary frames carry little-endian PCM16 microphone audio at the
// sample rate given by the "rate" query parameter. Outbound binary frames
// carry wire-rate PCM16 playback audio; outbound text frames are JSON
// status, transcript and result messages.
func (a *API) attachAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	log := logging.WithSession(id)

	sourceRate := audio.WireRate
	if v := r.URL.Query().Get("rate"); v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil || rate <= 0 {
			writeError(w, http.StatusBadRequest, "invalid sample rate")
			return
		}
		sourceRate = rate
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	bridge := newClientBridge(conn)
	sess, err := a.manager.Attach(r.Context(), id, bridge, bridge)
	if err != nil {
		bridge.sendError(err.Error())
		conn.Close()
		return
	}
	log.Info().Int("rate", sourceRate).Msg("client attached")

	go func() {
		<-sess.Done()
		// Give the final frames a moment to flush before closing.
		time.Sleep(100 * time.Millisecond)
		bridge.close()
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("client read ended")
			}
			sess.Stop()
			return
		}
		switch msgType {
		case websocket.BinaryMessage:
			if err := sess.PushAudio(data, sourceRate); err != nil && err != session.ErrNotActive {
				log.Warn().Err(err).Msg("forwarding client audio")
			}
		case websocket.TextMessage:
			var cmd clientCommand
			if err := json.Unmarshal(data, &cmd); err != nil {
				continue
			}
			if cmd.Type == "stop" {
				sess.Stop()
			}
		}
	}
}

// clientBridge is the per-connection adapter between a session and its
// websocket client. It is both the playback sink and the notifier; all
// writes go through one mutex.
type clientBridge struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func newClientBridge(conn *websocket.Conn) *clientBridge {
	return &clientBridge{conn: conn}
}

// Play streams one playback fragment to the client, then paces itself to
// real time so a flush can still cut off audio the client has not received.
func (b *clientBridge) Play(ctx context.Context, samples []float32) error {
	if err := b.writeBinary(audio.QuantizePCM16(samples)); err != nil {
		return err
	}
	duration := time.Duration(len(samples)) * time.Second / audio.WireRate
	t := time.NewTimer(duration)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		b.sendJSON(map[string]any{"type": "playback.clear"})
		return ctx.Err()
	}
}

func (b *clientBridge) OnStateChange(st session.State) {
	b.sendJSON(map[string]any{"type": "status", "state": st.String()})
}

func (b *clientBridge) OnTranscriptEntry(entry models.TranscriptEntry) {
	b.sendJSON(map[string]any{
		"type":      "transcript",
		"speaker":   entry.Speaker,
		"text":      entry.Text,
		"timestamp": entry.Timestamp.UnixMilli(),
	})
}

func (b *clientBridge) OnPartial(speaker models.Speaker, text string) {
	b.sendJSON(map[string]any{"type": "partial", "speaker": speaker, "text": text})
}

func (b *clientBridge) OnQuestionCount(n int) {
	b.sendJSON(map[string]any{"type": "questions", "count": n})
}

func (b *clientBridge) OnResult(result models.InterviewResult) {
	b.sendJSON(map[string]any{"type": "result", "result": result})
}

func (b *clientBridge) OnError(err error) {
	b.sendError(err.Error())
}

func (b *clientBridge) sendError(message string) {
	b.sendJSON(map[string]any{"type": "error", "message": message})
}

func (b *clientBridge) sendJSON(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	_ = b.conn.WriteMessage(websocket.TextMessage, payload)
}

func (b *clientBridge) writeBinary(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return websocket.ErrCloseSent
	}
	return b.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (b *clientBridge) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	_ = b.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	_ = b.conn.Close()
}

// clientCommand is a JSON text frame from the client.
type clientCommand struct {
	Type string `json:"type"`
}
