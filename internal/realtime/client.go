package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ai-interview-session-service/internal/observability/logging"
	"ai-interview-session-service/internal/observability/metrics"
)

// Conn is the session-facing surface of a realtime connection. Implemented
// by Client; faked in session tests.
type Conn interface {
	// Events delivers decoded server events. The channel is closed when the
	// connection terminates; Err reports why.
	Events() <-chan Event
	UpdateSession(settings SessionSettings) error
	AppendAudio(audio string) error
	CreateResponse() error
	CancelResponse() error
	Close() error
	Err() error
}

// Options configure a realtime dial.
type Options struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Client is a realtime websocket connection. Sends are serialized with a
// mutex; a single read loop decodes server events onto a buffered channel.
type Client struct {
	conn    *websocket.Conn
	events  chan Event
	writeMu sync.Mutex

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

var _ Conn = (*Client)(nil)

const eventBuffer = 256

// Dial connects to the realtime endpoint for the given model. Authentication
// travels in the websocket subprotocol list.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing realtime url: %w", err)
	}
	q := u.Query()
	q.Set("model", opts.Model)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{
		Subprotocols: []string{
			"realtime",
			"openai-insecure-api-key." + opts.APIKey,
			"openai-beta.realtime-v1",
		},
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("realtime dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime dial failed: %w", err)
	}

	c := &Client{
		conn:    conn,
		events:  make(chan Event, eventBuffer),
		log:     logging.WithComponent("realtime"),
		metrics: metrics.DefaultMetrics,
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Events() <-chan Event { return c.events }

// Err reports the terminal connection error, nil after a clean close.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.metrics.RecordRealtimeClose("clean")
				return
			}
			c.metrics.RecordRealtimeClose("error")
			c.setErr(fmt.Errorf("realtime read: %w", err))
			return
		}

		ev, err := DecodeEvent(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping undecodable server event")
			continue
		}
		c.metrics.RecordRealtimeEvent(ev.Type)

		if ev.Type == EventError && ev.Error != nil {
			c.metrics.RecordRealtimeError(ev.Error.Code)
			if ev.Error.Code == errCodeCancelNotActive {
				c.log.Debug().Msg("cancel raced a finished response")
				continue
			}
		}
		c.events <- ev
	}
}

func (c *Client) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *Client) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding client message: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("realtime write: %w", err)
	}
	return nil
}

// UpdateSession pushes session settings to the server.
func (c *Client) UpdateSession(settings SessionSettings) error {
	return c.send(sessionUpdateMessage{Type: "session.update", Session: settings})
}

// AppendAudio streams a base64 PCM fragment into the input buffer.
func (c *Client) AppendAudio(audio string) error {
	return c.send(audioAppendMessage{Type: "input_audio_buffer.append", Audio: audio})
}

// CreateResponse asks the model to produce the next response.
func (c *Client) CreateResponse() error {
	return c.send(responseCreateMessage{Type: "response.create"})
}

// CancelResponse aborts the in-flight response.
func (c *Client) CancelResponse() error {
	return c.send(responseCancelMessage{Type: "response.cancel"})
}

// Close sends a normal-closure frame and closes the socket. The read loop
// drains and closes the event channel on its own.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
