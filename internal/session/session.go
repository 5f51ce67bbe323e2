package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ai-interview-session-service/internal/audio"
	"ai-interview-session-service/internal/models"
	"ai-interview-session-service/internal/observability/logging"
	"ai-interview-session-service/internal/observability/metrics"
	"ai-interview-session-service/internal/playback"
	"ai-interview-session-service/internal/realtime"
	"ai-interview-session-service/internal/transcript"
)

// Dialer opens a realtime connection. Injected so tests can substitute a
// fake conn.
type Dialer func(ctx context.Context, opts realtime.Options) (realtime.Conn, error)

// Submitter scores a finished interview and persists the result.
type Submitter interface {
	Submit(ctx context.Context, cfg models.SessionConfig, entries []models.TranscriptEntry, questionCount int) (models.InterviewResult, error)
}

// EventPublisher emits transcript and lifecycle events to the bus.
type EventPublisher interface {
	PublishTranscriptFinal(ctx context.Context, ev models.TranscriptFinalEvent) error
	PublishLifecycle(ctx context.Context, ev models.SessionLifecycleEvent) error
}

// Notifier receives session-side updates destined for the connected client.
// Calls arrive from the session's run loop and must not block for long.
type Notifier interface {
	OnStateChange(state State)
	OnTranscriptEntry(entry models.TranscriptEntry)
	OnPartial(speaker models.Speaker, text string)
	OnQuestionCount(n int)
	OnResult(result models.InterviewResult)
	OnError(err error)
}

// NopNotifier discards all updates.
type NopNotifier struct{}

func (NopNotifier) OnStateChange(State)                      {}
func (NopNotifier) OnTranscriptEntry(models.TranscriptEntry) {}
func (NopNotifier) OnPartial(models.Speaker, string)         {}
func (NopNotifier) OnQuestionCount(int)                      {}
func (NopNotifier) OnResult(models.InterviewResult)          {}
func (NopNotifier) OnError(error)                            {}

// Params assemble a session's collaborators. Zero-value optional fields get
// defaults from NewSession.
type Params struct {
	Config    models.SessionConfig
	Dial      Dialer
	Sink      playback.Sink
	Submitter Submitter
	Publisher EventPublisher
	Notifier  Notifier

	Classifier transcript.Classifier

	// Grace windows between an end condition and the actual shutdown, so
	// the agent's closing words finish playing.
	QuestionGrace time.Duration
	ToolCallGrace time.Duration
}

const (
	defaultQuestionGrace = 2 * time.Second
	defaultToolCallGrace = 1500 * time.Millisecond
)

// Session is one live interview. Create with NewSession, drive with Start,
// feed microphone audio with PushAudio, observe via the Notifier and
// Snapshot.
type Session struct {
	cfg      models.SessionConfig
	dial     Dialer
	queue    *playback.Queue
	codec    *audio.Codec
	agg      *transcript.Aggregator
	classify transcript.Classifier
	submit   Submitter
	pub      EventPublisher
	notify   Notifier
	log      zerolog.Logger
	metrics  *metrics.Metrics

	questionGrace time.Duration
	toolCallGrace time.Duration

	conn      realtime.Conn
	state     atomic.Int32
	questions atomic.Int32
	startedAt time.Time

	stopCh chan struct{}
	done   chan struct{}

	mu         sync.Mutex
	result     *models.InterviewResult
	endTrigger string
	endReason  string
	lastErr    error
}

// Snapshot is a point-in-time view of a session for status endpoints.
type Snapshot struct {
	SessionID     string                   `json:"sessionId"`
	State         string                   `json:"state"`
	QuestionCount int                      `json:"questionCount"`
	ElapsedMs     int64                    `json:"elapsedMs"`
	TimeLimitMs   int64                    `json:"timeLimitMs"`
	AgentSpeaking bool                     `json:"agentSpeaking"`
	Transcript    []models.TranscriptEntry `json:"transcript"`
	EndTrigger    string                   `json:"endTrigger,omitempty"`
	EndReason     string                   `json:"endReason,omitempty"`
	Error         string                   `json:"error,omitempty"`
}

func NewSession(p Params) *Session {
	if p.Notifier == nil {
		p.Notifier = NopNotifier{}
	}
	if p.Classifier == nil {
		p.Classifier = transcript.DefaultClassifier
	}
	if p.QuestionGrace <= 0 {
		p.QuestionGrace = defaultQuestionGrace
	}
	if p.ToolCallGrace <= 0 {
		p.ToolCallGrace = defaultToolCallGrace
	}
	return &Session{
		cfg:           p.Config,
		dial:          p.Dial,
		queue:         playback.NewQueue(p.Sink),
		codec:         audio.NewCodec(),
		agg:           transcript.NewAggregator(),
		classify:      p.Classifier,
		submit:        p.Submitter,
		pub:           p.Publisher,
		notify:        p.Notifier,
		log:           logging.WithSession(p.Config.SessionID),
		metrics:       metrics.DefaultMetrics,
		questionGrace: p.QuestionGrace,
		toolCallGrace: p.ToolCallGrace,
		stopCh:        make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Done is closed once the session reaches ENDED.
func (s *Session) Done() <-chan struct{} { return s.done }

// Result returns the scored outcome, nil until analysis completes.
func (s *Session) Result() *models.InterviewResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Err returns the terminal error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Snapshot captures the session's current status.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	trigger := s.endTrigger
	reason := s.endReason
	lastErr := s.lastErr
	s.mu.Unlock()

	snap := Snapshot{
		SessionID:     s.cfg.SessionID,
		State:         s.State().String(),
		QuestionCount: int(s.questions.Load()),
		TimeLimitMs:   s.cfg.TimeLimit.Milliseconds(),
		AgentSpeaking: s.queue.Active(),
		Transcript:    s.agg.Entries(),
		EndTrigger:    trigger,
		EndReason:     reason,
	}
	if !s.startedAt.IsZero() {
		snap.ElapsedMs = time.Since(s.startedAt).Milliseconds()
	}
	if lastErr != nil {
		snap.Error = lastErr.Error()
	}
	return snap
}

// Start dials the realtime endpoint, configures the conversation and kicks
// off the run loop. Returns once the session is ACTIVE or failed to connect.
func (s *Session) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		return ErrAlreadyStarted
	}
	s.notify.OnStateChange(StateConnecting)
	s.log.Info().Str("model", s.cfg.Model).Msg("connecting realtime session")

	conn, err := s.dial(ctx, realtime.Options{
		APIKey: s.cfg.APIKey,
		Model:  s.cfg.Model,
	})
	if err != nil {
		s.failStart(fmt.Errorf("dialing realtime endpoint: %w", err))
		return err
	}
	s.conn = conn

	if err := conn.UpdateSession(s.buildSettings()); err != nil {
		conn.Close()
		s.failStart(fmt.Errorf("configuring realtime session: %w", err))
		return err
	}
	// First response is the agent's greeting.
	if err := conn.CreateResponse(); err != nil {
		conn.Close()
		s.failStart(fmt.Errorf("requesting greeting: %w", err))
		return err
	}

	s.startedAt = time.Now()
	s.state.Store(int32(StateActive))
	s.notify.OnStateChange(StateActive)
	s.metrics.RecordSessionStart()
	s.publishLifecycle("session.started", "", 0)
	s.log.Info().Msg("session active")

	go s.run()
	return nil
}

func (s *Session) failStart(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.state.Store(int32(StateEnded))
	s.notify.OnError(err)
	s.notify.OnStateChange(StateEnded)
	close(s.done)
}

// PushAudio feeds raw little-endian PCM16 microphone samples captured at
// sourceRate into the conversation.
func (s *Session) PushAudio(pcm []byte, sourceRate int) error {
	if s.State() != StateActive {
		return ErrNotActive
	}
	encoded, err := s.codec.EncodePCM16(pcm, sourceRate)
	if err != nil {
		return err
	}
	s.metrics.RecordAudioIn(len(pcm))
	return s.conn.AppendAudio(encoded)
}

// Stop requests a graceful shutdown on behalf of the client.
func (s *Session) Stop() {
	select {
	case s.stopCh <- struct{}{}:
	default:
	}
}

// runState is the loop-local mutable state of the event pump.
type runState struct {
	responseActive bool
	graceC         <-chan time.Time
	graceTrigger   string
	graceReason    string
}

func (s *Session) run() {
	limit := time.NewTimer(s.cfg.TimeLimit)
	defer limit.Stop()

	rs := &runState{}
	trigger, reason := "", ""

	for trigger == "" {
		select {
		case <-s.stopCh:
			trigger, reason = TriggerClient, "stopped by client"
		case <-limit.C:
			trigger, reason = TriggerTimeLimit, "time limit reached"
		case <-rs.graceC:
			trigger, reason = rs.graceTrigger, rs.graceReason
		case ev, ok := <-s.conn.Events():
			if !ok {
				trigger = TriggerConnection
				if err := s.conn.Err(); err != nil {
					s.setErr(&ConnectionError{Err: err})
					reason = "connection error"
				} else {
					reason = "connection closed"
				}
				continue
			}
			s.handleEvent(ev, rs)
		}
	}

	s.finish(trigger, reason)
}

func (s *Session) handleEvent(ev realtime.Event, rs *runState) {
	switch ev.Type {
	case realtime.EventResponseCreated:
		rs.responseActive = true

	// Trailing fragments of a cancelled response arrive after the barge-in
	// cleared the in-flight flag; they must not reach playback or the
	// transcript.
	case realtime.EventResponseAudioDelta:
		if rs.responseActive {
			s.queue.Enqueue(ev.Delta)
		}

	case realtime.EventResponseTranscriptDelta:
		if rs.responseActive {
			s.agg.AppendFragment(models.SpeakerAgent, ev.Delta)
			s.notify.OnPartial(models.SpeakerAgent, s.agg.Partial(models.SpeakerAgent))
		}

	case realtime.EventResponseTranscriptDone:
		if rs.responseActive {
			s.finalizeUtterance(models.SpeakerAgent, ev.Transcript, rs)
		}

	case realtime.EventInputTranscriptDone:
		s.finalizeUtterance(models.SpeakerCandidate, ev.Transcript, rs)

	case realtime.EventSpeechStarted:
		if rs.responseActive {
			s.bargeIn(rs)
		}

	case realtime.EventSpeechStopped:
		s.log.Debug().Msg("candidate stopped speaking")

	case realtime.EventContentPartDone:
		// The audio content finishes slightly before response.done. Speech
		// in that window is a fresh turn, not a barge-in.
		rs.responseActive = false

	case realtime.EventResponseCancelled:
		rs.responseActive = false

	case realtime.EventResponseDone:
		rs.responseActive = false
		s.checkEndToolCall(ev, rs)

	case realtime.EventError:
		if ev.Error != nil {
			s.log.Warn().
				Str("code", ev.Error.Code).
				Str("message", ev.Error.Message).
				Msg("realtime error event")
		}
	}
}

// bargeIn handles the candidate starting to speak over the agent: drop all
// pending playback, cancel the in-flight response and throw away its
// unfinished transcript so it never reaches the record.
func (s *Session) bargeIn(rs *runState) {
	s.log.Debug().Msg("barge-in, cancelling active response")
	s.queue.Flush()
	if err := s.conn.CancelResponse(); err != nil {
		s.log.Warn().Err(err).Msg("cancelling response")
	}
	s.agg.Discard(models.SpeakerAgent)
	rs.responseActive = false
	s.metrics.RecordInterruption()
}

func (s *Session) finalizeUtterance(speaker models.Speaker, fullText string, rs *runState) {
	entry, ok := s.agg.Finalize(speaker, fullText)
	if !ok {
		return
	}
	s.notify.OnTranscriptEntry(entry)
	s.publishTranscriptFinal(entry)

	if speaker != models.SpeakerAgent || !s.classify(entry.Text) {
		return
	}
	n := int(s.questions.Add(1))
	s.metrics.RecordQuestion()
	s.notify.OnQuestionCount(n)
	s.log.Info().Int("questions", n).Msg("question asked")

	if n >= s.cfg.TargetQuestions && rs.graceC == nil {
		rs.graceC = time.After(s.questionGrace)
		rs.graceTrigger = TriggerQuestionCount
		rs.graceReason = fmt.Sprintf("%d questions asked", n)
	}
}

// checkEndToolCall inspects a completed response for the end_interview
// call. The model's own count overrides the heuristic one, and the tool
// call preempts any pending question-count grace window.
func (s *Session) checkEndToolCall(ev realtime.Event, rs *runState) {
	var args realtime.EndInterviewArgs
	found, err := ev.Response.FunctionCall(realtime.EndInterviewTool, &args)
	if err != nil {
		// A call we cannot decode must not end the interview.
		s.log.Warn().Err(err).Msg("malformed end_interview arguments")
		return
	}
	if !found {
		return
	}
	if args.QuestionsAsked > 0 {
		s.questions.Store(int32(args.QuestionsAsked))
		s.notify.OnQuestionCount(args.QuestionsAsked)
	}
	s.log.Info().Str("reason", args.Reason).Msg("agent requested end of interview")
	rs.graceC = time.After(s.toolCallGrace)
	rs.graceTrigger = TriggerToolCall
	rs.graceReason = args.Reason
}

// finish tears the session down and runs scoring. Uses a fresh context so a
// disconnected client cannot abort the analysis.
func (s *Session) finish(trigger, reason string) {
	if !s.state.CompareAndSwap(int32(StateActive), int32(StateEnding)) {
		return
	}
	s.mu.Lock()
	s.endTrigger = trigger
	s.endReason = reason
	s.mu.Unlock()
	s.notify.OnStateChange(StateEnding)
	s.log.Info().Str("trigger", trigger).Str("reason", reason).Msg("session ending")

	s.queue.Flush()
	if err := s.conn.Close(); err != nil {
		s.log.Debug().Err(err).Msg("closing realtime connection")
	}

	questionCount := int(s.questions.Load())
	entries := s.agg.Entries()
	duration := time.Since(s.startedAt)
	s.metrics.RecordSessionEnd(s.Err() == nil, trigger, duration.Seconds())
	s.publishLifecycle("session.ended", trigger, questionCount)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if len(entries) == 0 {
		s.setErr(ErrEmptyTranscript)
		s.notify.OnError(ErrEmptyTranscript)
	} else if s.submit != nil {
		result, err := s.submit.Submit(ctx, s.cfg, entries, questionCount)
		if err != nil {
			s.setErr(fmt.Errorf("submitting result: %w", err))
			s.notify.OnError(err)
		} else {
			s.mu.Lock()
			s.result = &result
			s.mu.Unlock()
			s.notify.OnResult(result)
		}
	}

	s.state.Store(int32(StateEnded))
	s.notify.OnStateChange(StateEnded)
	s.log.Info().
		Dur("duration", duration).
		Int("questions", questionCount).
		Int("entries", len(entries)).
		Msg("session ended")
	close(s.done)
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr == nil {
		s.lastErr = err
	}
}

func (s *Session) publishTranscriptFinal(entry models.TranscriptEntry) {
	if s.pub == nil {
		return
	}
	ev := models.TranscriptFinalEvent{
		EventType: "transcript.final",
		SessionID: s.cfg.SessionID,
		Speaker:   entry.Speaker,
		Text:      entry.Text,
		Timestamp: entry.Timestamp.UnixMilli(),
	}
	if err := s.pub.PublishTranscriptFinal(context.Background(), ev); err != nil {
		s.log.Warn().Err(err).Msg("publishing transcript event")
	}
}

func (s *Session) publishLifecycle(eventType, endReason string, questionCount int) {
	if s.pub == nil {
		return
	}
	ev := models.SessionLifecycleEvent{
		EventType:     eventType,
		SessionID:     s.cfg.SessionID,
		Role:          s.cfg.Role,
		Organization:  s.cfg.Organization,
		QuestionCount: questionCount,
		EndReason:     endReason,
		Timestamp:     time.Now().UnixMilli(),
	}
	if err := s.pub.PublishLifecycle(context.Background(), ev); err != nil {
		s.log.Warn().Err(err).Msg("publishing lifecycle event")
	}
}

func (s *Session) buildSettings() realtime.SessionSettings {
	return realtime.SessionSettings{
		Modalities:              []string{"text", "audio"},
		Instructions:            buildInstructions(s.cfg),
		Voice:                   s.cfg.Voice,
		InputAudioFormat:        "pcm16",
		OutputAudioFormat:       "pcm16",
		InputAudioTranscription: &realtime.TranscriptionConfig{Model: "whisper-1"},
		TurnDetection:           realtime.DefaultTurnDetection(),
		Tools:                   []realtime.Tool{realtime.EndInterviewToolSpec()},
		ToolChoice:              "auto",
	}
}

// Long job descriptions are cut down; the first part is enough to steer
// question selection.
const maxInstructionsJD = 1500

func buildInstructions(cfg models.SessionConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional interviewer conducting a live voice interview for the %s position at %s. ", cfg.Role, cfg.Organization)
	if jd := truncate(cfg.JobDescription, maxInstructionsJD); jd != "" {
		fmt.Fprintf(&b, "Job description: %s. ", jd)
	}
	fmt.Fprintf(&b,
		"Start with a very brief greeting, then ask exactly %d interview questions relevant to the role, one at a time. "+
			"Keep your questions short and conversational. Wait for the candidate to finish answering before moving on. "+
			"Do not answer the questions yourself and do not coach the candidate. "+
			"After the candidate answers your final question, thank them briefly and call the %s function with how many questions you asked.",
		cfg.TargetQuestions, realtime.EndInterviewTool)
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
