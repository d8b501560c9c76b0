// Package chat drives one conversation through the generate, render and
// optional narration steps, keeping the message history in memory.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ihavenoenemy/mathcast/internal/logging"
)

type State string

const (
	StateInput      State = "input"
	StateGenerating State = "generating"
	StateRendering  State = "rendering"
	StateAudio      State = "audio"
	StateComplete   State = "complete"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var (
	// ErrBusy is returned when a turn is submitted while another is running.
	ErrBusy = errors.New("chat: a request is already in progress")
	// ErrEmptyTopic is returned for a blank submission.
	ErrEmptyTopic = errors.New("chat: topic is required")
)

// Message is one entry of the session history. It is never persisted.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	VideoPath string    `json:"videoPath,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Transition is reported to the observer on every state change.
type Transition struct {
	From State
	To   State
}

type Option func(*Session)

// WithObserver registers fn to receive every state transition.
func WithObserver(fn func(Transition)) Option {
	return func(s *Session) { s.observer = fn }
}

// WithNarration enables the audio step when the backend implements Narrator.
func WithNarration(enabled bool) Option {
	return func(s *Session) { s.narrate = enabled }
}

// WithDifficulty sets the difficulty sent with every generation request.
func WithDifficulty(d string) Option {
	return func(s *Session) { s.difficulty = d }
}

// WithQuality sets the render quality sent with every render request.
func WithQuality(q string) Option {
	return func(s *Session) { s.quality = q }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logging.WithComponent(logging.OrDiscard(logger), "chat") }
}

// Session owns the conversation state. It is safe for concurrent use;
// turns are serialized by rejecting submissions while one is loading.
type Session struct {
	backend    Backend
	observer   func(Transition)
	narrate    bool
	difficulty string
	quality    string
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	messages []Message
	state    State
	loading  bool
	epoch    uint64
}

func NewSession(backend Backend, opts ...Option) *Session {
	s := &Session{
		backend:    backend,
		difficulty: "advanced",
		quality:    "medium",
		logger:     logging.Discard(),
		now:        time.Now,
		state:      StateInput,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Messages returns a copy of the history.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Reset clears the history and returns to the input state. A turn still in
// flight keeps running but its results are dropped.
func (s *Session) Reset() {
	s.mu.Lock()
	from := s.state
	s.messages = nil
	s.state = StateInput
	s.loading = false
	s.epoch++
	s.mu.Unlock()

	s.notify(from, StateInput)
}

// Submit runs one full turn for topic. It returns the assistant message
// appended to the history, which carries the error text when a step fails.
func (s *Session) Submit(ctx context.Context, topic string) (*Message, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.loading = true
	epoch := s.epoch
	s.messages = append(s.messages, s.newMessage(RoleUser, topic, ""))
	s.mu.Unlock()

	logger := s.logger.With("topic", topic)

	s.advance(epoch, StateGenerating)
	gen, err := s.backend.Generate(ctx, topic, s.difficulty)
	if err != nil {
		logger.Warn("generation failed", "error", err)
		return s.fail(epoch, err)
	}

	s.advance(epoch, StateRendering)
	videoPath, err := s.backend.Render(ctx, gen.Script, s.quality)
	if err != nil {
		logger.Warn("render failed", "error", err)
		return s.fail(epoch, fmt.Errorf("Rendering failed: %w", err))
	}

	if n, ok := s.backend.(Narrator); ok && s.narrate {
		s.advance(epoch, StateAudio)
		videoPath, err = narrateVideo(ctx, n, gen.Explanation, videoPath)
		if err != nil {
			logger.Warn("narration failed", "error", err)
			return s.fail(epoch, err)
		}
	}

	msg := s.newMessage(RoleAssistant, gen.Explanation, videoPath)
	s.finish(epoch, StateComplete, msg)
	logger.Info("turn complete", "video_path", videoPath)
	return &msg, nil
}

func narrateVideo(ctx context.Context, n Narrator, text, videoPath string) (string, error) {
	audio, err := n.Narrate(ctx, text)
	if err != nil {
		return "", fmt.Errorf("Narration failed: %w", err)
	}
	out, err := n.Sync(ctx, videoPath, audio)
	if err != nil {
		return "", fmt.Errorf("Sync failed: %w", err)
	}
	return out, nil
}

func (s *Session) fail(epoch uint64, err error) (*Message, error) {
	msg := s.newMessage(RoleAssistant,
		fmt.Sprintf("Sorry, I encountered an error: %s. Please try again.", err), "")
	s.finish(epoch, StateInput, msg)
	return &msg, err
}

func (s *Session) advance(epoch uint64, to State) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	from := s.state
	s.state = to
	s.mu.Unlock()

	s.notify(from, to)
}

func (s *Session) finish(epoch uint64, to State, msg Message) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	from := s.state
	s.messages = append(s.messages, msg)
	s.state = to
	s.loading = false
	s.mu.Unlock()

	s.notify(from, to)
}

func (s *Session) notify(from, to State) {
	if s.observer != nil && from != to {
		s.observer(Transition{From: from, To: to})
	}
}

func (s *Session) newMessage(role Role, text, videoPath string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		VideoPath: videoPath,
		Timestamp: s.now(),
	}
}
