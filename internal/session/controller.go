package session

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"GameForge/internal/event"
)

// Controller owns one conversation: the single active session, the event
// fold driving it, and the transcript of finalized messages. One
// controller is constructed per conversation; there are no process-wide
// singletons.
//
// The fold itself is single-writer, but the transport goroutine delivers
// events while the caller reads state, so the controller serializes
// access with a mutex.
type Controller struct {
	mu         sync.Mutex
	logger     *slog.Logger
	sess       Session
	transcript []ChatMessage
	pending    bool
	finalized  []ChatMessage
	now        func() time.Time
}

// Greeting seeds a fresh transcript before the first user prompt.
const Greeting = "Hi! I'm Forge, your game creation companion. Describe the " +
	"game you want to build and I'll bring it to life with code. What kind " +
	"of game are you thinking of?"

// NewController creates a controller with a greeted, empty transcript.
func NewController(logger *slog.Logger) *Controller {
	c := &Controller{
		logger: logger,
		sess:   Session{Phase: PhaseIdle},
		now:    time.Now,
	}
	c.transcript = append(c.transcript, ChatMessage{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Text:      Greeting,
		CreatedAt: c.now(),
	})
	return c
}

// Start begins a new session for the given prompt. It reports false,
// leaving all state untouched, if a session is already active; the caller
// must cancel first. On success the user message is appended to the
// transcript and transient session fields are reset, while the previous
// artifact and suggestions are retained until the new session's events
// replace them.
func (c *Controller) Start(prompt string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess.Active {
		c.logger.Warn("rejected start while a session is active", "phase", c.sess.Phase)
		return false
	}

	c.transcript = append(c.transcript, ChatMessage{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Text:      prompt,
		CreatedAt: c.now(),
	})

	prev := c.sess
	c.sess = Session{
		Phase:  PhaseAnalyzing,
		Active: true,
		Tip:    "Analyzing your request...",
		Artifact: Artifact{
			Content:  prev.Artifact.Content,
			Kind:     prev.Artifact.Kind,
			Retained: prev.Artifact.Content != "",
		},
		Suggest: SuggestionList{
			Items:    cloneStrings(prev.Suggest.Items),
			Retained: len(prev.Suggest.Items) > 0,
		},
		BuildLog: cloneStrings(prev.BuildLog),
		Publish:  prev.Publish,
	}
	c.pending = true
	return true
}

// Handle folds one event into the active session. Events arriving after
// cancellation or a terminal phase are dropped. When the fold flips the
// session inactive, the accumulated reply is finalized exactly once.
func (c *Controller) Handle(ev event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.sess.Active {
		c.logger.Debug("dropping event for inactive session", "type", ev.Type())
		return
	}

	c.sess = Apply(c.sess, ev)
	if !c.sess.Active {
		c.finalize()
	}
}

// Cancel abandons the active session without producing a finalized
// message. The in-progress narrative, artifact and suggestions are
// discarded and the session returns to idle, ready for a new Start. The
// caller is responsible for aborting the transport as well.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sess = Session{Phase: PhaseIdle, Publish: c.sess.Publish}
	c.pending = false
}

// Reset returns the session to idle, keeping the transcript.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sess = Session{Phase: PhaseIdle}
	c.pending = false
}

// State returns a copy of the current session safe for the caller to
// hold across further events.
func (c *Controller) State() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copySession(c.sess)
}

// Transcript returns a copy of all chat messages so far, oldest first.
func (c *Controller) Transcript() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatMessage, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// Append adds an externally sourced message (history resume, cache hit)
// to the transcript.
func (c *Controller) Append(msg ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcript = append(c.transcript, msg)
}

// TakeFinalized pops the oldest newly finalized message, reporting false
// when none is waiting. It is the polling surface for callers that
// persist or render completed replies.
func (c *Controller) TakeFinalized() (ChatMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.finalized) == 0 {
		return ChatMessage{}, false
	}
	msg := c.finalized[0]
	c.finalized = c.finalized[1:]
	return msg, true
}

// finalize freezes the accumulated session state into one immutable
// assistant message. The pending flag guarantees a second terminal-shaped
// event cannot double-finalize. Caller holds c.mu.
func (c *Controller) finalize() {
	if !c.pending {
		return
	}
	c.pending = false

	summary := Narrate(c.sess)
	msg := ChatMessage{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Text:      strings.TrimSpace(strings.Join(c.sess.Narrative, "\n\n")),
		CreatedAt: c.now(),
		Status:    &summary,
	}

	if c.sess.Kind == OpGenerating && c.sess.Artifact.Content != "" && !c.sess.Artifact.Retained {
		msg.Code = &CodeSnapshot{Content: c.sess.Artifact.Content, Kind: c.sess.Artifact.Kind}
	}
	if len(c.sess.Suggest.Items) > 0 && !c.sess.Suggest.Retained {
		msg.Suggestions = cloneStrings(c.sess.Suggest.Items)
	}
	if c.sess.Phase == PhasePublished && c.sess.Publish != nil && msg.Text == "" {
		msg.Text = "🚀 Your game is live at " + c.sess.Publish.LiveURL
	}

	c.sess.Narrative = nil
	c.transcript = append(c.transcript, msg)
	c.finalized = append(c.finalized, msg)

	c.logger.Info("finalized assistant message",
		"phase", c.sess.Phase,
		"operation", c.sess.Kind.String(),
		"has_code", msg.Code != nil,
		"suggestions", len(msg.Suggestions))
}

func copySession(s Session) Session {
	s.Narrative = cloneStrings(s.Narrative)
	s.BuildLog = cloneStrings(s.BuildLog)
	s.Suggest.Items = cloneStrings(s.Suggest.Items)
	if s.Publish != nil {
		p := *s.Publish
		s.Publish = &p
	}
	return s
}
