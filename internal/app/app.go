// Package app is the interactive terminal application: it owns one
// conversation's SessionController, drives the event transport, renders
// progress narration, and persists finalized messages.
package app

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"GameForge/internal/cache"
	"GameForge/internal/config"
	"GameForge/internal/event"
	"GameForge/internal/format"
	"GameForge/internal/history"
	"GameForge/internal/session"
	"GameForge/internal/stream"
	"GameForge/internal/telemetry"
)

// publishInstruction is the prompt that drives the publish sub-flow
// through the same streaming endpoint as generation.
const publishInstruction = "Publish my game to the web"

// App wires the session controller, transport, history store and
// telemetry into the chat loop.
type App struct {
	cfg      config.Config
	logger   *slog.Logger
	tracer   trace.Tracer
	meter    metric.Meter
	cleanup  func()
	store    *history.Store
	streamer stream.Streamer
	ctrl     *session.Controller
	client   *stream.Client

	cache   sync.Map
	convID  string
	running sync.WaitGroup

	// suggestions is written by the consuming goroutine and read by the
	// REPL goroutine, so it gets its own lock.
	mu          sync.Mutex
	suggestions []string
}

// New builds the application from configuration. An existing
// conversation is resumed when cfg.SessionID is set.
func New(cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := telemetry.InitLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	tracer, meter, cleanup, err := telemetry.InitTelemetry(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	store, err := history.Open(cfg.HistoryDB, logger)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to initialize history store: %w", err)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		tracer:  tracer,
		meter:   meter,
		cleanup: cleanup,
		store:   store,
		ctrl:    session.NewController(logger),
		client:  stream.NewClient(cfg.BaseURL, logger, tracer),
	}

	switch cfg.Transport {
	case config.TransportWS:
		a.streamer = stream.NewWSClient(cfg.WSURL, logger)
	default:
		a.streamer = a.client
	}

	if cfg.SessionID != "" {
		a.convID = cfg.SessionID
		transcript, err := store.LoadTranscript(cfg.SessionID)
		if err != nil {
			logger.Warn("failed to load conversation, starting fresh", "error", err)
		} else {
			for _, m := range transcript {
				a.ctrl.Append(m)
			}
			logger.Info("resumed conversation", "conversation_id", cfg.SessionID, "messages", len(transcript))
		}
	} else {
		a.convID = uuid.NewString()
		logger.Info("created new conversation", "conversation_id", a.convID)
	}

	if err := store.SaveConversation(a.convID, time.Now()); err != nil {
		logger.Warn("failed to register conversation", "error", err)
	}

	return a, nil
}

// Run starts the chat loop and blocks until the user quits.
func (a *App) Run() error {
	defer a.cleanup()
	defer a.store.Close()

	ctx := context.Background()

	fmt.Println("=== GameForge ===")
	fmt.Printf("Conversation: %s\n", a.convID)
	if !a.client.Healthy(ctx) {
		fmt.Println("Warning: agent service is not reachable at", a.cfg.BaseURL)
	}
	fmt.Println("Type /help for commands, /quit to exit")
	fmt.Println()
	fmt.Printf("Forge: %s\n\n", session.Greeting)

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := a.handleCommand(ctx, input)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
			}
			if quit {
				break
			}
			continue
		}

		a.startRequest(ctx, input)
	}

	a.streamer.Cancel()
	a.running.Wait()
	fmt.Println("Goodbye!")
	return nil
}

// handleCommand handles slash commands. It reports true when the
// application should exit.
func (a *App) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/publish":
		a.startRequest(ctx, publishInstruction)
		return false, nil

	case "/cancel":
		a.streamer.Cancel()
		a.ctrl.Cancel()
		fmt.Println("Cancelled.")
		return false, nil

	case "/suggestions":
		suggestions := a.currentSuggestions()
		if len(suggestions) == 0 {
			fmt.Println("No suggestions yet. Generate a game first.")
			return false, nil
		}
		fmt.Println("Try asking for:")
		for i, s := range suggestions {
			fmt.Printf("  %d. %s\n", i+1, s)
		}
		fmt.Println("Use /use <number> to send one.")
		return false, nil

	case "/use":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /use <number>")
		}
		suggestions := a.currentSuggestions()
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 1 || n > len(suggestions) {
			return false, fmt.Errorf("no suggestion numbered %s", parts[1])
		}
		a.startRequest(ctx, suggestions[n-1])
		return false, nil

	case "/history":
		for _, m := range a.ctrl.Transcript() {
			who := "Forge"
			if m.Role == session.RoleUser {
				who = "You"
			}
			fmt.Printf("%s: %s\n", who, format.Plain(m.Text))
		}
		return false, nil

	case "/clear":
		a.ctrl.Reset()
		fmt.Println("Session state cleared.")
		return false, nil

	case "/new-session":
		a.streamer.Cancel()
		a.ctrl.Cancel()
		a.running.Wait()
		a.convID = uuid.NewString()
		a.ctrl = session.NewController(a.logger)
		a.mu.Lock()
		a.suggestions = nil
		a.mu.Unlock()
		if err := a.store.SaveConversation(a.convID, time.Now()); err != nil {
			a.logger.Warn("failed to register conversation", "error", err)
		}
		fmt.Println("Started new conversation:", a.convID)
		return false, nil

	case "/help":
		fmt.Println("Available commands:")
		fmt.Println("  /publish            - Publish the current game")
		fmt.Println("  /cancel             - Cancel the in-flight request")
		fmt.Println("  /suggestions        - List follow-up suggestions")
		fmt.Println("  /use <number>       - Send a listed suggestion as the next prompt")
		fmt.Println("  /history            - Print the conversation transcript")
		fmt.Println("  /clear              - Clear the session state")
		fmt.Println("  /new-session        - Start a new conversation")
		fmt.Println("  /quit, /exit        - Exit")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s", parts[0])
	}
}

// startRequest begins a generation or publish session for the prompt and
// consumes the event stream in the background so the user can keep
// typing (notably /cancel).
func (a *App) startRequest(ctx context.Context, prompt string) {
	ctrl, convID := a.ctrl, a.convID

	key := cacheKeyFor(convID, prompt)
	if key != "" {
		if val, ok := a.cache.Load(key); ok {
			entry := val.(cache.Entry)
			a.logger.Info("cache hit", "key", key[:16])
			user := session.ChatMessage{
				ID:        uuid.NewString(),
				Role:      session.RoleUser,
				Text:      prompt,
				CreatedAt: time.Now(),
			}
			ctrl.Append(user)
			ctrl.Append(entry.Message)
			a.saveMessage(convID, user)
			a.printMessage(entry.Message)
			return
		}
	}

	if !ctrl.Start(prompt) {
		fmt.Println("A request is already running; /cancel it first.")
		return
	}

	// Start appended the user message; persist it right away.
	if transcript := ctrl.Transcript(); len(transcript) > 0 {
		a.saveMessage(convID, transcript[len(transcript)-1])
	}

	events := a.streamer.Stream(ctx, stream.Request{
		Prompt:    prompt,
		SessionID: convID,
		UserID:    a.cfg.UserID,
	})

	a.running.Add(1)
	go a.consume(ctx, ctrl, convID, events, key)
}

// consume folds the stream into the controller, rendering narration as
// the state advances and the finalized reply at the end. The controller
// and conversation ID are captured at start time so /new-session on the
// REPL goroutine cannot swap them out from under a draining stream.
func (a *App) consume(ctx context.Context, ctrl *session.Controller, convID string, events <-chan event.Event, cacheKey string) {
	defer a.running.Done()

	start := time.Now()
	var lastShown string

	for ev := range events {
		a.countEvent(ctx, ev)
		ctrl.Handle(ev)

		st := ctrl.State()
		summary := session.Narrate(st)
		if line := currentStep(summary); line != "" && line != lastShown {
			lastShown = line
			fmt.Printf("  … %s\n", line)
		}
	}

	a.recordDuration(ctx, time.Since(start))

	// A stream that ends while the session is still active never sent a
	// terminal event; recover to idle rather than staying stuck.
	if ctrl.State().Active {
		a.logger.Warn("stream ended without a terminal event")
		ctrl.Cancel()
		fmt.Println("\nThe stream ended unexpectedly; session reset.")
		return
	}

	msg, ok := ctrl.TakeFinalized()
	if !ok {
		return
	}

	a.printMessage(msg)

	a.rememberSuggestions(msg.Suggestions)
	if cacheKey != "" && msg.Status != nil && msg.Status.Completed {
		a.cache.Store(cacheKey, cache.Entry{Message: msg, StoredAt: time.Now()})
	}
	a.saveMessage(convID, msg)
}

// cacheKeyFor returns the reply-cache key for a prompt, or "" for
// prompts that must never be served from cache. Publishing deploys the
// game as a side effect, so replaying a stale success would skip the
// deployment entirely.
func cacheKeyFor(convID, prompt string) string {
	if prompt == publishInstruction {
		return ""
	}
	return cache.Key(convID, prompt)
}

func (a *App) rememberSuggestions(items []string) {
	if len(items) == 0 {
		return
	}
	a.mu.Lock()
	a.suggestions = append([]string(nil), items...)
	a.mu.Unlock()
}

func (a *App) currentSuggestions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.suggestions...)
}

func (a *App) saveMessage(convID string, msg session.ChatMessage) {
	if err := a.store.SaveMessage(convID, msg); err != nil {
		a.logger.Error("failed to save message", "error", err, "role", msg.Role)
	}
}

func (a *App) printMessage(msg session.ChatMessage) {
	fmt.Println()
	if msg.Status != nil && len(msg.Status.Bullets) > 0 {
		for _, b := range msg.Status.Bullets {
			fmt.Printf("  %s\n", b)
		}
	}
	if text := format.Plain(msg.Text); text != "" {
		fmt.Printf("Forge: %s\n", text)
	}
	if msg.Code != nil {
		fmt.Printf("[%s artifact, %d bytes, open the preview to play]\n", msg.Code.Kind, len(msg.Code.Content))
	}
	if len(msg.Suggestions) > 0 {
		fmt.Println("Try asking for:")
		for i, s := range msg.Suggestions {
			fmt.Printf("  %d. %s\n", i+1, s)
		}
	}
	fmt.Println()
}

// currentStep returns the in-progress line of a narration, or the tip of
// a terminal summary.
func currentStep(s session.StatusSummary) string {
	if len(s.Bullets) == 0 {
		return ""
	}
	last := s.Bullets[len(s.Bullets)-1]
	if s.Completed {
		return ""
	}
	return last
}

// countEvent records one streamed event in the per-category counter.
func (a *App) countEvent(ctx context.Context, ev event.Event) {
	name := metricName(ev)
	counter, err := a.meter.Int64Counter(
		name,
		metric.WithDescription(fmt.Sprintf("Streamed events counted as %s", name)),
	)
	if err != nil {
		a.logger.Warn("failed to create counter", "type", ev.Type(), "error", err)
		return
	}
	counter.Add(ctx, 1)
}

// metricName buckets all unrecognized categories together so a server
// that starts sending new event types cannot pollute (or collide with)
// the known per-category counters.
func metricName(ev event.Event) string {
	if _, ok := ev.(event.Unknown); ok {
		return "stream.events.unknown"
	}
	return fmt.Sprintf("stream.events.%s", ev.Type())
}

func (a *App) recordDuration(ctx context.Context, d time.Duration) {
	histogram, err := a.meter.Float64Histogram(
		"stream.request.duration",
		metric.WithDescription("Streaming request duration in milliseconds"),
	)
	if err == nil {
		histogram.Record(ctx, float64(d.Milliseconds()))
	}
}
