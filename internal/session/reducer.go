package session

import (
	"regexp"
	"strings"

	"GameForge/internal/event"
)

// Fixed follow-up suggestions substituted when a suggestions payload
// contains no parseable bullet lines. The list is never empty.
var fallbackSuggestions = []string{
	"Add sound effects",
	"Change colors to neon theme",
	"Increase difficulty",
	"Add particle effects",
	"Create power-ups",
	"Add multiplayer mode",
}

// Progressive build log lines surfaced while code chunks stream in.
var buildSteps = []string{
	"🔧 Setting up HTML structure",
	"🎨 Adding CSS styling and animations",
	"⚡ Implementing game logic",
	"🎮 Setting up event handlers",
}

// Build log shown once the final code artifact has arrived.
var buildDone = []string{
	"✅ HTML structure created",
	"✅ CSS styling applied",
	"✅ JavaScript logic implemented",
	"✅ Game mechanics configured",
	"🎮 Game ready to play!",
}

var (
	bulletLineRe   = regexp.MustCompile(`^[-*]\s+(.+)`)
	numberedLineRe = regexp.MustCompile(`^\d+\.\s+(.+)`)
	commandWrapRe  = regexp.MustCompile(`<(\w+)>([^<]+)<`)
)

// Apply folds one event into the session and returns the new state. It is
// a pure function: the input session is never modified, every event
// category maps to a deterministic transition, and unknown categories are
// absorbed as no-ops. Apply never fails.
func Apply(s Session, ev event.Event) Session {
	switch ev := ev.(type) {
	case event.Status:
		s.Kind = decideKind(s.Kind, OpGenerating)
		if ev.State == "thinking" {
			s.Phase = PhaseThinking
		} else {
			s.Phase = PhaseGenerating
		}
		return s

	case event.Explanation:
		s.Kind = decideKind(s.Kind, OpGenerating)
		s.Phase = PhaseOutlining
		s.Tip = "Designing your game concept..."
		if text := strings.TrimSpace(ev.Text); text != "" {
			s.Narrative = cloneAppend(s.Narrative, ev.Text)
		}
		return s

	case event.Features:
		s.Kind = decideKind(s.Kind, OpGenerating)
		if text := strings.TrimSpace(ev.Text); text != "" {
			s.Narrative = cloneAppend(s.Narrative, "## Features\n\n"+ev.Text)
		}
		return s

	case event.Command:
		if m := commandWrapRe.FindStringSubmatch(ev.Text); m != nil {
			s.Tip = m[2]
			s.Narrative = cloneAppend(s.Narrative, m[2])
		} else if text := strings.TrimSpace(ev.Text); text != "" {
			s.Narrative = cloneAppend(s.Narrative, ev.Text)
		}
		return s

	case event.CodeChunk:
		if strings.TrimSpace(ev.Text) == "" {
			return s
		}
		s.Phase = PhaseGenerating
		s.Tip = "Writing your game code..."
		if !s.Artifact.Streaming {
			// First chunk since the artifact was last cleared: replace
			// the retained content instead of appending to it.
			s.Artifact.Content = ev.Text
			s.BuildLog = []string{buildSteps[0]}
		} else {
			s.Artifact.Content += ev.Text
			s.BuildLog = cloneStrings(s.BuildLog)
		}
		s.Artifact.Streaming = true
		s.Artifact.Retained = false
		s.Artifact.Kind = classify(s.Artifact.Content)
		s.BuildLog = advanceBuildLog(s.BuildLog, ev.Text)
		return s

	case event.Suggestions:
		s.Suggest = SuggestionList{Items: parseSuggestions(ev.Text)}
		s.Phase = PhaseCompleted
		s.Tip = "Your game is ready! Try the suggestions below."
		return s

	case event.Code:
		s.Kind = decideKind(s.Kind, OpGenerating)
		content := joinBundle(ev.HTML, ev.CSS, ev.JS)
		s.Artifact = Artifact{Content: content, Kind: classify(content)}
		s.BuildLog = cloneStrings(buildDone)
		s.Active = false
		s.Phase = PhaseCompleted
		s.Tip = "Your game is ready to play!"
		return s

	case event.Error:
		return fail(s, ev.Message)

	case event.PublishStatus:
		s.Kind = decideKind(s.Kind, OpPublishing)
		switch ev.State {
		case "validating":
			s.Phase = PhaseValidating
			s.Tip = "Checking if a game has been created..."
		case "preparing":
			s.Phase = PhasePreparing
			s.Tip = "Game found! Preparing for deployment..."
		case "deploying":
			s.Phase = PhaseDeploying
			s.Tip = "Deploying to hosting..."
		}
		return s

	case event.PublishSuccess:
		s.Kind = decideKind(s.Kind, OpPublishing)
		s.Publish = &PublishResult{LiveURL: ev.LiveURL, SiteName: ev.SiteName}
		s.Active = false
		s.Phase = PhasePublished
		s.Tip = "Your game is now live!"
		if msg := strings.TrimSpace(ev.Message); msg != "" {
			s.Narrative = cloneAppend(s.Narrative, ev.Message)
		}
		return s

	case event.PublishError:
		s.Kind = decideKind(s.Kind, OpPublishing)
		return fail(s, ev.Message)

	case event.PublishMessage:
		s.Kind = decideKind(s.Kind, OpPublishing)
		if text := strings.TrimSpace(ev.Text); text != "" {
			s.Narrative = cloneAppend(s.Narrative, ev.Text)
		}
		return s

	default:
		return s
	}
}

// decideKind sets the operation kind once per session; the first event to
// imply one wins and later attempts are no-ops.
func decideKind(current, proposed OperationKind) OperationKind {
	if current != OpNone {
		return current
	}
	return proposed
}

func fail(s Session, msg string) Session {
	s.LastError = msg
	s.Active = false
	s.Phase = PhaseError
	s.Tip = ""
	s.Narrative = cloneAppend(s.Narrative, "❌ Error: "+msg)
	return s
}

// classify tags the cumulative artifact content. Precedence is fixed:
// executable-logic tokens beat styling tokens beat the markup default.
// The heuristic is approximate and can mis-classify mixed fragments;
// the precedence order is the contract, not semantic exactness.
func classify(content string) ArtifactKind {
	switch {
	case strings.Contains(content, "function") ||
		strings.Contains(content, "const ") ||
		strings.Contains(content, "let ") ||
		strings.Contains(content, "addEventListener"):
		return KindLogic
	case strings.Contains(content, "color:") ||
		strings.Contains(content, "background:") ||
		strings.Contains(content, "font-"):
		return KindStyle
	default:
		return KindMarkup
	}
}

// advanceBuildLog appends the build steps whose markers appear in the
// incoming chunk, each at most once.
func advanceBuildLog(log []string, chunk string) []string {
	if strings.Contains(chunk, "style") || strings.Contains(chunk, "css") || strings.Contains(chunk, "color:") {
		log = appendOnce(log, buildSteps[1])
	}
	if strings.Contains(chunk, "function") || strings.Contains(chunk, "const ") || strings.Contains(chunk, "let ") {
		log = appendOnce(log, buildSteps[2])
	}
	if strings.Contains(chunk, "addEventListener") || strings.Contains(chunk, "keydown") || strings.Contains(chunk, "click") {
		log = appendOnce(log, buildSteps[3])
	}
	return log
}

func appendOnce(log []string, step string) []string {
	for _, s := range log {
		if s == step {
			return log
		}
	}
	return append(log, step)
}

// parseSuggestions extracts bulleted or numbered lines from a raw
// suggestions payload, markers stripped, in source order. Payloads with
// no such lines yield the fixed fallback list so the result is never
// empty.
func parseSuggestions(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if m := bulletLineRe.FindStringSubmatch(line); m != nil {
			out = append(out, strings.TrimSpace(m[1]))
		} else if m := numberedLineRe.FindStringSubmatch(line); m != nil {
			out = append(out, strings.TrimSpace(m[1]))
		}
	}
	if len(out) == 0 {
		return cloneStrings(fallbackSuggestions)
	}
	return out
}

func joinBundle(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}

// cloneAppend appends fragments without sharing the backing array with
// the input slice, keeping Apply free of aliasing side effects.
func cloneAppend(ss []string, more ...string) []string {
	out := make([]string, 0, len(ss)+len(more))
	out = append(out, ss...)
	return append(out, more...)
}

func cloneStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	out := make([]string, len(ss))
	copy(out, ss)
	return out
}
