// Package session owns the state of one in-flight generation or publish
// request: the event fold, the status narration derived from it, and the
// transcript of finalized chat messages.
package session

import "time"

// OperationKind distinguishes what the active session is doing. It is
// decided by the first event that implies one and never changes for the
// rest of the session.
type OperationKind int

const (
	OpNone OperationKind = iota
	OpGenerating
	OpPublishing
)

func (k OperationKind) String() string {
	switch k {
	case OpGenerating:
		return "generating"
	case OpPublishing:
		return "publishing"
	default:
		return "none"
	}
}

// Phase is the current step label within a session's pipeline. Generation
// sessions walk the analyzing..previewing set; publish sessions walk the
// validating..deploying set. Both terminate in completed/published or
// PhaseError.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseAnalyzing  Phase = "analyzing"
	PhaseThinking   Phase = "thinking"
	PhaseOutlining  Phase = "outlining"
	PhaseGenerating Phase = "generating"
	PhasePreviewing Phase = "previewing"
	PhaseCompleted  Phase = "completed"
	PhaseValidating Phase = "validating"
	PhasePreparing  Phase = "preparing"
	PhaseDeploying  Phase = "deploying"
	PhasePublished  Phase = "published"
	PhaseError      Phase = "error"
)

// ArtifactKind classifies the accumulated code artifact by its dominant
// content. The classification is a keyword heuristic with fixed
// precedence (logic over style over markup) and is approximate by design.
type ArtifactKind string

const (
	KindMarkup ArtifactKind = "markup"
	KindStyle  ArtifactKind = "style"
	KindLogic  ArtifactKind = "logic"
)

// Artifact is the incrementally assembled game source.
//
// Retained marks content carried over from the previous session so the UI
// does not flash to empty between requests; the first chunk of a new
// session replaces it wholesale.
type Artifact struct {
	Content   string
	Kind      ArtifactKind
	Streaming bool
	Retained  bool
}

// SuggestionList is the current set of follow-up suggestions. Retained
// has the same carry-over meaning as on Artifact; suggestions are only
// ever replaced wholesale, never appended.
type SuggestionList struct {
	Items    []string
	Retained bool
}

// PublishResult is set only on a successful deployment.
type PublishResult struct {
	LiveURL  string
	SiteName string
}

// Session is the accumulated state of one generation-or-publish attempt.
// It is mutated only by Apply; everything else reads it.
type Session struct {
	Kind      OperationKind
	Phase     Phase
	Active    bool
	Narrative []string
	Artifact  Artifact
	Suggest   SuggestionList
	BuildLog  []string
	Publish   *PublishResult
	LastError string
	Tip       string
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// StatusSummary is the narrated progress of a session: the phase tag and
// an ordered list of human-readable step lines. A summary frozen onto a
// finalized message has Completed set.
type StatusSummary struct {
	Phase     Phase
	Bullets   []string
	Completed bool
}

// CodeSnapshot is the code artifact frozen onto a finalized message.
type CodeSnapshot struct {
	Content string
	Kind    ArtifactKind
}

// ChatMessage is one immutable transcript entry. The assistant-only
// attachments are set exactly once at finalization.
type ChatMessage struct {
	ID          string
	Role        Role
	Text        string
	CreatedAt   time.Time
	Status      *StatusSummary
	Code        *CodeSnapshot
	Suggestions []string
}
