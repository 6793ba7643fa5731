package session

// pipelineStep pairs the line shown once a step is done with the line
// shown while it is in progress.
type pipelineStep struct {
	phase  Phase
	done   string
	active string
}

var generationSteps = []pipelineStep{
	{PhaseAnalyzing, "Request analyzed", "Analyzing your request..."},
	{PhaseThinking, "Game concept designed", "Planning the best approach..."},
	{PhaseOutlining, "Implementation outlined", "Designing the implementation..."},
	{PhaseGenerating, "Game code written", "Writing your game code..."},
	{PhasePreviewing, "Preview prepared", "Preparing the game preview..."},
}

var publishSteps = []pipelineStep{
	{PhaseValidating, "Game validated", "Checking if a game has been created..."},
	{PhasePreparing, "Deployment prepared", "Preparing for deployment..."},
	{PhaseDeploying, "Site deployed", "Deploying to hosting..."},
}

// Narrate derives the human-readable progress summary from the current
// session state. It is referentially transparent: the same state always
// narrates identically, which lets the same function back both the live
// indicator and the summary frozen onto a finalized message.
func Narrate(s Session) StatusSummary {
	switch s.Phase {
	case PhaseIdle, PhaseError:
		return StatusSummary{Phase: s.Phase}
	case PhaseCompleted:
		return StatusSummary{Phase: s.Phase, Bullets: allDone(generationSteps), Completed: true}
	case PhasePublished:
		return StatusSummary{Phase: s.Phase, Bullets: allDone(publishSteps), Completed: true}
	}

	steps := generationSteps
	if s.Kind == OpPublishing {
		steps = publishSteps
	}

	var bullets []string
	for _, step := range steps {
		if step.phase == s.Phase {
			bullets = append(bullets, step.active)
			return StatusSummary{Phase: s.Phase, Bullets: bullets}
		}
		bullets = append(bullets, "✓ "+step.done)
	}
	// Phase not in this pipeline's step set; show nothing rather than a
	// misleading all-done list.
	return StatusSummary{Phase: s.Phase}
}

func allDone(steps []pipelineStep) []string {
	out := make([]string, len(steps))
	for i, step := range steps {
		out[i] = "✓ " + step.done
	}
	return out
}
