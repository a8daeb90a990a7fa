package director

// Phase is the pipeline stage the orchestrator is in.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseScripting       Phase = "scripting"
	PhaseCandidatesReady Phase = "candidates_ready"
	PhaseSelecting       Phase = "selecting"
	PhaseRemastering     Phase = "remastering"
	PhasePanelsReady     Phase = "panels_ready"
)

// Busy reports whether the phase has a provider call in flight.
func (p Phase) Busy() bool {
	return p == PhaseScripting || p == PhaseRemastering
}

// settledPhase derives the resting phase from state shape.
func settledPhase(candidates int, selected, directed *int, panels int) Phase {
	switch {
	case directed != nil && panels > 0:
		return PhasePanelsReady
	case selected != nil:
		return PhaseSelecting
	case candidates > 0:
		return PhaseCandidatesReady
	default:
		return PhaseIdle
	}
}
