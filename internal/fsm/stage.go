package fsm

import "fmt"

// Stage is the position of one utterance in the dispatch pipeline.
type Stage string

const (
	StageReceived         Stage = "received"
	StageResolving        Stage = "resolving"
	StageExtracting       Stage = "extracting"
	StageSkipped          Stage = "skipped"
	StageDispatched       Stage = "dispatched"
	StageResolutionFailed Stage = "resolution_failed"
	StageExtractionFailed Stage = "extraction_failed"
)

var stageEdges = map[Stage][]Stage{
	StageReceived:   {StageResolving, StageSkipped},
	StageResolving:  {StageSkipped, StageExtracting, StageResolutionFailed},
	StageExtracting: {StageDispatched, StageExtractionFailed},
}

// Terminal reports whether no further stage can follow s.
func (s Stage) Terminal() bool {
	switch s {
	case StageSkipped, StageDispatched, StageResolutionFailed, StageExtractionFailed:
		return true
	default:
		return false
	}
}

// Advance validates the move from current to next.
func Advance(current, next Stage) (Stage, error) {
	edges, ok := stageEdges[current]
	if !ok {
		if current.Terminal() {
			return current, fmt.Errorf("stage %s is terminal", current)
		}
		return current, fmt.Errorf("unknown stage %q", current)
	}
	for _, candidate := range edges {
		if candidate == next {
			return next, nil
		}
	}
	return current, fmt.Errorf("invalid stage transition: %s -> %s", current, next)
}
