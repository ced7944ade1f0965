package sampler

// State is the stage of a Sampler. Stages only move forward.
type State int

const (
	LocalTuning State = iota
	GlobalTuning
	Production
	Done
)

func (s State) String() string {
	switch s {
	case LocalTuning:
		return "local_tuning"
	case GlobalTuning:
		return "global_tuning"
	case Production:
		return "production"
	case Done:
		return "done"
	}
	return "unknown"
}
