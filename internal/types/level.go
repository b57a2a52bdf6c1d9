package types

// Level is the model-selection tier. Each tier maps to a fixed upstream model
// name in the gateway configuration.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
	LevelUltra  Level = "ultra"
)

func (l Level) Valid() bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh, LevelUltra:
		return true
	}
	return false
}

// ResearchDepth controls how many topics and sources the research pipeline
// explores, and how long its result is cached.
type ResearchDepth string

const (
	DepthBasic  ResearchDepth = "basic"
	DepthMedium ResearchDepth = "medium"
	DepthHigh   ResearchDepth = "high"
)

func (d ResearchDepth) Valid() bool {
	switch d {
	case DepthBasic, DepthMedium, DepthHigh:
		return true
	}
	return false
}

// TopicRange returns the inclusive min/max number of research topics for the
// depth.
func (d ResearchDepth) TopicRange() (int, int) {
	switch d {
	case DepthHigh:
		return 5, 6
	case DepthMedium:
		return 3, 4
	default:
		return 1, 2
	}
}
