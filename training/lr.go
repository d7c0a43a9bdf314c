package training

import "math"

// LRController decays the learning rate when the evaluation metric stops
// improving.
type LRController struct {
	InitLR float64
	// DecayStartEpoch is the first epoch at which the rate may decay.
	DecayStartEpoch int
	// DecayRate multiplies the rate on every decay.
	DecayRate float64
	// DecayPatientEpoch is the number of epochs without improvement that
	// are tolerated before decaying.
	DecayPatientEpoch int
	// LowerBetter is true for error rates and losses.
	LowerBetter bool

	best        float64
	seen        bool
	notImproved int
}

// NewLRController returns a controller for the decay settings of c.
// Error rates are minimised.
func NewLRController(c Config) *LRController {
	return &LRController{
		InitLR:            c.LearningRate,
		DecayStartEpoch:   c.DecayStartEpoch,
		DecayRate:         c.DecayRate,
		DecayPatientEpoch: c.DecayPatientEpoch,
		LowerBetter:       true,
	}
}

// DecayLR returns the learning rate to use after epoch, given the metric
// value measured at its end.
func (c *LRController) DecayLR(lr float64, epoch int, value float64) float64 {
	if !c.LowerBetter {
		value = -value
	}
	if !c.seen {
		c.best = math.Inf(1)
		c.seen = true
	}

	if epoch < c.DecayStartEpoch {
		c.best = min(c.best, value)
		return lr
	}
	switch {
	case value < c.best:
		c.best = value
		c.notImproved = 0
		return lr
	case c.notImproved < c.DecayPatientEpoch:
		c.notImproved++
		return lr
	default:
		c.notImproved = 0
		return lr * c.DecayRate
	}
}
