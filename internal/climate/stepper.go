package climate

import (
	"context"
	"math"
	"time"

	"heaterctl/internal/logger"
)

// Stepper converts a requested target-temperature delta into a sequence of
// discrete remote presses, one per whole degree, with partial-failure
// tracking. The physical remote only has 1-degree up/down buttons, so
// fractional requests are rounded to the nearest whole number of steps.
type Stepper struct {
	scenes    SceneActivator
	upScene   string
	downScene string
	stepDelay time.Duration // pause between presses so the device registers each one
	log       *logger.Logger
}

// NewStepper builds a stepper bound to the up/down scenes of one heater.
func NewStepper(scenes SceneActivator, upScene, downScene string, t Timings, log *logger.Logger) *Stepper {
	return &Stepper{
		scenes:    scenes,
		upScene:   upScene,
		downScene: downScene,
		stepDelay: t.StepDelay,
		log:       log,
	}
}

// Apply walks the target from current toward requested one degree at a time
// and aborts on the first failed press. The achieved temperature is always
// clamped to [min, max]; the caller decides how to surface partial progress.
// Cancellation stops the remaining steps without error.
func (s *Stepper) Apply(ctx context.Context, current, requested, min, max float64) (achieved float64, attempted, succeeded int) {
	delta := int(math.Round(requested - current))
	if delta == 0 {
		return current, 0, 0
	}

	scene, dir := s.upScene, 1
	if delta < 0 {
		scene, dir = s.downScene, -1
	}
	attempted = delta * dir // abs(delta)

	for i := 0; i < attempted; i++ {
		if ctx.Err() != nil {
			s.log.Debugw("temperature stepping cancelled", "step", i+1, "of", attempted)
			break
		}
		if err := s.scenes.Activate(ctx, scene); err != nil {
			s.log.Errorw("scene activation failed, aborting remaining temperature steps",
				"scene", scene, "step", i+1, "of", attempted, "err", err)
			break
		}
		succeeded++
		if !sleepCtx(ctx, s.stepDelay) {
			break
		}
	}

	achieved = clamp(current+float64(succeeded*dir), min, max)
	return achieved, attempted, succeeded
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
