package strip

import (
	"io"
	"log"

	"github.com/pingsantohq/netweather/internal/color"
	"github.com/pingsantohq/netweather/pkg/types"
)

var (
	stageColour   = color.RGB{B: 64}
	failureColour = color.RGB{R: 64, B: 64}
)

// StageLights shows connection progress on the strip while no samples are
// being rendered. It is purely diagnostic: write errors are logged and dropped.
type StageLights struct {
	driver Driver
	leds   int
	logger *log.Logger
}

func NewStageLights(driver Driver, leds int, logger *log.Logger) *StageLights {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &StageLights{driver: driver, leds: leds, logger: logger}
}

func (s *StageLights) Record(ev types.Event) {
	if ev.Type != types.EventStateChange || s.driver == nil || s.leds <= 0 {
		return
	}
	stage, ok := ev.Details[types.DetailStage].(int)
	if !ok {
		return
	}
	if err := s.driver.Write(StageFrame(stage, s.leds)); err != nil {
		s.logger.Printf("stage lights: %v", err)
	}
}

// StageFrame builds the progress frame for stage. Positive stages light that
// many pixels; a negative stage marks a failure.
func StageFrame(stage, leds int) []color.RGB {
	frame := make([]color.RGB, leds)
	if stage < 0 {
		if leds > 0 {
			frame[0] = failureColour
		}
		return frame
	}
	for i := 0; i < stage && i < leds; i++ {
		frame[i] = stageColour
	}
	return frame
}
