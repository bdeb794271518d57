package strip

import (
	"errors"
	"fmt"
	"time"

	"github.com/pingsantohq/netweather/internal/color"
	"github.com/pingsantohq/netweather/pkg/types"
)

// ErrRender marks a failed push to the physical strip.
var ErrRender = errors.New("strip write failed")

// Driver pushes one full frame to a strip. Frames always hold exactly one
// colour per LED.
type Driver interface {
	Write(pixels []color.RGB) error
}

// Renderer turns a window snapshot into a frame. The most recent sample
// drives pixel 0; pixels without a sample are off.
type Renderer struct {
	driver    Driver
	leds      int
	threshold time.Duration
}

func NewRenderer(driver Driver, leds int, threshold time.Duration) *Renderer {
	if leds <= 0 {
		leds = 1
	}
	return &Renderer{driver: driver, leds: leds, threshold: threshold}
}

// Frame maps snapshot onto exactly r.leds colours.
func (r *Renderer) Frame(snapshot []types.Sample) []color.RGB {
	frame := make([]color.RGB, r.leds)
	for i := 0; i < len(snapshot) && i < r.leds; i++ {
		frame[i] = color.Map(snapshot[i], r.threshold)
	}
	return frame
}

// Render builds the frame for snapshot and writes it to the driver.
func (r *Renderer) Render(snapshot []types.Sample) ([]color.RGB, error) {
	frame := r.Frame(snapshot)
	if err := r.driver.Write(frame); err != nil {
		return frame, fmt.Errorf("%w: %w", ErrRender, err)
	}
	return frame, nil
}

func (r *Renderer) LEDs() int {
	return r.leds
}

func checkLength(pixels []color.RGB, leds int) error {
	if len(pixels) != leds {
		return fmt.Errorf("frame has %d pixels, strip has %d", len(pixels), leds)
	}
	return nil
}
