package strip

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pingsantohq/netweather/internal/color"
)

// Console draws each frame as a row of 24-bit ANSI coloured blocks.
type Console struct {
	w    io.Writer
	leds int
}

func NewConsole(w io.Writer, leds int) *Console {
	return &Console{w: w, leds: leds}
}

func (c *Console) Write(pixels []color.RGB) error {
	if err := checkLength(pixels, c.leds); err != nil {
		return err
	}
	bw := bufio.NewWriter(c.w)
	for _, p := range pixels {
		fmt.Fprintf(bw, "\x1b[38;2;%d;%d;%dm██", p.R, p.G, p.B)
	}
	bw.WriteString("\x1b[0m\n")
	return bw.Flush()
}
