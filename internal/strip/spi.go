package strip

import (
	"fmt"

	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"

	"github.com/pingsantohq/netweather/internal/color"
)

// SPI drives a WS2812 strip by encoding the NRZ bit stream on an SPI port.
type SPI struct {
	port spi.PortCloser
	dev  *nrzled.Dev
	leds int
	buf  []byte
}

// OpenSPI opens the named SPI port ("" selects the first one registered).
func OpenSPI(portName string, leds int) (*SPI, error) {
	if leds <= 0 {
		return nil, fmt.Errorf("led count must be positive, got %d", leds)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	port, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", portName, err)
	}
	opts := nrzled.DefaultOpts
	opts.NumPixels = leds
	opts.Channels = 3
	dev, err := nrzled.NewSPI(port, &opts)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("init ws2812 on %q: %w", portName, err)
	}
	return &SPI{
		port: port,
		dev:  dev,
		leds: leds,
		buf:  make([]byte, leds*3),
	}, nil
}

func (s *SPI) Write(pixels []color.RGB) error {
	if err := checkLength(pixels, s.leds); err != nil {
		return err
	}
	for i, p := range pixels {
		s.buf[3*i] = p.R
		s.buf[3*i+1] = p.G
		s.buf[3*i+2] = p.B
	}
	_, err := s.dev.Write(s.buf)
	return err
}

func (s *SPI) Close() error {
	haltErr := s.dev.Halt()
	if err := s.port.Close(); err != nil {
		return err
	}
	return haltErr
}
