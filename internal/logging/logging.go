package logging

import (
	"io"
	"log"
	"os"
)

func New() *log.Logger {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter is New with a caller-chosen sink; the console strip driver
// owns stdout, so the CLI moves logs to stderr when it is selected.
func NewWithWriter(w io.Writer) *log.Logger {
	return log.New(w, "netweather ", log.LstdFlags|log.LUTC)
}
