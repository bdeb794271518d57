package restart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"
)

const (
	PolicySoft = "soft"
	PolicyExec = "exec"
)

// ErrRestartDeferred is returned when a restarter chooses to delay restart to an external system.
var ErrRestartDeferred = errors.New("restart deferred")

// Restarter is called by the supervisor once the restart delay has elapsed.
// Returning nil lets the supervisor reconnect in-process.
type Restarter interface {
	Restart(ctx context.Context) error
}

// Soft restarts in-process: the supervisor simply loops.
type Soft struct{}

func (Soft) Restart(ctx context.Context) error {
	return ctx.Err()
}

// Exec replaces the current process with a fresh copy of the binary, which
// drops any driver or socket state the old process was holding.
type Exec struct {
	BinaryPath string
	Args       []string
	Env        []string
	Logger     *log.Logger

	exec func(path string, args, env []string) error
}

// NewExec builds an Exec restarter for the running binary and its arguments.
func NewExec(logger *log.Logger) (*Exec, error) {
	path, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	return &Exec{BinaryPath: path, Args: os.Args, Logger: logger}, nil
}

// Restart invokes execve on the configured binary. It only returns on failure.
func (r *Exec) Restart(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(r.BinaryPath) == "" {
		return errors.New("binary path required for restart")
	}
	args := r.Args
	if len(args) == 0 {
		args = []string{r.BinaryPath}
	}
	env := r.Env
	if env == nil {
		env = os.Environ()
	}
	if r.Logger != nil {
		r.Logger.Printf("restart: exec %s", r.BinaryPath)
	}
	execFn := r.exec
	if execFn == nil {
		execFn = syscall.Exec
	}
	return execFn(r.BinaryPath, args, env)
}

// New returns the restarter for policy.
func New(policy string, logger *log.Logger) (Restarter, error) {
	switch policy {
	case "", PolicySoft:
		return Soft{}, nil
	case PolicyExec:
		return NewExec(logger)
	default:
		return nil, fmt.Errorf("unknown restart policy %q", policy)
	}
}
