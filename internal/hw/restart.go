package hw

import (
	"fmt"
	"log"
	"os"
	"syscall"
)

// ExecRestarter restarts the keypad by replacing the running process with a
// fresh copy of the same binary. It implements keypad.Restarter.
type ExecRestarter struct {
	// Before runs ahead of the exec, typically to close the database.
	Before func()
	Logger *log.Logger

	exec func(argv0 string, argv, envv []string) error
}

func (r *ExecRestarter) Restart() error {
	logger := r.Logger
	if logger == nil {
		logger = log.Default()
	}
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	if r.Before != nil {
		r.Before()
	}
	logger.Printf("Restarting %s", exe)

	execFn := r.exec
	if execFn == nil {
		execFn = syscall.Exec
	}
	if err := execFn(exe, os.Args, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", exe, err)
	}
	return nil
}
