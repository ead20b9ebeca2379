package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-ps"
)

// commLength is the process name length kept by the Linux kernel.
const commLength = 15

// ErrAlreadyRunning is returned when another controller process exists.
var ErrAlreadyRunning = errors.New("another controller is already running")

// Guard finds other processes running the same executable.
type Guard struct {
	// name is the executable name to look for.
	name string
	// pid is the process to ignore.
	pid int
	// processes lists running processes.
	processes func() ([]ps.Process, error)
}

// NewGuard creates a guard for the current executable.
func NewGuard() (*Guard, error) {
	executable, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}

	return &Guard{
		name:      filepath.Base(executable),
		pid:       os.Getpid(),
		processes: ps.Processes,
	}, nil
}

// Check returns ErrAlreadyRunning when a process other than this one runs
// the same executable.
func (g *Guard) Check() error {
	processList, err := g.processes()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	for _, process := range processList {
		if process.Pid() == g.pid {
			continue
		}

		if !sameExecutable(process.Executable(), g.name) {
			continue
		}

		return fmt.Errorf("%w: pid %d", ErrAlreadyRunning, process.Pid())
	}

	return nil
}

// sameExecutable compares process names, allowing for kernel truncation.
func sameExecutable(processName, executable string) bool {
	if processName == executable {
		return true
	}

	return len(executable) > commLength &&
		len(processName) == commLength &&
		strings.HasPrefix(executable, processName)
}
