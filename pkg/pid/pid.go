// Package pid manages the server's PID file, used by the stop and
// status commands to find a running instance.
package pid

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// File returns the default PID file path, ~/.saturn/saturn.pid. When
// the home directory cannot be resolved the file lands in the working
// directory.
func File() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".saturn", "saturn.pid")
}

// Write records the current process id at path, creating the parent
// directory if needed.
func Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Read returns the process id stored at path.
func Read(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	id, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed pid file %s: %w", path, err)
	}
	return id, nil
}

// Remove deletes the PID file. A missing file is not an error.
func Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Alive reports whether a process with the given id exists, probing
// with signal 0 so nothing is delivered. EPERM still means the process
// exists, just under another user.
func Alive(id int) bool {
	if id <= 0 {
		return false
	}
	proc, err := os.FindProcess(id)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}

// Terminate sends SIGTERM to the process with the given id, asking it
// to shut down gracefully.
func Terminate(id int) error {
	proc, err := os.FindProcess(id)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}
