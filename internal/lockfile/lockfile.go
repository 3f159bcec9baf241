// Package lockfile guards the state directory against a second running
// instance. The guard is a flock on a well-known file, so the kernel drops
// it when the process exits, cleanly or not.
package lockfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockFileName is the file created inside the state directory.
const LockFileName = "argenfuego-chatbot.lock"

// Lock is a held state directory lock.
type Lock struct {
	file *os.File
	path string
}

// AcquireLock takes an exclusive lock on stateDir, creating the directory if
// needed. When another process already holds it the error is a *HeldError
// describing the holder.
func AcquireLock(stateDir string) (*Lock, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	path := filepath.Join(stateDir, LockFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		held := &HeldError{Path: path, Holder: holderInfo(path), cause: err}
		slog.Error("Lockfile.AcquireLock: state directory already locked", "path", path, "holder", held.Holder)
		return nil, held
	}

	// The holder's pid goes in only after the flock succeeded, so a losing
	// contender never clobbers it.
	if err := file.Truncate(0); err == nil {
		fmt.Fprintf(file, "pid=%d\n", os.Getpid())
		file.Sync()
	}

	slog.Info("Lockfile.AcquireLock: state directory locked", "path", path, "pid", os.Getpid())
	return &Lock{file: file, path: path}, nil
}

// Release drops the lock and removes the lock file. Calling it on an
// already released lock is a no-op.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	err := l.file.Close()
	if rmErr := os.Remove(l.path); rmErr != nil && err == nil {
		err = rmErr
	}
	l.file = nil
	slog.Info("Lockfile.Release: state directory unlocked", "path", l.path)
	return err
}

// HeldError reports that another instance owns the state directory.
type HeldError struct {
	Path string
	// Holder describes the process named in the existing lock file,
	// including whether it is still alive.
	Holder string
	cause  error
}

func (e *HeldError) Error() string {
	msg := fmt.Sprintf("another chatbot instance holds the state directory lock %s", e.Path)
	if e.Holder != "" {
		msg += fmt.Sprintf(" (%s)", e.Holder)
	}
	return msg + "; remove the lock file only if no other instance is running"
}

func (e *HeldError) Unwrap() error { return e.cause }

func holderInfo(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	pid := parsePID(string(data))
	if pid <= 0 {
		return strings.TrimSpace(string(data))
	}
	if processAlive(pid) {
		return fmt.Sprintf("pid %d, running", pid)
	}
	return fmt.Sprintf("pid %d, not running, lock may be stale", pid)
}

func parsePID(content string) int {
	for _, line := range strings.Split(content, "\n") {
		if v, ok := strings.CutPrefix(line, "pid="); ok {
			if pid, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return pid
			}
		}
	}
	return 0
}

// processAlive checks the pid with signal 0.
func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}
