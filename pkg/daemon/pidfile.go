// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

// Package daemon enforces a shared-resource policy: exactly one process
// owns a project's `.codegraph/` directory, via a PID file written at
// start and removed on clean shutdown, with stale PIDs detected by probing
// liveness rather than trusting the file's mere existence.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kraklabs/codegraph/pkg/cgerrors"
)

const pidFileName = "daemon.pid"

// PIDFile manages the single-line decimal PID file at
// `<project_root>/.codegraph/daemon.pid`.
type PIDFile struct {
	path string
}

// New returns a PIDFile rooted at dataDir (normally Config.DataDir()).
func New(dataDir string) *PIDFile {
	return &PIDFile{path: filepath.Join(dataDir, pidFileName)}
}

// Acquire writes the current process's PID to the file, first verifying no
// other live process already holds it. It returns a StorageLocked error
// (surfaced by the daemon as exit code 2) if another live process owns the
// directory; a stale PID file (process no longer alive) is silently
// reclaimed.
func (f *PIDFile) Acquire() error {
	if pid, ok := f.read(); ok {
		if alive(pid) {
			return cgerrors.StorageLocked(f.path)
		}
		// Stale: the previous owner died without cleaning up.
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return cgerrors.IOError(fmt.Errorf("daemon: mkdir: %w", err))
	}
	data := []byte(strconv.Itoa(os.Getpid()) + "\n")
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return cgerrors.IOError(fmt.Errorf("daemon: write pid file: %w", err))
	}
	return nil
}

// Release removes the PID file if it still names this process, the
// "removed on clean shutdown" half of the policy.
func (f *PIDFile) Release() error {
	pid, ok := f.read()
	if !ok || pid != os.Getpid() {
		return nil
	}
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return cgerrors.IOError(fmt.Errorf("daemon: remove pid file: %w", err))
	}
	return nil
}

// Read reports the PID currently on file and whether that process is
// still alive, for the `status` command.
func (f *PIDFile) Read() (pid int, running bool, ok bool) {
	pid, ok = f.read()
	if !ok {
		return 0, false, false
	}
	return pid, alive(pid), true
}

func (f *PIDFile) read() (int, bool) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
