// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package daemon

import "os"

// alive probes whether pid is a live process. Non-Unix platforms have no
// signal-0 equivalent reachable without cgo, so this falls back to
// os.FindProcess, which on Windows actually opens a handle (FindProcess
// fails for dead PIDs there, unlike on Unix where it always succeeds).
func alive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}
