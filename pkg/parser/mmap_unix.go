// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package parser

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapFile memory-maps path read-only, a small internal helper directly
// over golang.org/x/sys/unix rather than a stdlib-only reimplementation.
func mmapFile(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	size := info.Size()
	if size == 0 {
		return []byte{}, func() error { return nil }, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return unix.Munmap(data) }, nil
}
