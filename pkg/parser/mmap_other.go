// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package parser

import "os"

// mmapFile falls back to a plain read on non-unix platforms, where
// golang.org/x/sys/unix's mmap calls aren't available.
func mmapFile(path string) ([]byte, func() error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return nil }, nil
}
