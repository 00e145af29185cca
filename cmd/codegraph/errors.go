// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	goerrors "errors"
	"os"

	"github.com/kraklabs/codegraph/internal/errors"
	"github.com/kraklabs/codegraph/internal/output"
	"github.com/kraklabs/codegraph/pkg/cgerrors"
)

// fatalError maps a pkg/cgerrors.Error (or any other error) to
// internal/errors.UserError and exits, using the shared CLI error
// presentation (colored Message/Cause/Fix, or JSON under --json) for
// every subcommand except `start`, whose exit codes are pinned to the
// daemon-specific taxonomy instead.
//
// Under --json, cgerrors failures are emitted in the same
// {code, message, retryable} envelope the tool executor uses for failed
// calls, so a scripted caller parses one error shape regardless of where
// the failure happened.
func fatalError(err error, jsonMode bool) {
	var cg *cgerrors.Error
	if goerrors.As(err, &cg) {
		if jsonMode {
			_ = output.CGErrorJSON(cg)
			os.Exit(errors.FromCGError(cg).ExitCode)
		}
		errors.FatalError(errors.FromCGError(cg), jsonMode)
		return
	}
	errors.FatalError(errors.NewInternalError("codegraph: operation failed", err.Error(), "", err), jsonMode)
}
