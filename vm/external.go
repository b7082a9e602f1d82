// Copyright 2024 Fantom Foundation
// This file is part of Aida Testing Infrastructure for Sonic
//
// Aida is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Aida is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Aida. If not, see <http://www.gnu.org/licenses/>.


// Package vm runs transactions on an external VM process.
package vm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Fantom-foundation/libfunc-replay/executor"
	"github.com/Fantom-foundation/libfunc-replay/logger"
	"github.com/Fantom-foundation/libfunc-replay/txcontext"
)

// Request is written as JSON to the standard input of the VM process.
type Request struct {
	Hash        string              `json:"transaction_hash"`
	Index       int                 `json:"transaction_index"`
	Version     string              `json:"version"`
	Sender      string              `json:"sender_address"`
	Block       *txcontext.Snapshot `json:"block"`
	Transaction json.RawMessage     `json:"transaction"`
}

// Response is read as JSON from the standard output of the VM process.
type Response struct {
	Libfuncs    []string `json:"libfuncs"`
	Error       string   `json:"error,omitempty"`
	Unsupported bool     `json:"unsupported,omitempty"`
}

// External executes every transaction in a new process of a VM binary.
// The process receives a Request and has to answer with a Response.
type External struct {
	binary string
	args   []string
	env    []string
	log    logger.Logger
}

// NewExternal creates a backend running the given binary with args.
func NewExternal(binary string, logLevel string, args ...string) (*External, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("cannot find VM binary %v; %w", binary, err)
	}
	return &External{binary: path, args: args, log: logger.NewLogger(logLevel, "External-VM")}, nil
}

func (e *External) Execute(ctx context.Context, tx *txcontext.Transaction, snapshot *txcontext.Snapshot) (txcontext.Trace, error) {
	req := Request{
		Hash:    tx.Hash,
		Index:   tx.Index,
		Version: tx.Version,
		Sender:  tx.Sender,
		Block:   snapshot,
	}
	if json.Valid(tx.Payload) {
		req.Transaction = tx.Payload
	}
	input, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w; cannot encode request; %v", executor.ErrExecution, err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, e.args...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	if e.env != nil {
		cmd.Env = e.env
	}

	start := time.Now()
	err = cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w; %v killed after %v", executor.ErrTimeout, tx.Hash, time.Since(start).Round(time.Millisecond))
		}
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w; %v: %v; %v", executor.ErrExecution, e.binary, err, strings.TrimSpace(stderr.String()))
	}
	e.log.Debugf("Executed %v in %v", tx.Hash, time.Since(start))

	var res Response
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		return nil, fmt.Errorf("%w; malformed response for %v; %v", executor.ErrExecution, tx.Hash, err)
	}
	switch {
	case res.Unsupported:
		return nil, fmt.Errorf("%w; %v", executor.ErrUnsupportedTransaction, res.Error)
	case res.Error != "":
		return nil, fmt.Errorf("%w; %v", executor.ErrExecution, res.Error)
	}
	return res.Libfuncs, nil
}
