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


// Package rpc implements a block source reading Starknet blocks from a
// node through its JSON-RPC interface.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Fantom-foundation/libfunc-replay/executor"
	"github.com/Fantom-foundation/libfunc-replay/logger"
	"github.com/Fantom-foundation/libfunc-replay/txcontext"
	"github.com/cenkalti/backoff/v4"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	lru "github.com/hashicorp/golang-lru"
)

// Error codes defined by the Starknet JSON-RPC specification.
const (
	contractNotFoundCode  = 20
	blockNotFoundCode     = 24
	classHashNotFoundCode = 28
)

const (
	DefaultClassCacheSize = 8192
	DefaultRetries        = 3

	defaultRetryInterval = 200 * time.Millisecond
)

// Options configure a Client.
type Options struct {
	// Retries is the number of times a request failing for a transport
	// reason is repeated.
	Retries uint64
	// ClassCacheSize is the number of class kinds kept in memory.
	ClassCacheSize int
	// LogLevel of the client's logger.
	LogLevel string
}

// Client fetches blocks from a Starknet node. It is safe for concurrent use.
type Client struct {
	rpc           *gethrpc.Client
	log           logger.Logger
	retries       uint64
	retryInterval time.Duration
	classes       *lru.Cache

	chainMu sync.Mutex
	chainID string
}

// NewClient connects to the node at url.
func NewClient(ctx context.Context, url string, opts Options) (*Client, error) {
	c, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w; cannot dial %v; %v", executor.ErrSourceUnavailable, url, err)
	}
	return newClient(c, opts, logger.NewLogger(opts.LogLevel, "Rpc-Client"))
}

func newClient(c *gethrpc.Client, opts Options, log logger.Logger) (*Client, error) {
	if opts.ClassCacheSize <= 0 {
		opts.ClassCacheSize = DefaultClassCacheSize
	}
	classes, err := lru.New(opts.ClassCacheSize)
	if err != nil {
		return nil, err
	}
	return &Client{
		rpc:           c,
		log:           log,
		retries:       opts.Retries,
		retryInterval: defaultRetryInterval,
		classes:       classes,
	}, nil
}

// Close terminates the connection to the node.
func (c *Client) Close() {
	c.rpc.Close()
}

// call issues a request, retrying failures of the transport. Errors
// reported by the node itself are returned right away.
func (c *Client) call(ctx context.Context, result any, method string, args ...any) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	policy.MaxElapsedTime = 0

	op := func() error {
		err := c.rpc.CallContext(ctx, result, method, args...)
		if err == nil {
			return nil
		}
		var rpcErr gethrpc.Error
		if errors.As(err, &rpcErr) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.log.Debugf("%v failed, retrying in %v; %v", method, wait, err)
	}
	return backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(policy, c.retries), ctx), notify)
}

// errorCode returns the JSON-RPC error code reported by the node, or 0.
func errorCode(err error) int {
	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode()
	}
	return 0
}

// LatestBlock returns the number of the most recent block of the node.
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	var number uint64
	if err := c.call(ctx, &number, "starknet_blockNumber"); err != nil {
		return 0, fmt.Errorf("%w; cannot get latest block; %v", executor.ErrSourceUnavailable, err)
	}
	return number, nil
}

// ChainID returns the chain id of the node, as a hex string.
func (c *Client) ChainID(ctx context.Context) (string, error) {
	c.chainMu.Lock()
	defer c.chainMu.Unlock()
	if c.chainID != "" {
		return c.chainID, nil
	}
	var id string
	if err := c.call(ctx, &id, "starknet_chainId"); err != nil {
		return "", fmt.Errorf("%w; cannot get chain id; %v", executor.ErrSourceUnavailable, err)
	}
	c.chainID = id
	return id, nil
}

type blockID struct {
	BlockNumber uint64 `json:"block_number"`
}

type blockWithReceipts struct {
	txcontext.Snapshot
	Transactions []transactionWithReceipt `json:"transactions"`
}

type transactionWithReceipt struct {
	Transaction json.RawMessage `json:"transaction"`
	Receipt     receipt         `json:"receipt"`
}

type transactionHeader struct {
	Hash            string `json:"transaction_hash"`
	Type            string `json:"type"`
	Version         string `json:"version"`
	SenderAddress   string `json:"sender_address"`
	ContractAddress string `json:"contract_address"`
}

type receipt struct {
	Hash            string `json:"transaction_hash"`
	ExecutionStatus string `json:"execution_status"`
}

type contractClass struct {
	SierraProgram json.RawMessage `json:"sierra_program"`
}

// FetchBlock returns the block with the given number including the kind of
// class every invoke transaction runs.
func (c *Client) FetchBlock(ctx context.Context, number uint64) (*txcontext.Block, error) {
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	id := blockID{BlockNumber: number}
	var raw blockWithReceipts
	if err := c.call(ctx, &raw, "starknet_getBlockWithReceipts", id); err != nil {
		if errorCode(err) == blockNotFoundCode {
			return nil, fmt.Errorf("%w; block %d; %v", executor.ErrBlockNotFound, number, err)
		}
		return nil, fmt.Errorf("%w; cannot get block %d; %v", executor.ErrSourceUnavailable, number, err)
	}
	if raw.Number != number {
		return nil, fmt.Errorf("%w; asked for block %d, got %d", executor.ErrSourceUnavailable, number, raw.Number)
	}

	block := &txcontext.Block{Snapshot: raw.Snapshot}
	block.Snapshot.ChainID = chainID
	block.Transactions = make([]txcontext.Transaction, 0, len(raw.Transactions))
	for i, entry := range raw.Transactions {
		var header transactionHeader
		if err := json.Unmarshal(entry.Transaction, &header); err != nil {
			return nil, fmt.Errorf("%w; malformed transaction %d of block %d; %v", executor.ErrSourceUnavailable, i, number, err)
		}
		tx := txcontext.Transaction{
			Hash:     entry.Receipt.Hash,
			Index:    i,
			Kind:     txcontext.ParseTxKind(header.Type),
			Version:  header.Version,
			Reverted: entry.Receipt.ExecutionStatus == "REVERTED",
			Payload:  entry.Transaction,
		}
		if tx.Hash == "" {
			tx.Hash = header.Hash
		}
		if tx.Kind == txcontext.InvokeTx {
			// version 0 invokes name the called contract, later versions the account
			tx.Sender = header.SenderAddress
			if tx.Sender == "" {
				tx.Sender = header.ContractAddress
			}
			if tx.Class, err = c.classOf(ctx, id, tx.Sender); err != nil {
				return nil, fmt.Errorf("%w; cannot get class of %v in block %d; %v", executor.ErrSourceUnavailable, tx.Sender, number, err)
			}
		}
		block.Transactions = append(block.Transactions, tx)
	}
	return block, nil
}

// classOf determines whether the contract at the given address is a Sierra
// or a legacy contract. Unknown contracts and classes are reported as
// txcontext.UnknownClass.
func (c *Client) classOf(ctx context.Context, id blockID, address string) (txcontext.ClassKind, error) {
	if address == "" {
		return txcontext.UnknownClass, nil
	}
	var hash string
	if err := c.call(ctx, &hash, "starknet_getClassHashAt", id, address); err != nil {
		if errorCode(err) == contractNotFoundCode {
			return txcontext.UnknownClass, nil
		}
		return txcontext.UnknownClass, err
	}
	if kind, found := c.classes.Get(hash); found {
		return kind.(txcontext.ClassKind), nil
	}

	var class contractClass
	if err := c.call(ctx, &class, "starknet_getClass", id, hash); err != nil {
		if errorCode(err) == classHashNotFoundCode {
			return txcontext.UnknownClass, nil
		}
		return txcontext.UnknownClass, err
	}
	kind := txcontext.LegacyClass
	if len(class.SierraProgram) > 0 && string(class.SierraProgram) != "null" {
		kind = txcontext.SierraClass
	}
	c.classes.Add(hash, kind)
	return kind, nil
}
