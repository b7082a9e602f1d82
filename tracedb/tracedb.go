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


// Package tracedb stores blocks and the libfunc traces of their
// transactions in a LevelDB database, allowing a replay to be repeated
// without a node or a VM.
package tracedb

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/libfunc-replay/executor"
	"github.com/Fantom-foundation/libfunc-replay/txcontext"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	// BlockPrefix + number (64-bit) -> block
	BlockPrefix = 'b'
	// TracePrefix + number (64-bit) + index (32-bit) -> trace
	TracePrefix = 't'
	// MetadataKey -> metadata
	MetadataKey = "m"
)

var ErrNotFound = errors.New("not found")

// Metadata describes the content of a trace database.
type Metadata struct {
	ChainID string
	First   uint64
	Last    uint64
}

// TraceDB is a handle of a trace database. It is safe for concurrent use.
type TraceDB struct {
	db *leveldb.DB
}

// Open opens the trace database at the given path. A database opened read
// only has to exist.
func Open(path string, readOnly bool) (*TraceDB, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		ReadOnly:           readOnly,
		ErrorIfMissing:     readOnly,
		BlockCacheCapacity: 64 * opt.MiB,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot open trace db %v; %w", path, err)
	}
	return &TraceDB{db: db}, nil
}

// OpenInMemory creates an empty trace database held in memory.
func OpenInMemory() (*TraceDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &TraceDB{db: db}, nil
}

func (t *TraceDB) Close() error {
	return t.db.Close()
}

func BlockKey(number uint64) []byte {
	key := make([]byte, 9)
	key[0] = BlockPrefix
	binary.BigEndian.PutUint64(key[1:], number)
	return key
}

func TraceKey(number uint64, index int) []byte {
	key := make([]byte, 13)
	key[0] = TracePrefix
	binary.BigEndian.PutUint64(key[1:], number)
	binary.BigEndian.PutUint32(key[9:], uint32(index))
	return key
}

type transactionRecord struct {
	Hash     string
	Index    uint64
	Kind     txcontext.TxKind
	Class    txcontext.ClassKind
	Version  string
	Sender   string
	Reverted bool
	Payload  []byte
}

type blockRecord struct {
	Snapshot     txcontext.Snapshot
	Transactions []transactionRecord
}

// traceRecord holds either the trace of a transaction or the failure of
// its execution.
type traceRecord struct {
	Failure  executor.FailureKind
	Message  string
	Libfuncs []string
}

func (t *TraceDB) get(key []byte, value any) error {
	data, err := t.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := rlp.DecodeBytes(data, value); err != nil {
		return fmt.Errorf("cannot decode %x; %w", key, err)
	}
	return nil
}

func (t *TraceDB) put(key []byte, value any) error {
	enc, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("failed encoding %x to RLP; %w", key, err)
	}
	return t.db.Put(key, enc, nil)
}

// PutBlock stores a block including all its transactions.
func (t *TraceDB) PutBlock(block *txcontext.Block) error {
	rec := blockRecord{
		Snapshot:     block.Snapshot,
		Transactions: make([]transactionRecord, 0, len(block.Transactions)),
	}
	for _, tx := range block.Transactions {
		rec.Transactions = append(rec.Transactions, transactionRecord{
			Hash:     tx.Hash,
			Index:    uint64(tx.Index),
			Kind:     tx.Kind,
			Class:    tx.Class,
			Version:  tx.Version,
			Sender:   tx.Sender,
			Reverted: tx.Reverted,
			Payload:  tx.Payload,
		})
	}
	return t.put(BlockKey(block.Number()), &rec)
}

// GetBlock loads a block stored by PutBlock.
func (t *TraceDB) GetBlock(number uint64) (*txcontext.Block, error) {
	var rec blockRecord
	if err := t.get(BlockKey(number), &rec); err != nil {
		return nil, err
	}
	block := &txcontext.Block{
		Snapshot:     rec.Snapshot,
		Transactions: make([]txcontext.Transaction, 0, len(rec.Transactions)),
	}
	for _, tx := range rec.Transactions {
		block.Transactions = append(block.Transactions, txcontext.Transaction{
			Hash:     tx.Hash,
			Index:    int(tx.Index),
			Kind:     tx.Kind,
			Class:    tx.Class,
			Version:  tx.Version,
			Sender:   tx.Sender,
			Reverted: tx.Reverted,
			Payload:  tx.Payload,
		})
	}
	return block, nil
}

// PutTrace stores the trace of a successfully executed transaction.
func (t *TraceDB) PutTrace(number uint64, index int, trace txcontext.Trace) error {
	libfuncs := []string(trace)
	if libfuncs == nil {
		libfuncs = []string{}
	}
	return t.put(TraceKey(number, index), &traceRecord{Libfuncs: libfuncs})
}

// PutFailure stores the failure of a transaction execution.
func (t *TraceDB) PutFailure(number uint64, index int, kind executor.FailureKind, cause error) error {
	return t.put(TraceKey(number, index), &traceRecord{Failure: kind, Message: fmt.Sprint(cause)})
}

// GetTrace loads the trace of a transaction. A recorded failure is returned
// as an error wrapping the matching execution error.
func (t *TraceDB) GetTrace(number uint64, index int) (txcontext.Trace, error) {
	var rec traceRecord
	if err := t.get(TraceKey(number, index), &rec); err != nil {
		return nil, err
	}
	switch rec.Failure {
	case 0:
		return rec.Libfuncs, nil
	case executor.Timeout:
		return nil, fmt.Errorf("%w; recorded: %v", executor.ErrTimeout, rec.Message)
	case executor.UnsupportedTransaction:
		return nil, fmt.Errorf("%w; recorded: %v", executor.ErrUnsupportedTransaction, rec.Message)
	default:
		return nil, fmt.Errorf("%w; recorded: %v", executor.ErrExecution, rec.Message)
	}
}

// GetMetadata returns the description of the database's content.
func (t *TraceDB) GetMetadata() (Metadata, error) {
	var md Metadata
	err := t.get([]byte(MetadataKey), &md)
	return md, err
}

// ExtendMetadata widens the recorded block range by the given range.
func (t *TraceDB) ExtendMetadata(chainID string, first, last uint64) error {
	md, err := t.GetMetadata()
	switch {
	case errors.Is(err, ErrNotFound):
		md = Metadata{ChainID: chainID, First: first, Last: last}
	case err != nil:
		return err
	default:
		if md.ChainID != "" && chainID != "" && md.ChainID != chainID {
			return fmt.Errorf("trace db holds chain %v, cannot add blocks of chain %v", md.ChainID, chainID)
		}
		if md.ChainID == "" {
			md.ChainID = chainID
		}
		md.First = min(md.First, first)
		md.Last = max(md.Last, last)
	}
	return t.put([]byte(MetadataKey), &md)
}

// Stats counts the blocks and traces of the database.
type Stats struct {
	Blocks   uint64
	Traces   uint64
	Failures uint64
}

func (t *TraceDB) Stats() (Stats, error) {
	var res Stats
	blocks := t.db.NewIterator(util.BytesPrefix([]byte{BlockPrefix}), nil)
	for blocks.Next() {
		res.Blocks++
	}
	blocks.Release()
	if err := blocks.Error(); err != nil {
		return res, err
	}

	traces := t.db.NewIterator(util.BytesPrefix([]byte{TracePrefix}), nil)
	defer traces.Release()
	for traces.Next() {
		var rec traceRecord
		if err := rlp.DecodeBytes(traces.Value(), &rec); err != nil {
			return res, fmt.Errorf("cannot decode %x; %w", traces.Key(), err)
		}
		res.Traces++
		if rec.Failure != 0 {
			res.Failures++
		}
	}
	return res, traces.Error()
}
