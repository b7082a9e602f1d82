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

package txcontext

import "strings"

// TxKind discriminates the transaction types of the chain.
type TxKind byte

const (
	UnknownTx TxKind = iota
	InvokeTx
	DeclareTx
	DeployAccountTx
	DeployTx
	L1HandlerTx
)

var txKindNames = map[TxKind]string{
	UnknownTx:       "UNKNOWN",
	InvokeTx:        "INVOKE",
	DeclareTx:       "DECLARE",
	DeployAccountTx: "DEPLOY_ACCOUNT",
	DeployTx:        "DEPLOY",
	L1HandlerTx:     "L1_HANDLER",
}

func (k TxKind) String() string {
	if name, ok := txKindNames[k]; ok {
		return name
	}
	return txKindNames[UnknownTx]
}

// ParseTxKind converts the type tag used by the RPC interface into a TxKind.
// Unrecognised tags yield UnknownTx.
func ParseTxKind(s string) TxKind {
	s = strings.ToUpper(strings.TrimSpace(s))
	for kind, name := range txKindNames {
		if name == s {
			return kind
		}
	}
	return UnknownTx
}

// ClassKind tells which compiler produced the contract class a transaction
// is executing.
type ClassKind byte

const (
	UnknownClass ClassKind = iota
	// SierraClass contracts are compiled to the intermediate representation
	// built from libfuncs. Only these produce libfunc traces.
	SierraClass
	// LegacyClass contracts are Cairo 0 programs.
	LegacyClass
)

func (k ClassKind) String() string {
	switch k {
	case SierraClass:
		return "sierra"
	case LegacyClass:
		return "legacy"
	default:
		return "unknown"
	}
}

// Transaction is a single transaction of a block together with everything
// an execution backend needs to replay it.
type Transaction struct {
	// Hash identifies the transaction; treated as an opaque string.
	Hash string
	// Index is the position of the transaction within its block.
	Index int
	Kind  TxKind
	// Class is the kind of the contract class executed by the transaction.
	Class ClassKind
	// Version is the transaction version as reported by the chain.
	Version string
	// Sender is the account whose code the transaction runs.
	Sender string
	// Reverted is set if the transaction was rejected on chain. Reverted
	// transactions are still replayed.
	Reverted bool
	// Payload is the raw transaction as delivered by the data source.
	Payload []byte
}

// Eligible reports whether the transaction is to be replayed, which is only
// the case for invocations of Sierra contracts.
func (tx *Transaction) Eligible() bool {
	return tx.Kind == InvokeTx && tx.Class == SierraClass
}
