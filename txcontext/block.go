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

// GasPrice is a price quoted in both fee tokens, as hex strings.
type GasPrice struct {
	InWei string `json:"price_in_wei"`
	InFri string `json:"price_in_fri"`
}

// Snapshot is the block environment required to execute the transactions
// of a block: the header data of the block itself and the chain it is on.
// State is read by the backend from the parent block, so no state content
// is carried here.
type Snapshot struct {
	ChainID          string   `json:"chain_id"`
	Number           uint64   `json:"block_number"`
	Hash             string   `json:"block_hash"`
	ParentHash       string   `json:"parent_hash"`
	Timestamp        uint64   `json:"timestamp"`
	SequencerAddress string   `json:"sequencer_address"`
	StarknetVersion  string   `json:"starknet_version"`
	L1GasPrice       GasPrice `json:"l1_gas_price"`
	L1DataGasPrice   GasPrice `json:"l1_data_gas_price"`
	L1DAMode         string   `json:"l1_da_mode"`
}

// Block is a block fetched from a block source.
type Block struct {
	Snapshot     Snapshot
	Transactions []Transaction
}

// Number returns the block number.
func (b *Block) Number() uint64 {
	return b.Snapshot.Number
}

// Eligible returns the transactions of the block that need to be replayed,
// in block order.
func (b *Block) Eligible() []*Transaction {
	res := make([]*Transaction, 0, len(b.Transactions))
	for i := range b.Transactions {
		if b.Transactions[i].Eligible() {
			res = append(res, &b.Transactions[i])
		}
	}
	return res
}

// Trace is the list of libfuncs invoked while executing one transaction.
// Order is irrelevant to aggregation and names repeat once per invocation.
type Trace []string
