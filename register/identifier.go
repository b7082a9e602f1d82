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


package register

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/Fantom-foundation/libfunc-replay/utils"
)

// RunIdentity identifies a run by its start time and configuration.
type RunIdentity struct {
	Timestamp int64
	Cfg       *utils.Config
}

func MakeRunIdentity(t int64, cfg *utils.Config) *RunIdentity {
	return &RunIdentity{Timestamp: t, Cfg: cfg}
}

// GetId returns a hash over the timestamp and the settings selecting what
// was replayed and how.
func (id *RunIdentity) GetId() string {
	cfg := id.Cfg
	key := fmt.Sprintf("%d|%s|%s|%d|%d|%s|%s|%s|%d",
		id.Timestamp, cfg.AppName, cfg.CommandName, cfg.First, cfg.Last,
		cfg.VmImpl, cfg.RpcUrl, cfg.TraceDb, cfg.Threshold,
	)
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (id *RunIdentity) fetchConfigInfo() (map[string]string, error) {
	cfg := id.Cfg
	info := map[string]string{
		"RunId":       id.GetId(),
		"Timestamp":   time.Unix(id.Timestamp, 0).UTC().Format(time.RFC3339),
		"AppName":     cfg.AppName,
		"CommandName": cfg.CommandName,
		"First":       strconv.FormatUint(cfg.First, 10),
		"Last":        strconv.FormatUint(cfg.Last, 10),
		"VmImpl":      cfg.VmImpl,
		"Workers":     strconv.Itoa(cfg.Workers),
		"TxTimeout":   cfg.TxTimeout.String(),
		"Threshold":   strconv.FormatUint(cfg.Threshold, 10),
	}
	if cfg.RpcUrl != "" {
		info["RpcUrl"] = cfg.RpcUrl
	}
	if cfg.TraceDb != "" {
		info["TraceDb"] = cfg.TraceDb
	}
	return info, nil
}
