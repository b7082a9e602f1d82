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
	"errors"
	"fmt"
	"maps"
	"os/exec"
	"runtime"
	"strings"

	"github.com/Fantom-foundation/libfunc-replay/utils"
)

const (
	metadataCreateTableIfNotExist = `
		CREATE TABLE IF NOT EXISTS metadata (
			run STRING NOT NULL,
			key STRING NOT NULL,
			value STRING NOT NULL,
			PRIMARY KEY (run, key)
		)
	`

	metadataInsertOrReplace = `
		INSERT or REPLACE INTO metadata (
			run, key, value
		) VALUES (
			?, ?, ?
		)
	`
	bashCmdProcessor = "cat /proc/cpuinfo | grep \"^model name\" | head -n 1 | awk -F': ' '{print $2}'"
	bashCmdMemory    = "free | grep \"^Mem:\" | awk '{printf(\"%dGb RAM\", $2/1024/1024)}'"
	bashCmdOs        = "source /etc/*-release; echo $DISTRIB_DESCRIPTION"
	bashCmdGitHash   = "git rev-parse HEAD"
	bashCmdHostname  = "hostname"
)

// RunMetadata describes a run next to its report in the report database.
// All rows are keyed by the run id.
type RunMetadata struct {
	RunId string
	Meta  map[string]string
	ps    *utils.Printers
}

type FetchInfo func() (map[string]string, error)

func MakeRunMetadata(connection string, id *RunIdentity, fetchEnv FetchInfo) (*RunMetadata, error) {
	return makeRunMetadata(connection, id.GetId(), id.fetchConfigInfo, fetchEnv)
}

// makeRunMetadata creates RunMetadata to keep track of metadata about the run.
// 1. collect run config, timestamp and app name.
// 2. fetch environment information about where the run is executed.
// 3. On Print(), print all metadata into the corresponding table.
// Failures of 1. and 2. are returned as warnings together with the metadata.
func makeRunMetadata(connection string, runId string, fetchCfg FetchInfo, fetchEnv FetchInfo) (*RunMetadata, error) {
	rm := &RunMetadata{
		RunId: runId,
		Meta:  make(map[string]string),
		ps:    utils.NewPrinters(),
	}

	var warnings error

	// 1. collect run config, timestamp and app name.
	cfgInfo, w := fetchCfg()
	if w != nil {
		warnings = errors.Join(warnings, w)
	}
	maps.Copy(rm.Meta, cfgInfo)

	// 2. fetch environment information about where the run is executed.
	envInfo, w := fetchEnv()
	if w != nil {
		warnings = errors.Join(warnings, w)
	}
	maps.Copy(rm.Meta, envInfo)

	// 3. On Print(), print all metadata into the corresponding table.
	if _, err := rm.ps.AddPrintToSqlite3(connection, metadataCreateTableIfNotExist, metadataInsertOrReplace, rm.rows); err != nil {
		return nil, err
	}

	return rm, warnings
}

func (rm *RunMetadata) Print() error {
	return rm.ps.Print()
}

func (rm *RunMetadata) Close() {
	rm.ps.Close()
}

// FetchUnixInfo fetches environment info by executing a number of linux commands.
// Any errors are collected and returned.
func FetchUnixInfo() (map[string]string, error) {
	cmds := map[string]string{
		"Processor": bashCmdProcessor,
		"Memory":    bashCmdMemory,
		"Os":        bashCmdOs,
		"GitHash":   bashCmdGitHash,
		"Hostname":  bashCmdHostname,
	}

	envs := make(map[string]string, len(cmds)+1)
	envs["GoVersion"] = runtime.Version()
	var errs error
	for tag, cmd := range cmds {
		out, err := bash(cmd)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("bash cmd failed to get %s; %v", tag, err))
		}
		envs[tag] = out
	}
	return envs, errs
}

func bash(cmd string) (string, error) {
	out, err := exec.Command("bash", "-c", cmd).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (rm *RunMetadata) rows() [][]any {
	values := make([][]any, 0, len(rm.Meta))
	for k, v := range rm.Meta {
		values = append(values, []any{rm.RunId, k, v})
	}
	return values
}
