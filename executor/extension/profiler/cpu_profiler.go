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


package profiler

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/Fantom-foundation/libfunc-replay/executor"
	"github.com/Fantom-foundation/libfunc-replay/executor/extension"
	"github.com/Fantom-foundation/libfunc-replay/utils"
)

// MakeCpuProfiler creates an executor.Extension that records CPU profiling
// data for the duration of the replay if enabled in the configuration.
func MakeCpuProfiler(cfg *utils.Config) executor.Extension {
	if cfg.CPUProfile == "" {
		return extension.NilExtension{}
	}
	return &cpuProfiler{cfg: cfg}
}

type cpuProfiler struct {
	extension.NilExtension
	cfg  *utils.Config
	file *os.File
}

func (p *cpuProfiler) PreRun(executor.State, *executor.Context) error {
	f, err := os.Create(p.cfg.CPUProfile)
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return fmt.Errorf("could not start CPU profile: %w", err)
	}
	p.file = f
	return nil
}

func (p *cpuProfiler) PostRun(executor.State, *executor.Context, error) error {
	if p.file == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := p.file.Close()
	p.file = nil
	return err
}
