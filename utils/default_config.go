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

package utils

import (
	"fmt"
	"reflect"

	"github.com/Fantom-foundation/libfunc-replay/logger"
	"github.com/urfave/cli/v2"
)

// createConfigFromFlags returns Config instance with user specified values or the default ones
func createConfigFromFlags(ctx *cli.Context) (*Config, map[string]bool, error) {
	cfg := &Config{
		AppName:     ctx.App.HelpName,
		CommandName: ctx.Command.Name,
	}

	// string of this map has to exactly match the name of the field in Config struct
	cfgFlags := map[string]interface{}{
		"ClassCache":         ClassCacheFlag,
		"CPUProfile":         CpuProfileFlag,
		"DiagnosticServer":   DiagnosticServerFlag,
		"ErrorLogging":       ErrorLoggingFlag,
		"HistogramOut":       HistogramOutFlag,
		"LogLevel":           logger.LogLevelFlag,
		"MemoryProfile":      MemoryProfileFlag,
		"NoHeartbeatLogging": NoHeartbeatLoggingFlag,
		"Overwrite":          OverwriteFlag,
		"ReportDb":           ReportDbFlag,
		"RequireHistogram":   RequireHistogramFlag,
		"RpcRetries":         RpcRetriesFlag,
		"RpcUrl":             RpcUrlFlag,
		"SerialReplay":       SerialReplayFlag,
		"Threshold":          ThresholdFlag,
		"TraceDb":            TraceDbFlag,
		"TraceOut":           TraceOutFlag,
		"TxTimeout":          TxTimeoutFlag,
		"TxtOut":             TxtOutFlag,
		"Verbose":            VerboseFlag,
		"VmBinary":           VmBinaryFlag,
		"VmImpl":             VmImplementationFlag,
		"Workers":            WorkersFlag,
	}

	cfgValue := reflect.ValueOf(cfg).Elem()

	specifiedFlags := make(map[string]bool)

	for cfgName, flag := range cfgFlags {
		value, isSpecified, flagName := getFlagValue(ctx, flag)
		if isSpecified {
			specifiedFlags[flagName] = true
		}

		field := cfgValue.FieldByName(cfgName)
		if !field.IsValid() {
			return nil, nil, fmt.Errorf("field %s is not valid", cfgName)
		}
		if !field.CanSet() {
			return nil, nil, fmt.Errorf("field %s cannot be set", cfgName)
		}

		field.Set(reflect.ValueOf(value))
	}

	return cfg, specifiedFlags, nil
}

// getFlagValue returns value specified by user if flag is present in cli context, otherwise return default flag value
func getFlagValue(ctx *cli.Context, flag interface{}) (interface{}, bool, string) {
	var cmdFlags []cli.Flag
	if ctx.Command != nil {
		cmdFlags = ctx.Command.Flags
	}
	for _, cmdFlag := range cmdFlags {
		switch f := flag.(type) {
		case cli.IntFlag:
			if cmdFlag.Names()[0] == f.Name {
				return ctx.Int(f.Name), true, f.Name
			}
		case cli.Uint64Flag:
			if cmdFlag.Names()[0] == f.Name {
				return ctx.Uint64(f.Name), true, f.Name
			}
		case cli.Int64Flag:
			if cmdFlag.Names()[0] == f.Name {
				return ctx.Int64(f.Name), true, f.Name
			}
		case cli.StringFlag:
			if cmdFlag.Names()[0] == f.Name {
				return ctx.String(f.Name), true, f.Name
			}
		case cli.PathFlag:
			if cmdFlag.Names()[0] == f.Name {
				return ctx.Path(f.Name), true, f.Name
			}
		case cli.BoolFlag:
			if cmdFlag.Names()[0] == f.Name {
				return ctx.Bool(f.Name), true, f.Name
			}
		case cli.DurationFlag:
			if cmdFlag.Names()[0] == f.Name {
				return ctx.Duration(f.Name), true, f.Name
			}
		}
	}

	// If flag not found, return the default value of the flag and false
	switch f := flag.(type) {
	case cli.IntFlag:
		return f.Value, false, f.Name
	case cli.Uint64Flag:
		return f.Value, false, f.Name
	case cli.Int64Flag:
		return f.Value, false, f.Name
	case cli.StringFlag:
		return f.Value, false, f.Name
	case cli.PathFlag:
		return f.Value, false, f.Name
	case cli.BoolFlag:
		return f.Value, false, f.Name
	case cli.DurationFlag:
		return f.Value, false, f.Name
	}
	return nil, false, ""
}
