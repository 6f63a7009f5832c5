// This file is part of Sleipnir.
//
// Sleipnir is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Sleipnir is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Sleipnir.  If not, see <https://www.gnu.org/licenses/>.

// Package config parses a generation run's input suite: a seed plus a list
// of per-test parameter blocks. It validates the keys the rest of the
// pipeline depends on up front, and defaults or skips optional phases the
// way the original preprocessor's callers did, logging each decision.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cobaltfuzz/sleipnir/constraint"
	"github.com/cobaltfuzz/sleipnir/datapattern"
	"github.com/cobaltfuzz/sleipnir/errors"
	"github.com/cobaltfuzz/sleipnir/logger"
	"github.com/cobaltfuzz/sleipnir/pack"
)

// FrameParams is a test's params.sleipnir.frame block.
type FrameParams struct {
	NumCmds int               `yaml:"num_cmds"`
	RndCfg  constraint.Config `yaml:"rnd_cfg"`
}

// SleipnirParams is a test's params.sleipnir block: the frame phase plus
// the data phase's options.
type SleipnirParams struct {
	Frame          *FrameParams `yaml:"frame,omitempty"`
	CustomDataFile string       `yaml:"custom_data_file,omitempty"`
	DataFileSize   *int         `yaml:"data_file_size,omitempty"`
	DataPattern    string       `yaml:"data_pattern,omitempty"`
}

// Params is a test's params mapping.
type Params struct {
	Sleipnir SleipnirParams `yaml:"sleipnir"`
}

// Test is one entry of the suite's test list.
type Test struct {
	ID     int              `yaml:"id"`
	Params map[string]any   `yaml:"params"`
	Files  []pack.FileEntry `yaml:"files"`

	parsedParams Params
}

// Suite is the parsed input configuration (§6.1): a seed and a list of
// tests to generate collaterals for, plus the ELF the frame layout is
// reconstructed from (the spec's distillation left this operational
// detail unstated; it is added here since generate() cannot locate debug
// info without it).
type Suite struct {
	Seed      int64  `yaml:"seed"`
	Elf       string `yaml:"elf"`
	FrameType string `yaml:"frame_type,omitempty"`
	Test      []Test `yaml:"test"`
}

// DefaultFrameType is used when a suite omits frame_type.
const DefaultFrameType = "Frame"

// Load reads and validates the suite file at path. It requires the
// top-level "seed", "elf" and "test" keys, and each test's "params" and
// "id" keys, per the original preprocessor's checks; any other key is
// optional.
func Load(path string) (*Suite, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	for _, key := range []string{"seed", "elf", "test"} {
		if _, ok := generic[key]; !ok {
			return nil, errors.Errorf(errors.MissingConfigKey, key)
		}
	}
	tests, _ := generic["test"].([]any)
	for _, t := range tests {
		tm, ok := t.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"params", "id"} {
			if _, ok := tm[key]; !ok {
				return nil, errors.Errorf(errors.MissingConfigKey, key)
			}
		}
	}

	var suite Suite
	if err := yaml.Unmarshal(raw, &suite); err != nil {
		return nil, err
	}
	if suite.FrameType == "" {
		suite.FrameType = DefaultFrameType
	}
	for i := range suite.Test {
		t := &suite.Test[i]
		if t.Files == nil {
			t.Files = []pack.FileEntry{}
		}
		node, err := reencodeParams(t.Params)
		if err != nil {
			return nil, err
		}
		t.parsedParams = node
	}
	return &suite, nil
}

// reencodeParams recovers the typed sleipnir block from the test's generic
// params map, since YAML unmarshaling into map[string]any loses struct
// typing for nested fields.
func reencodeParams(params map[string]any) (Params, error) {
	raw, err := yaml.Marshal(params)
	if err != nil {
		return Params{}, err
	}
	var p Params
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Params{}, err
	}
	return p, nil
}

// FrameParamsOrSkip returns t's frame params, or ok=false if the frame
// phase should be skipped because params.sleipnir.frame or its num_cmds
// is absent (a negative num_cmds is skipped the same way), logging the
// reason either way. An explicit num_cmds of 0 runs the phase with no frames.
func (t Test) FrameParamsOrSkip() (FrameParams, bool) {
	fp := t.parsedParams.Sleipnir.Frame
	if fp == nil {
		logger.Logf(logger.Allow, "config", "params for 'frame' not set for test %d, skipping generating frames", t.ID)
		return FrameParams{}, false
	}
	sp, _ := t.Params["sleipnir"].(map[string]any)
	fm, _ := sp["frame"].(map[string]any)
	if _, set := fm["num_cmds"]; !set || fp.NumCmds < 0 {
		logger.Logf(logger.Allow, "config", "'num_cmds' for 'frame' not set for test %d, skipping generating frames", t.ID)
		return FrameParams{}, false
	}
	if len(fp.RndCfg.ConstraintsFrame) == 0 && len(fp.RndCfg.PerCmdConstraintsFrame) == 0 && len(fp.RndCfg.Enables) == 0 {
		logger.Logf(logger.Allow, "config", "'rnd_cfg' for 'frame' not set for test %d, no user constraints will be applied", t.ID)
	}
	return *fp, true
}

// DataOptions is the resolved data phase configuration for a test, with
// defaults applied for any key the suite omitted.
type DataOptions struct {
	CustomFile string
	Size       int
	Pattern    datapattern.Pattern
}

// DataOptionsWithDefaults resolves t's data phase options, defaulting and
// logging omissions the way the original util functions did.
func (t Test) DataOptionsWithDefaults() (DataOptions, error) {
	sp := t.parsedParams.Sleipnir

	if sp.CustomDataFile != "" {
		logger.Logf(logger.Allow, "config", "using data from custom_data_file %s for test %d", sp.CustomDataFile, t.ID)
		if _, err := os.Stat(sp.CustomDataFile); err != nil {
			return DataOptions{}, errors.Errorf(errors.CustomDataFileMissing, sp.CustomDataFile)
		}
		return DataOptions{CustomFile: sp.CustomDataFile}, nil
	}

	size := datapattern.DefSize
	if sp.DataFileSize != nil {
		size = *sp.DataFileSize
	} else {
		logger.Logf(logger.Allow, "config", "'data_file_size' not set for test %d, using default", t.ID)
	}

	pattern := datapattern.IncrStd
	if sp.DataPattern != "" {
		p, ok := datapattern.ParsePattern(sp.DataPattern)
		if !ok {
			return DataOptions{}, errors.Errorf(errors.MissingConfigKey, "data_pattern")
		}
		pattern = p
	} else {
		logger.Logf(logger.Allow, "config", "'data_pattern' not set for test %d, using default", t.ID)
	}

	return DataOptions{Size: size, Pattern: pattern}, nil
}
