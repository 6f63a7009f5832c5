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

// Package main is the thin external-collaborator-shaped driver around the
// core library (§6.3): it owns the suite file, the working directory, and
// the per-run log file, and otherwise just calls into config, dwarf,
// constraint, randomizer, pack and datapattern in order.
package main

import (
	"os"
	"path/filepath"

	"github.com/cobaltfuzz/sleipnir/config"
	"github.com/cobaltfuzz/sleipnir/constraint"
	"github.com/cobaltfuzz/sleipnir/datapattern"
	"github.com/cobaltfuzz/sleipnir/dwarf"
	"github.com/cobaltfuzz/sleipnir/enumtable"
	"github.com/cobaltfuzz/sleipnir/errors"
	"github.com/cobaltfuzz/sleipnir/frame"
	"github.com/cobaltfuzz/sleipnir/frametype"
	"github.com/cobaltfuzz/sleipnir/internal/rng"
	"github.com/cobaltfuzz/sleipnir/logger"
	"github.com/cobaltfuzz/sleipnir/pack"
	"github.com/cobaltfuzz/sleipnir/randomizer"
)

// Generate runs the full flow described by the suite at configPath: it
// parses the ELF's debug info once, then for every test entry produces the
// frame binary/text pair and the data binary the suite's params request,
// writing the updated file/param bookkeeping back to configPath. The
// working directory is the output root (§6.4).
func Generate(configPath string) error {
	suite, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logFile, err := os.Create(filepath.Join(".", "sleipnir.log"))
	if err != nil {
		return err
	}
	defer func() {
		logger.Write(logFile)
		logFile.Close()
	}()

	src := rng.New(suite.Seed)

	result, err := dwarf.ParseFile(suite.Elf)
	if err != nil {
		return err
	}
	frameDescriptor, ok := result.Types[suite.FrameType]
	if !ok {
		return errors.Errorf(errors.UnknownType, suite.FrameType)
	}

	enums := enumtable.New(result.Enumerators)
	compiler, err := constraint.NewCompiler(enums)
	if err != nil {
		return err
	}

	for i := range suite.Test {
		if err := generateTest(&suite.Test[i], frameDescriptor, compiler, src); err != nil {
			return err
		}
	}

	return writeBack(configPath, suite)
}

func generateTest(test *config.Test, frameDescriptor frametype.Descriptor, compiler *constraint.Compiler, src *rng.Source) error {
	base := pack.OutputBase(".", test.ID)

	if fp, ok := test.FrameParamsOrSkip(); ok {
		if err := generateFrames(test, base, frameDescriptor, compiler, src, fp); err != nil {
			return err
		}
	}

	return generateData(test, base, src)
}

func generateFrames(test *config.Test, base string, frameDescriptor frametype.Descriptor, compiler *constraint.Compiler, src *rng.Source, fp config.FrameParams) error {
	it, err := randomizer.NewIterator(frameDescriptor, compiler, src, fp.RndCfg, fp.NumCmds)
	if err != nil {
		return err
	}

	frames := make([]*frame.Tree, 0, fp.NumCmds)
	for it.Next() {
		frames = append(frames, it.Frame())
	}
	if err := it.Err(); err != nil {
		return err
	}

	binPath, _, err := pack.WriteFrames(base, frames)
	if err != nil {
		return err
	}

	name := filepath.Base(binPath)
	test.Files = pack.AddFileToYML(test.Files, name)
	if test.Params == nil {
		test.Params = map[string]any{}
	}
	pack.AddFileToParams(test.Params, pack.VarNameFileFrame, name)
	test.Params[pack.VarNameNumCmdsFrame] = fp.NumCmds

	logger.Logf(logger.Allow, "slpgen", "test %d: wrote %d frames to %s", test.ID, len(frames), name)
	return nil
}

func generateData(test *config.Test, base string, src *rng.Source) error {
	opts, err := test.DataOptionsWithDefaults()
	if err != nil {
		return err
	}

	dataPath := base + pack.SuffixBinData
	f, err := os.Create(dataPath)
	if err != nil {
		return err
	}
	defer f.Close()

	var size int
	if opts.CustomFile != "" {
		n, err := datapattern.CopyCustomFile(f, opts.CustomFile)
		if err != nil {
			return err
		}
		size = int(n)
	} else {
		if err := datapattern.Generate(f, opts.Pattern, opts.Size, src); err != nil {
			return err
		}
		size = opts.Size
	}

	name := filepath.Base(dataPath)
	test.Files = pack.AddFileToYML(test.Files, name)
	if test.Params == nil {
		test.Params = map[string]any{}
	}
	pack.AddFileToParams(test.Params, pack.VarNameFileData, name)
	test.Params[pack.VarNameSizeData] = size

	logger.Logf(logger.Allow, "slpgen", "test %d: wrote %d data bytes to %s", test.ID, size, name)
	return nil
}
