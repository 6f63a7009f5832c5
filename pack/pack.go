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

// Package pack serializes a sequence of Frame trees to the two output
// formats a generation run produces: a packed little-endian binary and a
// debug-oriented YAML text rendering (component F). It reads frames only
// through their public Value/Descriptor/Children accessors, is stateless
// between frames, and does not cache anything across calls.
package pack

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cobaltfuzz/sleipnir/frame"
	"github.com/cobaltfuzz/sleipnir/frametype"
)

// Prefixes and suffixes for the files a generation run emits, matching the
// names the Sleipnir C-side handler looks for.
const (
	PrefixDef     = "slp"
	prefixDefTest = ".test_%02d"

	SuffixBinFrame = ".frames.bin"
	SuffixYmlFrame = ".frames.yml"
	SuffixBinData  = ".data.bin"
)

// Variable names a generation run writes back into a test's params and
// files entries.
const (
	VarNameNumCmdsFrame = "num_frames"
	VarNameSizeData     = "size_data"
	VarNameFileFrame    = "file_frames"
	VarNameFileData     = "file_data"
)

// OutputBase returns the shared path prefix (without suffix) for test id
// within root, e.g. root/slp.test_03.
func OutputBase(root string, id int) string {
	return filepath.Join(root, PrefixDef+fmt.Sprintf(prefixDefTest, id))
}

// WriteFrames writes frames's binary and YAML renderings to base+suffix,
// returning the two file paths it created.
func WriteFrames(base string, frames []*frame.Tree) (binPath, ymlPath string, err error) {
	binPath = base + SuffixBinFrame
	if err := writeFrameBinary(binPath, frames); err != nil {
		return "", "", err
	}

	ymlPath = base + SuffixYmlFrame
	if err := writeFrameYAML(ymlPath, frames); err != nil {
		return "", "", err
	}
	return binPath, ymlPath, nil
}

// writeFrameBinary writes each frame's top-level value as little-endian
// 32-bit words in ascending bit order: word 0 holds bits [0,32), word 1
// holds bits [32,64), and so on, zero-padded to a whole number of words.
func writeFrameBinary(path string, frames []*frame.Tree) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := io.Writer(f)
	for _, fr := range frames {
		root := fr.Root()
		if err := writeWords(w, root.Value(), root.Descriptor().Size()); err != nil {
			return err
		}
	}
	return nil
}

func writeWords(w io.Writer, v *big.Int, bits int) error {
	words := (bits + 31) / 32
	buf := make([]byte, 4)
	mask := new(big.Int).SetUint64(0xFFFFFFFF)
	shifted := new(big.Int).Set(v)
	word := new(big.Int)
	for i := 0; i < words; i++ {
		word.And(shifted, mask)
		binary.LittleEndian.PutUint32(buf, uint32(word.Uint64()))
		if _, err := w.Write(buf); err != nil {
			return err
		}
		shifted.Rsh(shifted, 32)
	}
	return nil
}

// writeFrameYAML writes frames as an ordered YAML sequence, one mapping per
// frame mirroring its aggregate's layout order, with overlays emitting
// every arm and integer leaves rendered as zero-padded hexadecimal.
func writeFrameYAML(path string, frames []*frame.Tree) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, fr := range frames {
		seq.Content = append(seq.Content, nodeToYAML(fr.Root()))
	}

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(seq)
}

func nodeToYAML(n frame.Node) *yaml.Node {
	switch d := n.Descriptor().(type) {
	case frametype.Aggregate:
		return mappingOf(n.Children())
	case frametype.Overlay:
		return mappingOf(n.Children())
	case frametype.Array:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, c := range n.Children() {
			seq.Content = append(seq.Content, nodeToYAML(c))
		}
		return seq
	default:
		width := int(math.Ceil(float64(d.Size()) / 4))
		hex := n.Value().Text(16)
		if pad := width - len(hex); pad > 0 {
			hex = strings.Repeat("0", pad) + hex
		}
		return &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!int",
			Value: "0x" + hex,
		}
	}
}

func mappingOf(children []frame.Node) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, c := range children {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c.Name()}
		m.Content = append(m.Content, key, nodeToYAML(c))
	}
	return m
}

// FileEntry is one entry appended to a test's files list after an output
// file is written.
type FileEntry struct {
	Filename string `yaml:"filename"`
	Mode     string `yaml:"mode"`
	Attr     string `yaml:"attr"`
}

// AddFileToYML appends the standard {filename, mode: c, attr: aligned (4)}
// bookkeeping entry for filename to files.
func AddFileToYML(files []FileEntry, filename string) []FileEntry {
	return append(files, FileEntry{Filename: filename, Mode: "c", Attr: "aligned (4)"})
}

// AddFileToParams sets params[varname] = filename, mirroring the original
// packer's bookkeeping of which output path backs which config variable.
func AddFileToParams(params map[string]any, varname, filename string) {
	params[varname] = filename
}
