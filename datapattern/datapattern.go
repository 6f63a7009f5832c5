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

// Package datapattern fills a test's data binary with one of the five byte
// patterns a suite entry can request: a cryptographically unpredictable
// fill, an incrementing or decrementing 32-bit counter from a fixed or
// random starting offset, or a byte-exact copy of a user-supplied file.
package datapattern

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"os"

	"github.com/cobaltfuzz/sleipnir/errors"
	"github.com/cobaltfuzz/sleipnir/internal/rng"
)

// Pattern selects which byte pattern Generate writes.
type Pattern int

const (
	IncrStd Pattern = iota
	DecrStd
	IncrRnd
	DecrRnd
	AllRnd
)

// ParsePattern maps a suite file's pattern name to a Pattern.
func ParsePattern(name string) (Pattern, bool) {
	switch name {
	case "INCR_STD":
		return IncrStd, true
	case "DECR_STD":
		return DecrStd, true
	case "INCR_RND":
		return IncrRnd, true
	case "DECR_RND":
		return DecrRnd, true
	case "ALL_RND":
		return AllRnd, true
	default:
		return 0, false
	}
}

const (
	// DefSize is the data file size used when a suite entry omits one.
	DefSize = 1024 * 1024

	// ChunkSize is the largest single crypto/rand draw Generate makes for
	// ALL_RND, so a multi-megabyte fill doesn't require one giant read.
	ChunkSize = 1024

	// StdOffset is the first word written by INCR_STD/DECR_STD.
	StdOffset = 0xCAFE0000
)

// Generate writes numBytes to w under pattern, drawing any randomness it
// needs from src. It does not open or size the destination file; callers
// decide where the bytes land.
func Generate(w io.Writer, pattern Pattern, numBytes int, src *rng.Source) error {
	if pattern == AllRnd {
		return writeAllRnd(w, numBytes)
	}
	return writeSequence(w, pattern, numBytes, src)
}

func writeAllRnd(w io.Writer, numBytes int) error {
	buf := make([]byte, ChunkSize)
	full := numBytes / ChunkSize
	for i := 0; i < full; i++ {
		if _, err := rand.Read(buf); err != nil {
			return err
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	if rem := numBytes % ChunkSize; rem > 0 {
		if _, err := rand.Read(buf[:rem]); err != nil {
			return err
		}
		if _, err := w.Write(buf[:rem]); err != nil {
			return err
		}
	}
	return nil
}

func writeSequence(w io.Writer, pattern Pattern, numBytes int, src *rng.Source) error {
	var incr int32 = 1
	if pattern == DecrStd || pattern == DecrRnd {
		incr = -1
	}

	var offset uint32
	switch pattern {
	case IncrStd, DecrStd:
		offset = StdOffset
	case IncrRnd, DecrRnd:
		offset = uint32(src.BigInt(32).Uint64())
	default:
		return errors.Errorf(errors.InvalidField, "unsupported sequence pattern")
	}

	buf := make([]byte, 4)
	words := numBytes / 4
	for x := 0; x < words; x++ {
		binary.LittleEndian.PutUint32(buf, offset+uint32(incr*int32(x)))
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// CopyCustomFile copies path byte-for-byte to w, returning the number of
// bytes copied (which becomes the test's reported data size).
func CopyCustomFile(w io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Errorf(errors.CustomDataFileMissing, path)
	}
	defer f.Close()
	return io.Copy(w, f)
}
