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

// Package logger provides a small ring-buffered logger. Entries are kept in
// memory up to a fixed capacity and can be drained to any io.Writer, either
// in full or as a tail of the most recent entries.
package logger

import (
	"fmt"
	"io"
)

// Permission gates whether a particular caller is allowed to log at all.
// This lets noisy call sites (eg. per-frame DWARF member resolution) be
// silenced without littering the call site with conditionals.
type Permission interface {
	AllowLogging() bool
}

type allowAll struct{}

func (allowAll) AllowLogging() bool { return true }

// Allow is the permission value that always allows logging.
var Allow Permission = allowAll{}

type entry struct {
	tag    string
	detail string
}

func (e entry) String() string {
	return e.tag + ": " + e.detail + "\n"
}

// Logger is a fixed-capacity ring buffer of tagged log entries.
type Logger struct {
	capacity int
	entries  []entry
}

// NewLogger returns a Logger that retains at most capacity entries, dropping
// the oldest entry once that capacity is exceeded.
func NewLogger(capacity int) *Logger {
	return &Logger{capacity: capacity}
}

func formatDetail(detail any) string {
	switch d := detail.(type) {
	case error:
		return d.Error()
	case fmt.Stringer:
		return d.String()
	default:
		return fmt.Sprintf("%v", detail)
	}
}

// Log appends a tagged entry if perm allows logging. detail is rendered via
// its Error() or String() method when available, otherwise with %v.
func (l *Logger) Log(perm Permission, tag string, detail any) {
	if perm != nil && !perm.AllowLogging() {
		return
	}
	l.append(tag, formatDetail(detail))
}

// Logf is like Log but the detail is built with fmt.Sprintf.
func (l *Logger) Logf(perm Permission, tag string, format string, args ...any) {
	if perm != nil && !perm.AllowLogging() {
		return
	}
	l.append(tag, fmt.Sprintf(format, args...))
}

func (l *Logger) append(tag string, detail string) {
	l.entries = append(l.entries, entry{tag: tag, detail: detail})
	if l.capacity > 0 && len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}
}

// Clear discards all retained entries.
func (l *Logger) Clear() {
	l.entries = nil
}

// Write drains every retained entry to w, oldest first.
func (l *Logger) Write(w io.Writer) {
	l.Tail(w, len(l.entries))
}

// Tail writes the n most recent entries to w, oldest first. Asking for more
// entries than are held is not an error; everything available is written.
func (l *Logger) Tail(w io.Writer, n int) {
	if n > len(l.entries) {
		n = len(l.entries)
	}
	if n <= 0 {
		return
	}
	for _, e := range l.entries[len(l.entries)-n:] {
		io.WriteString(w, e.String())
	}
}

// central is the process-wide logger used by the package-level convenience
// functions below.
var central = NewLogger(1000)

// Log appends to the central logger.
func Log(perm Permission, tag string, detail any) { central.Log(perm, tag, detail) }

// Logf appends to the central logger using fmt.Sprintf formatting.
func Logf(perm Permission, tag string, format string, args ...any) {
	central.Logf(perm, tag, format, args...)
}

// Write drains the central logger to w.
func Write(w io.Writer) { central.Write(w) }

// Tail writes the n most recent entries of the central logger to w.
func Tail(w io.Writer, n int) { central.Tail(w, n) }

// Clear discards all entries in the central logger.
func Clear() { central.Clear() }
