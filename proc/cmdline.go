// Package proc resolves process command lines from the proc filesystem.
package proc

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Sentinel is reported when a command line cannot be read, typically
// because the process already exited or is not readable.
const Sentinel = "<N/A>"

// maxCmdline bounds a single read of /proc/<pid>/cmdline.
const maxCmdline = 4096

// Resolver reads command lines fresh on every call. There is no cache:
// by the time an event is processed the originating process may already
// be gone, and a stale answer would be worse than the sentinel.
type Resolver struct {
	root string
}

// NewResolver returns a resolver backed by /proc.
func NewResolver() *Resolver {
	return &Resolver{root: "/proc"}
}

// Resolve returns the current command line of pid with argument
// separators and other control bytes replaced by spaces, or Sentinel if
// the process information could not be read. Lookup failure is routine
// and never surfaced as an error.
func (r *Resolver) Resolve(pid uint32) string {
	f, err := os.Open(fmt.Sprintf("%s/%d/cmdline", r.root, pid))
	if err != nil {
		return Sentinel
	}
	defer f.Close()

	buf := make([]byte, maxCmdline)
	// One read is enough: the kernel hands out the whole file in a
	// single call. A short read is accepted as-is.
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return Sentinel
	}
	line := bytes.TrimRight(buf[:n], "\x00")
	for i, b := range line {
		if b < 32 {
			line[i] = ' '
		}
	}
	return string(line)
}
