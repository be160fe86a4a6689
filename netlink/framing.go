package netlink

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// Record is one length-prefixed notification inside a received datagram.
// Data aliases the datagram buffer; it is only valid until the buffer is
// reused for the next receive.
type Record struct {
	Type  uint16
	Flags uint16
	Data  []byte
}

// IsControl reports whether the record carries no connector payload.
func (r Record) IsControl() bool {
	return r.Type == unix.NLMSG_NOOP || r.Type == unix.NLMSG_ERROR
}

// IsOverrun reports whether the kernel dropped notifications before
// delivering this record.
func (r Record) IsOverrun() bool {
	return r.Type == unix.NLMSG_OVERRUN
}

// Cursor walks the records inside one received datagram. It yields each
// structurally valid record in order and terminates silently at the first
// truncated or malformed header; trailing garbage in a datagram is never
// an error, matching the best-effort delivery of the socket itself.
type Cursor struct {
	buf []byte
}

// NewCursor returns a cursor over the first n received bytes of a datagram.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Next returns the next valid record, or ok == false once the datagram is
// exhausted. A cursor is not restartable.
func (c *Cursor) Next() (rec Record, ok bool) {
	if len(c.buf) < nlHeaderLen {
		c.buf = nil
		return Record{}, false
	}
	total := int(binary.NativeEndian.Uint32(c.buf[0:4]))
	if total < nlHeaderLen || total > len(c.buf) {
		c.buf = nil
		return Record{}, false
	}
	rec = Record{
		Type:  binary.NativeEndian.Uint16(c.buf[4:6]),
		Flags: binary.NativeEndian.Uint16(c.buf[6:8]),
		Data:  c.buf[nlHeaderLen:total],
	}
	// Records are 4-byte aligned within the datagram.
	next := (total + unix.NLMSG_ALIGNTO - 1) &^ (unix.NLMSG_ALIGNTO - 1)
	if next >= len(c.buf) {
		c.buf = nil
	} else {
		c.buf = c.buf[next:]
	}
	return rec, true
}
