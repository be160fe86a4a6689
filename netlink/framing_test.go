package netlink

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// buildRecord frames payload as one notification record, padded to the
// 4-byte record alignment.
func buildRecord(typ uint16, payload []byte) []byte {
	total := nlHeaderLen + len(payload)
	buf := make([]byte, (total+3)&^3)
	binary.NativeEndian.PutUint32(buf[0:4], uint32(total))
	binary.NativeEndian.PutUint16(buf[4:6], typ)
	copy(buf[nlHeaderLen:], payload)
	return buf
}

func TestCursorTwoRecords(t *testing.T) {
	first := buildRecord(unix.NLMSG_DONE, []byte("abcde"))
	second := buildRecord(unix.NLMSG_DONE, []byte("fg"))
	buf := append(append([]byte{}, first...), second...)

	cur := NewCursor(buf)

	rec, ok := cur.Next()
	require.True(t, ok)
	assert.Equal(t, uint16(unix.NLMSG_DONE), rec.Type)
	assert.Equal(t, []byte("abcde"), rec.Data)

	rec, ok = cur.Next()
	require.True(t, ok)
	assert.Equal(t, []byte("fg"), rec.Data)

	_, ok = cur.Next()
	assert.False(t, ok)
}

func TestCursorTruncatedSecondRecord(t *testing.T) {
	first := buildRecord(unix.NLMSG_DONE, []byte("abcd"))

	// Second record declares more bytes than the datagram holds.
	second := make([]byte, nlHeaderLen+4)
	binary.NativeEndian.PutUint32(second[0:4], 100)
	binary.NativeEndian.PutUint16(second[4:6], unix.NLMSG_DONE)
	buf := append(append([]byte{}, first...), second...)

	cur := NewCursor(buf)

	rec, ok := cur.Next()
	require.True(t, ok)
	assert.Equal(t, []byte("abcd"), rec.Data)

	_, ok = cur.Next()
	assert.False(t, ok)
}

func TestCursorMalformed(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"shorter than header", make([]byte, nlHeaderLen-1)},
		{"declared length below header size", func() []byte {
			b := make([]byte, nlHeaderLen)
			binary.NativeEndian.PutUint32(b[0:4], 8)
			return b
		}()},
		{"declared length beyond datagram", func() []byte {
			b := make([]byte, nlHeaderLen)
			binary.NativeEndian.PutUint32(b[0:4], nlHeaderLen+8)
			return b
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := NewCursor(tt.buf).Next()
			assert.False(t, ok)
		})
	}
}

func TestCursorUnalignedRecordThenNext(t *testing.T) {
	// 5-byte payload gives an unaligned declared length; the following
	// record must still be found at the aligned offset.
	first := buildRecord(unix.NLMSG_DONE, []byte("abcde"))
	second := buildRecord(unix.NLMSG_NOOP, nil)
	buf := append(append([]byte{}, first...), second...)

	cur := NewCursor(buf)
	_, ok := cur.Next()
	require.True(t, ok)

	rec, ok := cur.Next()
	require.True(t, ok)
	assert.Equal(t, uint16(unix.NLMSG_NOOP), rec.Type)
	assert.True(t, rec.IsControl())
}

func TestRecordKinds(t *testing.T) {
	assert.True(t, Record{Type: unix.NLMSG_NOOP}.IsControl())
	assert.True(t, Record{Type: unix.NLMSG_ERROR}.IsControl())
	assert.True(t, Record{Type: unix.NLMSG_OVERRUN}.IsOverrun())
	assert.False(t, Record{Type: unix.NLMSG_DONE}.IsControl())
	assert.False(t, Record{Type: unix.NLMSG_DONE}.IsOverrun())
}
