// Package netlink implements the proc connector transport: the netlink
// socket, the record framing inside received datagrams, and the decoding
// of connector-carried process events.
package netlink

// Connector identity of the process event subscription. Envelopes carrying
// any other (idx, val) pair belong to a different connector client and are
// ignored.
const (
	CnIdxProc = 0x1
	CnValProc = 0x1
)

// Multicast subscription ops for cn_proc.
const (
	ProcCnMcastListen = 1
	ProcCnMcastIgnore = 2
)

// Event kinds reported by the proc connector (proc_event.what).
const (
	ProcEventNone     = 0x00000000
	ProcEventFork     = 0x00000001
	ProcEventExec     = 0x00000002
	ProcEventUID      = 0x00000004
	ProcEventGID      = 0x00000040
	ProcEventSID      = 0x00000080
	ProcEventPtrace   = 0x00000100
	ProcEventComm     = 0x00000200
	ProcEventCoredump = 0x40000000
	ProcEventExit     = 0x80000000
)

// ConnectorMaxMsgSize is the largest payload the connector delivers in one
// datagram (CONNECTOR_MAX_MSG_SIZE in linux/connector.h).
const ConnectorMaxMsgSize = 16384

// Wire layout sizes. The nlmsghdr is 16 bytes, the cn_msg header is 20
// (idx, val, seq, ack, len, flags), and the proc_event header is 16: what
// and cpu as u32 followed by an 8-byte-aligned u64 timestamp.
const (
	nlHeaderLen     = 16
	cnMsgLen        = 20
	procEventHdrLen = 16
)
