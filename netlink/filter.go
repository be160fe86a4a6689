package netlink

import (
	"encoding/binary"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

// FilterProgram builds a classic BPF socket filter that keeps only the
// datagrams this configuration can ever report: control records (so
// overruns are never lost), plus fork and/or exec events as requested.
// Everything else (exit, comm, uid changes, foreign connector clients) is
// dropped in the kernel before it wakes the receive loop.
//
// The filter inspects only the first record of a datagram; the proc
// connector delivers one event per datagram.
//
// Offsets into the datagram: nlmsg_type at 4, cn_msg idx/val at 16/20,
// proc_event.what at 36. BPF absolute loads read big-endian, so all
// comparison constants are converted from host order first.
func FilterProgram(fork, exec bool) []bpf.Instruction {
	var kinds []uint32
	if fork {
		kinds = append(kinds, ProcEventFork)
	}
	if exec {
		kinds = append(kinds, ProcEventExec)
	}
	k := len(kinds)

	// Layout: 0 load type, 1 pass control records, 2-5 check connector
	// identity, 6 load what, 7..6+k accept wanted kinds, 7+k drop,
	// 8+k accept.
	prog := []bpf.Instruction{
		bpf.LoadAbsolute{Off: 4, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: uint32(hostToNet16(unix.NLMSG_DONE)), SkipTrue: uint8(6 + k)},
		bpf.LoadAbsolute{Off: 16, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: hostToNet32(CnIdxProc), SkipTrue: uint8(3 + k)},
		bpf.LoadAbsolute{Off: 20, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: hostToNet32(CnValProc), SkipTrue: uint8(1 + k)},
		bpf.LoadAbsolute{Off: 36, Size: 4},
	}
	for i, kind := range kinds {
		prog = append(prog, bpf.JumpIf{Cond: bpf.JumpEqual, Val: hostToNet32(kind), SkipTrue: uint8(k - i)})
	}
	prog = append(prog,
		bpf.RetConstant{Val: 0},
		bpf.RetConstant{Val: 0xffffffff},
	)
	return prog
}

func hostToNet16(v uint16) uint16 {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], v)
	return binary.BigEndian.Uint16(b[:])
}

func hostToNet32(v uint32) uint32 {
	var b [4]byte
	binary.NativeEndian.PutUint32(b[:], v)
	return binary.BigEndian.Uint32(b[:])
}
