package netlink

import (
	"encoding/binary"
)

// ProcEvent is a decoded proc connector event. Only fork and exec events
// are ever reported; the remaining variants exist so that every kind the
// kernel sends decodes cleanly and can be skipped by name.
type ProcEvent interface {
	procEvent()
}

// ForkEvent reports a new task. The child is a new process when ChildPid
// equals ChildTgid, otherwise a new thread inside an existing group.
type ForkEvent struct {
	ParentPid  uint32
	ParentTgid uint32
	ChildPid   uint32
	ChildTgid  uint32
}

// ExecEvent reports a task replacing its program image. The exec was
// performed by the thread-group leader when Pid equals Tgid.
type ExecEvent struct {
	Pid  uint32
	Tgid uint32
}

// ExitEvent reports a task exit.
type ExitEvent struct {
	Pid        uint32
	Tgid       uint32
	ExitCode   uint32
	ExitSignal uint32
}

// CommEvent reports a task renaming itself.
type CommEvent struct {
	Pid  uint32
	Tgid uint32
	Comm [16]byte
}

// OtherEvent is any structurally valid event kind not modeled above
// (uid/gid/sid changes, ptrace attach, coredump, subscription acks).
type OtherEvent struct {
	What uint32
}

func (ForkEvent) procEvent()  {}
func (ExecEvent) procEvent()  {}
func (ExitEvent) procEvent()  {}
func (CommEvent) procEvent()  {}
func (OtherEvent) procEvent() {}

// ParseProcEvent decodes the connector envelope carried by a data record.
// It returns ok == false when the envelope does not belong to the proc
// connector subscription or the payload is too short for its kind; both
// cases are dropped by the caller with no output and no side effects.
func ParseProcEvent(data []byte) (ProcEvent, bool) {
	if len(data) < cnMsgLen+procEventHdrLen {
		return nil, false
	}
	idx := binary.NativeEndian.Uint32(data[0:4])
	val := binary.NativeEndian.Uint32(data[4:8])
	if idx != CnIdxProc || val != CnValProc {
		return nil, false
	}
	ev := data[cnMsgLen:]
	what := binary.NativeEndian.Uint32(ev[0:4])
	body := ev[procEventHdrLen:]

	switch what {
	case ProcEventFork:
		if len(body) < 16 {
			return nil, false
		}
		return ForkEvent{
			ParentPid:  binary.NativeEndian.Uint32(body[0:4]),
			ParentTgid: binary.NativeEndian.Uint32(body[4:8]),
			ChildPid:   binary.NativeEndian.Uint32(body[8:12]),
			ChildTgid:  binary.NativeEndian.Uint32(body[12:16]),
		}, true
	case ProcEventExec:
		if len(body) < 8 {
			return nil, false
		}
		return ExecEvent{
			Pid:  binary.NativeEndian.Uint32(body[0:4]),
			Tgid: binary.NativeEndian.Uint32(body[4:8]),
		}, true
	case ProcEventExit:
		if len(body) < 16 {
			return nil, false
		}
		return ExitEvent{
			Pid:        binary.NativeEndian.Uint32(body[0:4]),
			Tgid:       binary.NativeEndian.Uint32(body[4:8]),
			ExitCode:   binary.NativeEndian.Uint32(body[8:12]),
			ExitSignal: binary.NativeEndian.Uint32(body[12:16]),
		}, true
	case ProcEventComm:
		if len(body) < 24 {
			return nil, false
		}
		ce := CommEvent{
			Pid:  binary.NativeEndian.Uint32(body[0:4]),
			Tgid: binary.NativeEndian.Uint32(body[4:8]),
		}
		copy(ce.Comm[:], body[8:24])
		return ce, true
	default:
		return OtherEvent{What: what}, true
	}
}
