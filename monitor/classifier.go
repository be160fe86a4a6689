// Package monitor turns decoded proc connector events into report lines.
package monitor

import (
	"fmt"

	"github.com/pturmel/startmon/netlink"
)

// Config selects which event classes are reported. It is built once at
// startup and never changes; callers must enable at least one of Exec or
// Fork.
type Config struct {
	Exec   bool // report program image replacements
	Fork   bool // report new processes
	Thread bool // additionally report thread-level forks and execs
}

// Kind is the report subtype an event classified into.
type Kind int

const (
	// KindFork is a new process; the child leads its own thread group.
	KindFork Kind = iota
	// KindThread is a new thread inside an existing thread group.
	KindThread
	// KindLeaderExec is a thread-group leader replacing its image.
	KindLeaderExec
	// KindThreadExec is a subordinate thread performing an exec, seen
	// shortly before the thread group converges on the new image.
	KindThreadExec
)

// Emission is a positive classification decision: what to print and which
// pid to resolve the command line from. Threads share their leader's
// command line, so CmdlinePid is always the thread-group id.
type Emission struct {
	Kind       Kind
	Originator uint32
	Subject    uint32
	CmdlinePid uint32
}

// Classify applies cfg to a decoded event. The process-vs-thread decision
// hinges on pid == tgid: equal means the task is its own thread-group
// leader. Event kinds other than fork and exec are never emitted.
func Classify(ev netlink.ProcEvent, cfg Config) (Emission, bool) {
	switch e := ev.(type) {
	case netlink.ForkEvent:
		if !cfg.Fork {
			return Emission{}, false
		}
		if e.ChildPid == e.ChildTgid {
			return Emission{
				Kind:       KindFork,
				Originator: e.ParentPid,
				Subject:    e.ChildPid,
				CmdlinePid: e.ChildTgid,
			}, true
		}
		if !cfg.Thread {
			return Emission{}, false
		}
		return Emission{
			Kind:       KindThread,
			Originator: e.ChildTgid,
			Subject:    e.ChildPid,
			CmdlinePid: e.ChildTgid,
		}, true
	case netlink.ExecEvent:
		if !cfg.Exec {
			return Emission{}, false
		}
		if e.Pid == e.Tgid {
			return Emission{
				Kind:       KindLeaderExec,
				Subject:    e.Pid,
				CmdlinePid: e.Tgid,
			}, true
		}
		if !cfg.Thread {
			return Emission{}, false
		}
		return Emission{
			Kind:       KindThreadExec,
			Originator: e.Tgid,
			Subject:    e.Pid,
			CmdlinePid: e.Tgid,
		}, true
	}
	return Emission{}, false
}

// Format renders the fixed-shape report line for this emission.
func (e Emission) Format(cmdline string) string {
	switch e.Kind {
	case KindFork:
		return fmt.Sprintf("Fork %d %d %s", e.Originator, e.Subject, cmdline)
	case KindThread:
		return fmt.Sprintf("Thread %d %d %s", e.Originator, e.Subject, cmdline)
	case KindLeaderExec:
		return fmt.Sprintf("Exec - %d %s", e.Subject, cmdline)
	default:
		return fmt.Sprintf("Exec %d %d %s", e.Originator, e.Subject, cmdline)
	}
}
