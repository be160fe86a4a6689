package monitor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pturmel/startmon/netlink"
)

func TestClassifyForkBranches(t *testing.T) {
	cfg := Config{Fork: true, Thread: true}

	// Child pid equals child tgid: a new process led by itself.
	em, ok := Classify(netlink.ForkEvent{ParentPid: 100, ParentTgid: 100, ChildPid: 200, ChildTgid: 200}, cfg)
	require.True(t, ok)
	assert.Equal(t, Emission{Kind: KindFork, Originator: 100, Subject: 200, CmdlinePid: 200}, em)

	// Child pid differs from child tgid: a new thread; the group leader
	// is the originator and owns the command line.
	em, ok = Classify(netlink.ForkEvent{ParentPid: 100, ParentTgid: 100, ChildPid: 201, ChildTgid: 200}, cfg)
	require.True(t, ok)
	assert.Equal(t, Emission{Kind: KindThread, Originator: 200, Subject: 201, CmdlinePid: 200}, em)
}

func TestClassifyExecBranches(t *testing.T) {
	cfg := Config{Exec: true, Thread: true}

	em, ok := Classify(netlink.ExecEvent{Pid: 300, Tgid: 300}, cfg)
	require.True(t, ok)
	assert.Equal(t, Emission{Kind: KindLeaderExec, Subject: 300, CmdlinePid: 300}, em)

	em, ok = Classify(netlink.ExecEvent{Pid: 301, Tgid: 300}, cfg)
	require.True(t, ok)
	assert.Equal(t, Emission{Kind: KindThreadExec, Originator: 300, Subject: 301, CmdlinePid: 300}, em)
}

// TestClassifyFilterMatrix checks every flag combination against every
// event subtype: emission depends on nothing but the subtype's required
// flags.
func TestClassifyFilterMatrix(t *testing.T) {
	events := []struct {
		name string
		ev   netlink.ProcEvent
		emit func(cfg Config) bool
	}{
		{"process fork", netlink.ForkEvent{ParentPid: 1, ParentTgid: 1, ChildPid: 2, ChildTgid: 2},
			func(cfg Config) bool { return cfg.Fork }},
		{"thread fork", netlink.ForkEvent{ParentPid: 1, ParentTgid: 1, ChildPid: 3, ChildTgid: 2},
			func(cfg Config) bool { return cfg.Fork && cfg.Thread }},
		{"leader exec", netlink.ExecEvent{Pid: 2, Tgid: 2},
			func(cfg Config) bool { return cfg.Exec }},
		{"subordinate exec", netlink.ExecEvent{Pid: 3, Tgid: 2},
			func(cfg Config) bool { return cfg.Exec && cfg.Thread }},
	}

	for _, exec := range []bool{false, true} {
		for _, fork := range []bool{false, true} {
			for _, thread := range []bool{false, true} {
				cfg := Config{Exec: exec, Fork: fork, Thread: thread}
				for _, tt := range events {
					name := fmt.Sprintf("%s/e=%v,f=%v,t=%v", tt.name, exec, fork, thread)
					t.Run(name, func(t *testing.T) {
						_, ok := Classify(tt.ev, cfg)
						assert.Equal(t, tt.emit(cfg), ok)
					})
				}
			}
		}
	}
}

func TestClassifyIgnoresOtherKinds(t *testing.T) {
	cfg := Config{Exec: true, Fork: true, Thread: true}
	for _, ev := range []netlink.ProcEvent{
		netlink.ExitEvent{Pid: 5, Tgid: 5},
		netlink.CommEvent{Pid: 5, Tgid: 5},
		netlink.OtherEvent{What: netlink.ProcEventUID},
	} {
		_, ok := Classify(ev, cfg)
		assert.False(t, ok)
	}
}

func TestEmissionFormat(t *testing.T) {
	tests := []struct {
		em      Emission
		cmdline string
		want    string
	}{
		{Emission{Kind: KindFork, Originator: 100, Subject: 200}, "worker", "Fork 100 200 worker"},
		{Emission{Kind: KindThread, Originator: 200, Subject: 201}, "worker", "Thread 200 201 worker"},
		{Emission{Kind: KindLeaderExec, Subject: 300}, "/bin/true", "Exec - 300 /bin/true"},
		{Emission{Kind: KindThreadExec, Originator: 300, Subject: 301}, "<N/A>", "Exec 300 301 <N/A>"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.em.Format(tt.cmdline))
	}
}
