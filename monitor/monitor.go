package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/pturmel/startmon/netlink"
)

// Source delivers raw event datagrams. On Linux this is the proc
// connector socket; tests inject canned buffers.
type Source interface {
	// Receive blocks for the next datagram, copies it into buf and
	// reports whether it originated in the kernel.
	Receive(buf []byte) (n int, fromKernel bool, err error)
	Close() error
}

// Resolver maps a pid to its current command line.
type Resolver interface {
	Resolve(pid uint32) string
}

// Monitor owns the receive loop: it frames each datagram, classifies the
// records inside and writes report lines to Out. All processing is
// synchronous, so the single receive buffer is reused every iteration and
// events appear in exactly the order the kernel delivered them.
type Monitor struct {
	cfg Config

	src Source
	res Resolver
	out io.Writer

	// OnExec, when set, observes every emitted exec event after its
	// line has been written. Used for the detection layer.
	OnExec func(pid uint32, cmdline string)

	buf []byte
}

// New builds a monitor writing report lines to out.
func New(cfg Config, src Source, res Resolver, out io.Writer) *Monitor {
	return &Monitor{
		cfg: cfg,
		src: src,
		res: res,
		out: out,
		buf: make([]byte, 4096+netlink.ConnectorMaxMsgSize),
	}
}

// Run receives and reports events until ctx is done or the source fails.
// No per-event condition ever stops the loop: malformed records and
// foreign datagrams are dropped silently, lookup failures degrade to the
// sentinel command line, and overruns are reported inline.
func (m *Monitor) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		m.src.Close()
	}()

	for {
		n, fromKernel, err := m.src.Receive(m.buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, netlink.ErrClosed) {
				return nil
			}
			return fmt.Errorf("event source: %w", err)
		}
		if !fromKernel {
			log.Debug("ignoring datagram from non-kernel sender")
			continue
		}
		m.processDatagram(m.buf[:n])
	}
}

func (m *Monitor) processDatagram(data []byte) {
	cur := netlink.NewCursor(data)
	for rec, ok := cur.Next(); ok; rec, ok = cur.Next() {
		m.processRecord(rec)
	}
}

func (m *Monitor) processRecord(rec netlink.Record) {
	if rec.IsControl() {
		return
	}
	if rec.IsOverrun() {
		// Not filterable: the reader must learn about potential loss.
		fmt.Fprintln(m.out, "overrun")
		return
	}
	ev, ok := netlink.ParseProcEvent(rec.Data)
	if !ok {
		return
	}
	em, emit := Classify(ev, m.cfg)
	if !emit {
		return
	}
	// Resolve only for events that will actually be printed.
	cmdline := m.res.Resolve(em.CmdlinePid)
	fmt.Fprintln(m.out, em.Format(cmdline))

	if m.OnExec != nil && (em.Kind == KindLeaderExec || em.Kind == KindThreadExec) {
		m.OnExec(em.Subject, cmdline)
	}
}
