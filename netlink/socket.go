package netlink

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

// ErrClosed is returned by Receive after the socket has been closed.
var ErrClosed = errors.New("netlink: socket closed")

// Socket is a netlink connector socket bound to the proc connector
// multicast group. It is safe for one receiver plus a concurrent Close.
type Socket struct {
	fd int
}

// Dial opens a NETLINK_CONNECTOR socket and binds it to the proc
// connector group.
func Dial() (*Socket, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, unix.NETLINK_CONNECTOR)
	if err != nil {
		return nil, fmt.Errorf("open netlink socket: %w", err)
	}
	addr := &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Pid:    uint32(os.Getpid()),
		Groups: CnIdxProc,
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind to proc connector: %w", err)
	}
	return &Socket{fd: fd}, nil
}

// Subscribe sends the one-time PROC_CN_MCAST_LISTEN request that turns on
// event delivery for this socket.
func (s *Socket) Subscribe() error {
	// nlmsghdr + cn_msg + the u32 mcast op, all in host byte order.
	msg := make([]byte, nlHeaderLen+cnMsgLen+4)
	binary.NativeEndian.PutUint32(msg[0:4], uint32(len(msg)))
	binary.NativeEndian.PutUint16(msg[4:6], unix.NLMSG_DONE)
	binary.NativeEndian.PutUint32(msg[12:16], uint32(os.Getpid()))
	binary.NativeEndian.PutUint32(msg[16:20], CnIdxProc)
	binary.NativeEndian.PutUint32(msg[20:24], CnValProc)
	binary.NativeEndian.PutUint16(msg[32:34], 4) // cn_msg.len: size of the op
	binary.NativeEndian.PutUint32(msg[36:40], ProcCnMcastListen)

	kernel := &unix.SockaddrNetlink{Family: unix.AF_NETLINK}
	if err := unix.Sendto(s.fd, msg, 0, kernel); err != nil {
		return fmt.Errorf("subscribe to proc events: %w", err)
	}
	return nil
}

// SetFilter attaches a classic BPF program to the socket so the kernel
// discards events before they ever reach userspace.
func (s *Socket) SetFilter(prog []bpf.Instruction) error {
	raw, err := bpf.Assemble(prog)
	if err != nil {
		return fmt.Errorf("assemble socket filter: %w", err)
	}
	filter := make([]unix.SockFilter, len(raw))
	for i, ins := range raw {
		filter[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	fprog := unix.SockFprog{Len: uint16(len(filter)), Filter: &filter[0]}
	if err := unix.SetsockoptSockFprog(s.fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &fprog); err != nil {
		return fmt.Errorf("attach socket filter: %w", err)
	}
	return nil
}

// Receive blocks until the next datagram arrives and copies it into buf.
// fromKernel is true when the sender port id is 0; callers must ignore
// datagrams from any other origin.
func (s *Socket) Receive(buf []byte) (n int, fromKernel bool, err error) {
	for {
		n, from, err := unix.Recvfrom(s.fd, buf, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			if err == unix.EBADF {
				return 0, false, ErrClosed
			}
			return 0, false, fmt.Errorf("receive: %w", err)
		}
		nl, ok := from.(*unix.SockaddrNetlink)
		return n, ok && nl.Pid == 0, nil
	}
}

// Close releases the socket. A blocked Receive returns ErrClosed.
func (s *Socket) Close() error {
	return unix.Close(s.fd)
}
