package main

import (
	"context"
	"errors"
	"net"

	"github.com/kestrelio/coro/ioscheduler"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// listener is a non-blocking IPv4 TCP listening socket addressed by a raw
// file descriptor, so the scheduler can watch it with Poll instead of
// net.Listener's blocking Accept.
type listener struct {
	fd int
}

func newListener(addr string) (*listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	var sa unix.SockaddrInet4
	sa.Port = tcpAddr.Port
	copy(sa.Addr[:], tcpAddr.IP.To4())
	if err := unix.Bind(fd, &sa); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, 128); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	return &listener{fd: fd}, nil
}

func (l *listener) Close() error {
	return unix.Close(l.fd)
}

const echoBufSize = 4096

type server struct {
	sched  *ioscheduler.Scheduler
	logger *zap.Logger
}

// acceptLoop watches the listening socket for readability via Poll and
// accepts every connection that's queued once it fires, handing each off to
// its own echo goroutine.
func (s *server) acceptLoop(ctx context.Context, ln *listener) {
	pfd := ioscheduler.PollFD{FD: ln.fd, Scheduler: s.sched}
	for {
		status, err := pfd.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("corodemo: accept poll failed", zap.Error(err))
			continue
		}
		if status != ioscheduler.PollStatusEvent {
			continue
		}

		for {
			connFD, _, err := unix.Accept4(ln.fd, unix.SOCK_NONBLOCK)
			if err != nil {
				if errors.Is(err, unix.EAGAIN) {
					break
				}
				s.logger.Warn("corodemo: accept failed", zap.Error(err))
				break
			}
			go s.echoConn(ctx, connFD)
		}
	}
}

// echoConn copies every byte read from fd back to fd until it closes, EOFs,
// or ctx is done, using Poll for readiness instead of blocking I/O.
func (s *server) echoConn(ctx context.Context, fd int) {
	defer unix.Close(fd)
	pfd := ioscheduler.PollFD{FD: fd, Scheduler: s.sched}
	buf := make([]byte, echoBufSize)

	for {
		status, err := pfd.ReadTimeout(ctx, 0)
		if err != nil {
			return
		}
		if status == ioscheduler.PollStatusClosed || status == ioscheduler.PollStatusError {
			return
		}

		n, err := unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				continue
			}
			return
		}
		if n == 0 {
			return
		}

		if err := s.writeAll(ctx, pfd, buf[:n]); err != nil {
			return
		}
	}
}

func (s *server) writeAll(ctx context.Context, pfd ioscheduler.PollFD, data []byte) error {
	for len(data) > 0 {
		status, err := pfd.Write(ctx)
		if err != nil {
			return err
		}
		if status != ioscheduler.PollStatusEvent {
			return errors.New("corodemo: write side closed")
		}

		n, err := unix.Write(pfd.FD, data)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				continue
			}
			return err
		}
		data = data[n:]
	}
	return nil
}
