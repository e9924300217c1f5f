package app

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// rawStdin puts the terminal into non-canonical single-character mode for
// the lifetime of the interactive loop. The original termios is recorded
// on entry and restored on shutdown.
type rawStdin struct {
	fd    int
	saved unix.Termios
}

func newRawStdin() (*rawStdin, error) {
	fd := int(os.Stdin.Fd())

	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, fmt.Errorf("get termios: %w", err)
	}
	saved := *termios

	termios.Lflag &^= unix.ICANON
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETSF, termios); err != nil {
		return nil, fmt.Errorf("set termios: %w", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.IoctlSetTermios(fd, unix.TCSETSF, &saved)
		return nil, fmt.Errorf("set nonblocking: %w", err)
	}

	return &rawStdin{fd: fd, saved: saved}, nil
}

func (r *rawStdin) restore() {
	_ = unix.SetNonblock(r.fd, false)
	_ = unix.IoctlSetTermios(r.fd, unix.TCSETSF, &r.saved)
}

// poll waits up to timeout for input and drains every pending byte.
func (r *rawStdin) poll(timeout time.Duration) ([]byte, error) {
	fds := []unix.PollFd{{Fd: int32(r.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	var keys []byte
	buf := make([]byte, 1)
	for {
		n, err := unix.Read(r.fd, buf)
		if n <= 0 || err != nil {
			break
		}
		keys = append(keys, buf[0])
	}
	return keys, nil
}
