package pmu

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	// ErrOpenRefused means the kernel rejected a perf event open, typically
	// a too-old kernel, missing privilege, or an unknown event.
	ErrOpenRefused = errors.New("perf event open refused")
	// ErrShortRead means a grouped read returned an unexpected byte count,
	// indicating kernel/userspace disagreement on the buffer layout.
	ErrShortRead = errors.New("short perf group read")
)

// Func definitions for unit testing.
var (
	perfOpenFunc  = perfEventOpen
	perfReadFunc  = unix.Read
	perfCloseFunc = unix.Close
)

// Group is a set of perf events read coherently through a shared leader
// descriptor. The first open establishes the leader; subsequent opens
// attach to it so one blocking read yields every value at a single kernel
// sampling instant.
type Group struct {
	leaderFD int
	fds      []int
	n        int
}

// NewGroup returns an empty group with no leader.
func NewGroup() *Group {
	return &Group{leaderFD: -1}
}

// Open opens one event as part of the group and returns its stable slot
// index into the value vector of subsequent reads.
func (g *Group) Open(typ, config uint64) (int, error) {
	fd, err := perfOpenFunc(typ, config, g.leaderFD)
	if err != nil {
		return 0, fmt.Errorf("%w: type %d config %#x: %v", ErrOpenRefused, typ, config, err)
	}
	if g.leaderFD == -1 {
		g.leaderFD = fd
	}
	g.fds = append(g.fds, fd)
	idx := g.n
	g.n++
	return idx, nil
}

// OpenCounter opens c inside the group and marks it present on success.
func (g *Group) OpenCounter(typ uint64, c *Counter) error {
	idx, err := g.Open(typ, c.Config)
	if err != nil {
		return err
	}
	c.Type = typ
	c.Idx = idx
	c.Present = true
	return nil
}

// Len returns the number of events opened in the group.
func (g *Group) Len() int {
	return g.n
}

// Read performs one grouped read. The kernel returns the buffer laid out as
// [nr][time_enabled][value_0]...[value_{N-1}], each a native-endian u64;
// the time field is the sampling timestamp in nanoseconds.
func (g *Group) Read() (ts uint64, vals []uint64, err error) {
	if g.n == 0 {
		return 0, nil, nil
	}

	buf := make([]byte, (2+g.n)*8)
	n, err := perfReadFunc(g.leaderFD, buf)
	if err != nil {
		return 0, nil, fmt.Errorf("read group: %w", err)
	}
	if n != len(buf) {
		return 0, nil, fmt.Errorf("%w: %d bytes, want %d", ErrShortRead, n, len(buf))
	}

	words := make([]uint64, 2+g.n)
	for i := range words {
		words[i] = nativeUint64(buf[i*8 : i*8+8])
	}
	return words[1], words[2:], nil
}

// Close releases every descriptor in the group. Required on all exit paths.
func (g *Group) Close() {
	for _, fd := range g.fds {
		_ = perfCloseFunc(fd)
	}
	g.fds = nil
	g.leaderFD = -1
	g.n = 0
}

func perfEventOpen(typ, config uint64, groupFD int) (int, error) {
	attr := unix.PerfEventAttr{
		Type:        uint32(typ),
		Size:        uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
		Config:      config,
		Read_format: unix.PERF_FORMAT_TOTAL_TIME_ENABLED | unix.PERF_FORMAT_GROUP,
	}
	return unix.PerfEventOpen(&attr, -1, 0, groupFD, unix.PERF_FLAG_FD_CLOEXEC)
}

func nativeUint64(b []byte) uint64 {
	_ = b[7]
	return *(*uint64)(unsafe.Pointer(&b[0]))
}
