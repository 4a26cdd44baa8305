// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package descriptor wraps a POSIX file descriptor as an owned, closable
// resource: exactly one Descriptor refers to a given OS handle at a time,
// move transfers ownership (the source becomes empty), and Close is
// idempotent. Grounded on include/ash/posix/io.h's file_descriptor and
// src/ash/io.cpp's channel.
package descriptor

import (
	"os"

	"golang.org/x/sys/unix"

	"code.hybscloud.com/arpc/rpcerr"
)

// Descriptor owns an integer OS handle. Empty returns the descriptor that
// holds none; the zero value holds handle 0, which Valid reports as owned.
type Descriptor struct {
	fd int
}

// invalid marks an empty descriptor, mirroring file_descriptor's fd_ == -1.
const invalid = -1

// Empty returns the empty Descriptor, holding no OS resource.
func Empty() Descriptor { return Descriptor{fd: invalid} }

// FromFD adopts an already-open OS file descriptor. Ownership transfers to
// the returned Descriptor.
func FromFD(fd int) Descriptor { return Descriptor{fd: fd} }

// Mode selects the open flags used by Open, mirroring ash::open_mode.
type Mode int

const (
	Read Mode = iota
	Write
	Append
	ReadPlus
	WritePlus
	AppendPlus
)

func (m Mode) flags() int {
	switch m {
	case Read:
		return os.O_RDONLY
	case Write:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case Append:
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND
	case ReadPlus:
		return os.O_RDWR
	case WritePlus:
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC
	case AppendPlus:
		return os.O_RDWR | os.O_CREATE | os.O_APPEND
	default:
		return os.O_RDONLY
	}
}

// Open opens path with the given Mode and returns an owned Descriptor.
func Open(path string, mode Mode) (Descriptor, error) {
	fd, err := unix.Open(path, mode.flags(), 0o666)
	if err != nil {
		return Empty(), rpcerr.WrapIO(err, errno(err), "opening %q", path)
	}
	return Descriptor{fd: fd}, nil
}

// PipePair creates a connected read/write Descriptor pair, grounded on
// ash::pipe(channel fds[2]).
func PipePair() (r, w Descriptor, err error) {
	var fds [2]int
	if perr := unix.Pipe2(fds[:], 0); perr != nil {
		return Empty(), Empty(), rpcerr.WrapIO(perr, errno(perr), "creating pipe pair")
	}
	return Descriptor{fd: fds[0]}, Descriptor{fd: fds[1]}, nil
}

// SocketPair creates a connected, full-duplex Unix domain socket pair,
// used to test interruptible connections and RPC dispatch in-process
// without a real network listener.
func SocketPair() (a, b Descriptor, err error) {
	fds, perr := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if perr != nil {
		return Empty(), Empty(), rpcerr.WrapIO(perr, errno(perr), "creating socket pair")
	}
	return Descriptor{fd: fds[0]}, Descriptor{fd: fds[1]}, nil
}

// Valid reports whether d currently owns an OS resource.
func (d Descriptor) Valid() bool { return d.fd >= 0 }

// FD returns the raw OS handle, or -1 if empty.
func (d Descriptor) FD() int { return d.fd }

// Move transfers ownership from d to a new Descriptor, leaving d empty.
// Mirrors file_descriptor's move constructor.
func (d *Descriptor) Move() Descriptor {
	moved := Descriptor{fd: d.fd}
	d.fd = invalid
	return moved
}

// Close releases the OS resource, if any. Idempotent.
func (d *Descriptor) Close() error {
	if d.fd < 0 {
		return nil
	}
	fd := d.fd
	d.fd = invalid
	if err := unix.Close(fd); err != nil {
		return rpcerr.WrapIO(err, errno(err), "closing descriptor")
	}
	return nil
}

// Duplicate returns a new Descriptor referring to a dup()'d copy of the same
// underlying file description.
func (d Descriptor) Duplicate() (Descriptor, error) {
	if !d.Valid() {
		return Empty(), rpcerr.New(rpcerr.InvalidState, "duplicating an empty descriptor")
	}
	nfd, err := unix.Dup(d.fd)
	if err != nil {
		return Empty(), rpcerr.WrapIO(err, errno(err), "duplicating descriptor")
	}
	return Descriptor{fd: nfd}, nil
}

// SetBlocking toggles O_NONBLOCK on the descriptor.
func (d Descriptor) SetBlocking(blocking bool) error {
	if !d.Valid() {
		return rpcerr.New(rpcerr.InvalidState, "descriptor is empty")
	}
	if err := unix.SetNonblock(d.fd, !blocking); err != nil {
		return rpcerr.WrapIO(err, errno(err), "setting blocking mode")
	}
	return nil
}

// Read fills buf, returning the number of bytes read. Per spec §4.1, a
// non-blocking descriptor with no data ready fails with rpcerr.TryAgain;
// end-of-input is signalled by returning (0, nil); any other OS error
// surfaces as rpcerr.IOError with the numeric code embedded.
func (d Descriptor) Read(buf []byte) (int, error) {
	if !d.Valid() {
		return 0, rpcerr.New(rpcerr.InvalidState, "descriptor is empty")
	}
	n, err := unix.Read(d.fd, buf)
	if err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// Write writes buf, returning the number of bytes written. Same error
// semantics as Read.
func (d Descriptor) Write(buf []byte) (int, error) {
	if !d.Valid() {
		return 0, rpcerr.New(rpcerr.InvalidState, "descriptor is empty")
	}
	n, err := unix.Write(d.fd, buf)
	if err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func translate(err error) error {
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return rpcerr.New(rpcerr.TryAgain, "operation would block")
	}
	return rpcerr.WrapIO(err, errno(err), "descriptor i/o")
}

func errno(err error) int {
	if e, ok := err.(unix.Errno); ok {
		return int(e)
	}
	return 0
}
