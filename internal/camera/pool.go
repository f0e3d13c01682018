package camera

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// Buffer count limits.
const (
	DefaultBufferCount = 8
	MinBufferCount     = 2
)

// mapping is one memory-mapped kernel buffer.
type mapping struct {
	mem  []byte
	used uint32
}

// Pool owns the memory-mapped capture buffers of one allocation. Its
// count is fixed for its lifetime.
type Pool struct {
	dev      Device
	buffers  []mapping
	released bool
}

// AllocatePool requests buffers from the driver and maps each one. A
// requested count outside [MinBufferCount, DefaultBufferCount] is clamped.
// If any step fails after the request, every mapping created so far is
// released before the error is returned.
func AllocatePool(dev Device, requested int) (*Pool, error) {
	count := clampBufferCount(requested)

	granted, err := dev.RequestBuffers(uint32(count))
	if err != nil {
		return nil, &Error{Code: errnoCode(err), Op: OpAllocateBuffers, Message: "VIDIOC_REQBUFS", Cause: err}
	}
	if granted < MinBufferCount {
		if granted > 0 {
			_, _ = dev.RequestBuffers(0)
		}
		return nil, &Error{
			Code:    ErrCodeInsufficientBuffers,
			Op:      OpAllocateBuffers,
			Message: fmt.Sprintf("driver granted %d buffers, need at least %d", granted, MinBufferCount),
		}
	}

	arena := make([]mapping, 0, granted)
	unwind := func(cause *Error) (*Pool, error) {
		for _, m := range arena {
			_ = dev.Unmap(m.mem)
		}
		_, _ = dev.RequestBuffers(0)
		return nil, cause
	}

	for i := uint32(0); i < granted; i++ {
		info, err := dev.QueryBuffer(i)
		if err != nil {
			return unwind(&Error{Code: ErrCodeIoctlFailed, Op: OpAllocateBuffers, Message: fmt.Sprintf("VIDIOC_QUERYBUF %d", i), Cause: err})
		}

		mem, err := dev.Map(info.Offset, info.Length)
		if err != nil {
			code := ErrCodeMapFailed
			if errors.Is(err, unix.ENOMEM) {
				code = ErrCodeOutOfMemory
			}
			return unwind(&Error{Code: code, Op: OpAllocateBuffers, Message: fmt.Sprintf("mmap buffer %d", i), Cause: err})
		}
		arena = append(arena, mapping{mem: mem})
	}

	return &Pool{dev: dev, buffers: arena}, nil
}

func clampBufferCount(requested int) int {
	switch {
	case requested <= 0 || requested > DefaultBufferCount:
		return DefaultBufferCount
	case requested < MinBufferCount:
		return MinBufferCount
	default:
		return requested
	}
}

func errnoCode(err error) string {
	if errors.Is(err, unix.ENOMEM) {
		return ErrCodeOutOfMemory
	}
	return ErrCodeIoctlFailed
}

// Count returns the number of mapped buffers.
func (p *Pool) Count() int {
	return len(p.buffers)
}

// Capacity returns the mapped length of buffer index.
func (p *Pool) Capacity(index uint32) (int, error) {
	if err := p.check(index); err != nil {
		return 0, err
	}
	return len(p.buffers[index].mem), nil
}

// Get returns a borrowed view of buffer index. Its length is the byte
// count of the last capture into that buffer when the driver reported
// fewer bytes than the capacity, and the full capacity otherwise. The
// view is only valid until the buffer is queued again.
func (p *Pool) Get(index uint32) ([]byte, error) {
	if err := p.check(index); err != nil {
		return nil, err
	}
	b := p.buffers[index]
	if b.used > 0 && int(b.used) < len(b.mem) {
		return b.mem[:b.used:b.used], nil
	}
	return b.mem[:len(b.mem):len(b.mem)], nil
}

// setUsed records the filled byte count reported by a dequeue.
func (p *Pool) setUsed(index, used uint32) {
	if int(index) < len(p.buffers) {
		p.buffers[index].used = used
	}
}

func (p *Pool) check(index uint32) error {
	if p.released || int(index) >= len(p.buffers) {
		return &Error{
			Code:    ErrCodeIndexOutOfRange,
			Message: fmt.Sprintf("buffer index %d outside [0, %d)", index, len(p.buffers)),
		}
	}
	return nil
}

// Release unmaps every buffer once and frees the kernel buffers. Further
// calls do nothing. It must only be called with streaming off.
func (p *Pool) Release() error {
	if p.released {
		return nil
	}
	p.released = true

	var errs error
	for i, b := range p.buffers {
		if err := p.dev.Unmap(b.mem); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("munmap buffer %d: %w", i, err))
		}
	}
	p.buffers = nil

	// Freeing is best-effort; older drivers reject a zero count.
	_, _ = p.dev.RequestBuffers(0)

	if errs != nil {
		return &Error{Code: ErrCodeMapFailed, Op: OpReleaseBuffers, Cause: errs}
	}
	return nil
}
