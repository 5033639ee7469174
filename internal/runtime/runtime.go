// Package runtime implements the external-call interception mechanism:
// when a warp's JAL target resolves to a PLT-bound symbol rather than
// code inside the simulated binary, Machine.Step dispatches to the
// matching Handler here instead of executing the jump. The mechanism is
// in scope (spec.md §1); each handler's host-side behavior is a
// replaceable leaf, grounded on implem.rs's syscall! dispatch macro and,
// for the "one implementation per interceptable entity" shape, on
// emu/device/device.go's Device interface.
package runtime

import (
	"errors"
	"log/slog"

	"github.com/rcornwell/simtx/internal/core"
	"github.com/rcornwell/simtx/internal/memory"
)

// ErrNotReady is returned by a Blocking handler's underlying HostState
// call (JoinThread, BarrierWait) when the calling lane must keep waiting
// rather than have Machine.Step advance its PC past the call site.
var ErrNotReady = errors.New("runtime: blocking call not ready")

// Call is the context a Handler runs in: the calling lane's register
// file and the shared memory, following the simulated platform's integer
// calling convention (arguments in a0..a7, i.e. registers 10..17, return
// value in a0).
type Call struct {
	Lane int32 // global thread id: warpIndex*threadsPerWarp + laneIndex
	Core *core.Core
	Mem  *memory.Memory
	Host HostState
}

// Arg returns integer argument i (0-indexed, so Arg(0) is a0/register 10).
func (c *Call) Arg(i int) int32 {
	return c.Core.GetReg(uint32(10 + i))
}

// SetReturn writes the handler's return value into a0.
func (c *Call) SetReturn(v int32) {
	c.Core.SetReg(10, v)
}

// HostState is the subset of Machine state a Handler may touch. It is
// declared here, the consumer side, so that internal/machine can
// implement it without this package importing machine and creating an
// import cycle.
type HostState interface {
	Log() *slog.Logger

	SpawnThread(fn, arg int32) (threadID int32, err error)
	JoinThread(threadID int32) error
	NumThreads() int32

	BarrierInit(addr int32, count int32)
	// BarrierWait returns ErrNotReady while the calling lane is still
	// waiting on other arrivals; nil once the barrier has released it.
	BarrierWait(addr int32, lane int32) error

	Malloc(size uint32) (uint32, error)
	Free(ptr uint32) error

	OpenFile(path string, flags int32) (fd int32, err error)
	ReadFile(fd int32, buf []byte) (n int32, err error)
	WriteFile(fd int32, buf []byte) (n int32, err error)
	RewindFile(fd int32) error

	// Exit retires every active lane of the calling lane's warp — not the
	// whole machine — matching spec.md §6: a program completes once every
	// lane across every warp has reached PC 0.
	Exit(lane int32, code int32)
}

// Handler is one intercepted external symbol.
type Handler struct {
	Name string
	// Blocking marks handlers whose calling lane must stay parked rather
	// than have its PC advanced past the call site immediately —
	// pthread_join and barrier wait. Resolved per SPEC_FULL.md's "park vs
	// advance" note; every other handler is non-blocking.
	Blocking bool
	Run      func(c *Call) (int32, error)
}

// Registry maps a PLT symbol name to its Handler.
type Registry map[string]*Handler

// NewRegistry builds a Registry from a handler list.
func NewRegistry(handlers ...*Handler) Registry {
	r := make(Registry, len(handlers))
	for _, h := range handlers {
		r[h.Name] = h
	}
	return r
}

// Default returns the registry of every host call this module intercepts.
func Default() Registry {
	return NewRegistry(
		pthreadCreateHandler,
		pthreadJoinHandler,
		barrierInitHandler,
		barrierWaitHandler,
		mallocHandler,
		freeHandler,
		putsHandler,
		printfHandler,
		gompParallelHandler,
		numThreadsHandler,
		threadIDHandler,
		exitHandler,
		strtolHandler,
		strtofHandler,
		strtokHandler,
		fopenHandler,
		openHandler,
		readHandler,
		rewindHandler,
		fgetsHandler,
		fwriteHandler,
	)
}
