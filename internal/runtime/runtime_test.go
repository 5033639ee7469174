package runtime

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/rcornwell/simtx/internal/core"
	"github.com/rcornwell/simtx/internal/memory"
)

type fakeHost struct {
	log          *slog.Logger
	spawned      []int32
	joined       []int32
	freedBad     bool
	heapPtr      uint32
	barrierCount map[int32]int32
	files        map[int32][]byte
	nextFD       int32
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		barrierCount: map[int32]int32{},
		files:        map[int32][]byte{},
		heapPtr:      0x10000000,
		nextFD:       3,
	}
}

func (h *fakeHost) Log() *slog.Logger { return h.log }

func (h *fakeHost) SpawnThread(fn, arg int32) (int32, error) {
	h.spawned = append(h.spawned, fn)
	return int32(len(h.spawned)), nil
}

func (h *fakeHost) JoinThread(tid int32) error {
	h.joined = append(h.joined, tid)
	return nil
}

func (h *fakeHost) NumThreads() int32 { return 4 }

func (h *fakeHost) BarrierInit(addr int32, count int32) { h.barrierCount[addr] = count }

func (h *fakeHost) BarrierWait(addr int32, lane int32) error {
	h.barrierCount[addr]--
	if h.barrierCount[addr] > 0 {
		return ErrNotReady
	}
	return nil
}

func (h *fakeHost) Malloc(size uint32) (uint32, error) {
	p := h.heapPtr
	h.heapPtr += size
	return p, nil
}

func (h *fakeHost) Free(ptr uint32) error {
	if h.freedBad {
		return errors.New("free of unallocated pointer")
	}
	return nil
}

func (h *fakeHost) OpenFile(path string, flags int32) (int32, error) {
	fd := h.nextFD
	h.nextFD++
	h.files[fd] = nil
	return fd, nil
}

func (h *fakeHost) ReadFile(fd int32, buf []byte) (int32, error) {
	data := h.files[fd]
	n := copy(buf, data)
	return int32(n), nil
}

func (h *fakeHost) WriteFile(fd int32, buf []byte) (int32, error) {
	h.files[fd] = append(h.files[fd], buf...)
	return int32(len(buf)), nil
}

func (h *fakeHost) RewindFile(fd int32) error { return nil }

func (h *fakeHost) Exit(lane int32, code int32) {}

func newCall(host HostState) *Call {
	return &Call{
		Core: &core.Core{},
		Mem:  memory.New(65536),
		Host: host,
	}
}

func TestMallocAndFree(t *testing.T) {
	host := newFakeHost()
	c := newCall(host)
	c.Core.SetReg(10, 64) // a0 = size

	r, err := mallocHandler.Run(c)
	if err != nil {
		t.Fatalf("malloc returned error: %v", err)
	}
	if r != 0x10000000 {
		t.Errorf("malloc got: %#x expected: 0x10000000", r)
	}

	c.Core.SetReg(10, r)
	if _, err := freeHandler.Run(c); err != nil {
		t.Errorf("free returned error: %v", err)
	}
}

func TestFreeUnallocatedIsFatal(t *testing.T) {
	host := newFakeHost()
	host.freedBad = true
	c := newCall(host)
	c.Core.SetReg(10, 0xDEAD)

	if _, err := freeHandler.Run(c); err == nil {
		t.Errorf("free of unallocated pointer did not return an error")
	}
}

func TestPthreadCreateWritesThreadID(t *testing.T) {
	host := newFakeHost()
	c := newCall(host)
	c.Core.SetReg(10, 0x2000) // a0: pthread_t* out param
	c.Core.SetReg(12, 0x3000) // a2: start routine

	if _, err := pthreadCreateHandler.Run(c); err != nil {
		t.Fatalf("pthread_create returned error: %v", err)
	}
	tid, err := c.Mem.GetWord(0x2000)
	if err != nil {
		t.Fatalf("GetWord returned error: %v", err)
	}
	if tid != 1 {
		t.Errorf("stored thread id got: %d expected: 1", tid)
	}
}

func TestPthreadJoinIsBlocking(t *testing.T) {
	if !pthreadJoinHandler.Blocking {
		t.Errorf("pthread_join handler should be marked Blocking")
	}
	if pthreadCreateHandler.Blocking {
		t.Errorf("pthread_create handler should not be marked Blocking")
	}
}

func TestPutsReadsNulTerminatedString(t *testing.T) {
	host := newFakeHost()
	c := newCall(host)
	msg := []byte("hello\x00")
	if err := c.Mem.PutBytes(0x100, msg); err != nil {
		t.Fatalf("PutBytes returned error: %v", err)
	}
	c.Core.SetReg(10, 0x100)

	r, err := putsHandler.Run(c)
	if err != nil {
		t.Fatalf("puts returned error: %v", err)
	}
	if r != 5 {
		t.Errorf("puts got: %d expected: 5", r)
	}
}

func TestFwriteRoundTripsThroughHost(t *testing.T) {
	host := newFakeHost()
	c := newCall(host)
	data := []byte("simtx")
	if err := c.Mem.PutBytes(0x200, data); err != nil {
		t.Fatalf("PutBytes returned error: %v", err)
	}
	c.Core.SetReg(10, 0x200)
	c.Core.SetReg(11, 1) // size
	c.Core.SetReg(12, int32(len(data)))
	c.Core.SetReg(13, 3) // fd
	host.files[3] = nil

	r, err := fwriteHandler.Run(c)
	if err != nil {
		t.Fatalf("fwrite returned error: %v", err)
	}
	if r != int32(len(data)) {
		t.Errorf("fwrite got: %d expected: %d", r, len(data))
	}
	if !bytes.Equal(host.files[3], data) {
		t.Errorf("host file content got: %q expected: %q", host.files[3], data)
	}
}

func TestDefaultRegistryHasEveryHandler(t *testing.T) {
	reg := Default()
	for _, name := range []string{
		"pthread_create", "pthread_join", "pthread_barrier_init",
		"pthread_barrier_wait", "malloc", "free", "puts", "printf",
		"GOMP_parallel", "omp_get_num_threads", "omp_get_thread_num",
		"exit", "strtol", "strtof", "strtok", "fopen", "open", "read",
		"rewind", "fgets", "fwrite",
	} {
		if _, ok := reg[name]; !ok {
			t.Errorf("Default registry missing handler %q", name)
		}
	}
}
