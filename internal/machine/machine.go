// Package machine assembles the per-component pieces — warps, the
// divergence predictor each warp owns, the external-call registry, and
// the flat memory — into the runnable SIMT-X machine: the thing a driver
// loads a binary into, places a stack in, and steps one cycle at a time.
// Grounded on implem.rs's Machine<S>.
package machine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/rcornwell/simtx/internal/bitmask"
	"github.com/rcornwell/simtx/internal/isa"
	"github.com/rcornwell/simtx/internal/memory"
	"github.com/rcornwell/simtx/internal/runtime"
	"github.com/rcornwell/simtx/internal/scheduler"
	"github.com/rcornwell/simtx/internal/warp"
)

// Default heap and stack placement, matching implem.rs's Machine::new.
const (
	defaultHeapStart  = 0x10000000
	defaultStackStart = 0x20000000
	defaultStackSize  = 0x00200000
)

type barrier struct {
	initialCap int32
	currentCap int32
	generation int32
}

type heapBlock struct {
	size uint32
	used bool
}

// Machine is the SIMT-X engine: a set of warps sharing one flat memory,
// a PLT-symbol interception table, and the host-side state (idle lane
// pool, barriers, heap, open files) the runtime package's Handler
// implementations run against.
type Machine struct {
	mu sync.Mutex

	Warps     []*warp.Warp
	Scheduler warp.Scheduler
	Mem       *memory.Memory
	TPW       int

	PLT      map[int32]string
	registry runtime.Registry
	log      *slog.Logger

	idlePool []int

	barriers   map[int32]*barrier
	inBarrier  []int32
	barrierGen []int32

	heapPtr    uint32
	heapBlocks map[uint32]*heapBlock
	heapOrder  []uint32

	fileHandles map[int32]*os.File
	nextFID     int32

	stackStart uint32
	stackSize  uint32

	exitCode int32
}

// New builds a Machine with the given topology (threads per warp, number
// of warps), a memory to execute against, the PLT symbol table resolved
// by the loader, and a logger for host-call diagnostics.
func New(tpw, numWarps int, plt map[int32]string, mem *memory.Memory, log *slog.Logger) *Machine {
	warps := make([]*warp.Warp, numWarps)
	for i := range warps {
		warps[i] = warp.New(i, tpw)
	}

	total := tpw * numWarps
	idle := make([]int, 0, total)
	for i := total - 1; i >= 0; i-- {
		idle = append(idle, i)
	}

	return &Machine{
		Warps:       warps,
		Scheduler:   scheduler.RoundRobin{},
		Mem:         mem,
		TPW:         tpw,
		PLT:         plt,
		registry:    runtime.Default(),
		log:         log,
		idlePool:    idle,
		barriers:    map[int32]*barrier{},
		inBarrier:   make([]int32, total),
		barrierGen:  make([]int32, total),
		heapPtr:     defaultHeapStart,
		heapBlocks:  map[uint32]*heapBlock{},
		fileHandles: map[int32]*os.File{},
		nextFID:     3,
		stackStart:  defaultStackStart,
		stackSize:   defaultStackSize,
	}
}

// PlaceStack positions per-lane stacks after the loaded program's
// text/data, one stackSize-byte region per lane: the stack base is textEnd
// plus one stackSize per lane (implem.rs's place_stack formula), and lane
// i's region is the i-th stackSize-byte block above that base (StackTop).
func (m *Machine) PlaceStack(textEnd uint32, stackSize uint32) {
	m.stackStart = textEnd + uint32(len(m.Warps)*m.TPW)*stackSize
	m.stackSize = stackSize
}

// StackTop returns the address one past the stack region reserved for
// global lane id coreID — the initial stack pointer a driver should
// write into that lane's sp register before starting it.
func (m *Machine) StackTop(coreID int) uint32 {
	return m.stackStart + uint32(coreID+1)*m.stackSize
}

func (m *Machine) laneOf(coreID int) (wid, cid int) {
	return coreID / m.TPW, coreID % m.TPW
}

// GetPCOf returns the program counter of the path currently carrying
// lane coreID, or warp.IdlePC if that lane isn't on any path.
func (m *Machine) GetPCOf(coreID int) int32 {
	wid, cid := m.laneOf(coreID)
	for _, p := range m.Warps[wid].Paths {
		if p.Mask.Test(cid) {
			return p.FetchPC
		}
	}
	return warp.IdlePC
}

// SetPCOf places lane coreID onto a (possibly new) path at pc, splitting
// it out of whatever path it currently occupies. Used by the driver to
// start the program's initial thread and to place newly spawned threads.
func (m *Machine) SetPCOf(coreID int, pc int32) {
	wid, cid := m.laneOf(coreID)
	w := m.Warps[wid]
	for i := range w.Paths {
		if w.Paths[i].Mask.Test(cid) {
			w.Paths[i].Mask = w.Paths[i].Mask.Clear(cid)
			w.PushPath(warp.NewPath(pc, bitmask.Single(cid)))
			return
		}
	}
	m.removeFromIdlePool(coreID)
	w.PushPath(warp.NewPath(pc, bitmask.Single(cid)))
}

func (m *Machine) removeFromIdlePool(coreID int) {
	for i, id := range m.idlePool {
		if id == coreID {
			m.idlePool = append(m.idlePool[:i], m.idlePool[i+1:]...)
			return
		}
	}
}

// GetRegisterOf reads integer register reg of lane coreID.
func (m *Machine) GetRegisterOf(coreID int, reg uint32) int32 {
	wid, cid := m.laneOf(coreID)
	return m.Warps[wid].Cores[cid].GetReg(reg)
}

// SetRegisterOf writes integer register reg of lane coreID.
func (m *Machine) SetRegisterOf(coreID int, reg uint32, value int32) {
	wid, cid := m.laneOf(coreID)
	m.Warps[wid].Cores[cid].SetReg(reg, value)
}

// Finished reports whether every lane across every warp has reached
// IdlePC — the only termination condition (spec.md §6): exit() retires
// its caller's warp onto IdlePC paths rather than setting a global flag,
// so this per-lane scan is what actually observes it.
func (m *Machine) Finished() bool {
	for _, w := range m.Warps {
		for _, p := range w.Paths {
			if p.FetchPC != warp.IdlePC {
				return false
			}
		}
	}
	return true
}

// ExitCode returns the code passed to the most recent exit() call from
// any warp, valid once Finished reports true because of an explicit exit.
func (m *Machine) ExitCode() int32 {
	return m.exitCode
}

func (m *Machine) cleanIdles() {
	for wid, w := range m.Warps {
		drained := w.CleanIdles(wid * m.TPW)
		m.idlePool = append(m.idlePool, drained...)
	}
}

// Step runs one scheduling cycle: it reclaims idle lanes, picks one path
// per warp to advance, fetches and decodes a single instruction from
// that path's fetch_pc, and either dispatches it to an intercepted
// host-call handler, resolves a SYSTEM CSR read itself, or hands it to
// warp.Execute. A FatalError is returned for anything Step cannot
// recover from; the caller decides whether that ends the run.
func (m *Machine) Step() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleanIdles()

	for wid, w := range m.Warps {
		if len(w.Paths) == 0 {
			continue
		}
		pid, ok := w.Schedule(m.Scheduler)
		if !ok {
			continue
		}
		if pid < 0 || pid >= len(w.Paths) {
			return &FatalError{WarpID: wid, Err: fmt.Errorf("scheduler returned invalid path index %d", pid)}
		}
		path := w.Paths[pid]
		if path.FetchPC == warp.IdlePC {
			continue
		}
		pc := path.FetchPC

		word, err := m.Mem.GetWord(uint32(pc))
		if err != nil {
			return &FatalError{WarpID: wid, PC: pc, Err: err}
		}

		var inst isa.Instruction
		if expanded, compressed := isa.ExpandCompressed(uint16(word)); compressed {
			inst, err = isa.Decode(expanded)
			inst.Size = 2
		} else {
			inst, err = isa.Decode(word)
		}
		if err != nil {
			return &FatalError{WarpID: wid, PC: pc, Err: err}
		}

		switch inst.Op {
		case isa.OpJAL:
			target := pc + inst.ImmJ
			if name, ok := m.PLT[target]; ok {
				if err := m.dispatchCall(wid, pid, name, inst); err != nil {
					return err
				}
				continue
			}
			if err := w.Execute(m.Mem, pid, inst); err != nil {
				return &FatalError{WarpID: wid, PC: pc, Err: err}
			}

		case isa.OpSYSTEM:
			m.executeSystem(wid, pid, inst)

		default:
			if err := w.Execute(m.Mem, pid, inst); err != nil {
				return &FatalError{WarpID: wid, PC: pc, Err: err}
			}
		}
	}
	return nil
}

func (m *Machine) executeSystem(wid, pid int, inst isa.Instruction) {
	w := m.Warps[wid]
	path := w.Paths[pid]
	pc := path.FetchPC
	csr := uint32(inst.ImmI) & 0xFFF

	path.Mask.ForEach(func(lane int) {
		var v int32
		if inst.Func3 == isa.FuncCSRRS && csr == isa.CSRMHARTID {
			v = int32(wid*m.TPW + lane)
		}
		w.Cores[lane].SetReg(inst.Rd, v)
	})
	w.SetPC(pid, pc+int32(inst.Size))
}

// dispatchCall runs the intercepted handler for every active lane on the
// scheduled path. Lanes whose call completes advance past the call site;
// lanes whose Blocking call isn't ready yet (pthread_join, barrier wait)
// are split into their own path at the call site so they retry it next
// time they're scheduled, without blocking the rest of the warp.
func (m *Machine) dispatchCall(wid, pid int, name string, inst isa.Instruction) error {
	w := m.Warps[wid]
	handler, ok := m.registry[name]
	pc := w.Paths[pid].FetchPC
	if !ok {
		return &FatalError{WarpID: wid, PC: pc, Err: fmt.Errorf("no handler registered for intercepted symbol %q", name)}
	}

	mask := w.Paths[pid].Mask
	size := int32(inst.Size)

	var ready, notReady bitmask.Mask
	var callErr error
	mask.ForEach(func(lane int) {
		if callErr != nil {
			return
		}
		call := &runtime.Call{Lane: int32(wid*m.TPW + lane), Core: w.Cores[lane], Mem: m.Mem, Host: m}
		ret, err := handler.Run(call)
		if err != nil {
			if handler.Blocking && errors.Is(err, runtime.ErrNotReady) {
				notReady = notReady.Set(lane)
				return
			}
			callErr = err
			return
		}
		call.SetReturn(ret)
		ready = ready.Set(lane)
	})
	if callErr != nil {
		return &FatalError{WarpID: wid, PC: pc, Err: callErr}
	}

	// exit() has already rewritten this warp's paths onto IdlePC; advancing
	// pid now would pull the retired lanes back into the program.
	if pid >= len(w.Paths) || w.Paths[pid].FetchPC != pc {
		return nil
	}

	if notReady.IsEmpty() {
		w.SetPC(pid, pc+size)
		return nil
	}
	w.RemovePath(pid)
	if !ready.IsEmpty() {
		w.PushPath(warp.NewPath(pc+size, ready))
	}
	w.PushPath(warp.NewPath(pc, notReady))
	return nil
}

// Log implements runtime.HostState.
func (m *Machine) Log() *slog.Logger { return m.log }

// SpawnThread implements runtime.HostState: pops a lane from the idle
// pool and places it onto a new path at fn, with arg already in a0 per
// the pthread/OMP start-routine calling convention.
func (m *Machine) SpawnThread(fn, arg int32) (int32, error) {
	if len(m.idlePool) == 0 {
		return 0, errors.New("machine: no more idle threads")
	}
	tid := m.idlePool[len(m.idlePool)-1]
	m.idlePool = m.idlePool[:len(m.idlePool)-1]

	wid, cid := m.laneOf(tid)
	w := m.Warps[wid]
	w.Cores[cid].SetReg(10, arg)
	w.PushPath(warp.NewPath(fn, bitmask.Single(cid)))
	return int32(tid), nil
}

// JoinThread implements runtime.HostState: returns ErrNotReady until the
// target lane has gone idle.
func (m *Machine) JoinThread(threadID int32) error {
	if m.GetPCOf(int(threadID)) != warp.IdlePC {
		return runtime.ErrNotReady
	}
	return nil
}

// NumThreads implements runtime.HostState.
func (m *Machine) NumThreads() int32 {
	return int32(len(m.Warps) * m.TPW)
}

// BarrierInit implements runtime.HostState.
func (m *Machine) BarrierInit(addr int32, count int32) {
	m.barriers[addr] = &barrier{initialCap: count, currentCap: count}
}

// BarrierWait implements runtime.HostState, tracking arrivals with a
// generation counter: a lane's first call at a given barrier decrements
// currentCap and records the barrier's current generation; once
// currentCap reaches zero the barrier resets and bumps its generation,
// releasing the caller immediately. A lane still polling from an earlier
// generation sees the bumped generation on its next retry and is
// released too. Grounded on implem.rs's free_barrier, reworked from a
// path-splitting scan into per-lane bookkeeping since Machine already
// tracks each lane's barrier membership for this purpose.
func (m *Machine) BarrierWait(addr int32, lane int32) error {
	bar, ok := m.barriers[addr]
	if !ok {
		return fmt.Errorf("machine: wait on unregistered barrier %#x", addr)
	}

	if m.inBarrier[lane] != addr {
		m.inBarrier[lane] = addr
		m.barrierGen[lane] = bar.generation
		bar.currentCap--
		if bar.currentCap == 0 {
			bar.currentCap = bar.initialCap
			bar.generation++
			m.inBarrier[lane] = 0
			return nil
		}
		return runtime.ErrNotReady
	}

	if m.barrierGen[lane] != bar.generation {
		m.inBarrier[lane] = 0
		return nil
	}
	return runtime.ErrNotReady
}

// Malloc implements runtime.HostState: first-fit reuse of a freed block
// at least as large as the request, else a fresh bump allocation.
// implem.rs's equivalent compares against a *smaller* free chunk
// (`chunk_size < size`), which would hand back undersized memory; this
// is corrected to the standard first-fit `>=` comparison.
func (m *Machine) Malloc(size uint32) (uint32, error) {
	for _, ptr := range m.heapOrder {
		blk := m.heapBlocks[ptr]
		if !blk.used && blk.size >= size {
			blk.used = true
			return ptr, nil
		}
	}

	ptr := m.heapPtr
	if err := m.Mem.AllocateAt(ptr, size); err != nil {
		return 0, err
	}
	m.heapBlocks[ptr] = &heapBlock{size: size, used: true}
	m.heapOrder = append(m.heapOrder, ptr)
	m.heapPtr += size
	return ptr, nil
}

// Free implements runtime.HostState. Freeing a pointer malloc never
// returned is an unrecoverable guest-program error, surfaced as a real
// Go error so the caller turns it into a FatalError (spec.md §7).
func (m *Machine) Free(ptr uint32) error {
	blk, ok := m.heapBlocks[ptr]
	if !ok {
		return fmt.Errorf("machine: free of unallocated pointer %#x", ptr)
	}
	blk.used = false
	return nil
}

// OpenFile implements runtime.HostState, translating the guest's open(2)
// flag bits (runtime.Flag*) into the host os package's.
func (m *Machine) OpenFile(path string, flags int32) (int32, error) {
	osFlags := os.O_RDONLY
	if flags&runtime.FlagWriteOnly != 0 {
		osFlags = os.O_WRONLY
	}
	if flags&runtime.FlagCreate != 0 {
		osFlags |= os.O_CREATE
	}
	if flags&runtime.FlagTrunc != 0 {
		osFlags |= os.O_TRUNC
	}
	if flags&runtime.FlagAppend != 0 {
		osFlags |= os.O_APPEND
	}

	f, err := os.OpenFile(path, osFlags, 0o644)
	if err != nil {
		return 0, err
	}
	fid := m.nextFID
	m.nextFID++
	m.fileHandles[fid] = f
	return fid, nil
}

// ReadFile implements runtime.HostState.
func (m *Machine) ReadFile(fd int32, buf []byte) (int32, error) {
	f, ok := m.fileHandles[fd]
	if !ok {
		return 0, fmt.Errorf("machine: read from unopened file descriptor %d", fd)
	}
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return 0, err
	}
	return int32(n), nil
}

// WriteFile implements runtime.HostState.
func (m *Machine) WriteFile(fd int32, buf []byte) (int32, error) {
	f, ok := m.fileHandles[fd]
	if !ok {
		return 0, fmt.Errorf("machine: write to unopened file descriptor %d", fd)
	}
	n, err := f.Write(buf)
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

// RewindFile implements runtime.HostState.
func (m *Machine) RewindFile(fd int32) error {
	f, ok := m.fileHandles[fd]
	if !ok {
		return fmt.Errorf("machine: rewind of unopened file descriptor %d", fd)
	}
	_, err := f.Seek(0, io.SeekStart)
	return err
}

// Exit implements runtime.HostState: retires every active lane of the
// calling lane's warp onto an IdlePC path, rather than terminating the
// whole machine. Other warps keep running; Finished only reports true
// once every warp has reached IdlePC this way (spec.md §6).
func (m *Machine) Exit(lane int32, code int32) {
	m.exitCode = code
	wid, _ := m.laneOf(int(lane))
	m.Warps[wid].RetireAll()
}
