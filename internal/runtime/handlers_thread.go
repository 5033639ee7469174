package runtime

var pthreadCreateHandler = &Handler{
	Name: "pthread_create",
	Run: func(c *Call) (int32, error) {
		fn := c.Arg(2)
		arg := c.Arg(3)
		// No idle lane on thread-create is a hard abort (spec.md §7), not a
		// host I/O failure, so it must propagate as a Go error.
		tid, err := c.Host.SpawnThread(fn, arg)
		if err != nil {
			return 0, err
		}
		// pthread_create's first argument points at a pthread_t the caller
		// stores the new thread id into; an out-of-range address here is an
		// illegal memory access, also a hard abort.
		if err := c.Mem.PutWord(uint32(c.Arg(0)), uint32(tid)); err != nil {
			return 0, err
		}
		return 0, nil
	},
}

var pthreadJoinHandler = &Handler{
	Name:     "pthread_join",
	Blocking: true,
	Run: func(c *Call) (int32, error) {
		// ErrNotReady must propagate so Machine keeps the caller parked
		// (Blocking); any other error would be a genuine host failure, but
		// JoinThread never returns one.
		if err := c.Host.JoinThread(c.Arg(0)); err != nil {
			return 0, err
		}
		return 0, nil
	},
}

var gompParallelHandler = &Handler{
	Name: "GOMP_parallel",
	Run: func(c *Call) (int32, error) {
		fn := c.Arg(0)
		arg := c.Arg(1)
		n := c.Host.NumThreads()
		for i := int32(1); i < n; i++ {
			// No idle lane on thread-create is a hard abort (spec.md §7).
			if _, err := c.Host.SpawnThread(fn, arg); err != nil {
				return 0, err
			}
		}
		return 0, nil
	},
}

var numThreadsHandler = &Handler{
	Name: "omp_get_num_threads",
	Run: func(c *Call) (int32, error) {
		return c.Host.NumThreads(), nil
	},
}

var threadIDHandler = &Handler{
	Name: "omp_get_thread_num",
	Run: func(c *Call) (int32, error) {
		return c.Lane, nil
	},
}

var exitHandler = &Handler{
	Name: "exit",
	Run: func(c *Call) (int32, error) {
		// exit() retires the calling lane's whole warp, not the machine, so
		// the lane id must travel with the call (spec.md §6).
		c.Host.Exit(c.Lane, c.Arg(0))
		return 0, nil
	},
}
