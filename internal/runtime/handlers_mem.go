package runtime

var mallocHandler = &Handler{
	Name: "malloc",
	Run: func(c *Call) (int32, error) {
		ptr, err := c.Host.Malloc(uint32(c.Arg(0)))
		if err != nil {
			return 0, nil // NULL on host allocation failure, not a Go error
		}
		return int32(ptr), nil
	},
}

var freeHandler = &Handler{
	Name: "free",
	Run: func(c *Call) (int32, error) {
		if err := c.Host.Free(uint32(c.Arg(0))); err != nil {
			// Freeing an unallocated pointer aborts the simulator
			// (spec.md §7); propagate it so Machine wraps it as a
			// FatalError instead of swallowing it as a return code.
			return 0, err
		}
		return 0, nil
	},
}
