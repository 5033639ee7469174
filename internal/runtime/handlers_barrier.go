package runtime

var barrierInitHandler = &Handler{
	Name: "pthread_barrier_init",
	Run: func(c *Call) (int32, error) {
		// pthread_barrier_init(barrier*, attr*, count)
		c.Host.BarrierInit(c.Arg(0), c.Arg(2))
		return 0, nil
	},
}

var barrierWaitHandler = &Handler{
	Name:     "pthread_barrier_wait",
	Blocking: true,
	Run: func(c *Call) (int32, error) {
		// Whether this lane may pass is decided inside BarrierWait (per-lane
		// generation bookkeeping); the handler itself just relays the
		// verdict, and Machine keeps not-ready lanes parked at the call.
		if err := c.Host.BarrierWait(c.Arg(0), c.Lane); err != nil {
			return 0, err
		}
		return 0, nil
	},
}
