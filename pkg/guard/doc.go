/*
Package guard protects a dictation service from trigger storms. It
bounds how often runs may start and how many may execute at once.

# Admission

A Guard combines two checks. The rate check is a token bucket over
trigger frequency; the slot check bounds simultaneous runs. Admit
performs both without blocking:

	g, err := guard.New(guard.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}

	release, err := g.Admit()
	if err != nil {
		// errors.Is(err, vperrors.ErrRateLimited) or ErrCapacityExceeded
		return
	}
	defer release()

	// run the pipeline

AdmitWait blocks until the run may start, which suits callers that
prefer queueing over rejection.

# Pieces

Rate and Slots are usable on their own when only one bound is needed.
Rate follows token bucket semantics with continuous refill; Slots is a
semaphore with a FIFO waiter queue and context-aware acquisition.
*/
package guard
