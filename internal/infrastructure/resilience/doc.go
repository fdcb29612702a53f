/*
Package resilience provides a circuit breaker for work that keeps failing.

# Overview

The headless renderer runs untrusted scripts on the server. A document
whose scripts hit the execution timeout on every render would burn a full
timeout of CPU per edit. The breaker counts those failures and, once
tripped, rejects further runs until its cooldown elapses.

# Features

- Three-state circuit breaker (Closed, Open, Half-Open)
- Configurable failure thresholds and cooldowns
- Clock-driven expiry, so tests advance time explicitly
- State change callbacks for logging
- Thread-safe operations

# Usage

	breaker := resilience.New("headless-scripts", resilience.Settings{
		Cooldown: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		Clock: clk,
	})

	err := breaker.Execute(func() error {
		return runScripts()
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		// skipped
	}

# States

	Closed --[failures]-> Open --[cooldown]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
