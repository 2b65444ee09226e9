/*
Package resilience provides a circuit breaker for calls to remote origins.

Source maps that are not inlined into a bundle are fetched from the dev server
that served the bundle. When that server is down every fetch would otherwise
wait for its full timeout; the breaker fails fast instead and the converter
degrades to unmapped coverage for the affected bundles.

# Usage

	breakers := resilience.NewGroup(resilience.Settings{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	body, err := resilience.Do(breakers.Get(host), func() ([]byte, error) {
		return fetch(ctx, mapURL)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                         Open
*/
package resilience
