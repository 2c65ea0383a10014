// Package health gates sandbox use on automation server readiness.
//
// A freshly started browser container accepts TCP connections before the
// automation server inside it can serve sessions. The Prober polls the
// server's /status endpoint and only reports success once the JSON body
// carries value.ready == true:
//
//	p := health.NewProber()
//	err := p.AwaitReady(ctx, health.StatusURL("localhost", 4444), 30*time.Second)
//	if errors.Is(err, errors.ErrTimeout) {
//		// provisioning failed
//	}
//
// Connection refusals, per-request timeouts and non-2xx responses are all
// treated as "not ready yet". Polling uses a constant backoff bound to the
// overall deadline, so AwaitReady returns shortly after the timeout even
// when a request is in flight.
//
// Settle adds the fixed pause used for sessions with a visible display.
package health
