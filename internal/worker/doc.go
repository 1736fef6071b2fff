// Package worker owns the single analysis goroutine. Requests are submitted
// fire-and-forget and executed strictly in submission order against the one
// live session; results and failures come back as events through a bounded
// fan-out hub. No other goroutine ever touches the session state.
package worker
