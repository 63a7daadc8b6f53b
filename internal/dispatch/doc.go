// Package dispatch delivers notifications to the webhook concurrently.
//
// Every notification gets its own goroutine and its own retry loop. A
// rate-limit response suspends only that goroutine for the server-given
// duration, then the same message is resubmitted. Outcomes are collected
// from a completion channel in the order sends finish.
//
// # Events
//
// The dispatcher publishes lifecycle events on the event bus:
// dispatch.sending, dispatch.rate_limited, dispatch.sent and dispatch.failed.
// Data is an Event value.
package dispatch
