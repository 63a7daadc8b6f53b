// Package diff finds newly announced events between two feed snapshots.
//
// Feeds list events newest-first and append at the front, with old entries
// rotating out at the back. New events therefore form a prefix of the live
// list: everything before the first event the cache already knows about.
package diff

// Equaler is implemented by event types with structural equality.
type Equaler[E any] interface {
	Equal(E) bool
}

// NewEvents returns the longest prefix of live whose elements have no equal
// element anywhere in cached. The scan stops at the first known event.
//
// An empty cached list makes every live event new; an empty live list yields
// nothing. The result is a fresh slice.
func NewEvents[E Equaler[E]](live, cached []E) []E {
	n := 0
	for _, ev := range live {
		if Contains(cached, ev) {
			break
		}
		n++
	}
	if n == 0 {
		return nil
	}
	out := make([]E, n)
	copy(out, live[:n])
	return out
}

// Contains reports whether list holds an element equal to ev.
func Contains[E Equaler[E]](list []E, ev E) bool {
	for _, c := range list {
		if ev.Equal(c) {
			return true
		}
	}
	return false
}
