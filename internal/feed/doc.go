// Package feed fetches the splatoon3.ink schedule and festival feeds and keeps
// one JSON snapshot of each on disk.
//
// A fetch yields a Pair: the live snapshot from the network and the snapshot
// cached by the previous run. When the network is unreachable the cached
// snapshot stands in for both, so the diff reports nothing new.
package feed
