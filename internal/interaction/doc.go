// Package interaction contains the mention poller and the reply handler.
//
// A Poller owns no mutable state of its own: the driver creates a State and
// passes it to every tick, so a single tick can be exercised in isolation.
// Mentions are handled one at a time in platform order and each id is
// dispatched to the ReplyHandler at most once.
package interaction
