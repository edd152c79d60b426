// Package social defines the contract the mention poller consumes from a
// social platform: the authenticated profile, the mention feed, conversation
// threads and replies.
package social
