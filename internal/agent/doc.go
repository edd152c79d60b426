// Package agent holds the runtime identity of the chat agent: its id, its
// settings lookup and the single-turn text generation call used when
// replying to mentions.
package agent
