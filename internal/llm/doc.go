// Package llm defines the text generation contract shared by the reply
// handler and the concrete model providers.
package llm
