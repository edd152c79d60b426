// Package auth guards the HTTP API with static bearer API keys and writes an
// audit record for every authenticated request.
package auth
