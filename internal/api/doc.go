// Package api exposes the explorer actions over HTTP together with health,
// metrics and recent conversation memories. Routes under /api/v1 can be
// guarded with static bearer API keys.
package api
