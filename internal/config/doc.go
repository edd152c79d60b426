// Package config loads the daemon configuration from a JSON file, merges
// secrets from a sibling .env file and the process environment, and exposes
// the agent settings lookup used by the mention poller.
package config
