// Package explorer provides a client for Blockscout-compatible block explorer
// REST APIs and a registry of named explorer networks loaded from YAML.
package explorer
