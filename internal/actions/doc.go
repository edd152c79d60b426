// Package actions implements the explorer query actions the agent exposes:
// address balance, latest block, transaction details and network statistics.
package actions
