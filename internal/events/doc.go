// Package events publishes the outcome of every processed mention to an
// optional sink: an in-memory channel, a redis list or a RabbitMQ queue.
package events
