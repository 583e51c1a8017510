// Package postgres implements the persistence interfaces against PostgreSQL:
// the post, task record, and notification stores, and the durable job queue
// backing the task broker.
package postgres
