// Package postgres implements the operation store on PostgreSQL via the
// pgx stdlib driver. This is the adapter server-side hosts use when the
// queue shares the application's ACID-transactional database.
package postgres
