// Package sqlite implements the operation store on an embedded SQLite
// database (modernc.org/sqlite, pure Go). This is the default local
// implementation for on-device hosts: a single file, transactional, and
// durable across process crashes without any external service.
package sqlite
