// Package postgres implements the campaign and subscriber repositories on
// PostgreSQL via database/sql and lib/pq. Status changes are conditional
// UPDATE statements so the database arbitrates concurrent transitions.
package postgres
