// Package campaign implements the campaign state machine.
//
// A campaign only moves forward: draft -> sending -> sent | failed. The
// draft -> sending step is an atomic conditional update in the repository
// and is the only concurrency gate for a send; exactly one caller wins it.
// Terminal campaigns are never modified again.
//
// Repository implementations live in repository/postgres/ and repository/memory/.
package campaign
