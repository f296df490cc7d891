// Package memory provides in-process implementations of the campaign and
// subscriber repositories. They back the "memory" storage mode and the
// service tests.
package memory
