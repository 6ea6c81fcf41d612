// Package session manages per-user search sessions. It tracks each connected
// user's search state (idle, searching, paired) and active pairing, backed by
// Redis so any gateway instance can see where a user stands.
package session
