// Package room keeps the in-memory mapping from room ids to the participants
// that joined them. A room exists only while it has at least one member.
package room
