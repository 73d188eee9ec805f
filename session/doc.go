// Package session defines persistence for chat conversation threads: the
// sessions a user opens against a chat graph and the messages exchanged in
// them. Subpackages provide memory, Redis, SQLite, and PostgreSQL backends
// behind the same Store interface.
//
// Run state itself is never persisted; a session stores the conversation a
// frontend replays into the graph, not the graph's routing state.
package session
