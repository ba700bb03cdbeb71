// Package audit provides the async audit pipeline used by the token engine.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zap logger, no-op).
//   - [Dispatcher]: buffered relay onto one worker goroutine, with drop-if-full
//     or block-if-full semantics and a bounded drain on Close.
//   - [Event]: structured audit record with id, timestamp, type, host, IP and rejection code.
//
// # What this package must NOT do
//
//   - Decide which events to emit. The Engine owns that.
//   - Carry token payloads.
package audit
