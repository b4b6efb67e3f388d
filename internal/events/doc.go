// Package events provides the event distribution pipeline: a Broker that
// fans typed events out to in-process subscribers (backing the SSE endpoint)
// and a Listener that consumes a remote SSE event stream and hands each
// decoded event to a local handler.
package events
