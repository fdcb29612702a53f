// Package ws connects browser previews to sessions over WebSocket.
//
// A connection becomes the rendering surface of its session: each render
// is pushed as
//
//	{"type":"render","document":"<!DOCTYPE html>...","sandbox":"allow-scripts ...","frame":"<uuid>"}
//
// and the page loads the document into an iframe carrying that sandbox
// attribute. Whatever the iframe posts to its parent is relayed back as
// {"type":"message","data":...}; diagnostics recorded by the session are
// pushed as {"type":"diagnostic","diagnostic":{...}}.
//
// Client messages:
//   - edit: {"buffer":"script","text":"..."} replaces a buffer
//   - message: relays iframe traffic to the bridge
//   - reset, refresh, ping
package ws
