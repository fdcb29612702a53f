/*
Package bridge defines the diagnostics channel between a sandboxed
document and its host.

# Protocol

The bridge script (assets/bridge.js) is injected into every assembled
document ahead of the user script. It wraps console.log, info, warn and
error, forwarding each call to the host while still invoking the original
method, and installs window.onerror so uncaught errors are reported and
the default error surface is suppressed. Every event becomes one
fire-and-forget postMessage to window.parent:

	{ "kind": "console", "method": "log", "arguments": ["a", "{\"b\":1}"] }

Arguments are always text. Structured values are JSON-serialised; values
that cannot be serialised (cycles) fall back to String(value).

# Host side

Decode validates posted data and rejects anything that is not a console
message with ErrNotDiagnostic, since user scripts may post arbitrary data
to the parent. Message.Record stamps a decoded message with its receive
time for the session log.
*/
package bridge
