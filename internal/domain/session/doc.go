// Package session holds the state of one playground: the three source
// buffers, the bounded diagnostic log and the preview pipeline that turns
// edits into renders.
//
// Pipeline:
//
//	UpdateBuffer -> Debouncer (500ms) -> Assemble -> Controller.Render
//	                                                      |
//	AppendDiagnostic <- bridge message <- sandboxed document
//
// Preview states:
//
//	Idle --edit--> PendingRender --edit--> PendingRender
//	PendingRender --timer--> Rendering --done--> Idle
//	any --ResetAll--> Rendering --done--> Idle
//
// Every mutation runs under the session mutex, so timer expiry, message
// delivery and rendering never overlap. Subscribers are called with the
// mutex held and must not call back into the session.
//
// Example Usage:
//
//	manager := session.NewManager(session.Options{Headless: true}).WithMetrics(metrics)
//	s := manager.Create(types.CreateSessionRequest{})
//	s.UpdateBuffer(session.Script, `console.log("hi")`)
package session
