/*
Package sandbox controls the isolated context a session's document runs in.

# Overview

A Controller owns at most one Surface. Every render is a cold restart: the
surface discards the previous document with everything it scheduled and
loads the new one. Messages the document posts across the boundary come
back through Controller.Post, a non-blocking bounded inbox drained by a
single pump goroutine that decodes them and hands diagnostics to the
session in arrival order.

# Surfaces

  - Headless: a goja VM per frame with a browser-like global scope over a
    goquery DOM. Timers are bound to the frame generation; storage,
    cookies and navigation throw SecurityError; each callback runs under
    an execution timeout.
  - Browser: implemented by the WebSocket API, which pushes the document
    to an iframe carrying Policy.SandboxAttr() and relays posted messages
    back to Post.

# Security Model

Sandboxed code cannot:
  - Reach host storage, cookies or the host page
  - Navigate the top-level context
  - Keep running past the execution timeout
  - Outlive its frame through timers

# Usage

	ctrl := sandbox.NewController(sandbox.DefaultConfig(), deliver, logger, metrics)
	surface := sandbox.NewHeadless(ctrl, clock.Real(), sandbox.DefaultConfig(), logger, metrics)
	ctrl.Mount(surface, "headless")
	ctrl.Render(assembler.Assemble(markup, style, script))
*/
package sandbox
