package sandbox

import (
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// minTimerDelay is the clamp browsers apply to zero and negative delays.
const minTimerDelay = time.Millisecond

// setupGlobals builds the browser-like global scope of a frame.
func (h *Headless) setupGlobals() {
	vm := h.vm
	global := vm.GlobalObject()

	// Remove dangerous globals
	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())
	vm.Set("module", goja.Undefined())
	vm.Set("exports", goja.Undefined())

	vm.Set("window", global)
	vm.Set("self", global)

	host := vm.NewObject()
	host.Set("postMessage", h.postMessage)
	vm.Set("parent", host)
	vm.Set("top", host)

	console := vm.NewObject()
	for _, method := range []string{"log", "info", "warn", "error", "debug"} {
		console.Set(method, h.consoleSink(method))
	}
	vm.Set("console", console)

	vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value { return h.schedule(call, false) })
	vm.Set("setInterval", func(call goja.FunctionCall) goja.Value { return h.schedule(call, true) })
	vm.Set("clearTimeout", h.clearTimer)
	vm.Set("clearInterval", h.clearTimer)

	h.setupDialogs()
	h.setupDenied()
	vm.Set("document", h.document())
}

// postMessage serializes data the way structured clone would for plain
// JSON values and hands it to the controller.
func (h *Headless) postMessage(call goja.FunctionCall) goja.Value {
	if h.poster == nil {
		return goja.Undefined()
	}

	stringify, ok := goja.AssertFunction(h.vm.Get("JSON").ToObject(h.vm).Get("stringify"))
	if !ok {
		return goja.Undefined()
	}
	out, err := stringify(goja.Undefined(), call.Argument(0))
	if err != nil {
		h.throw("DataCloneError", "The object could not be cloned.")
	}
	if out == nil || goja.IsUndefined(out) {
		return goja.Undefined()
	}

	h.poster.Post([]byte(out.String()))
	return goja.Undefined()
}

// consoleSink is the original console the bridge passes through to.
func (h *Headless) consoleSink(method string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		args := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			args = append(args, h.text(arg))
		}
		h.logger.Debug("console",
			zap.String("frame", h.frame.ID),
			zap.String("method", method),
			zap.Strings("arguments", args))
		return goja.Undefined()
	}
}

func (h *Headless) schedule(call goja.FunctionCall, repeat bool) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		h.logger.Debug("String timer handlers are not supported", zap.String("frame", h.frame.ID))
		return h.vm.ToValue(0)
	}

	delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	if delay < minTimerDelay {
		delay = minTimerDelay
	}
	var args []goja.Value
	if len(call.Arguments) > 2 {
		args = append(args, call.Arguments[2:]...)
	}

	h.nextTimer++
	id := h.nextTimer
	h.arm(id, h.generation, fn, args, delay, repeat)
	return h.vm.ToValue(id)
}

func (h *Headless) arm(id int64, generation uint64, fn goja.Callable, args []goja.Value, delay time.Duration, repeat bool) {
	h.timers[id] = h.clock.AfterFunc(delay, func() {
		h.fire(id, generation, fn, args, delay, repeat)
	})
}

func (h *Headless) fire(id int64, generation uint64, fn goja.Callable, args []goja.Value, delay time.Duration, repeat bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || generation != h.generation {
		return
	}
	if _, ok := h.timers[id]; !ok {
		return
	}
	if repeat {
		h.arm(id, generation, fn, args, delay, repeat)
	} else {
		delete(h.timers, id)
	}

	h.exec(func() error {
		_, err := fn(goja.Undefined(), args...)
		return err
	})
}

func (h *Headless) clearTimer(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).ToInteger()
	if t, ok := h.timers[id]; ok {
		t.Stop()
		delete(h.timers, id)
	}
	return goja.Undefined()
}

// setupDialogs installs alert/confirm/prompt and open. Nobody answers a
// headless dialog, so they resolve the way a dismissed dialog would.
func (h *Headless) setupDialogs() {
	policy := h.frame.Policy

	dialog := func(name string, result goja.Value) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			if !policy.AllowModals {
				h.logger.Debug("Ignored call to "+name+"(): modals are not allowed", zap.String("frame", h.frame.ID))
				return goja.Undefined()
			}
			h.logger.Info("Dialog",
				zap.String("frame", h.frame.ID),
				zap.String("kind", name),
				zap.String("message", h.text(call.Argument(0))))
			return result
		}
	}
	h.vm.Set("alert", dialog("alert", goja.Undefined()))
	h.vm.Set("confirm", dialog("confirm", h.vm.ToValue(false)))
	h.vm.Set("prompt", dialog("prompt", goja.Null()))

	h.vm.Set("open", func(call goja.FunctionCall) goja.Value {
		if !policy.AllowPopups {
			h.logger.Debug("Blocked popup: popups are not allowed", zap.String("frame", h.frame.ID))
			return goja.Null()
		}
		h.logger.Info("Popup requested",
			zap.String("frame", h.frame.ID),
			zap.String("url", h.text(call.Argument(0))))
		return goja.Null()
	})
}

// setupDenied installs the host capabilities a frame may never reach:
// storage, cookies and navigation.
func (h *Headless) setupDenied() {
	global := h.vm.GlobalObject()

	deny := func(what string) goja.Value {
		return h.vm.ToValue(func(goja.FunctionCall) goja.Value {
			h.throw("SecurityError", "Access to '"+what+"' is denied for this document.")
			return goja.Undefined()
		})
	}
	for _, name := range []string{"localStorage", "sessionStorage", "indexedDB"} {
		_ = global.DefineAccessorProperty(name, deny(name), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}

	// Navigation by assignment is denied too: href and the global itself
	// are accessors whose setters throw.
	location := h.vm.NewObject()
	href := h.vm.ToValue(func(goja.FunctionCall) goja.Value { return h.vm.ToValue(SourceName) })
	_ = location.DefineAccessorProperty("href", href, deny("location.href"), goja.FLAG_FALSE, goja.FLAG_TRUE)
	location.Set("toString", func() string { return SourceName })
	for _, name := range []string{"assign", "replace", "reload"} {
		location.Set(name, deny("location."+name))
	}
	get := h.vm.ToValue(func(goja.FunctionCall) goja.Value { return location })
	_ = global.DefineAccessorProperty("location", get, deny("location"), goja.FLAG_FALSE, goja.FLAG_TRUE)
}

func (h *Headless) document() *goja.Object {
	doc := h.vm.NewObject()

	doc.Set("getElementById", func(id string) goja.Value {
		return h.element(h.dom.ByID(id))
	})
	doc.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return h.queryFirst(nil, call)
	})
	doc.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return h.queryAll(nil, call)
	})
	doc.Set("getElementsByTagName", func(tag string) goja.Value {
		return h.list(h.dom.ByTag(nil, tag))
	})
	doc.Set("getElementsByClassName", func(names string) goja.Value {
		return h.list(h.dom.ByClass(nil, names))
	})
	doc.Set("createElement", func(tag string) goja.Value {
		if strings.TrimSpace(tag) == "" {
			h.throw("SyntaxError", "The tag name provided is not a valid name.")
		}
		return h.element(h.dom.CreateElement(tag))
	})
	doc.Set("addEventListener", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	doc.Set("removeEventListener", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	doc.Set("readyState", "complete")

	h.accessor(doc, "body", func() goja.Value { return h.element(h.dom.Body()) }, nil)
	h.accessor(doc, "head", func() goja.Value { return h.element(h.dom.Head()) }, nil)
	h.accessor(doc, "documentElement", func() goja.Value { return h.element(h.dom.Root()) }, nil)
	h.accessor(doc, "title",
		func() goja.Value { return h.vm.ToValue(h.dom.Title()) },
		func(v goja.Value) { h.dom.SetTitle(h.text(v)) })
	h.accessor(doc, "cookie",
		func() goja.Value {
			h.throw("SecurityError", "Access to 'document.cookie' is denied for this document.")
			return goja.Undefined()
		},
		func(goja.Value) {
			h.throw("SecurityError", "Access to 'document.cookie' is denied for this document.")
		})

	return doc
}

func (h *Headless) accessor(obj *goja.Object, name string, get func() goja.Value, set func(goja.Value)) {
	getter := h.vm.ToValue(func(goja.FunctionCall) goja.Value { return get() })
	var setter goja.Value
	if set != nil {
		setter = h.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	_ = obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
}
