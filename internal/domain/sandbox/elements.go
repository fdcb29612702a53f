package sandbox

import (
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// element returns the proxy for n, creating it on first use so the same
// node always maps to the same object within a frame.
func (h *Headless) element(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if obj, ok := h.nodes[n]; ok {
		return obj
	}

	obj := h.vm.NewObject()
	h.nodes[n] = obj
	h.elements[obj] = n

	h.accessor(obj, "tagName", func() goja.Value { return h.vm.ToValue(strings.ToUpper(n.Data)) }, nil)
	h.accessor(obj, "nodeName", func() goja.Value { return h.vm.ToValue(strings.ToUpper(n.Data)) }, nil)
	h.attribute(obj, n, "id", "id")
	h.attribute(obj, n, "className", "class")
	h.accessor(obj, "textContent",
		func() goja.Value { return h.vm.ToValue(h.dom.Text(n)) },
		func(v goja.Value) { h.dom.SetText(n, h.text(v)) })
	h.accessor(obj, "innerText",
		func() goja.Value { return h.vm.ToValue(h.dom.Text(n)) },
		func(v goja.Value) { h.dom.SetText(n, h.text(v)) })
	h.accessor(obj, "innerHTML",
		func() goja.Value { return h.vm.ToValue(h.dom.InnerHTML(n)) },
		func(v goja.Value) { h.dom.SetInnerHTML(n, h.text(v)) })
	h.accessor(obj, "outerHTML", func() goja.Value { return h.vm.ToValue(h.dom.OuterHTML(n)) }, nil)
	h.accessor(obj, "children", func() goja.Value { return h.list(h.dom.Children(n)) }, nil)
	h.accessor(obj, "parentElement", func() goja.Value {
		if n.Parent == nil || n.Parent.Type != html.ElementNode {
			return goja.Null()
		}
		return h.element(n.Parent)
	}, nil)

	obj.Set("getAttribute", func(name string) goja.Value {
		if v, ok := h.dom.Attr(n, name); ok {
			return h.vm.ToValue(v)
		}
		return goja.Null()
	})
	obj.Set("hasAttribute", func(name string) bool {
		_, ok := h.dom.Attr(n, name)
		return ok
	})
	obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		h.dom.SetAttr(n, h.text(call.Argument(0)), h.text(call.Argument(1)))
		return goja.Undefined()
	})
	obj.Set("removeAttribute", func(name string) {
		h.dom.RemoveAttr(n, name)
	})
	obj.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		child, ok := h.node(call.Argument(0))
		if !ok {
			h.throw("TypeError", "Failed to execute 'appendChild': parameter 1 is not of type 'Node'.")
		}
		if err := h.dom.Append(n, child); err != nil {
			h.throw("HierarchyRequestError", "Failed to execute 'appendChild': "+err.Error()+".")
		}
		return call.Argument(0)
	})
	obj.Set("remove", func() {
		h.dom.Remove(n)
	})
	obj.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return h.queryFirst(n, call)
	})
	obj.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return h.queryAll(n, call)
	})
	obj.Set("getElementsByTagName", func(tag string) goja.Value {
		return h.list(h.dom.ByTag(n, tag))
	})
	obj.Set("getElementsByClassName", func(names string) goja.Value {
		return h.list(h.dom.ByClass(n, names))
	})
	obj.Set("addEventListener", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	obj.Set("removeEventListener", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	obj.Set("style", h.vm.NewObject())

	return obj
}

// attribute exposes an HTML attribute as a reflected property.
func (h *Headless) attribute(obj *goja.Object, n *html.Node, property, attr string) {
	h.accessor(obj, property,
		func() goja.Value {
			v, _ := h.dom.Attr(n, attr)
			return h.vm.ToValue(v)
		},
		func(v goja.Value) { h.dom.SetAttr(n, attr, h.text(v)) })
}

func (h *Headless) node(v goja.Value) (*html.Node, bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	n, ok := h.elements[obj]
	return n, ok
}

func (h *Headless) list(nodes []*html.Node) goja.Value {
	items := make([]interface{}, 0, len(nodes))
	for _, n := range nodes {
		items = append(items, h.element(n))
	}
	return h.vm.NewArray(items...)
}

func (h *Headless) queryFirst(root *html.Node, call goja.FunctionCall) goja.Value {
	nodes := h.query(root, call, true)
	if len(nodes) == 0 {
		return goja.Null()
	}
	return h.element(nodes[0])
}

func (h *Headless) queryAll(root *html.Node, call goja.FunctionCall) goja.Value {
	return h.list(h.query(root, call, false))
}

func (h *Headless) query(root *html.Node, call goja.FunctionCall, first bool) []*html.Node {
	nodes, err := h.dom.Query(root, h.text(call.Argument(0)), first)
	if err != nil {
		h.throw("SyntaxError", "Failed to execute 'querySelector': "+err.Error()+".")
	}
	return nodes
}
