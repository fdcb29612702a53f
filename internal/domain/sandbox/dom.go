package sandbox

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DOM is the parsed document a headless frame's scripts operate on.
type DOM struct {
	doc       *goquery.Document
	mutations []Mutation
}

// NewDOM parses a complete document.
func NewDOM(document string) (*DOM, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &DOM{doc: doc}, nil
}

func wrap(n *html.Node) *goquery.Selection {
	return goquery.NewDocumentFromNode(n).Selection
}

// Query finds elements under root (the document when root is nil)
// matching a CSS selector.
func (d *DOM) Query(root *html.Node, selector string, first bool) ([]*html.Node, error) {
	compiled, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("'%s' is not a valid selector", selector)
	}
	var m goquery.Matcher = compiled
	if first {
		m = goquery.SingleMatcher(m)
	}
	return d.scope(root).FindMatcher(m).Nodes, nil
}

func (d *DOM) scope(root *html.Node) *goquery.Selection {
	if root == nil {
		return d.doc.Selection
	}
	return wrap(root)
}

// ByID returns the first element with the given id.
func (d *DOM) ByID(id string) *html.Node {
	var found *html.Node
	d.doc.Find("[id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, _ := s.Attr("id"); v == id {
			found = s.Nodes[0]
			return false
		}
		return true
	})
	return found
}

// ByTag returns elements by tag name; "*" matches every element.
func (d *DOM) ByTag(root *html.Node, tag string) []*html.Node {
	tag = strings.ToLower(tag)
	var out []*html.Node
	d.scope(root).Find("*").Each(func(_ int, s *goquery.Selection) {
		if tag == "*" || s.Nodes[0].Data == tag {
			out = append(out, s.Nodes[0])
		}
	})
	return out
}

// ByClass returns elements carrying every class in names.
func (d *DOM) ByClass(root *html.Node, names string) []*html.Node {
	classes := strings.Fields(names)
	if len(classes) == 0 {
		return nil
	}
	var out []*html.Node
	d.scope(root).Find("[class]").Each(func(_ int, s *goquery.Selection) {
		for _, c := range classes {
			if !s.HasClass(c) {
				return
			}
		}
		out = append(out, s.Nodes[0])
	})
	return out
}

func (d *DOM) element(a atom.Atom) *html.Node {
	if n := d.doc.Find(a.String()).First(); n.Length() > 0 {
		return n.Nodes[0]
	}
	return nil
}

// Body returns the body element.
func (d *DOM) Body() *html.Node { return d.element(atom.Body) }

// Head returns the head element.
func (d *DOM) Head() *html.Node { return d.element(atom.Head) }

// Root returns the html element.
func (d *DOM) Root() *html.Node { return d.element(atom.Html) }

// Title returns the text of the document title.
func (d *DOM) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// SetTitle replaces or creates the document title.
func (d *DOM) SetTitle(title string) {
	sel := d.doc.Find("title").First()
	if sel.Length() == 0 {
		head := d.Head()
		if head == nil {
			return
		}
		n := d.CreateElement("title")
		head.AppendChild(n)
		sel = wrap(n)
	}
	sel.SetText(title)
	d.record("set_text", sel.Nodes[0], "title", title)
}

// CreateElement returns a detached element.
func (d *DOM) CreateElement(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Lookup([]byte(tag)),
		Data:     tag,
	}
}

// Attr returns an attribute value.
func (d *DOM) Attr(n *html.Node, name string) (string, bool) {
	return wrap(n).Attr(strings.ToLower(name))
}

// SetAttr sets an attribute value.
func (d *DOM) SetAttr(n *html.Node, name, value string) {
	name = strings.ToLower(name)
	wrap(n).SetAttr(name, value)
	d.record("set_attribute", n, name, value)
}

// RemoveAttr removes an attribute.
func (d *DOM) RemoveAttr(n *html.Node, name string) {
	name = strings.ToLower(name)
	wrap(n).RemoveAttr(name)
	d.record("remove_attribute", n, name, "")
}

// Text returns the combined text of n and its descendants.
func (d *DOM) Text(n *html.Node) string {
	return wrap(n).Text()
}

// SetText replaces the children of n with one text node.
func (d *DOM) SetText(n *html.Node, text string) {
	wrap(n).SetText(text)
	d.record("set_text", n, "textContent", text)
}

// InnerHTML serializes the children of n.
func (d *DOM) InnerHTML(n *html.Node) string {
	out, err := wrap(n).Html()
	if err != nil {
		return ""
	}
	return out
}

// SetInnerHTML parses markup in the context of n and replaces its children.
func (d *DOM) SetInnerHTML(n *html.Node, markup string) {
	wrap(n).SetHtml(markup)
	d.record("set_html", n, "innerHTML", markup)
}

// OuterHTML serializes n itself.
func (d *DOM) OuterHTML(n *html.Node) string {
	out, err := goquery.OuterHtml(wrap(n))
	if err != nil {
		return ""
	}
	return out
}

// Append moves child to the end of parent's children.
func (d *DOM) Append(parent, child *html.Node) error {
	for p := parent; p != nil; p = p.Parent {
		if p == child {
			return fmt.Errorf("the new child element contains the parent")
		}
	}
	wrap(parent).AppendNodes(child)
	d.record("append", parent, child.Data, "")
	return nil
}

// Remove detaches n from its parent.
func (d *DOM) Remove(n *html.Node) {
	if n.Parent == nil {
		return
	}
	d.record("remove", n, "", "")
	n.Parent.RemoveChild(n)
}

// Children returns the element children of n.
func (d *DOM) Children(n *html.Node) []*html.Node {
	return wrap(n).Children().Nodes
}

// HTML serializes the whole document in its current state.
func (d *DOM) HTML() (string, error) {
	return goquery.OuterHtml(d.doc.Selection)
}

// Mutations returns the modifications scripts made, in order.
func (d *DOM) Mutations() []Mutation {
	return append([]Mutation{}, d.mutations...)
}

func (d *DOM) record(kind string, n *html.Node, property, value string) {
	d.mutations = append(d.mutations, Mutation{
		Type:     kind,
		Target:   describeNode(n),
		Property: property,
		Value:    value,
	})
}

func describeNode(n *html.Node) string {
	target := n.Data
	for _, a := range n.Attr {
		if a.Key == "id" && a.Val != "" {
			target += "#" + a.Val
		}
	}
	return target
}
