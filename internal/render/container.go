package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ProcessedMarkerAttr flags an element whose handler attributes were already bound.
const ProcessedMarkerAttr = "data-handlers-processed"

var (
	// ErrContainerDetached is returned when operating on a container that was unmounted.
	ErrContainerDetached = errors.New("render: container detached")
	// ErrNilContainer is returned when no container handle is supplied.
	ErrNilContainer = errors.New("render: container is nil")
)

// Event is delivered to listeners registered on container elements.
type Event struct {
	Type             string
	Target           *html.Node
	CurrentTarget    *html.Node
	DefaultPrevented bool
	PropagationStop  bool
}

// Listener handles one event occurrence.
type Listener func(ctx context.Context, ev *Event) error

// DispatchResult summarises one Dispatch call.
type DispatchResult struct {
	Invoked          int
	DefaultPrevented bool
	Errors           []error
}

// Container is a mutable document fragment that rendered content is injected into.
// Methods are safe for concurrent use; listeners and sandboxed code run while the
// container lock is held so the tree is only touched by one caller at a time.
type Container struct {
	mu         sync.Mutex
	root       *html.Node
	generation uint64
	attached   chan struct{}
	detached   bool
	pending    string
	processed  string
	listeners  map[*html.Node]map[string][]Listener
	sandbox    Sandbox
}

// NewContainer returns an empty, live container rooted at a div element.
func NewContainer() *Container {
	attached := make(chan struct{})
	close(attached)
	return &Container{
		root:      &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div},
		attached:  attached,
		listeners: make(map[*html.Node]map[string][]Listener),
	}
}

// SetInnerHTML replaces every child of the container with the parsed markup and returns
// the generation number identifying this injection. Listeners bound to the previous
// children are discarded together with them.
func (c *Container) SetInnerHTML(markup string) (uint64, error) {
	return c.inject(markup, "")
}

// inject replaces the children and records key as the content awaiting post-processing.
func (c *Container) inject(markup, key string) (uint64, error) {
	if c == nil {
		return 0, ErrNilContainer
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), c.root)
	if err != nil {
		return 0, fmt.Errorf("render: parse fragment: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		return 0, ErrContainerDetached
	}

	attached := make(chan struct{})
	c.attached = attached
	c.generation++
	for child := c.root.FirstChild; child != nil; {
		next := child.NextSibling
		c.root.RemoveChild(child)
		child = next
	}
	for _, node := range nodes {
		c.root.AppendChild(node)
	}
	c.listeners = make(map[*html.Node]map[string][]Listener)
	c.pending = key
	c.processed = ""
	close(attached)
	return c.generation, nil
}

// Attached returns a channel closed once the subtree of the given generation is committed.
// A generation that has been superseded reports attached immediately; callers detect the
// staleness through Generation.
func (c *Container) Attached(generation uint64) <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		done := make(chan struct{})
		close(done)
		return done
	}
	return c.attached
}

// Generation reports the number of injections performed so far.
func (c *Container) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Detach unmounts the container. Pending post-processing for earlier injections is dropped.
func (c *Container) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detached = true
	c.listeners = make(map[*html.Node]map[string][]Listener)
}

// Live reports whether the container is still mounted.
func (c *Container) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.detached
}

// InnerHTML serialises the current children of the container.
func (c *Container) InnerHTML() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return renderChildren(c.root)
}

// GetElementByID returns the first element carrying the id, or nil.
func (c *Container) GetElementByID(id string) *html.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return findByID(c.root, id)
}

// QueryAll returns every element matching the CSS selector.
func (c *Container) QueryAll(selector string) []*html.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return queryAll(c.root, selector)
}

// ListenerCount reports how many listeners are registered for event on node.
func (c *Container) ListenerCount(node *html.Node, event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners[node][event])
}

// Dispatch delivers an event to target and then to its ancestors inside the container,
// invoking every registered listener once. Listener errors are collected, not propagated.
func (c *Container) Dispatch(ctx context.Context, target *html.Node, event string) (DispatchResult, error) {
	if c == nil {
		return DispatchResult{}, ErrNilContainer
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		return DispatchResult{}, ErrContainerDetached
	}
	if target == nil || !c.contains(target) {
		return DispatchResult{}, fmt.Errorf("render: dispatch target not in container")
	}

	event = strings.ToLower(strings.TrimSpace(event))
	ev := &Event{Type: event, Target: target}
	var result DispatchResult
	for node := target; node != nil && node != c.root; node = node.Parent {
		handlers := c.listeners[node][event]
		if len(handlers) == 0 {
			continue
		}
		ev.CurrentTarget = node
		for _, listener := range append([]Listener(nil), handlers...) {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			result.Invoked++
			if err := invokeListener(ctx, listener, ev); err != nil {
				result.Errors = append(result.Errors, err)
			}
		}
		if ev.PropagationStop {
			break
		}
	}
	result.DefaultPrevented = ev.DefaultPrevented
	return result, nil
}

func invokeListener(ctx context.Context, listener Listener, ev *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render: listener panic: %v", r)
		}
	}()
	return listener(ctx, ev)
}

// addListenerLocked registers a listener; the caller holds c.mu.
func (c *Container) addListenerLocked(node *html.Node, event string, listener Listener) {
	byEvent, ok := c.listeners[node]
	if !ok {
		byEvent = make(map[string][]Listener)
		c.listeners[node] = byEvent
	}
	byEvent[event] = append(byEvent[event], listener)
}

func (c *Container) contains(node *html.Node) bool {
	for n := node; n != nil; n = n.Parent {
		if n == c.root {
			return true
		}
	}
	return false
}

func renderChildren(node *html.Node) (string, error) {
	var sb strings.Builder
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if err := html.Render(&sb, child); err != nil {
			return "", fmt.Errorf("render: serialise: %w", err)
		}
	}
	return sb.String(), nil
}

func findByID(root *html.Node, id string) *html.Node {
	if id == "" {
		return nil
	}
	var found *html.Node
	walkElements(root, func(n *html.Node) bool {
		if v, ok := attrValue(n, "id"); ok && v == id {
			found = n
			return false
		}
		return true
	})
	return found
}

func queryAll(root *html.Node, selector string) []*html.Node {
	selector = strings.TrimSpace(selector)
	if selector == "" || root == nil {
		return nil
	}
	doc := goquery.NewDocumentFromNode(root)
	return doc.Find(selector).Nodes
}

// walkElements visits descendant elements of root in document order until fn returns false.
func walkElements(root *html.Node, fn func(*html.Node) bool) bool {
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode {
			if !fn(child) {
				return false
			}
		}
		if !walkElements(child, fn) {
			return false
		}
	}
	return true
}

func attrValue(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, value string) {
	for i, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
}

func removeAttr(n *html.Node, key string) bool {
	for i, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		sb.WriteString(textContent(child))
	}
	return sb.String()
}
