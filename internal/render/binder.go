package render

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Binding records a listener attached in place of an inline handler attribute.
type Binding struct {
	Element string `json:"element"`
	Event   string `json:"event"`
	Code    string `json:"code"`
}

// Diagnostic describes an item that could not be processed. Diagnostics never abort a pass.
type Diagnostic struct {
	Stage   string `json:"stage"`
	Element string `json:"element,omitempty"`
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

const (
	stageBind   = "bind"
	stageScript = "script"
)

// bindHandlersLocked converts inline handler attributes of every unprocessed element into
// listeners. The caller holds c.mu.
func bindHandlersLocked(c *Container, sandbox Sandbox) ([]Binding, []Diagnostic) {
	var (
		bindings []Binding
		diags    []Diagnostic
	)
	walkElements(c.root, func(n *html.Node) bool {
		if _, done := attrValue(n, ProcessedMarkerAttr); done {
			return true
		}
		b, d, touched := bindElement(c, sandbox, n)
		bindings = append(bindings, b...)
		diags = append(diags, d...)
		if touched {
			setAttr(n, ProcessedMarkerAttr, "true")
		}
		return true
	})
	return bindings, diags
}

func bindElement(c *Container, sandbox Sandbox, n *html.Node) ([]Binding, []Diagnostic, bool) {
	var (
		bindings []Binding
		diags    []Diagnostic
		touched  bool
	)
	label := describeNode(n)
	for _, kind := range EventKinds {
		frameworkAttr := strings.ToLower(kind.FrameworkAttr)
		raw, found := attrValue(n, kind.HTMLAttr)
		if frameworkAttr != kind.HTMLAttr {
			if fwRaw, ok := attrValue(n, frameworkAttr); ok {
				removeAttr(n, frameworkAttr)
				if !found {
					raw, found = fwRaw, true
				}
			}
		}
		if !found {
			continue
		}
		touched = true
		removeAttr(n, kind.HTMLAttr)

		code := CleanHandlerCode(raw)
		if code == "" {
			diags = append(diags, Diagnostic{Stage: stageBind, Element: label, Event: kind.Name, Message: "empty handler code"})
			continue
		}
		listener, err := compileIsolated(sandbox, n, kind.Name, code)
		if err != nil {
			diags = append(diags, Diagnostic{Stage: stageBind, Element: label, Event: kind.Name, Message: err.Error()})
			continue
		}
		c.addListenerLocked(n, kind.Name, listener)
		bindings = append(bindings, Binding{Element: label, Event: kind.Name, Code: code})
	}
	return bindings, diags, touched
}

func compileIsolated(sandbox Sandbox, n *html.Node, event, code string) (listener Listener, err error) {
	defer func() {
		if r := recover(); r != nil {
			listener, err = nil, fmt.Errorf("render: compile panic: %v", r)
		}
	}()
	return sandbox.Compile(n, event, code)
}
