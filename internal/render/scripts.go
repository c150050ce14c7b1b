package render

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ScriptRecord reports what happened to one script element during reanimation.
type ScriptRecord struct {
	Index    int               `json:"index"`
	Src      string            `json:"src,omitempty"`
	Type     string            `json:"type,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Inline   bool              `json:"inline"`
	Executed bool              `json:"executed"`
	Issued   bool              `json:"issued"`
	Error    string            `json:"error,omitempty"`
}

// ScriptLoader issues external scripts referenced by a src attribute.
type ScriptLoader interface {
	Load(ctx context.Context, src string, attrs []html.Attribute) error
}

// ScriptLoaderFunc adapts a function to ScriptLoader.
type ScriptLoaderFunc func(ctx context.Context, src string, attrs []html.Attribute) error

// Load calls f.
func (f ScriptLoaderFunc) Load(ctx context.Context, src string, attrs []html.Attribute) error {
	return f(ctx, src, attrs)
}

// reanimateScriptsLocked swaps every script element for a fresh copy and runs it once.
// Inline bodies execute in the sandbox; src scripts are handed to loader. The caller holds c.mu.
func reanimateScriptsLocked(ctx context.Context, c *Container, sandbox Sandbox, loader ScriptLoader) []ScriptRecord {
	var scripts []*html.Node
	walkElements(c.root, func(n *html.Node) bool {
		if n.DataAtom == atom.Script || strings.EqualFold(n.Data, "script") {
			scripts = append(scripts, n)
		}
		return true
	})

	records := make([]ScriptRecord, 0, len(scripts))
	for i, old := range scripts {
		fresh := cloneScript(old)
		if parent := old.Parent; parent != nil {
			parent.InsertBefore(fresh, old)
			parent.RemoveChild(old)
		}
		records = append(records, runScript(ctx, i, fresh, sandbox, loader))
	}
	return records
}

func cloneScript(old *html.Node) *html.Node {
	fresh := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Script,
		Data:     "script",
		Attr:     append([]html.Attribute(nil), old.Attr...),
	}
	if _, hasSrc := attrValue(old, "src"); !hasSrc {
		fresh.AppendChild(&html.Node{Type: html.TextNode, Data: textContent(old)})
	}
	return fresh
}

func runScript(ctx context.Context, index int, script *html.Node, sandbox Sandbox, loader ScriptLoader) (record ScriptRecord) {
	record = ScriptRecord{Index: index, Attrs: make(map[string]string, len(script.Attr))}
	for _, attr := range script.Attr {
		record.Attrs[attr.Key] = attr.Val
	}
	record.Type, _ = attrValue(script, "type")
	defer func() {
		if r := recover(); r != nil {
			record.Error = fmt.Sprintf("script panic: %v", r)
		}
	}()

	if src, ok := attrValue(script, "src"); ok {
		record.Src = src
		record.Issued = true
		if loader != nil {
			if err := loader.Load(ctx, src, script.Attr); err != nil {
				record.Error = err.Error()
			}
		}
		return record
	}

	record.Inline = true
	if !isExecutableScriptType(record.Type) {
		return record
	}
	name := fmt.Sprintf("inline-script-%d.js", index)
	if err := sandbox.Exec(ctx, name, textContent(script)); err != nil {
		record.Error = err.Error()
		return record
	}
	record.Executed = true
	return record
}

// isExecutableScriptType reports whether a browser would run a classic script of this type.
func isExecutableScriptType(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "text/javascript", "application/javascript", "application/ecmascript",
		"text/ecmascript", "text/jscript", "application/x-javascript":
		return true
	default:
		return false
	}
}
