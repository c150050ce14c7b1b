package render

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	defaultSandboxTimeout = 250 * time.Millisecond
	defaultConsoleLimit   = 200
)

var (
	errSandboxTimeout = errors.New("render: sandbox time limit exceeded")
	errHandlerBody    = errors.New("handler code is not a single function body")
)

// GojaOptions configures sandboxes backed by the goja JavaScript runtime.
type GojaOptions struct {
	// Timeout bounds every handler invocation and script execution.
	Timeout time.Duration
	// ConsoleLimit caps the number of retained console entries per container.
	ConsoleLimit int
	Logger       *zap.Logger
}

// GojaSandboxes returns a factory creating one isolated goja runtime per container. The
// runtime exposes console, alert/confirm, window.open and a small document bridge over the
// container tree; it has no file system, network or process access.
func GojaSandboxes(opts GojaOptions) SandboxFactory {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultSandboxTimeout
	}
	if opts.ConsoleLimit <= 0 {
		opts.ConsoleLimit = defaultConsoleLimit
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return func(c *Container) (Sandbox, error) {
		if c == nil {
			return nil, ErrNilContainer
		}
		s := &gojaSandbox{
			container: c,
			vm:        goja.New(),
			opts:      opts,
			logger:    opts.Logger.Named("sandbox"),
			wrapped:   make(map[*html.Node]*goja.Object),
		}
		if err := s.install(); err != nil {
			return nil, err
		}
		return s, nil
	}
}

type gojaSandbox struct {
	container *Container
	vm        *goja.Runtime
	opts      GojaOptions
	logger    *zap.Logger

	console     []ConsoleEntry
	wrapped     map[*html.Node]*goja.Object
	wrappedGen  uint64
	navigations []string
}

func (s *gojaSandbox) Compile(target *html.Node, event, code string) (Listener, error) {
	name := fmt.Sprintf("%s.on%s", describeNode(target), event)
	if err := checkHandlerBody(code); err != nil {
		return nil, fmt.Errorf("render: compile %s: %w", name, err)
	}
	program, err := goja.Compile(name, "(function (event) {\n"+code+"\n})", false)
	if err != nil {
		return nil, fmt.Errorf("render: compile %s: %w", name, err)
	}
	value, err := s.run(context.Background(), func() (goja.Value, error) {
		return s.vm.RunProgram(program)
	})
	if err != nil {
		return nil, fmt.Errorf("render: compile %s: %w", name, err)
	}
	fn, ok := goja.AssertFunction(value)
	if !ok {
		return nil, fmt.Errorf("render: compile %s: handler is not callable", name)
	}
	return func(ctx context.Context, ev *Event) error {
		this := s.wrap(target)
		_, err := s.run(ctx, func() (goja.Value, error) {
			return fn(this, s.eventObject(ev))
		})
		return err
	}, nil
}

// checkHandlerBody rejects code that does not parse as exactly one function body, such as
// code closing the handler wrapper and appending statements of its own.
func checkHandlerBody(code string) error {
	program, err := parser.ParseFile(nil, "handler", "function handler(event) {\n"+code+"\n}", 0)
	if err != nil {
		return err
	}
	if len(program.Body) != 1 {
		return errHandlerBody
	}
	if _, ok := program.Body[0].(*ast.FunctionDeclaration); !ok {
		return errHandlerBody
	}
	return nil
}

func (s *gojaSandbox) Exec(ctx context.Context, name, code string) error {
	_, err := s.run(ctx, func() (goja.Value, error) {
		return s.vm.RunScript(name, code)
	})
	return err
}

func (s *gojaSandbox) Console() []ConsoleEntry {
	out := make([]ConsoleEntry, len(s.console))
	copy(out, s.console)
	return out
}

// run executes fn with the sandbox time limit and ctx cancellation wired to vm.Interrupt.
func (s *gojaSandbox) run(ctx context.Context, fn func() (goja.Value, error)) (value goja.Value, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timer := time.AfterFunc(s.opts.Timeout, func() {
		s.vm.Interrupt(errSandboxTimeout)
	})
	stop := context.AfterFunc(ctx, func() {
		s.vm.Interrupt(ctx.Err())
	})
	defer func() {
		timer.Stop()
		stop()
		s.vm.ClearInterrupt()
		if r := recover(); r != nil {
			value, err = nil, fmt.Errorf("render: sandbox panic: %v", r)
		}
	}()

	value, err = fn()
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return nil, cause
		}
	}
	return value, err
}

func (s *gojaSandbox) install() error {
	global := s.vm.GlobalObject()

	console := s.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(level, s.consoleFunc(level)); err != nil {
			return err
		}
	}

	document := s.vm.NewObject()
	_ = document.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		return s.wrapValue(findByID(s.container.root, call.Argument(0).String()))
	})
	_ = document.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		nodes := queryAll(s.container.root, call.Argument(0).String())
		if len(nodes) == 0 {
			return goja.Null()
		}
		return s.wrapValue(nodes[0])
	})
	_ = document.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return s.wrapList(queryAll(s.container.root, call.Argument(0).String()))
	})

	location := s.vm.NewObject()
	_ = location.Set("href", "about:blank")

	bindings := map[string]any{
		"console":  console,
		"document": document,
		"location": location,
		"window":   global,
		"self":     global,
		"alert": func(call goja.FunctionCall) goja.Value {
			s.record("alert", call.Argument(0).String())
			return goja.Undefined()
		},
		"confirm": func(call goja.FunctionCall) goja.Value {
			s.record("confirm", call.Argument(0).String())
			return s.vm.ToValue(true)
		},
		"open": func(call goja.FunctionCall) goja.Value {
			url := call.Argument(0).String()
			s.navigations = append(s.navigations, url)
			s.record("open", url)
			return goja.Null()
		},
	}
	for name, value := range bindings {
		if err := global.Set(name, value); err != nil {
			return fmt.Errorf("render: install %s: %w", name, err)
		}
	}
	return nil
}

func (s *gojaSandbox) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		s.record(level, strings.Join(parts, " "))
		return goja.Undefined()
	}
}

func (s *gojaSandbox) record(level, message string) {
	if len(s.console) < s.opts.ConsoleLimit {
		s.console = append(s.console, ConsoleEntry{Level: level, Message: message})
	}
	s.logger.Debug("sandbox console", zap.String("level", level), zap.String("message", message))
}

func (s *gojaSandbox) eventObject(ev *Event) *goja.Object {
	obj := s.vm.NewObject()
	_ = obj.Set("type", ev.Type)
	_ = obj.Set("target", s.wrapValue(ev.Target))
	_ = obj.Set("currentTarget", s.wrapValue(ev.CurrentTarget))
	_ = obj.Set("defaultPrevented", ev.DefaultPrevented)
	_ = obj.Set("preventDefault", func(goja.FunctionCall) goja.Value {
		ev.DefaultPrevented = true
		_ = obj.Set("defaultPrevented", true)
		return goja.Undefined()
	})
	_ = obj.Set("stopPropagation", func(goja.FunctionCall) goja.Value {
		ev.PropagationStop = true
		return goja.Undefined()
	})
	return obj
}

func (s *gojaSandbox) wrapValue(node *html.Node) goja.Value {
	if node == nil || node == s.container.root {
		return goja.Null()
	}
	return s.wrap(node)
}

func (s *gojaSandbox) wrapList(nodes []*html.Node) goja.Value {
	values := make([]any, 0, len(nodes))
	for _, node := range nodes {
		values = append(values, s.wrap(node))
	}
	return s.vm.NewArray(values...)
}

// wrap returns the JS object for node, reusing it within one container generation.
func (s *gojaSandbox) wrap(node *html.Node) *goja.Object {
	if s.wrappedGen != s.container.generation {
		s.wrapped = make(map[*html.Node]*goja.Object)
		s.wrappedGen = s.container.generation
	}
	if obj, ok := s.wrapped[node]; ok {
		return obj
	}
	obj := s.vm.NewDynamicObject(&elementObject{sandbox: s, node: node, expando: make(map[string]goja.Value)})
	s.wrapped[node] = obj
	return obj
}

// elementObject bridges an html element to JavaScript.
type elementObject struct {
	sandbox *gojaSandbox
	node    *html.Node
	expando map[string]goja.Value
}

var elementProperties = []string{
	"id", "tagName", "nodeName", "className", "textContent", "innerText", "innerHTML",
	"value", "hidden", "disabled", "checked", "parentElement", "nextElementSibling",
	"previousElementSibling", "firstElementChild", "children", "style", "classList",
	"getAttribute", "setAttribute", "removeAttribute", "hasAttribute", "querySelector",
	"querySelectorAll", "closest", "addEventListener",
}

func (e *elementObject) Get(key string) goja.Value {
	s := e.sandbox
	vm := s.vm
	n := e.node
	switch key {
	case "id", "className", "value":
		attr := key
		if key == "className" {
			attr = "class"
		}
		v, _ := attrValue(n, attr)
		return vm.ToValue(v)
	case "tagName", "nodeName":
		return vm.ToValue(strings.ToUpper(n.Data))
	case "textContent", "innerText":
		return vm.ToValue(textContent(n))
	case "innerHTML":
		markup, err := renderChildren(n)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(markup)
	case "hidden", "disabled", "checked":
		_, ok := attrValue(n, key)
		return vm.ToValue(ok)
	case "parentElement":
		if n.Parent == nil || n.Parent.Type != html.ElementNode {
			return goja.Null()
		}
		return s.wrapValue(n.Parent)
	case "nextElementSibling":
		return s.wrapValue(siblingElement(n, true))
	case "previousElementSibling":
		return s.wrapValue(siblingElement(n, false))
	case "firstElementChild":
		return s.wrapValue(firstElementChild(n))
	case "children":
		var kids []*html.Node
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.ElementNode {
				kids = append(kids, child)
			}
		}
		return s.wrapList(kids)
	case "style":
		return vm.NewDynamicObject(&styleObject{vm: vm, node: n})
	case "classList":
		return e.classList()
	case "getAttribute":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			v, ok := attrValue(n, strings.ToLower(call.Argument(0).String()))
			if !ok {
				return goja.Null()
			}
			return vm.ToValue(v)
		})
	case "setAttribute":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			setAttr(n, strings.ToLower(call.Argument(0).String()), call.Argument(1).String())
			return goja.Undefined()
		})
	case "removeAttribute":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			removeAttr(n, strings.ToLower(call.Argument(0).String()))
			return goja.Undefined()
		})
	case "hasAttribute":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			_, ok := attrValue(n, strings.ToLower(call.Argument(0).String()))
			return vm.ToValue(ok)
		})
	case "querySelector":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			nodes := queryAll(n, call.Argument(0).String())
			if len(nodes) == 0 {
				return goja.Null()
			}
			return s.wrapValue(nodes[0])
		})
	case "querySelectorAll":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return s.wrapList(queryAll(n, call.Argument(0).String()))
		})
	case "closest":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return s.wrapValue(closest(s.container.root, n, call.Argument(0).String()))
		})
	case "addEventListener":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			event := strings.ToLower(call.Argument(0).String())
			fn, ok := goja.AssertFunction(call.Argument(1))
			if !ok || event == "" {
				panic(vm.NewTypeError("addEventListener requires an event name and a function"))
			}
			this := s.wrap(n)
			s.container.addListenerLocked(n, event, func(ctx context.Context, ev *Event) error {
				_, err := s.run(ctx, func() (goja.Value, error) {
					return fn(this, s.eventObject(ev))
				})
				return err
			})
			return goja.Undefined()
		})
	}
	if v, ok := e.expando[key]; ok {
		return v
	}
	return goja.Undefined()
}

func (e *elementObject) Set(key string, val goja.Value) bool {
	n := e.node
	switch key {
	case "id", "value":
		setAttr(n, key, val.String())
	case "className":
		setAttr(n, "class", val.String())
	case "textContent", "innerText":
		clearChildren(n)
		n.AppendChild(&html.Node{Type: html.TextNode, Data: val.String()})
	case "innerHTML":
		nodes, err := html.ParseFragment(strings.NewReader(val.String()), n)
		if err != nil {
			panic(e.sandbox.vm.NewGoError(err))
		}
		clearChildren(n)
		for _, child := range nodes {
			n.AppendChild(child)
		}
	case "hidden", "disabled", "checked":
		if val.ToBoolean() {
			setAttr(n, key, "")
		} else {
			removeAttr(n, key)
		}
	default:
		e.expando[key] = val
	}
	return true
}

func (e *elementObject) Has(key string) bool {
	for _, prop := range elementProperties {
		if prop == key {
			return true
		}
	}
	_, ok := e.expando[key]
	return ok
}

func (e *elementObject) Delete(key string) bool {
	delete(e.expando, key)
	return true
}

func (e *elementObject) Keys() []string {
	keys := make([]string, 0, len(e.expando))
	for key := range e.expando {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (e *elementObject) classList() goja.Value {
	vm := e.sandbox.vm
	n := e.node
	obj := vm.NewObject()
	_ = obj.Set("contains", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(hasClass(n, call.Argument(0).String()))
	})
	_ = obj.Set("add", func(call goja.FunctionCall) goja.Value {
		for _, arg := range call.Arguments {
			toggleClass(n, arg.String(), true)
		}
		return goja.Undefined()
	})
	_ = obj.Set("remove", func(call goja.FunctionCall) goja.Value {
		for _, arg := range call.Arguments {
			toggleClass(n, arg.String(), false)
		}
		return goja.Undefined()
	})
	_ = obj.Set("toggle", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		on := !hasClass(n, name)
		if len(call.Arguments) > 1 {
			on = call.Argument(1).ToBoolean()
		}
		toggleClass(n, name, on)
		return vm.ToValue(on)
	})
	return obj
}

// styleObject exposes the inline style attribute as camelCase properties.
type styleObject struct {
	vm   *goja.Runtime
	node *html.Node
}

func (st *styleObject) Get(key string) goja.Value {
	decls := parseStyle(st.node)
	return st.vm.ToValue(decls[cssProperty(key)])
}

func (st *styleObject) Set(key string, val goja.Value) bool {
	decls := parseStyle(st.node)
	prop := cssProperty(key)
	if v := strings.TrimSpace(val.String()); v != "" {
		decls[prop] = v
	} else {
		delete(decls, prop)
	}
	writeStyle(st.node, decls)
	return true
}

func (st *styleObject) Has(key string) bool {
	_, ok := parseStyle(st.node)[cssProperty(key)]
	return ok
}

func (st *styleObject) Delete(key string) bool {
	decls := parseStyle(st.node)
	delete(decls, cssProperty(key))
	writeStyle(st.node, decls)
	return true
}

func (st *styleObject) Keys() []string {
	decls := parseStyle(st.node)
	keys := make([]string, 0, len(decls))
	for key := range decls {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func parseStyle(n *html.Node) map[string]string {
	decls := make(map[string]string)
	raw, _ := attrValue(n, "style")
	for _, part := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			decls[name] = strings.TrimSpace(value)
		}
	}
	return decls
}

func writeStyle(n *html.Node, decls map[string]string) {
	if len(decls) == 0 {
		removeAttr(n, "style")
		return
	}
	names := make([]string, 0, len(decls))
	for name := range decls {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+decls[name])
	}
	setAttr(n, "style", strings.Join(parts, "; "))
}

// cssProperty converts backgroundColor into background-color.
func cssProperty(key string) string {
	var sb strings.Builder
	for _, r := range key {
		if r >= 'A' && r <= 'Z' {
			sb.WriteByte('-')
			sb.WriteRune(r + ('a' - 'A'))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func hasClass(n *html.Node, name string) bool {
	classes, _ := attrValue(n, "class")
	for _, class := range strings.Fields(classes) {
		if class == name {
			return true
		}
	}
	return false
}

func toggleClass(n *html.Node, name string, on bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	classes, _ := attrValue(n, "class")
	fields := strings.Fields(classes)
	out := fields[:0]
	for _, class := range fields {
		if class != name {
			out = append(out, class)
		}
	}
	if on {
		out = append(out, name)
	}
	if len(out) == 0 {
		removeAttr(n, "class")
		return
	}
	setAttr(n, "class", strings.Join(out, " "))
}

func siblingElement(n *html.Node, forward bool) *html.Node {
	for {
		if forward {
			n = n.NextSibling
		} else {
			n = n.PrevSibling
		}
		if n == nil || n.Type == html.ElementNode {
			return n
		}
	}
}

func firstElementChild(n *html.Node) *html.Node {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode {
			return child
		}
	}
	return nil
}

func closest(root, n *html.Node, selector string) *html.Node {
	matches := queryAll(root, selector)
	if len(matches) == 0 {
		return nil
	}
	set := make(map[*html.Node]struct{}, len(matches))
	for _, m := range matches {
		set[m] = struct{}{}
	}
	for node := n; node != nil && node != root; node = node.Parent {
		if _, ok := set[node]; ok {
			return node
		}
	}
	return nil
}

func clearChildren(n *html.Node) {
	for child := n.FirstChild; child != nil; {
		next := child.NextSibling
		n.RemoveChild(child)
		child = next
	}
}

func describeNode(n *html.Node) string {
	if n == nil {
		return "node"
	}
	if id, ok := attrValue(n, "id"); ok && id != "" {
		return n.Data + "#" + id
	}
	return n.Data
}
