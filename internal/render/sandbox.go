package render

import (
	"context"
	"errors"

	"golang.org/x/net/html"
)

// ErrScriptingDisabled is returned by the deny sandbox for every compile or exec request.
var ErrScriptingDisabled = errors.New("render: scripting disabled")

// ConsoleEntry is one line written to the sandbox console.
type ConsoleEntry struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Sandbox turns author supplied code into listeners and runs inline scripts for a single
// container. Implementations are only called while the container lock is held.
type Sandbox interface {
	// Compile builds a listener taking an event parameter for the handler code of target.
	Compile(target *html.Node, event, code string) (Listener, error)
	// Exec runs an inline script body once.
	Exec(ctx context.Context, name, code string) error
	// Console returns the console output collected so far.
	Console() []ConsoleEntry
}

// SandboxFactory creates the sandbox bound to a container on first use.
type SandboxFactory func(c *Container) (Sandbox, error)

// DenySandboxes returns a factory whose sandboxes reject all code. Handler attributes are
// still stripped and elements still marked processed; nothing is ever executed.
func DenySandboxes() SandboxFactory {
	return func(*Container) (Sandbox, error) {
		return denySandbox{}, nil
	}
}

type denySandbox struct{}

func (denySandbox) Compile(*html.Node, string, string) (Listener, error) {
	return nil, ErrScriptingDisabled
}

func (denySandbox) Exec(context.Context, string, string) error {
	return ErrScriptingDisabled
}

func (denySandbox) Console() []ConsoleEntry { return nil }
