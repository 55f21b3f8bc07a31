// Package capability binds tag invocations to side-effecting integrations.
// Every capability has a null-object default so the brain can dispatch
// without nil checks; unconfigured capabilities drop invocations silently.
package capability

import (
	"context"
	"errors"
)

// ErrNotConfigured marks a null capability. The registry drops these
// invocations without producing an observation.
var ErrNotConfigured = errors.New("capability not configured")

// Vision analyzes the current screen.
type Vision interface {
	ScanScreen(ctx context.Context) (string, error)
}

// Latex compiles a LaTeX source snippet and reports the artifact.
type Latex interface {
	Compile(ctx context.Context, source string) (string, error)
}

// Bridge hands a task off to the remote autonomous agent.
type Bridge interface {
	Delegate(ctx context.Context, task string) (string, error)
}

// Vault is the markdown note store.
type Vault interface {
	SearchNotes(ctx context.Context, query string) ([]string, error)
	ReadNote(ctx context.Context, path string) (string, error)
	WriteNote(ctx context.Context, path, content string) error
}

// Desktop performs PC-control actions (open, type, click, ...). The default
// is a null object; real automation lives outside this process.
type Desktop interface {
	Perform(ctx context.Context, action string, args []string) (string, error)
}

type nullVision struct{}

func (nullVision) ScanScreen(context.Context) (string, error) { return "", ErrNotConfigured }

type nullLatex struct{}

func (nullLatex) Compile(context.Context, string) (string, error) { return "", ErrNotConfigured }

type nullBridge struct{}

func (nullBridge) Delegate(context.Context, string) (string, error) { return "", ErrNotConfigured }

type nullVault struct{}

func (nullVault) SearchNotes(context.Context, string) ([]string, error) { return nil, ErrNotConfigured }
func (nullVault) ReadNote(context.Context, string) (string, error)      { return "", ErrNotConfigured }
func (nullVault) WriteNote(context.Context, string, string) error       { return ErrNotConfigured }

type nullDesktop struct{}

func (nullDesktop) Perform(context.Context, string, []string) (string, error) {
	return "", ErrNotConfigured
}
