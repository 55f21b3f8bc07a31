package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/omax404/aiko/pkg/logger"
	"github.com/omax404/aiko/pkg/tagparse"
)

const noteReadLimit = 1000

// Registry routes tag invocations to capabilities and turns every outcome
// into a textual observation. Nothing here returns an error to the caller:
// failures become observations, unconfigured capabilities drop the
// invocation, unknown kinds are ignored.
type Registry struct {
	vision  Vision
	latex   Latex
	bridge  Bridge
	vault   Vault
	desktop Desktop
}

// RegistryOptions supplies concrete capabilities. Nil fields fall back to
// null objects.
type RegistryOptions struct {
	Vision  Vision
	Latex   Latex
	Bridge  Bridge
	Vault   Vault
	Desktop Desktop
}

func NewRegistry(opts RegistryOptions) *Registry {
	r := &Registry{
		vision:  opts.Vision,
		latex:   opts.Latex,
		bridge:  opts.Bridge,
		vault:   opts.Vault,
		desktop: opts.Desktop,
	}
	if r.vision == nil {
		r.vision = nullVision{}
	}
	if r.latex == nil {
		r.latex = nullLatex{}
	}
	if r.bridge == nil {
		r.bridge = nullBridge{}
	}
	if r.vault == nil {
		r.vault = nullVault{}
	}
	if r.desktop == nil {
		r.desktop = nullDesktop{}
	}
	return r
}

// Dispatch executes each invocation in order and collects observations.
func (r *Registry) Dispatch(ctx context.Context, invocations []tagparse.Invocation) []string {
	observations := []string{}
	for _, inv := range invocations {
		obs, ok := r.dispatchOne(ctx, inv)
		if ok {
			observations = append(observations, obs)
		}
	}
	return observations
}

func (r *Registry) dispatchOne(ctx context.Context, inv tagparse.Invocation) (string, bool) {
	switch inv.Kind {
	case tagparse.KindScan:
		obs, err := r.scan(ctx)
		return r.observe(inv, obs, err)
	case tagparse.KindTask:
		return r.delegate(ctx, arg(inv, 0))
	case tagparse.KindNote:
		obs, err := r.searchNotes(ctx, arg(inv, 0))
		return r.observe(inv, obs, err)
	case tagparse.KindRead:
		return r.readNote(ctx, arg(inv, 0))
	case tagparse.KindWrite:
		return r.writeNote(ctx, arg(inv, 0), arg(inv, 1))
	case tagparse.KindLatex:
		obs, err := r.compileLatex(ctx, arg(inv, 0))
		return r.observe(inv, obs, err)
	case tagparse.KindDraw, tagparse.KindVideo:
		// Side channels, surfaced on the result instead of dispatched.
		return "", false
	default:
		obs, err := r.performDesktop(ctx, inv)
		return r.observe(inv, obs, err)
	}
}

// observe converts a capability outcome to an observation. ErrNotConfigured
// drops the invocation silently; other errors become "Tool Error" text so
// the model can react in the next turn.
func (r *Registry) observe(inv tagparse.Invocation, obs string, err error) (string, bool) {
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			logger.DebugCF("capability", "Dropping unconfigured invocation",
				map[string]any{"kind": string(inv.Kind)})
			return "", false
		}
		logger.WarnCF("capability", "Invocation failed",
			map[string]any{"kind": string(inv.Kind), "error": err.Error()})
		return fmt.Sprintf("Tool Error: %v", err), true
	}
	if obs == "" {
		return "", false
	}
	return obs, true
}

func (r *Registry) scan(ctx context.Context) (string, error) {
	analysis, err := r.vision.ScanScreen(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Screen Analysis: %s", analysis), nil
}

func (r *Registry) delegate(ctx context.Context, task string) (string, bool) {
	msg, err := r.bridge.Delegate(ctx, task)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return "", false
		}
		logger.WarnCF("capability", "Delegation failed",
			map[string]any{"error": err.Error()})
		return "Task Agent: I couldn't reach the remote agent right now... I'll have to try again later!", true
	}
	return fmt.Sprintf("Task Agent: %s", msg), true
}

func (r *Registry) searchNotes(ctx context.Context, query string) (string, error) {
	results, err := r.vault.SearchNotes(ctx, query)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return fmt.Sprintf("Vault Search (%s): No results", query), nil
	}
	return fmt.Sprintf("Vault Search (%s): %s", query, strings.Join(results, "; ")), nil
}

func (r *Registry) readNote(ctx context.Context, path string) (string, bool) {
	content, err := r.vault.ReadNote(ctx, path)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return "", false
		}
		return fmt.Sprintf("Vault Note (%s): Not Found", path), true
	}
	runes := []rune(content)
	if len(runes) > noteReadLimit {
		content = string(runes[:noteReadLimit])
	}
	return fmt.Sprintf("Vault Note (%s): %s", path, content), true
}

func (r *Registry) writeNote(ctx context.Context, path, content string) (string, bool) {
	if err := r.vault.WriteNote(ctx, path, content); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return "", false
		}
		logger.WarnCF("capability", "Note write failed",
			map[string]any{"path": path, "error": err.Error()})
		return fmt.Sprintf("Vault Write (%s): Failed", path), true
	}
	return fmt.Sprintf("Vault Write (%s): Success", path), true
}

func (r *Registry) compileLatex(ctx context.Context, source string) (string, error) {
	artifact, err := r.latex.Compile(ctx, source)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("LaTeX Compiled: %s", artifact), nil
}

func (r *Registry) performDesktop(ctx context.Context, inv tagparse.Invocation) (string, error) {
	return r.desktop.Perform(ctx, string(inv.Kind), inv.Args)
}

func arg(inv tagparse.Invocation, i int) string {
	if i < len(inv.Args) {
		return inv.Args[i]
	}
	return ""
}
