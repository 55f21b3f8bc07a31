package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/omax404/aiko/pkg/tagparse"
)

type fakeVision struct {
	analysis string
	err      error
}

func (f *fakeVision) ScanScreen(context.Context) (string, error) { return f.analysis, f.err }

type fakeBridge struct {
	msg string
	err error
}

func (f *fakeBridge) Delegate(context.Context, string) (string, error) { return f.msg, f.err }

func inv(kind tagparse.Kind, args ...string) tagparse.Invocation {
	return tagparse.Invocation{Kind: kind, Args: args}
}

func TestDispatchScan(t *testing.T) {
	r := NewRegistry(RegistryOptions{Vision: &fakeVision{analysis: "a desktop with a browser open"}})

	obs := r.Dispatch(context.Background(), []tagparse.Invocation{inv(tagparse.KindScan)})
	if len(obs) != 1 || obs[0] != "Screen Analysis: a desktop with a browser open" {
		t.Fatalf("unexpected observations: %#v", obs)
	}
}

func TestDispatchUnconfiguredIsSilent(t *testing.T) {
	r := NewRegistry(RegistryOptions{})

	obs := r.Dispatch(context.Background(), []tagparse.Invocation{
		inv(tagparse.KindScan),
		inv(tagparse.KindTask, "do the thing"),
		inv(tagparse.KindNote, "query"),
		inv(tagparse.KindOpen, "chrome"),
	})
	if len(obs) != 0 {
		t.Fatalf("null capabilities must drop silently, got %#v", obs)
	}
}

func TestDispatchFailureBecomesToolError(t *testing.T) {
	r := NewRegistry(RegistryOptions{Vision: &fakeVision{err: errors.New("camera offline")}})

	obs := r.Dispatch(context.Background(), []tagparse.Invocation{inv(tagparse.KindScan)})
	if len(obs) != 1 || !strings.HasPrefix(obs[0], "Tool Error:") {
		t.Fatalf("expected Tool Error observation, got %#v", obs)
	}
}

func TestDispatchBridgeFailureIsApologetic(t *testing.T) {
	r := NewRegistry(RegistryOptions{Bridge: &fakeBridge{err: errors.New("connection refused")}})

	obs := r.Dispatch(context.Background(), []tagparse.Invocation{inv(tagparse.KindTask, "summarize inbox")})
	if len(obs) != 1 || !strings.HasPrefix(obs[0], "Task Agent:") {
		t.Fatalf("expected in-persona task failure, got %#v", obs)
	}
	if strings.Contains(obs[0], "connection refused") {
		t.Errorf("raw error must not leak into the observation: %q", obs[0])
	}
}

func TestDispatchDrawVideoNeverObserved(t *testing.T) {
	r := NewRegistry(RegistryOptions{Vision: &fakeVision{analysis: "x"}})

	obs := r.Dispatch(context.Background(), []tagparse.Invocation{
		inv(tagparse.KindDraw, "a cat"),
		inv(tagparse.KindVideo, "a sunset"),
	})
	if len(obs) != 0 {
		t.Fatalf("art tags are side channels, got %#v", obs)
	}
}

func TestVaultObservationFormats(t *testing.T) {
	vaultDir := t.TempDir()
	vault := NewFileVault(vaultDir)
	r := NewRegistry(RegistryOptions{Vault: vault})
	ctx := context.Background()

	obs := r.Dispatch(ctx, []tagparse.Invocation{inv(tagparse.KindWrite, "journal/today", "slept well")})
	if len(obs) != 1 || obs[0] != "Vault Write (journal/today): Success" {
		t.Fatalf("write observation: %#v", obs)
	}

	obs = r.Dispatch(ctx, []tagparse.Invocation{inv(tagparse.KindRead, "journal/today")})
	if len(obs) != 1 || obs[0] != "Vault Note (journal/today): slept well" {
		t.Fatalf("read observation: %#v", obs)
	}

	obs = r.Dispatch(ctx, []tagparse.Invocation{inv(tagparse.KindRead, "missing")})
	if len(obs) != 1 || obs[0] != "Vault Note (missing): Not Found" {
		t.Fatalf("missing read observation: %#v", obs)
	}

	obs = r.Dispatch(ctx, []tagparse.Invocation{inv(tagparse.KindNote, "slept")})
	if len(obs) != 1 || obs[0] != "Vault Search (slept): journal/today.md" {
		t.Fatalf("search observation: %#v", obs)
	}

	obs = r.Dispatch(ctx, []tagparse.Invocation{inv(tagparse.KindNote, "no such topic")})
	if len(obs) != 1 || obs[0] != "Vault Search (no such topic): No results" {
		t.Fatalf("empty search observation: %#v", obs)
	}
}

func TestReadNoteTruncatedAtLimit(t *testing.T) {
	vault := NewFileVault(t.TempDir())
	ctx := context.Background()
	long := strings.Repeat("x", 2500)
	if err := vault.WriteNote(ctx, "big", long); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := NewRegistry(RegistryOptions{Vault: vault})
	obs := r.Dispatch(ctx, []tagparse.Invocation{inv(tagparse.KindRead, "big")})
	want := fmt.Sprintf("Vault Note (big): %s", strings.Repeat("x", noteReadLimit))
	if len(obs) != 1 || obs[0] != want {
		t.Fatalf("expected %d-char truncation, got %d chars", noteReadLimit, len(obs[0]))
	}
}
