package connector

import (
	"context"
	"errors"
	"testing"

	"github.com/vaultlink/connector-core/internal/models"
)

type stubConnector struct {
	baseConnector
}

func newStub(id string) *stubConnector {
	return &stubConnector{baseConnector: newBaseConnector(id, nil)}
}

func (s *stubConnector) Connect(context.Context, map[string]interface{}) error { return nil }
func (s *stubConnector) Test(context.Context, *models.Connection) bool         { return true }
func (s *stubConnector) Disconnect(context.Context, *models.Connection) bool   { return true }
func (s *stubConnector) Execute(_ context.Context, req *models.ActionRequest, active []*models.Connection) *models.ActionResult {
	return s.run(active, func(*models.Connection) *models.ActionResult {
		return models.OKResult(map[string]interface{}{"action": req.Action})
	})
}

func TestRegistry_Handler(t *testing.T) {
	reg := NewRegistry(newStub("slack"), newStub("github"))

	h, err := reg.Handler("slack")
	if err != nil {
		t.Fatalf("expected handler for slack, got error %v", err)
	}
	if h.ServerType() != "slack" {
		t.Errorf("expected slack handler, got %s", h.ServerType())
	}

	// Lookup is case-insensitive.
	if _, err := reg.Handler("GitHub"); err != nil {
		t.Errorf("expected case-insensitive lookup, got error %v", err)
	}
}

func TestRegistry_FailsClosed(t *testing.T) {
	reg := NewRegistry(newStub("slack"))

	_, err := reg.Handler("linkedin")
	if err == nil {
		t.Fatal("expected error for unregistered platform")
	}
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Errorf("expected ErrUnsupportedPlatform, got %v", err)
	}

	if reg.IsPlatformSupported("linkedin") {
		t.Error("expected linkedin to be unsupported")
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()

	NewRegistry(newStub("slack"), newStub("Slack"))
}

func TestRegistry_Platforms(t *testing.T) {
	reg := NewRegistry(newStub("slack"), newStub("discord"), newStub("github"))

	got := reg.Platforms()
	want := []string{"discord", "github", "slack"}

	if len(got) != len(want) {
		t.Fatalf("expected %d platforms, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected platforms[%d]=%s, got %s", i, want[i], got[i])
		}
	}
}

func TestExecute_NoActiveConnection(t *testing.T) {
	stub := newStub("slack")

	res := stub.Execute(context.Background(), &models.ActionRequest{
		PlatformID: "slack",
		Action:     "send-message",
		UserID:     "user-1",
	}, nil)

	if res.Success {
		t.Fatal("expected failure without an active connection")
	}
	if res.Error == "" {
		t.Error("expected an error message")
	}
}

func TestExecute_RecoversFromPanic(t *testing.T) {
	stub := newStub("slack")

	res := stub.run([]*models.Connection{
		{PlatformID: "slack", IsActive: true},
	}, func(*models.Connection) *models.ActionResult {
		panic("boom")
	})

	if res == nil {
		t.Fatal("expected a result from a panicking dispatch")
	}
	if res.Success {
		t.Error("expected a failed result")
	}
}
