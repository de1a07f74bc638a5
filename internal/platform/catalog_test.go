package platform

import (
	"testing"

	"github.com/vaultlink/connector-core/internal/models"
)

func TestLookup(t *testing.T) {
	p, ok := Lookup("slack")
	if !ok {
		t.Fatal("expected slack in catalog")
	}
	if p.DisplayName != "Slack" {
		t.Errorf("expected display name Slack, got %s", p.DisplayName)
	}

	// Case-insensitive.
	if _, ok := Lookup("GMAIL"); !ok {
		t.Error("expected case-insensitive lookup")
	}

	if _, ok := Lookup("linkedin"); ok {
		t.Error("expected linkedin to be absent")
	}
}

func TestLookup_ComingSoon(t *testing.T) {
	p, ok := Lookup("linear")
	if !ok {
		t.Fatal("expected linear in catalog")
	}
	if p.Status != models.PlatformStatusComingSoon {
		t.Errorf("expected coming-soon status, got %s", p.Status)
	}
}

func TestCatalog_ReturnsCopy(t *testing.T) {
	first := Catalog()
	first[0].DisplayName = "mutated"

	second := Catalog()
	if second[0].DisplayName == "mutated" {
		t.Error("expected Catalog to return an independent copy")
	}
}

func TestView(t *testing.T) {
	v := NewView()

	if v.IsConnected("u1", "slack") {
		t.Error("expected no connections initially")
	}

	v.SetConnected("u1", "Slack", true)

	if !v.IsConnected("u1", "slack") {
		t.Error("expected slack to be connected after SetConnected")
	}
	if v.IsConnected("u2", "slack") {
		t.Error("expected other users to be unaffected")
	}

	v.SetConnected("u1", "slack", false)

	if v.IsConnected("u1", "slack") {
		t.Error("expected slack to be disconnected")
	}
}

func TestView_ReplaceUser(t *testing.T) {
	v := NewView()
	v.SetConnected("u1", "slack", true)

	v.ReplaceUser("u1", []string{"github", "gmail"})

	if v.IsConnected("u1", "slack") {
		t.Error("expected slack to be dropped by ReplaceUser")
	}
	if !v.IsConnected("u1", "github") || !v.IsConnected("u1", "gmail") {
		t.Error("expected seeded platforms to be connected")
	}
}
