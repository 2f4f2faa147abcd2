package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalogParses(t *testing.T) {
	c := Default()

	if len(c.Tools) == 0 || len(c.Upgrades) == 0 || len(c.Achievements) == 0 || len(c.Events) == 0 {
		t.Fatalf("Expected embedded catalog to carry all collections, got %d/%d/%d/%d",
			len(c.Tools), len(c.Upgrades), len(c.Achievements), len(c.Events))
	}
	if c.Tool("starter") == nil {
		t.Error("Expected starter tool in embedded catalog")
	}
	if c.Upgrade("buildPC") == nil {
		t.Error("Expected buildPC upgrade in embedded catalog")
	}
	if c.Tool("no_such_tool") != nil {
		t.Error("Expected nil for unknown tool id")
	}
	if c.SkillBaseCost("tiers") != 5e5 {
		t.Errorf("Expected tiers base cost 5e5, got %v", c.SkillBaseCost("tiers"))
	}
	if c.SkillBaseCost("bogus") != 0 {
		t.Errorf("Expected unknown skill cost 0, got %v", c.SkillBaseCost("bogus"))
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := `
tools:
  - { id: dup, name: A, cost: 1, type: bots, base: 1 }
  - { id: dup, name: B, cost: 2, type: bots, base: 2 }
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected duplicate tool id to be rejected")
	}
}

func TestLoadRejectsMissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := `
upgrades:
  - { name: Unnamed, cost: 1 }
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected upgrade without id to be rejected")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing catalog file")
	}
}
