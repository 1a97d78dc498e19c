package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	if c.Len() != 33 {
		t.Fatalf("Len() = %d; want 33", c.Len())
	}

	entries := c.Entries()
	if entries[0].Name != "efficientformerv2_s0" {
		t.Errorf("first entry = %q; want efficientformerv2_s0", entries[0].Name)
	}

	last := entries[len(entries)-1]
	if last.Name != "tf_efficientnetv2_b3" || last.Resolution != 300 {
		t.Errorf("last entry = %+v; want tf_efficientnetv2_b3@300", last)
	}

	e, ok := c.Lookup("edgenext_small")
	if !ok {
		t.Fatal("edgenext_small missing")
	}

	if !e.USIEval || e.Resolution != 256 {
		t.Errorf("edgenext_small = %+v; want usi_eval at 256", e)
	}

	if e.InputName != DefaultInputName || e.OutputName != DefaultOutputName {
		t.Errorf("binding names = %q/%q; want defaults", e.InputName, e.OutputName)
	}

	// Case is preserved even though viper lowercases keys.
	if _, ok := c.Lookup("SwiftFormer_XS"); !ok {
		t.Error("SwiftFormer_XS missing or case-folded")
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	entries := c.Entries()
	entries[0].Name = "mutated"

	if c.Entries()[0].Name != "efficientformerv2_s0" {
		t.Error("Entries() exposed internal storage")
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	content := `
models:
  - name: tiny
    resolution: 32
  - name: custom_io
    resolution: 64
    input_name: pixel_values
    output_name: logits
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	entries := c.Entries()
	if len(entries) != 2 || entries[0].Name != "tiny" || entries[1].Name != "custom_io" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	if entries[1].InputName != "pixel_values" || entries[1].OutputName != "logits" {
		t.Errorf("binding names = %q/%q", entries[1].InputName, entries[1].OutputName)
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.json")
	content := `{"models":[{"name":"a","resolution":224},{"name":"b","resolution":256,"usi_eval":true}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	b, ok := c.Lookup("b")
	if !ok || !b.USIEval {
		t.Errorf("Lookup(b) = %+v, %v", b, ok)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty list", "models: []\n", "no models"},
		{"empty name", "models:\n  - name: \"\"\n    resolution: 224\n", "empty name"},
		{"bad resolution", "models:\n  - name: x\n    resolution: 0\n", "invalid resolution"},
		{"duplicate", "models:\n  - name: x\n    resolution: 1\n  - name: x\n    resolution: 2\n", "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "models.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}

			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Load() error = %v; want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load() = nil error; want missing file error")
	}
}

func TestLoadOrDefault(t *testing.T) {
	c, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault(\"\") error = %v", err)
	}

	if c.Len() != 33 {
		t.Errorf("Len() = %d; want built-in 33", c.Len())
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name, filter string
		want         bool
	}{
		{"mobilevit_small", "", true},
		{"mobilevit_small", "mobilevit", true},
		{"mobilevitv2_050", "mobilevit", true},
		{"LeViT_128S", "levit", false},
		{"LeViT_128S", "LeViT", true},
		{"resnet50", "mobilevit", false},
		{"café_net", "café", true},
	}

	for _, tt := range tests {
		if got := Matches(tt.name, tt.filter); got != tt.want {
			t.Errorf("Matches(%q, %q) = %v; want %v", tt.name, tt.filter, got, tt.want)
		}
	}
}

func TestSelectPreservesOrder(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	got := c.Select("LeViT")

	want := []string{"LeViT_128S", "LeViT_128", "LeViT_192", "LeViT_256"}
	if len(got) != len(want) {
		t.Fatalf("Select(LeViT) returned %d entries; want %d", len(got), len(want))
	}

	for i, e := range got {
		if e.Name != want[i] {
			t.Errorf("Select(LeViT)[%d] = %q; want %q", i, e.Name, want[i])
		}
	}
}
