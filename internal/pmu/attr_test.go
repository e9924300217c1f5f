package pmu

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writePMUDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "events"), 0o750); err != nil {
		t.Fatalf("mkdir events: %v", err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestResolveAttr(t *testing.T) {
	t.Parallel()

	dir := writePMUDir(t, map[string]string{
		"type":                    "23\n",
		"events/data_reads":       "event=0x01\n",
		"events/data_reads.scale": "6.103515625e-5\n",
		"events/data_reads.unit":  "MiB\n",
	})

	attr, err := ResolveAttr(dir, "data_reads")
	if err != nil {
		t.Fatalf("ResolveAttr returned error: %v", err)
	}
	if attr.Type != 23 {
		t.Errorf("unexpected type: %d", attr.Type)
	}
	if attr.Config != 1 {
		t.Errorf("unexpected config: %#x", attr.Config)
	}
	if attr.Scale != 6.103515625e-5 {
		t.Errorf("unexpected scale: %v", attr.Scale)
	}
	if attr.Unit != "MiB" {
		t.Errorf("unexpected unit: %q", attr.Unit)
	}
}

func TestResolveAttrMissingFile(t *testing.T) {
	t.Parallel()

	dir := writePMUDir(t, map[string]string{
		"type":              "23\n",
		"events/data_reads": "event=0x01\n",
	})

	_, err := ResolveAttr(dir, "data_reads")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveAttrMalformed(t *testing.T) {
	t.Parallel()

	dir := writePMUDir(t, map[string]string{
		"type":                    "23\n",
		"events/data_reads":       "config=0x01\n",
		"events/data_reads.scale": "1\n",
		"events/data_reads.unit":  "MiB\n",
	})

	_, err := ResolveAttr(dir, "data_reads")
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestResolveAttrBadScale(t *testing.T) {
	t.Parallel()

	for _, scale := range []string{"0", "nan", "+inf"} {
		dir := writePMUDir(t, map[string]string{
			"type":                    "10\n",
			"events/energy-gpu":       "event=0x02\n",
			"events/energy-gpu.scale": scale + "\n",
			"events/energy-gpu.unit":  "Joules\n",
		})

		_, err := ResolveAttr(dir, "energy-gpu")
		if !errors.Is(err, ErrBadScale) {
			t.Fatalf("scale %q: expected ErrBadScale, got %v", scale, err)
		}
	}
}

func TestTypeID(t *testing.T) {
	t.Parallel()

	dir := writePMUDir(t, map[string]string{"type": "18\n"})

	id, err := TypeID(dir)
	if err != nil {
		t.Fatalf("TypeID returned error: %v", err)
	}
	if id != 18 {
		t.Errorf("unexpected type id: %d", id)
	}

	if _, err := TypeID(filepath.Join(dir, "missing")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing device, got %v", err)
	}
}

func TestParseEventConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw    string
		config uint64
		ok     bool
	}{
		{"event=0x01", 0x01, true},
		{"event=0x1000002", 0x1000002, true},
		{"event=0x02,umask=0x00", 0x02, true},
		{"umask=0x00,event=0x02", 0x02, true},
		{"config=0x02", 0, false},
		{"event=zz", 0, false},
		{"", 0, false},
	}

	for _, tc := range tests {
		config, err := parseEventConfig(tc.raw)
		if tc.ok && err != nil {
			t.Errorf("%q: unexpected error %v", tc.raw, err)
			continue
		}
		if !tc.ok {
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("%q: expected ErrMalformed, got %v", tc.raw, err)
			}
			continue
		}
		if config != tc.config {
			t.Errorf("%q: expected %#x, got %#x", tc.raw, tc.config, config)
		}
	}
}
