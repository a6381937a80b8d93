package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadValidatesZoneTypes(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "zonecore.yaml", `
service:
  name: test
  zonesdir: `+dir+`
dnsengine:
  addresses: ["127.0.0.1:53"]
db:
  file: `+filepath.Join(dir, "keys.db")+`
zones:
  example.com:
    name: example.com.
    type: primary
`)

	cfg, err := Load(cfgPath, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Zones["example.com"].Type != "primary" {
		t.Fatalf("unexpected zone type: %+v", cfg.Zones["example.com"])
	}
}

func TestLoadRejectsUnknownZoneType(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "zonecore.yaml", `
service:
  name: test
  zonesdir: `+dir+`
dnsengine:
  addresses: ["127.0.0.1:53"]
db:
  file: `+filepath.Join(dir, "keys.db")+`
zones:
  bad.example:
    name: bad.example.
    type: sideways
`)

	if _, err := Load(cfgPath, nil); err == nil {
		t.Fatalf("expected validation to reject an unknown zone type")
	}
}

func TestTemplatesApplyToZones(t *testing.T) {
	dir := t.TempDir()
	tplPath := writeFile(t, dir, "templates.yaml", `
templates:
  - name: branch-office
    type: forwarder
    forwarders: ["192.0.2.1", "192.0.2.2"]
`)
	cfgPath := writeFile(t, dir, "zonecore.yaml", `
service:
  name: test
  zonesdir: `+dir+`
  templates: `+tplPath+`
dnsengine:
  addresses: ["127.0.0.1:53"]
db:
  file: `+filepath.Join(dir, "keys.db")+`
zones:
  office.example:
    name: office.example.
    template: branch-office
`)

	cfg, err := Load(cfgPath, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	z := cfg.Zones["office.example"]
	if z.Type != "forwarder" {
		t.Fatalf("expected the template to supply the zone type, got %q", z.Type)
	}
	if len(z.Forwarders) != 2 {
		t.Fatalf("expected 2 forwarders from the template, got %+v", z.Forwarders)
	}
}

func TestLoadTemplatesRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	tplPath := writeFile(t, dir, "templates.yaml", `
templates:
  - name: dup
    type: stub
  - name: dup
    type: forwarder
`)
	if _, err := LoadTemplates(tplPath); err == nil {
		t.Fatalf("expected duplicate template names to be rejected")
	}
}
