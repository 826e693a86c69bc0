package plugins

import (
	"strings"
	"testing"
)

func TestParseManifest(t *testing.T) {
	def, err := ParseManifest([]byte(`
id: network-inspector
title: Network Inspector
version: 1.2.0
kind: client
description: Inspect app network traffic
gatekeeper: beta-flag
exportable: true
supported_os:
  - Android
  - iOS
bundled: true
`))
	if err != nil {
		t.Fatalf("ParseManifest() error: %v", err)
	}

	if def.ID != "network-inspector" {
		t.Errorf("expected id network-inspector, got %q", def.ID)
	}
	if def.Title != "Network Inspector" {
		t.Errorf("expected title, got %q", def.Title)
	}
	if def.Version != "1.2.0" {
		t.Errorf("expected version 1.2.0, got %q", def.Version)
	}
	if def.Kind != KindClient {
		t.Errorf("expected client kind, got %q", def.Kind)
	}
	if def.Gatekeeper != "beta-flag" {
		t.Errorf("expected gatekeeper, got %q", def.Gatekeeper)
	}
	if !def.Exportable || !def.Bundled {
		t.Error("expected exportable and bundled flags set")
	}
	if len(def.SupportedOS) != 2 {
		t.Errorf("expected 2 supported OS entries, got %v", def.SupportedOS)
	}
}

func TestParseManifestDefaults(t *testing.T) {
	def, err := ParseManifest([]byte("id: device-logs\nversion: 1.0.0\n"))
	if err != nil {
		t.Fatalf("ParseManifest() error: %v", err)
	}

	if def.Title != "device-logs" {
		t.Errorf("title should default to the id, got %q", def.Title)
	}
	if def.Kind != KindClient {
		t.Errorf("kind should default to client, got %q", def.Kind)
	}
}

func TestParseManifestMissingID(t *testing.T) {
	_, err := ParseManifest([]byte("version: 1.0.0\n"))
	if err == nil {
		t.Fatal("expected error for missing id, got nil")
	}
	if !strings.Contains(err.Error(), "id") {
		t.Errorf("expected id error, got: %v", err)
	}
}

func TestParseManifestMissingVersion(t *testing.T) {
	_, err := ParseManifest([]byte("id: device-logs\n"))
	if err == nil {
		t.Fatal("expected error for missing version, got nil")
	}
	if !strings.Contains(err.Error(), "version") {
		t.Errorf("expected version error, got: %v", err)
	}
}

func TestParseManifestUnknownKind(t *testing.T) {
	_, err := ParseManifest([]byte("id: x\nversion: 1.0.0\nkind: gadget\n"))
	if err == nil {
		t.Fatal("expected error for unknown kind, got nil")
	}
	if !strings.Contains(err.Error(), "kind") {
		t.Errorf("expected kind error, got: %v", err)
	}
}

func TestParseManifestInvalidYAML(t *testing.T) {
	_, err := ParseManifest([]byte("id: [broken\n"))
	if err == nil {
		t.Fatal("expected error for invalid yaml, got nil")
	}
}
