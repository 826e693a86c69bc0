package main

import (
	"testing"
)

func TestDevicesOutputHuman(t *testing.T) {
	cmd := &DevicesCommand{client: &MockDaemonClient{}, style: &termStyle{}}

	// Just verify it doesn't error - output formatting can change
	if err := cmd.outputHuman(testState()); err != nil {
		t.Fatalf("outputHuman() error = %v", err)
	}
}

func TestDevicesEmpty(t *testing.T) {
	mock := &MockDaemonClient{}
	cmd := &DevicesCommand{client: mock, style: &termStyle{}}

	if err := cmd.Run(nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func TestClientsOutputHuman(t *testing.T) {
	cmd := &ClientsCommand{client: &MockDaemonClient{}, style: &termStyle{}}

	if err := cmd.outputHuman(testState()); err != nil {
		t.Fatalf("outputHuman() error = %v", err)
	}
}

func TestSetupValidatePort(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"52342", false},
		{"8080", false},
		{"80", true},
		{"0", true},
		{"70000", true},
		{"abc", true},
		{"", true},
	}

	for _, tt := range tests {
		err := validatePort(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("validatePort(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestSetupSplitDirs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"~/.spyglass/plugins", []string{"~/.spyglass/plugins"}},
		{"a, b ,c", []string{"a", "b", "c"}},
		{"", []string{}},
		{" , ", []string{}},
	}

	for _, tt := range tests {
		got := splitDirs(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitDirs(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitDirs(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}
