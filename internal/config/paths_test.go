package config

import "testing"

func TestResolveConfigPath(t *testing.T) {
	tests := []struct {
		goos        string
		home        string
		programData string
		want        string
	}{
		{"linux", "/home/u", "", "/etc/livetutor/server.yaml"},
		{"darwin", "/Users/u", "", "/Users/u/Library/Application Support/livetutor/server.yaml"},
		{"windows", "", "C:/ProgramData", "C:/ProgramData/livetutor/server.yaml"},
		{"windows", "", "", "C:/ProgramData/livetutor/server.yaml"},
	}
	for _, tt := range tests {
		got := ResolveConfigPath(tt.goos, tt.home, tt.programData, "server.yaml")
		if got != tt.want {
			t.Errorf("ResolveConfigPath(%q) = %q; want %q", tt.goos, got, tt.want)
		}
	}
}
