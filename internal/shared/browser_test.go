package shared

import (
	"path/filepath"
	"testing"
)

func TestBrowserCommand(t *testing.T) {
	tc := []struct {
		goos    string
		program string
		wantErr bool
	}{
		{goos: "darwin", program: "open"},
		{goos: "linux", program: "xdg-open"},
		{goos: "windows", program: "rundll32"},
		{goos: "plan9", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.goos, func(t *testing.T) {
			cmd, err := browserCommand(tt.goos, "https://accounts.spotify.com/authorize")
			if tt.wantErr {
				if err == nil {
					t.Error("expected error for unsupported platform")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if filepath.Base(cmd.Args[0]) != tt.program {
				t.Errorf("expected %s, got %s", tt.program, cmd.Args[0])
			}
			if cmd.Args[len(cmd.Args)-1] != "https://accounts.spotify.com/authorize" {
				t.Errorf("expected URL as last argument, got %v", cmd.Args)
			}
		})
	}
}
