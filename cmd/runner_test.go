package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/segue/internal/shared"
	tu "github.com/desertthunder/segue/internal/testing"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/oauth2"
)

func TestNewRunner(t *testing.T) {
	t.Run("keeps provided dependencies", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		logger := shared.NewLogger(nil)
		out := &bytes.Buffer{}
		spotify := &tu.MockService{}
		db := setupTestDB(t)

		r := NewRunner(RunnerOpts{Config: cfg, Logger: logger, Output: out, Spotify: spotify, DB: db})

		if r.config != cfg || r.logger != logger || r.output != out || r.spotify != spotify {
			t.Error("expected provided dependencies to be kept")
		}
		if got, err := r.database(); err != nil || got != db {
			t.Errorf("database() = %v, %v; want provided handle", got, err)
		}
	})

	t.Run("fills defaults", func(t *testing.T) {
		r := NewRunner(RunnerOpts{})

		if r.config == nil || r.logger == nil {
			t.Fatal("expected default config and logger")
		}
		if r.output != os.Stdout {
			t.Error("expected output to default to stdout")
		}
		if r.spotify != nil {
			t.Error("expected no Spotify service")
		}
	})

	for _, tc := range []struct{ path, want string }{
		{"", "config.toml"},
		{"/etc/segue/config.toml", "/etc/segue/config.toml"},
	} {
		t.Run("config name "+tc.want, func(t *testing.T) {
			r := NewRunner(RunnerOpts{ConfigPath: tc.path})
			if got := r.configName(); got != tc.want {
				t.Errorf("configName() = %q, want %q", got, tc.want)
			}
		})
	}

	t.Run("registers commands in order", func(t *testing.T) {
		var names []string
		for _, c := range NewRunner(RunnerOpts{}).register() {
			names = append(names, c.Name)
		}
		want := []string{"setup", "spotify", "analyse", "rearrange", "cache", "history"}
		if diff := cmp.Diff(want, names); diff != "" {
			t.Errorf("command mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("spotify commands need credentials", func(t *testing.T) {
		r := NewRunner(RunnerOpts{ConfigPath: "segue.toml"})
		err := r.ensureSpotify(t.Context())
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Fatalf("expected ErrServiceUnavailable, got %v", err)
		}
		if !strings.Contains(err.Error(), "segue.toml") {
			t.Errorf("expected config path in error, got %v", err)
		}
	})
}

func TestRunnerOutput(t *testing.T) {
	type track struct {
		Name string `json:"name"`
		BPM  int    `json:"bpm"`
	}

	tests := []struct {
		name    string
		write   func(r *Runner) error
		out     *bytes.Buffer
		want    string
		wantErr string
	}{
		{
			name:  "compact json",
			write: func(r *Runner) error { return r.writeJSON(track{"Intro", 120}, false) },
			out:   &bytes.Buffer{},
			want:  `{"name":"Intro","bpm":120}` + "\n",
		},
		{
			name:  "indented json",
			write: func(r *Runner) error { return r.writeJSON(track{"Intro", 120}, true) },
			out:   &bytes.Buffer{},
			want:  "{\n  \"name\": \"Intro\",\n  \"bpm\": 120\n}\n",
		},
		{
			name:    "unsupported json value",
			write:   func(r *Runner) error { return r.writeJSON(func() {}, false) },
			out:     &bytes.Buffer{},
			wantErr: "failed to marshal JSON",
		},
		{
			name:    "json to broken writer",
			write:   func(r *Runner) error { return r.writeJSON(track{}, false) },
			wantErr: "failed to write output",
		},
		{
			name:  "formatted text",
			write: func(r *Runner) error { return r.writePlain("%d tracks in %s", 3, "Road Trip") },
			out:   &bytes.Buffer{},
			want:  "3 tracks in Road Trip",
		},
		{
			name:  "text line",
			write: func(r *Runner) error { return r.writePlainln("done") },
			out:   &bytes.Buffer{},
			want:  "\ndone\n",
		},
		{
			name:    "text to broken writer",
			write:   func(r *Runner) error { return r.writePlain("x") },
			wantErr: "failed to write output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := RunnerOpts{Output: &tu.FWriter{}}
			if tt.out != nil {
				opts.Output = tt.out
			}

			err := tt.write(NewRunner(opts))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := tt.out.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("header and table", func(t *testing.T) {
		out := &bytes.Buffer{}
		r := NewRunner(RunnerOpts{Output: out})

		r.writeHeader("2 playlists")
		r.writeTable([]string{"#", "Name"}, [][]string{{"1", "Road Trip"}, {"2"}}, 0)

		for _, want := range []string{"2 playlists", "Road Trip", "Name", "╭"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("expected %q in output, got %s", want, out.String())
			}
		}
		for _, unwanted := range []string{"NAME", "<nil>"} {
			if strings.Contains(out.String(), unwanted) {
				t.Errorf("unexpected %q in output, got %s", unwanted, out.String())
			}
		}
	})
}

func TestSaveTokens(t *testing.T) {
	expiry := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("persists to config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		cfg := shared.DefaultConfig()
		cfg.Credentials.Spotify.ClientID = "cid"
		if err := shared.SaveConfig(path, cfg); err != nil {
			t.Fatal(err)
		}

		r := NewRunner(RunnerOpts{Config: cfg, ConfigPath: path})
		if err := r.saveTokens(&oauth2.Token{AccessToken: "at", RefreshToken: "rt", Expiry: expiry}); err != nil {
			t.Fatalf("saveTokens() error: %v", err)
		}

		loaded, err := shared.LoadConfig(path)
		if err != nil {
			t.Fatal(err)
		}
		got := loaded.Credentials.Spotify
		if got.ClientID != "cid" || got.AccessToken != "at" || got.RefreshToken != "rt" || !got.TokenExpiry.Equal(expiry) {
			t.Errorf("unexpected stored credentials %+v", got)
		}
	})

	t.Run("keeps refresh token when none is issued", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.Credentials.Spotify.RefreshToken = "rt"
		r := NewRunner(RunnerOpts{Config: cfg})

		if err := r.saveTokens(&oauth2.Token{AccessToken: "at2"}); err != nil {
			t.Fatal(err)
		}
		if s := r.config.Credentials.Spotify; s.AccessToken != "at2" || s.RefreshToken != "rt" {
			t.Errorf("unexpected credentials %+v", s)
		}
	})

	tests := []struct {
		name    string
		runner  func(t *testing.T) *Runner
		token   *oauth2.Token
		wantErr error
		wantMsg string
	}{
		{
			name: "no config",
			runner: func(t *testing.T) *Runner {
				r := NewRunner(RunnerOpts{})
				r.config = nil
				return r
			},
			token:   &oauth2.Token{AccessToken: "at"},
			wantErr: shared.ErrMissingConfig,
		},
		{
			name:    "nil token",
			runner:  func(t *testing.T) *Runner { return NewRunner(RunnerOpts{}) },
			wantErr: shared.ErrInvalidArgument,
			wantMsg: "failed to update spotify configuration",
		},
		{
			name: "unwritable path",
			runner: func(t *testing.T) *Runner {
				return NewRunner(RunnerOpts{ConfigPath: filepath.Join(t.TempDir(), "missing", "dir", "config.toml")})
			},
			token:   &oauth2.Token{AccessToken: "at"},
			wantMsg: "failed to save config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.runner(t).saveTokens(tt.token)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v in chain, got %v", tt.wantErr, err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected %q in %v", tt.wantMsg, err)
			}
		})
	}
}
