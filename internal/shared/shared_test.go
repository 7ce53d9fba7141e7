package shared

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeTrackKey(t *testing.T) {
	tc := []struct {
		name   string
		title  string
		artist string
		want   string
	}{
		{
			name:   "basic normalization",
			title:  "Song Title",
			artist: "Artist Name",
			want:   "song title|artist name",
		},
		{
			name:   "extra whitespace",
			title:  "  Song   Title  ",
			artist: "  Artist   Name  ",
			want:   "song title|artist name",
		},
		{
			name:   "mixed case",
			title:  "SoNg TiTlE",
			artist: "ArTiSt NaMe",
			want:   "song title|artist name",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTrackKey(tt.title, tt.artist)
			if got != tt.want {
				t.Errorf("NormalizeTrackKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	tc := []struct {
		name  string
		value string
		want  []string
	}{
		{name: "single", value: "Road Trip", want: []string{"Road Trip"}},
		{name: "several", value: "Road Trip, Focus,Chill", want: []string{"Road Trip", "Focus", "Chill"}},
		{name: "empty entries", value: " , Focus,, ", want: []string{"Focus"}},
		{name: "empty", value: "", want: nil},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, SplitList(tt.value)); diff != "" {
				t.Errorf("SplitList() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	b, err := GenerateState()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty states, got %q and %q", a, b)
	}
}

func TestMarshalJSON(t *testing.T) {
	data := map[string]int{"tracks": 2}

	compact, err := MarshalJSON(data, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(compact) != `{"tracks":2}` {
		t.Errorf("unexpected compact output %s", compact)
	}

	pretty, err := MarshalJSON(data, true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(pretty) != "{\n  \"tracks\": 2\n}" {
		t.Errorf("unexpected pretty output %s", pretty)
	}
}
