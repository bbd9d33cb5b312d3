package fileutils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "short", in: "abc", max: 10, want: "abc"},
		{name: "exact", in: "abc", max: 3, want: "abc"},
		{name: "cut", in: "abcdef", max: 3, want: "abc…"},
		{name: "trims_space", in: "  abc  ", max: 10, want: "abc"},
		{name: "zero_disables", in: "abcdef", max: 0, want: "abcdef"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Truncate(tc.in, tc.max); got != tc.want {
				t.Fatalf("got=%q want=%q", got, tc.want)
			}
		})
	}
}

func TestFileExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if FileExists(path) {
		t.Fatalf("missing file reported as existing")
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !FileExists(path) {
		t.Fatalf("existing file reported as missing")
	}
}

func TestWriteJSONFileAtomic_RoundtripAndOverwrite(t *testing.T) {
	t.Parallel()

	type payload struct {
		N int    `json:"n"`
		S string `json:"s"`
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	if err := WriteJSONFileAtomic(path, payload{N: 1, S: "a"}, false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteJSONFileAtomic(path, payload{N: 2, S: "b"}, false); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got payload
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.N != 2 || got.S != "b" {
		t.Fatalf("got=%+v", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp_") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}
