package database

import (
	"path/filepath"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"already normal", "/data/sub", "/data/sub"},
		{"trailing separator", "/data/sub/", "/data/sub"},
		{"backslashes", `\data\sub\`, "/data/sub"},
		{"mixed separators", `/data\sub//x`, "/data/sub/x"},
		{"root", "/", "/"},
		{"repeated root", "///", "/"},
		{"drive path", `C:\Media\`, "C:/Media"},
		{"drive root", `C:\`, "C:"},
		{"unc share", `\\server\share\videos\`, "//server/share/videos"},
		{"forward unc", "//server/share", "//server/share"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := filepath.FromSlash(tt.want)
			if got := NormalizePath(tt.in); got != want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, want)
			}
		})
	}
}

func TestPathKeyFoldsUnicode(t *testing.T) {
	if PathKey("/Фильмы/ÉTÉ") != PathKey("/фильмы/été") {
		t.Error("expected non-ASCII paths to share a key regardless of case")
	}
}

func TestParentPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/data/sub", "/data"},
		{"/data", "/"},
		{"/", ""},
		{`C:\Media`, "C:"},
		{"C:", ""},
		{`\\server\share\videos`, "//server/share"},
		{`\\server\share`, "//server"},
		{`\\server`, ""},
		{"relative", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			want := filepath.FromSlash(tt.want)
			if got := ParentPath(tt.in); got != want {
				t.Errorf("ParentPath(%q) = %q, want %q", tt.in, got, want)
			}
		})
	}
}

func TestBaseNameAndJoin(t *testing.T) {
	if got := BaseName("/data/sub/"); got != "sub" {
		t.Errorf("BaseName = %q, want sub", got)
	}
	if got := JoinPath("/", "data"); got != filepath.FromSlash("/data") {
		t.Errorf("JoinPath(/, data) = %q", got)
	}
	if got := JoinPath(`/data\`, "a.mkv"); got != filepath.FromSlash("/data/a.mkv") {
		t.Errorf("JoinPath(/data, a.mkv) = %q", got)
	}
}

func TestIsUnder(t *testing.T) {
	tests := []struct {
		path, ancestor string
		want           bool
	}{
		{"/data", "/data", true},
		{"/data/sub", "/data", true},
		{"/DATA/Sub/x", "/data/", true},
		{"/database", "/data", false},
		{"/data2/x", "/data", false},
		{"/data", "/data/sub", false},
		{"/anything", "/", true},
		{"", "/data", false},
	}

	for _, tt := range tests {
		t.Run(tt.path+"|"+tt.ancestor, func(t *testing.T) {
			if got := IsUnder(tt.path, tt.ancestor); got != tt.want {
				t.Errorf("IsUnder(%q, %q) = %v, want %v", tt.path, tt.ancestor, got, tt.want)
			}
		})
	}
}
