package paths

import (
	"path/filepath"
	"testing"
)

// ///////////////////////////////////////////////
// Constant Value Tests
// ///////////////////////////////////////////////

func TestConstantValues(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"BinaryName", BinaryName, "bannergen"},
		{"ConfigFile", ConfigFile, "banner.toml"},
		{"DefaultBackground", DefaultBackground, "header.png"},
		{"DefaultOutput", DefaultOutput, "result.png"},
		{"FontsDir", FontsDir, "fonts"},
		{"LogFile", LogFile, "bannergen.log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestLockFor(t *testing.T) {
	if got := LockFor(filepath.Join("out", "result.png")); got != filepath.Join("out", "result.png.lock") {
		t.Errorf("LockFor = %q", got)
	}
}

func TestFontDirName(t *testing.T) {
	tests := []struct {
		face string
		size int
		want string
	}{
		{"Cabin Regular", 56, "cabin_regular_56"},
		{"Cabin-Medium", 56, "cabin_medium_56"},
		{"cabin", 48, "cabin_48"},
		{"  Fira  Sans Bold!! ", 12, "fira_sans_bold_12"},
		{"Noto Sans CJK", 0, "noto_sans_cjk_0"},
		{"", 32, "32"},
		{"Ünïcode", 20, "n_code_20"},
	}
	for _, tt := range tests {
		if got := FontDirName(tt.face, tt.size); got != tt.want {
			t.Errorf("FontDirName(%q, %d) = %q, want %q", tt.face, tt.size, got, tt.want)
		}
	}
}

// ///////////////////////////////////////////////
// Workspace Method Tests
// ///////////////////////////////////////////////

func TestWorkspaceMethods(t *testing.T) {
	root := filepath.Join("home", "user", "banner")
	w := Workspace{Root: root}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Config", w.Config(), filepath.Join(root, "banner.toml")},
		{"Background", w.Background(), filepath.Join(root, "header.png")},
		{"Output", w.Output(), filepath.Join(root, "result.png")},
		{"Fonts", w.Fonts(), filepath.Join(root, "fonts")},
		{"FontDir", w.FontDir("Cabin Regular", 48), filepath.Join(root, "fonts", "cabin_regular_48")},
		{"Log", w.Log(), filepath.Join(root, "bannergen.log")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}
