// Package paths names the files bannergen reads and writes by default.
package paths

import (
	"path/filepath"
	"strconv"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// File and directory names, relative to the working directory or to the
// directory holding the config file.
const (
	BinaryName        = "bannergen"
	ConfigFile        = "banner.toml"
	DefaultBackground = "header.png"
	DefaultOutput     = "result.png"
	FontsDir          = "fonts"
	LogFile           = "bannergen.log"
	LockSuffix        = ".lock"
)

// LockFor returns the lock file guarding output against concurrent watchers.
func LockFor(output string) string { return output + LockSuffix }

// FontDirName returns the directory name genfont uses for a face at a
// pixel size, e.g. FontDirName("Cabin Regular", 56) is "cabin_regular_56".
func FontDirName(face string, size int) string {
	b := make([]byte, 0, len(face)+4)
	sep := false
	for _, r := range face {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b = append(b, byte(r))
			sep = false
		case r >= 'A' && r <= 'Z':
			b = append(b, byte(r-'A'+'a'))
			sep = false
		default:
			if !sep && len(b) > 0 {
				b = append(b, '_')
				sep = true
			}
		}
	}
	if !sep && len(b) > 0 {
		b = append(b, '_')
	}
	return string(strconv.AppendInt(b, int64(size), 10))
}

// ///////////////////////////////////////////////
// Workspace
// ///////////////////////////////////////////////

// Workspace builds default paths rooted at a banner project directory.
type Workspace struct {
	Root string
}

// Config returns the path of the config file.
func (w Workspace) Config() string { return filepath.Join(w.Root, ConfigFile) }

// Background returns the path of the default background image.
func (w Workspace) Background() string { return filepath.Join(w.Root, DefaultBackground) }

// Output returns the path of the default output image.
func (w Workspace) Output() string { return filepath.Join(w.Root, DefaultOutput) }

// Fonts returns the directory holding generated fonts.
func (w Workspace) Fonts() string { return filepath.Join(w.Root, FontsDir) }

// FontDir returns the directory for one generated face and size.
func (w Workspace) FontDir(face string, size int) string {
	return filepath.Join(w.Root, FontsDir, FontDirName(face, size))
}

// Log returns the path of the log file.
func (w Workspace) Log() string { return filepath.Join(w.Root, LogFile) }
