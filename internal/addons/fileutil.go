package addons

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/spf13/afero"
)

// UnnamedFileName replaces titles that sanitize to nothing
const UnnamedFileName = "UNNAMED"

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SanitizeFileName turns s into a name that is valid as a file name on every
// platform the game runs on. It returns "" when nothing usable is left.
func SanitizeFileName(s string) string {
	s = strings.TrimLeft(s, " ")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(`<>:"/\|?*`, r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimRight(s, ". ")

	stem, _, _ := strings.Cut(s, ".")
	if reservedNames[strings.ToUpper(strings.TrimSpace(stem))] {
		return ""
	}
	return s
}

// ValidateName rejects node names that are empty or that SanitizeFileName
// would change
func ValidateName(name string) error {
	if name == "" || SanitizeFileName(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// uniqueFileName returns name+ext, or name(1)+ext, name(2)+ext, ... so that
// it does not exist in dir yet
func uniqueFileName(fs afero.Fs, dir, name, ext string) string {
	try := name + ext
	for i := 1; ; i++ {
		if exists, _ := afero.Exists(fs, filepath.Join(dir, try)); !exists {
			return try
		}
		try = fmt.Sprintf("%s(%d)%s", name, i, ext)
	}
}
