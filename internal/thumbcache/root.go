package thumbcache

import "path/filepath"

// DirName is the directory created under the user cache directory.
const DirName = "thumbs"

// ResolveRoot returns $XDG_CACHE_HOME/thumbs, or $HOME/.cache/thumbs when
// XDG_CACHE_HOME is unset or empty. It returns [ErrNoCacheDir] when neither
// variable is set.
func ResolveRoot(env map[string]string) (string, error) {
	if xdg := env["XDG_CACHE_HOME"]; xdg != "" {
		return filepath.Join(xdg, DirName), nil
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".cache", DirName), nil
	}

	return "", ErrNoCacheDir
}
