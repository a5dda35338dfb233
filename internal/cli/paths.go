package cli

import (
	iofs "io/fs"
	"path/filepath"
	"strings"

	"github.com/calvinalkan/thumbs/pkg/fs"
)

// imageExts are the extensions picked up when walking directories. Files
// named explicitly are taken whatever their extension.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// collectFiles turns command arguments into absolute file paths, in argument
// order without duplicates. Directories are walked when recursive is set.
// Paths that cannot be used are reported as warnings on o.
func collectFiles(o *IO, fsys fs.FS, workDir string, args []string, recursive bool) []string {
	var out []string

	seen := make(map[string]bool)

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}

	for _, arg := range args {
		path := arg
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}

		path = filepath.Clean(path)

		info, err := fsys.Stat(path)
		if err != nil {
			o.Warn(arg, "no such file or directory")

			continue
		}

		if !info.IsDir() {
			add(path)

			continue
		}

		if !recursive {
			o.Warn(arg, "is a directory, use -r to include its images")

			continue
		}

		walkErr := fs.WalkDir(fsys, path, func(p string, d iofs.DirEntry, err error) error {
			if err != nil {
				o.Warn(p, err.Error())

				return nil
			}

			if d.Type().IsRegular() && imageExts[strings.ToLower(filepath.Ext(p))] {
				add(p)
			}

			return nil
		})
		if walkErr != nil {
			o.Warn(arg, "walk: "+walkErr.Error())
		}
	}

	return out
}
