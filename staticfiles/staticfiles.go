// Package staticfiles collects the display's static assets for external
// hosting and builds their URLs for the templates.
package staticfiles

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/signview/signview/logger"
)

var staticSuffixes = map[string]bool{
	".css": true, ".js": true, ".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".svg": true, ".woff": true, ".woff2": true, ".ttf": true,
	".eot": true, ".otf": true, ".ico": true,
}

// URL joins a static asset path onto the configured URL prefix.
func URL(prefix, path string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(path, "/")
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Collect copies every static asset under srcRoot into outDir, keeping
// the relative layout.
func Collect(srcRoot, outDir string, log logger.Logger) error {
	err := filepath.Walk(srcRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !staticSuffixes[filepath.Ext(path)] {
			return nil
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(outDir, rel)
		log.Info("cp %s %s", path, dest)
		return copyFile(path, dest)
	})
	return errors.Wrap(err, "collecting static files")
}
