package webconf

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hamed0406/tileping/internal/domain"
)

// Ext is the extension that marks a dataset configuration file.
const Ext = ".webconf"

// FindFiles returns every webconf file below root, sorted by path. A missing
// root is not an error: it is logged and yields no files.
func FindFiles(root string, log *zap.Logger) []string {
	info, err := os.Stat(root)
	if err != nil {
		log.Warn("webconf_root_missing", zap.String("root", root), zap.Error(err))
		return nil
	}
	if !info.IsDir() {
		log.Warn("webconf_root_not_dir", zap.String("root", root))
		return nil
	}

	var files []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn("webconf_walk_error", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), Ext) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files
}

// Discover builds one endpoint per webconf file found below root.
func Discover(root string, log *zap.Logger) []domain.Endpoint {
	files := FindFiles(root, log)
	out := make([]domain.Endpoint, 0, len(files))
	for _, path := range files {
		out = append(out, DescribeFile(root, path, log))
	}
	log.Debug("webconf_discovered", zap.String("root", root), zap.Int("endpoints", len(out)))
	return out
}

// DescribeFile parses the file at path and derives its endpoint descriptor.
func DescribeFile(root, path string, log *zap.Logger) domain.Endpoint {
	relDir := ""
	if rel, err := filepath.Rel(root, filepath.Dir(path)); err == nil && rel != "." {
		relDir = filepath.ToSlash(rel)
	}
	base := filepath.Base(path)

	ep := domain.Endpoint{
		Name:        strings.TrimSuffix(base, filepath.Ext(base)),
		RelativeDir: relDir,
		Path:        path,
		Config:      Parse(path, log),
	}

	if size, ok := ep.Config.Get("Size"); ok {
		applySize(&ep, size, log)
	}
	return ep
}

// applySize fills the numeric fields from "width height bands [levels]".
func applySize(ep *domain.Endpoint, size string, log *zap.Logger) {
	parts := strings.Fields(size)
	if len(parts) < 3 {
		log.Debug("webconf_size_short", zap.String("endpoint", ep.Name), zap.String("size", size))
		return
	}
	dims := make([]int, 3)
	for i := range dims {
		n, ok := parseDim(parts[i])
		if !ok {
			log.Warn("webconf_size_invalid",
				zap.String("endpoint", ep.Name),
				zap.String("size", size),
				zap.String("token", parts[i]),
			)
			return
		}
		dims[i] = n
	}
	ep.Width, ep.Height, ep.Bands = &dims[0], &dims[1], &dims[2]

	if len(parts) >= 4 {
		if n, ok := parseDim(parts[3]); ok {
			ep.Levels = &n
		} else {
			log.Warn("webconf_levels_invalid", zap.String("endpoint", ep.Name), zap.String("token", parts[3]))
		}
	}
}

func parseDim(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
