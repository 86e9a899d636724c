package utils

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

//AllowedFile returns true if given file name carries one of the allowed video extensions
func AllowedFile(name string) bool {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	return ext != "" && lo.Contains(AllowedVideoExtensions, strings.ToLower(ext))
}

//SafeName strips any directory part from a client supplied file name, it returns "" when nothing usable remains
func SafeName(name string) string {
	name = filepath.Base(filepath.Clean(strings.ReplaceAll(name, "\\", "/")))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

//UniqueUploadName prefixes given name with a short random id so uploads never collide
func UniqueUploadName(name string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:UploadPrefixLength] + "_" + name
}

//ListDir returns the sorted names of the regular files in given path
func ListDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, errors.Wrapf(err, "ListDir: reading '%s'", path)
	}

	names := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		return e.Name(), !e.IsDir()
	})
	sort.Strings(names)
	return names, nil
}

//EnsureDirs creates every given directory that does not exist yet
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating '%s' directory", dir)
		}
	}
	return nil
}
