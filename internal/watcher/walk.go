package watcher

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strconv"

	"logwatch/internal/logging"
)

// WalkResult summarizes the startup walk.
type WalkResult struct {
	Registered int
	Failed     int
}

// Walk registers root and every directory below it. The traversal is
// depth-first in lexical order and does not follow symbolic links. Each
// new watch is logged at info level; errors on individual entries are logged
// at debug level and skipped.
func Walk(root string, registry *Registry, logger *logging.Logger) WalkResult {
	result := WalkResult{}
	_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			logger.Debug("walk entry skipped", map[string]string{
				"path":  path,
				"error": err.Error(),
			})
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		handle, addErr := registry.Add(path)
		if errors.Is(addErr, ErrAlreadyWatched) {
			logger.Debug("watch already present", map[string]string{
				"path":   path,
				"handle": strconv.Itoa(handle),
			})
			return nil
		}
		if addErr != nil {
			result.Failed++
			logger.Debug("watch add failed", map[string]string{
				"path":  path,
				"error": addErr.Error(),
			})
			return nil
		}
		result.Registered++
		logger.Info("watch added", map[string]string{
			"path":           path,
			"handle":         strconv.Itoa(handle),
			"active_watches": strconv.Itoa(registry.Len()),
		})
		return nil
	})
	return result
}
