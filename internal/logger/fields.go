package logger

import "log/slog"

// Standard field keys for structured logging.
// Use these keys consistently so log lines can be grepped and aggregated.
const (
	// ========================================================================
	// Files
	// ========================================================================
	KeyPath      = "path"       // Source image path
	KeyCachePath = "cache_path" // Path of the cached thumbnail
	KeyCacheRoot = "cache_root" // Cache root directory
	KeyMtime     = "mtime"      // Source modification time

	// ========================================================================
	// Grid
	// ========================================================================
	KeyIndex   = "index"   // File index in the collection
	KeyVisible = "visible" // Visible index range
	KeyLoaded  = "loaded"  // Loaded (prefetch) index range
	KeyZoom    = "zoom"    // Thumbnail edge size in pixels
	KeyCols    = "cols"    // Grid columns
	KeyRows    = "rows"    // Grid rows
	KeySource  = "source"  // Where a thumbnail came from: cache, preview, decode
	KeyCount   = "count"   // Number of items affected

	// ========================================================================
	// Jobs
	// ========================================================================
	KeyJobID    = "job_id"   // Unique job identifier
	KeyJobKind  = "job_kind" // Job kind: cache_warm, load_hidden, load_shown
	KeyWorker   = "worker"   // Worker number
	KeyDuration = "duration" // Elapsed time

	// ========================================================================
	// Errors
	// ========================================================================
	KeyError = "error"
)

// Err returns an attribute for err under [KeyError].
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}

	return slog.String(KeyError, err.Error())
}
