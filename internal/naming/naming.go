// Package naming implements the temp and committed path conventions for
// partition artifacts.
//
// Committed files are named "<topic>+<partition>+<start>+<end><ext>" under
// "<root>/<topicsDir>/<topic>/<partition>/". Temp files are
// "<uuid>.tmp" in the same directory. '+' is the sole field separator,
// used both to write and to parse committed names.
package naming

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jittakal/kafeventstore/pkg/event"
)

const committedSeparator = "+"

// join concatenates parts with "/", trimming a trailing slash from root
// but otherwise leaving it untouched. path.Join is deliberately avoided
// here: root commonly carries a URL scheme (e.g. "s3://bucket",
// "file:///var/lib/data"), and path.Clean collapses the scheme's double
// slash, corrupting it.
func join(root string, parts ...string) string {
	b := strings.TrimSuffix(root, "/")
	for _, p := range parts {
		b += "/" + strings.Trim(p, "/")
	}
	return b
}

// PartitionDir returns the directory holding all artifacts for p.
func PartitionDir(root, topicsDir string, p event.PartitionID) string {
	return join(root, topicsDir, p.Topic, strconv.FormatInt(int64(p.Partition), 10))
}

// TempPath returns a fresh, collision-unlikely temp artifact path for p.
func TempPath(root, topicsDir string, p event.PartitionID) string {
	return join(PartitionDir(root, topicsDir, p), uuid.New().String()+".tmp")
}

// CommittedPath returns the deterministic committed path for the inclusive
// offset range [start, end] of partition p.
func CommittedPath(root, topicsDir string, p event.PartitionID, start, end int64, ext string) string {
	name := strings.Join([]string{
		p.Topic,
		strconv.FormatInt(int64(p.Partition), 10),
		strconv.FormatInt(start, 10),
		strconv.FormatInt(end, 10),
	}, committedSeparator) + ext
	return join(PartitionDir(root, topicsDir, p), name)
}

// ParseCommitted extracts (start, end) from a committed file's base name.
// ok is false if name is not a committed name.
func ParseCommitted(name string) (start, end int64, ok bool) {
	base := name
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if dot := strings.LastIndex(base, "."); dot >= 0 {
		base = base[:dot]
	}

	parts := strings.Split(base, committedSeparator)
	if len(parts) != 4 {
		return 0, 0, false
	}

	start, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	end, err = strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	if start > end {
		return 0, 0, false
	}
	return start, end, true
}

// CommittedFilter is a storage.Filter that accepts only committed names.
func CommittedFilter(name string) bool {
	_, _, ok := ParseCommitted(name)
	return ok
}

// IsTemp reports whether name looks like a temp artifact (".tmp" suffix).
func IsTemp(name string) bool {
	return strings.HasSuffix(name, ".tmp")
}

// String is a small helper used by log lines that need a stable
// partition identifier without importing event.PartitionID.String twice.
func String(p event.PartitionID) string {
	return fmt.Sprintf("%s-%d", p.Topic, p.Partition)
}
