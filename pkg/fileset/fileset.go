package fileset

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// prunedDirs are never descended into while scanning for matches.
var prunedDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	".forge":       true,
}

// File is a selected file: its root-relative path and the path relative to
// the glob base of the pattern that selected it.
type File struct {
	Path     string
	Relative string
}

// Select walks root and returns every file the set selects, sorted by path.
// Only the glob bases of the include patterns are walked; a missing base
// contributes nothing.
func Select(ctx context.Context, root string, set *Set) ([]File, error) {
	seen := make(map[string]bool)
	var files []File

	for _, literal := range set.literals() {
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(literal)))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if info.IsDir() || seen[literal] {
			continue
		}
		if matchedBase, ok := set.matchBase(literal); ok {
			seen[literal] = true
			files = append(files, File{Path: literal, Relative: relativeTo(matchedBase, literal)})
		}
	}

	for _, base := range set.bases() {
		start := filepath.Join(root, filepath.FromSlash(base))
		info, err := os.Stat(start)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			start = filepath.Dir(start)
		}

		err = filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if p != start && prunedDirs[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}

			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if seen[rel] {
				return nil
			}

			matchedBase, ok := set.matchBase(rel)
			if !ok {
				return nil
			}
			seen[rel] = true
			files = append(files, File{Path: rel, Relative: relativeTo(matchedBase, rel)})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", start, err)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Paths returns the root-relative paths of files.
func Paths(files []File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

// CopyResult summarises a Copy call.
type CopyResult struct {
	Files int
	Bytes int64
}

// Copy copies every file the set selects under root into dest, keeping each
// file's layout relative to its glob base.
func Copy(ctx context.Context, root string, set *Set, dest string) (CopyResult, error) {
	files, err := Select(ctx, root, set)
	if err != nil {
		return CopyResult{}, err
	}

	var result CopyResult
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		src := filepath.Join(root, filepath.FromSlash(f.Path))
		dst := filepath.Join(dest, filepath.FromSlash(f.Relative))
		n, err := CopyFile(src, dst)
		if err != nil {
			return result, fmt.Errorf("failed to copy %s: %w", f.Path, err)
		}
		result.Files++
		result.Bytes += n
	}
	return result, nil
}

// CopyFile copies src to dst, creating parent directories and keeping the
// source permissions.
func CopyFile(src, dst string) (int64, error) {
	sourceFile, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer sourceFile.Close()

	sourceInfo, err := sourceFile.Stat()
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, err
	}

	destFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, sourceInfo.Mode().Perm())
	if err != nil {
		return 0, err
	}
	defer destFile.Close()

	n, err := io.Copy(destFile, sourceFile)
	if err != nil {
		return n, err
	}
	return n, destFile.Close()
}

// Remove deletes each path and everything below it. Paths that do not exist
// are not an error, so removal is idempotent.
func Remove(paths ...string) error {
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}

// Zip archives the contents of dir into the file at dest. Entry names are
// relative to dir and use forward slashes.
func Zip(ctx context.Context, dir, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	archive := zip.NewWriter(out)

	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = path.Clean(filepath.ToSlash(rel))
		header.Method = zip.Deflate

		w, err := archive.CreateHeader(header)
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		archive.Close()
		return fmt.Errorf("failed to archive %s: %w", dir, err)
	}

	if err := archive.Close(); err != nil {
		return err
	}
	return out.Close()
}

func relativeTo(base, rel string) string {
	if base == "" {
		return rel
	}
	return strings.TrimPrefix(rel, base+"/")
}
