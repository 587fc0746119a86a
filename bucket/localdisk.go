package bucket

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// LocalDisk is a reference Bucket backed by the local filesystem, rooted
// at Root. It exists so the engine's file-oriented components can be
// exercised in tests without a real cloud SDK — spec.md's out-of-scope
// note excludes concrete *cloud* clients (GCS/S3), not a local one.
type LocalDisk struct {
	Root string
}

func NewLocalDisk(root string) *LocalDisk {
	return &LocalDisk{Root: root}
}

func (d *LocalDisk) Path(b BlobMeta) string {
	return b.Path
}

func (d *LocalDisk) List(ctx context.Context, prefix, regex string) (Iterator, error) {
	var re *regexp.Regexp
	if regex != "" {
		var err error
		re, err = regexp.Compile(regex)
		if err != nil {
			return nil, err
		}
	}

	root := filepath.Join(d.Root, prefix)
	var blobs []BlobMeta
	err := filepath.WalkDir(d.Root, func(path string, d2 os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d2.IsDir() {
			return nil
		}
		if !strings.HasPrefix(path, root) && !strings.HasPrefix(path, prefix) {
			return nil
		}
		if re != nil && !re.MatchString(path) {
			return nil
		}
		info, err := d2.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.Root, path)
		if err != nil {
			rel = path
		}
		blobs = append(blobs, BlobMeta{Path: rel, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(blobs, func(i, j int) bool { return blobs[i].Path < blobs[j].Path })
	return &sliceIterator{blobs: blobs}, nil
}

type sliceIterator struct {
	blobs []BlobMeta
	i     int
}

func (it *sliceIterator) Next() (BlobMeta, bool, error) {
	if it.i >= len(it.blobs) {
		return BlobMeta{}, false, nil
	}
	b := it.blobs[it.i]
	it.i++
	return b, true, nil
}

func (it *sliceIterator) Close() error { return nil }

func (d *LocalDisk) OpenRead(ctx context.Context, path string, chunkSize int) (SizedStream, error) {
	f, err := os.Open(filepath.Join(d.Root, path))
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &localStream{File: f, size: info.Size()}, nil
}

type localStream struct {
	*os.File
	size int64
}

func (s *localStream) Size() int64 { return s.size }

func (d *LocalDisk) OpenWrite(ctx context.Context, path string, opts WriteOptions) (io.WriteCloser, error) {
	full := filepath.Join(d.Root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	flags := os.O_CREATE | os.O_WRONLY
	if opts.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(full, flags, 0o644)
	if err != nil {
		return nil, err
	}
	if opts.Temp {
		return &tempFile{File: f}, nil
	}
	return f, nil
}

// tempFile deletes its backing file on Close, mirroring spec.md §3's
// "temp (delete-on-exit)" write option.
type tempFile struct {
	*os.File
}

func (t *tempFile) Close() error {
	name := t.File.Name()
	err := t.File.Close()
	if rmErr := os.Remove(name); err == nil {
		err = rmErr
	}
	return err
}

func (d *LocalDisk) Download(ctx context.Context, path, local string) error {
	src, err := os.Open(filepath.Join(d.Root, path))
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(local)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

func (d *LocalDisk) UploadAll(ctx context.Context, prefix, localDir string, parallelism int, recursive bool) error {
	if parallelism < 1 {
		parallelism = 1
	}

	var files []string
	walk := filepath.WalkDir
	err := walk(localDir, func(path string, de os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() {
			if !recursive && path != localDir {
				return filepath.SkipDir
			}
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return err
	}

	sem := make(chan struct{}, parallelism)
	errCh := make(chan error, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(localDir, f)
		if err != nil {
			return err
		}
		dest := filepath.Join(prefix, rel)

		sem <- struct{}{}
		go func(src, dest string) {
			defer func() { <-sem }()
			errCh <- d.uploadOne(src, dest)
		}(f, dest)
	}
	for range files {
		if err := <-errCh; err != nil {
			return err
		}
	}
	return nil
}

func (d *LocalDisk) uploadOne(src, dest string) error {
	w, err := d.OpenWrite(context.Background(), dest, WriteOptions{})
	if err != nil {
		return err
	}
	defer w.Close()

	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}
