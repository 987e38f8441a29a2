package morpheus

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/jward/morpheus/internal/facts"
)

// loadItem is one file on its way from disk to the index.
type loadItem struct {
	path string
	uri  string
	text []byte
	hash string
	set  facts.Set
}

// LoadDirectory indexes every script under root so that cross-file lookups
// see files that are not open. It returns the number of files indexed.
//
// Loading runs in three phases:
//
//	Discover (serial):  git ls-files, or a directory walk outside git.
//	Analyse (parallel): read, parse and extract on a worker pool.
//	Commit (serial):    one writer applies the results to the index.
//
// Files that are open keep their editor content. Files whose content is
// unchanged since the last load are skipped.
func (e *Engine) LoadDirectory(ctx context.Context, root string) (int, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return 0, fmt.Errorf("morpheus: load: %w", err)
	}
	paths, err := e.gitListFiles(root)
	if err != nil {
		e.log.Debugf("%s: %s, walking instead", root, err)
		paths, err = e.walkListFiles(root)
		if err != nil {
			return 0, fmt.Errorf("morpheus: load: %w", err)
		}
	}
	if len(paths) == 0 {
		return 0, nil
	}

	// ---- Analyse ----
	numWorkers := e.workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	numWorkers = max(1, min(numWorkers, len(paths)))

	workCh := make(chan string, len(paths))
	for _, p := range paths {
		workCh <- p
	}
	close(workCh)

	type result struct {
		item loadItem
		err  error
	}
	resultCh := make(chan result, len(paths))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range workCh {
				if ctx.Err() != nil {
					resultCh <- result{item: loadItem{path: path}, err: ctx.Err()}
					continue
				}
				item, err := e.analyse(path)
				resultCh <- result{item: item, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Commit ----
	var (
		errs    []error
		indexed int
	)
	for res := range resultCh {
		if res.err != nil {
			errs = append(errs, fmt.Errorf("load %s: %w", res.item.path, res.err))
			continue
		}
		if e.commit(res.item) {
			indexed++
		}
	}
	e.log.Infof("loaded %d of %d file(s) under %s", indexed, len(paths), root)

	if len(errs) > 0 {
		return indexed, fmt.Errorf("loading had %d error(s): %w", len(errs), errs[0])
	}
	return indexed, nil
}

// analyse reads a file and extracts its facts. The tree is released before
// returning; only the facts travel to the writer.
func (e *Engine) analyse(path string) (loadItem, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return loadItem{path: path}, fmt.Errorf("read file: %w", err)
	}
	item := loadItem{
		path: path,
		uri:  uriFromPath(path),
		text: content,
		hash: contentHash(content),
	}
	in := facts.Input{URI: item.uri, Text: content}

	if e.svc.Ready() {
		tree, err := e.svc.Parse(content)
		if err == nil {
			in.Tree = tree
			item.set, err = facts.Extract(e.structural, in)
			if rerr := tree.Release(); rerr != nil {
				e.log.Warningf("%s: release tree: %s", path, rerr)
			}
			if err == nil {
				return item, nil
			}
		}
		e.log.Warningf("%s: structural analysis failed, using textual fallback: %s", path, err)
		in.Tree = nil
	}
	item.set, err = facts.Extract(e.textual, in)
	if err != nil {
		return item, fmt.Errorf("extract: %w", err)
	}
	return item, nil
}

// commit applies one analysed file to the index. It reports whether the
// index changed.
func (e *Engine) commit(item loadItem) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.docs.IsOpen(item.uri) {
		// Remembered so that closing the document restores the disk copy.
		e.loaded[item.uri] = item.hash
		return false
	}
	if prev, ok := e.loaded[item.uri]; ok && prev == item.hash {
		if _, indexed := e.index.Document(item.uri); indexed {
			return false
		}
	}
	e.loaded[item.uri] = item.hash
	e.index.Apply(item.uri, DiskVersion, string(item.text), item.set)
	return true
}

// skipDirs are directory names never descended into.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
}

// gitListFiles lists tracked and untracked, non-ignored scripts under root.
func (e *Engine) gitListFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, filepath.FromSlash(line))
		if e.isScript(absPath) {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

// walkListFiles discovers scripts by walking root. Hidden directories and
// skipDirs are left out.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if e.isScript(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

func (e *Engine) isScript(path string) bool {
	ext := filepath.Ext(path)
	for _, want := range e.extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

func contentHash(b []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(b))
}

// uriFromPath turns an absolute path into a file URI.
func uriFromPath(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}

func pathFromURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse uri: %w", err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("not a file uri: %s", uri)
	}
	p := u.Path
	// Windows drive paths come back as /C:/...
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p), nil
}

// URIFromPath returns the file URI LoadDirectory uses for path.
func URIFromPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return uriFromPath(abs), nil
}

// PathFromURI returns the filesystem path of a file URI.
func PathFromURI(uri string) (string, error) {
	return pathFromURI(uri)
}
