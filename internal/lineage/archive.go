// Package lineage keeps every generated document of a template+user pair in
// its own git repository. The commit count on main is the document version.
package lineage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	mainBranch    = "main"
	anonymousUser = "anonymous"
	documentBase  = "document"
)

var (
	ErrNoLineage  = errors.New("lineage not found")
	unsafePathSeg = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
)

// Entry describes one archived document.
type Entry struct {
	Version   string
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}

type Archive struct {
	baseDir string
	now     func() time.Time
	lockMu  sync.Mutex
	locks   map[string]*lineageLock
}

type lineageLock struct {
	mu   sync.Mutex
	refs int
}

func New(baseDir string) *Archive {
	return &Archive{
		baseDir: baseDir,
		now:     time.Now,
		locks:   make(map[string]*lineageLock),
	}
}

// Commit stores data as the newest document of the lineage and returns its
// version, v1 for the first document.
func (a *Archive) Commit(templateID, userID, filename string, data []byte, author string) (string, error) {
	if strings.TrimSpace(templateID) == "" {
		return "", errors.New("template id required")
	}
	path := a.repoPath(templateID, userID)
	unlock := a.lock(path)
	defer unlock()

	repo, err := openOrInit(path)
	if err != nil {
		return "", err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}

	name := documentBase + strings.ToLower(filepath.Ext(filename))
	if err := os.WriteFile(filepath.Join(path, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if _, err := worktree.Add(name); err != nil {
		return "", fmt.Errorf("git add %s: %w", name, err)
	}

	if author == "" {
		author = anonymousUser
	}
	_, err = worktree.Commit("Generate "+filename, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@local.legalhelp.sg", sanitizeEmail(author)),
			When:  a.now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("commit document: %w", err)
	}

	count, err := countCommits(repo)
	if err != nil {
		return "", err
	}
	return version(count), nil
}

// History lists the lineage newest first. limit <= 0 returns everything.
func (a *Archive) History(templateID, userID string, limit int) ([]Entry, error) {
	path := a.repoPath(templateID, userID)
	unlock := a.lock(path)
	defer unlock()

	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNoLineage
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(mainBranch), true)
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", mainBranch, err)
	}
	total, err := countCommits(repo)
	if err != nil {
		return nil, err
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Entry, 0, total)
	err = iter.ForEach(func(c *object.Commit) error {
		items = append(items, Entry{
			Version:   version(total - len(items)),
			Hash:      c.Hash.String()[:7],
			Message:   strings.TrimSpace(c.Message),
			Author:    c.Author.Name,
			CreatedAt: c.Author.When,
		})
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func openOrInit(path string) (*git.Repository, error) {
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(mainBranch))
	if err := repo.Storer.SetReference(head); err != nil {
		return nil, fmt.Errorf("set HEAD to %s: %w", mainBranch, err)
	}
	return repo, nil
}

func countCommits(repo *git.Repository) (int, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(mainBranch), true)
	if err != nil {
		return 0, fmt.Errorf("resolve branch %s: %w", mainBranch, err)
	}
	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return 0, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	count := 0
	if err := iter.ForEach(func(*object.Commit) error {
		count++
		return nil
	}); err != nil {
		return 0, fmt.Errorf("iterate log: %w", err)
	}
	return count, nil
}

func version(n int) string {
	return fmt.Sprintf("v%d", n)
}

func (a *Archive) repoPath(templateID, userID string) string {
	if strings.TrimSpace(userID) == "" {
		userID = anonymousUser
	}
	return filepath.Join(a.baseDir, pathSegment(templateID), pathSegment(userID))
}

// lock serializes access to one lineage. Entries are dropped once no caller
// holds or waits for them.
func (a *Archive) lock(path string) func() {
	a.lockMu.Lock()
	l, ok := a.locks[path]
	if !ok {
		l = &lineageLock{}
		a.locks[path] = l
	}
	l.refs++
	a.lockMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		a.lockMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(a.locks, path)
		}
		a.lockMu.Unlock()
	}
}

// pathSegment makes id safe as a directory name. Ids that had to be
// rewritten get a short hash of the original so they stay distinct.
func pathSegment(id string) string {
	seg := unsafePathSeg.ReplaceAllString(id, "_")
	if seg == id && strings.Trim(seg, "_") != "" {
		return seg
	}
	sum := sha256.Sum256([]byte(id))
	return seg + "-" + hex.EncodeToString(sum[:4])
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			out = append(out, r)
		case r == ' ' || r == '-' || r == '_':
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}
