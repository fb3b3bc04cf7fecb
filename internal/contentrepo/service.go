// Package contentrepo is the document content provider: one git
// repository per document, plain-text content at content.md on main, the
// HEAD commit hash doubling as the document's optimistic version. A merge
// commit only lands when the caller's expected version still matches
// HEAD, which is what serializes competing batch merges on a document.
package contentrepo

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const contentFile = "content.md"

// ErrVersionConflict is returned by SetContent when the document's HEAD
// moved past the caller's expected version.
var ErrVersionConflict = errors.New("document content version conflict")

type Version struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *Service) repoPath(documentID string) string {
	return filepath.Join(s.baseDir, documentID)
}

func (s *Service) documentLock(documentID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[documentID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[documentID] = lock
	return lock
}

// EnsureDocument initializes the document's repository with the given
// content if it does not already exist.
func (s *Service) EnsureDocument(documentID, initialContent, author string) error {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(documentID)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}

	repo, err := git.PlainInit(path, false)
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, contentFile), []byte(initialContent), 0o644); err != nil {
		return fmt.Errorf("write initial content: %w", err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return fmt.Errorf("git add initial content: %w", err)
	}
	hash, err := worktree.Commit("Import document baseline", &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return fmt.Errorf("commit initial content: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	return nil
}

// GetContent returns the current content and its version (HEAD hash).
func (s *Service) GetContent(documentID string) (string, Version, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(documentID))
	if err != nil {
		return "", Version{}, fmt.Errorf("open repo: %w", err)
	}
	commitObj, err := headCommit(repo)
	if err != nil {
		return "", Version{}, err
	}
	content, err := readContentFromCommit(commitObj)
	if err != nil {
		return "", Version{}, err
	}
	return content, toVersion(commitObj), nil
}

// SetContent commits new content if HEAD still matches expectedVersion.
// Returns the new version, or ErrVersionConflict when another writer got
// there first.
func (s *Service) SetContent(documentID, content, expectedVersion, author, message string) (Version, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(documentID)
	repo, err := git.PlainOpen(path)
	if err != nil {
		return Version{}, fmt.Errorf("open repo: %w", err)
	}

	head, err := headCommit(repo)
	if err != nil {
		return Version{}, err
	}
	if expectedVersion != "" && head.Hash.String() != expectedVersion {
		return Version{}, fmt.Errorf("expected %s, HEAD is %s: %w", expectedVersion, head.Hash.String(), ErrVersionConflict)
	}

	// Unchanged content would be an empty commit, which go-git rejects;
	// the current version already represents it.
	current, err := readContentFromCommit(head)
	if err != nil {
		return Version{}, err
	}
	if current == content {
		return toVersion(head), nil
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return Version{}, fmt.Errorf("open worktree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, contentFile), []byte(content), 0o644); err != nil {
		return Version{}, fmt.Errorf("write content: %w", err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return Version{}, fmt.Errorf("git add content: %w", err)
	}
	if message == "" {
		message = "Update document content"
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return Version{}, fmt.Errorf("commit content: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Version{}, fmt.Errorf("read commit object: %w", err)
	}
	return toVersion(commitObj), nil
}

// GetContentByVersion reads the content as of a specific commit.
func (s *Service) GetContentByVersion(documentID, version string) (string, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(documentID))
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	commitObj, err := repo.CommitObject(plumbing.NewHash(version))
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", version, err)
	}
	return readContentFromCommit(commitObj)
}

// History lists versions newest first, up to limit (0 = all).
func (s *Service) History(documentID string, limit int) ([]Version, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(documentID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, fmt.Errorf("resolve main: %w", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Version, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toVersion(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func headCommit(repo *git.Repository) (*object.Commit, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, fmt.Errorf("resolve main: %w", err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load commit object: %w", err)
	}
	return commitObj, nil
}

func readContentFromCommit(commitObj *object.Commit) (string, error) {
	file, err := commitObj.File(contentFile)
	if err != nil {
		return "", fmt.Errorf("load %s from commit: %w", contentFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return "", fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read content bytes: %w", err)
	}
	return string(raw), nil
}

func toVersion(commitObj *object.Commit) Version {
	return Version{
		Hash:      commitObj.Hash.String(),
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func signature(author string) *object.Signature {
	if strings.TrimSpace(author) == "" {
		author = "Redline"
	}
	return &object.Signature{
		Name:  author,
		Email: fmt.Sprintf("%s@local.redline.dev", sanitizeEmail(author)),
		When:  time.Now(),
	}
}

func sanitizeEmail(name string) string {
	cleaned := strings.ToLower(strings.TrimSpace(name))
	cleaned = strings.ReplaceAll(cleaned, " ", ".")
	if cleaned == "" {
		return "user"
	}
	return cleaned
}
