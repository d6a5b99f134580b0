// Package scratch owns the temporary files of one live connection.
package scratch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/livecoach/internal/utils"
)

var ErrClosed = errors.New("scratch store closed")

type Options struct {
	// Attempts is how many times a failed removal is tried before it is
	// abandoned. Backoff doubles after every failed attempt.
	Attempts int
	Backoff  time.Duration
	Logger   *logrus.Entry
}

// Store tracks every file it hands out under a private directory. A file
// can be leased by in-flight work; Remove on a leased file is deferred
// until the last Release. RemoveAll ignores leases.
type Store struct {
	dir      string
	attempts int
	backoff  time.Duration
	log      *logrus.Entry

	mu     sync.Mutex
	files  map[string]*entry
	closed bool

	remove func(string) error
}

type entry struct {
	leases int
	doomed bool
}

func New(root, name string, opts Options) (*Store, error) {
	const op = "scratch.New"

	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create scratch dir", err)
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		opts.Logger = logrus.NewEntry(l)
	}
	return &Store{
		dir:      dir,
		attempts: opts.Attempts,
		backoff:  opts.Backoff,
		log:      opts.Logger,
		files:    map[string]*entry{},
		remove:   os.Remove,
	}, nil
}

func (s *Store) Dir() string { return s.dir }

// Path reserves a tracked path for a file that someone else (ffmpeg)
// will create.
func (s *Store) Path(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}
	p := filepath.Join(s.dir, filepath.Base(name))
	if _, ok := s.files[p]; !ok {
		s.files[p] = &entry{}
	}
	return p, nil
}

func (s *Store) WriteFile(name string, data []byte) (string, error) {
	const op = "Store.WriteFile"

	p, err := s.Path(name)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "scratch store closed", err)
	}
	if err := os.WriteFile(p, data, 0o600); err != nil {
		_ = s.Remove(p)
		return "", utils.E(utils.CodeInternal, op, "failed to write scratch file", err)
	}
	return p, nil
}

func (s *Store) Acquire(paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range paths {
		if e, ok := s.files[p]; ok {
			e.leases++
		}
	}
}

// Release drops one lease per path and deletes files whose removal was
// requested while they were leased.
func (s *Store) Release(paths ...string) error {
	var due []string

	s.mu.Lock()
	for _, p := range paths {
		e, ok := s.files[p]
		if !ok {
			continue
		}
		if e.leases > 0 {
			e.leases--
		}
		if e.leases == 0 && e.doomed {
			delete(s.files, p)
			due = append(due, p)
		}
	}
	s.mu.Unlock()

	return s.removeEach(due)
}

// Remove deletes the given files now, or marks them for deletion on their
// last Release. Empty paths are ignored.
func (s *Store) Remove(paths ...string) error {
	var due []string

	s.mu.Lock()
	for _, p := range paths {
		if p == "" {
			continue
		}
		e, ok := s.files[p]
		if ok && e.leases > 0 {
			e.doomed = true
			continue
		}
		delete(s.files, p)
		due = append(due, p)
	}
	s.mu.Unlock()

	return s.removeEach(due)
}

// RemoveAll closes the store and deletes every file it ever handed out,
// leased or not, then the directory itself.
func (s *Store) RemoveAll() error {
	const op = "Store.RemoveAll"

	s.mu.Lock()
	s.closed = true
	due := make([]string, 0, len(s.files))
	for p := range s.files {
		due = append(due, p)
	}
	s.files = map[string]*entry{}
	s.mu.Unlock()

	sort.Strings(due)
	err := s.removeEach(due)

	if rerr := os.RemoveAll(s.dir); rerr != nil {
		s.log.WithError(rerr).WithField("dir", s.dir).Warn("scratch dir removal failed")
		err = errors.Join(err, utils.E(utils.CodeCleanup, op, "failed to remove scratch dir", rerr))
	}
	return err
}

// Files lists what is currently on disk under the store's directory.
func (s *Store) Files() []string {
	var out []string
	_ = filepath.WalkDir(s.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			out = append(out, p)
		}
		return nil
	})
	sort.Strings(out)
	return out
}

func (s *Store) removeEach(paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := s.removeWithRetry(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) removeWithRetry(path string) error {
	const op = "Store.remove"

	var err error
	for i := 0; i < s.attempts; i++ {
		err = s.remove(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if i < s.attempts-1 && s.backoff > 0 {
			time.Sleep(s.backoff << i)
		}
	}

	s.log.WithError(err).WithFields(logrus.Fields{
		"path":     path,
		"attempts": s.attempts,
	}).Error("giving up on scratch file removal")
	return utils.E(utils.CodeCleanup, op, "failed to remove "+filepath.Base(path), err)
}
