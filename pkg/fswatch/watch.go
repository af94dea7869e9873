package fswatch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru"
	"github.com/jonboulle/clockwork"
	gitignore "github.com/sabhiram/go-gitignore"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/filesync/pkg/errors"
)

const (
	// MetaPrefix marks hidden and metadata files. They are never replicated.
	MetaPrefix = "."

	// DefaultDebounce is the minimum time between two accepted changes to
	// the contents of the same file.
	DefaultDebounce = time.Second

	// DefaultPairWindow is how long a rename is held while waiting for the
	// create event that carries the new name.
	DefaultPairWindow = 100 * time.Millisecond

	// debounceEntries bounds the number of files whose last accepted change
	// is remembered.
	debounceEntries = 4096
)

var fs = afero.NewOsFs()

// Config configures a Detector.
type Config struct {
	// Dir is the watched directory. Only its direct children are watched.
	Dir string

	Debounce   time.Duration
	PairWindow time.Duration

	// Ignore holds gitignore-style patterns for files that shouldn't be
	// replicated, in addition to meta files.
	Ignore []string

	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// Detector turns raw filesystem notifications for a single directory into
// Changes. It is not safe for concurrent use: notifications must be handled
// one at a time, in the order they were generated.
type Detector struct {
	dir        string
	debounce   time.Duration
	pairWindow time.Duration
	clock      clockwork.Clock
	ignore     *gitignore.GitIgnore
	out        chan<- Change

	// lastAccepted maps file names to when their contents were last
	// accepted for replication.
	lastAccepted *lru.Cache

	// suppressed maps the files with debounced modifications to the end of
	// their debounce window.
	suppressed map[string]time.Time

	// dirs is the set of subdirectories of `dir`. Removed or renamed
	// directories can't be stat'd, so they're remembered instead.
	dirs map[string]struct{}

	pendingRename *pendingRename
}

type pendingRename struct {
	name string
	at   time.Time
}

type accepted struct {
	at    time.Time
	state fileState
}

// fileState is used to tell whether a file changed since it was last
// accepted.
type fileState struct {
	size    int64
	modTime time.Time
}

func (s fileState) equal(other fileState) bool {
	return s.size == other.size && s.modTime.Equal(other.modTime)
}

// New returns a Detector that sends accepted changes to `out`.
func New(cfg Config, out chan<- Change) (*Detector, error) {
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.PairWindow == 0 {
		cfg.PairWindow = DefaultPairWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	lastAccepted, err := lru.New(debounceEntries)
	if err != nil {
		return nil, errors.WithContext(err, "create debounce cache")
	}

	d := &Detector{
		dir:          filepath.Clean(cfg.Dir),
		debounce:     cfg.Debounce,
		pairWindow:   cfg.PairWindow,
		clock:        cfg.Clock,
		out:          out,
		lastAccepted: lastAccepted,
		suppressed:   map[string]time.Time{},
		dirs:         map[string]struct{}{},
	}
	if len(cfg.Ignore) != 0 {
		d.ignore = gitignore.CompileIgnoreLines(cfg.Ignore...)
	}

	children, err := afero.ReadDir(fs, d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileNotFound{Path: d.dir}
		}
		return nil, errors.WithContext(err, "list watched directory")
	}
	for _, child := range children {
		if child.IsDir() {
			d.dirs[child.Name()] = struct{}{}
		}
	}
	return d, nil
}

// Watch watches the directory until `ctx` is cancelled. The notification
// source is closed before Watch returns.
func (d *Detector) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WithContext(err, "create watcher")
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.WithError(err).Warn("Failed to close file watcher")
		}
	}()

	if err := watcher.Add(d.dir); err != nil {
		return errors.WithContext(err, "watch "+d.dir)
	}

	log.WithField("dir", d.dir).Info("Watching for changes..")
	d.Run(ctx, watcher.Events, watcher.Errors)
	return nil
}

// Run handles notifications from `events` until `ctx` is cancelled or the
// events channel is closed.
func (d *Detector) Run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	defer func() {
		d.Flush()
		d.catchUp(func(string) bool { return true })
	}()

	for {
		var timeout <-chan time.Time
		if deadline, ok := d.nextDeadline(); ok {
			timeout = d.clock.After(deadline.Sub(d.clock.Now()))
		}

		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.Handle(ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.WithError(err).Warn("File watcher error")
		case <-timeout:
			d.expire()
		}
	}
}

// Flush resolves a pending rename whose new name never appeared. The file
// was moved out of the watched directory, so it's treated as deleted.
func (d *Detector) Flush() {
	if d.pendingRename == nil {
		return
	}
	name := d.pendingRename.name
	d.pendingRename = nil
	d.acceptDelete(name)
}

// nextDeadline returns when the detector next needs to act without a new
// notification: either a pending rename's pairing window closes, or a
// debounce window with a suppressed modification ends.
func (d *Detector) nextDeadline() (deadline time.Time, ok bool) {
	if d.pendingRename != nil {
		deadline, ok = d.pendingRename.at.Add(d.pairWindow), true
	}
	for _, at := range d.suppressed {
		if !ok || at.Before(deadline) {
			deadline, ok = at, true
		}
	}
	return deadline, ok
}

func (d *Detector) expire() {
	now := d.clock.Now()
	if d.pendingRename != nil && now.Sub(d.pendingRename.at) >= d.pairWindow {
		d.Flush()
	}
	d.catchUp(func(name string) bool {
		return !now.Before(d.suppressed[name])
	})
}

// catchUp revisits the files whose modifications were debounced, and for
// which `due` returns true. A file that changed after its last accepted
// change is replicated again, so that the last save always reaches the server.
func (d *Detector) catchUp(due func(name string) bool) {
	var names []string
	for name := range d.suppressed {
		if due(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		delete(d.suppressed, name)

		current, ok := d.stat(name)
		if !ok {
			// It's gone, and its delete will be handled separately.
			continue
		}

		if last, ok := d.lastAccepted.Get(name); ok && last.(accepted).state.equal(current) {
			continue
		}
		d.lastAccepted.Add(name, accepted{at: d.clock.Now(), state: current})
		d.emit(Change{Kind: Modified, Name: name})
	}
}

// Handle processes a single notification.
func (d *Detector) Handle(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) == d.dir {
		return
	}
	name := filepath.Base(ev.Name)

	if pending := d.pendingRename; pending != nil {
		d.pendingRename = nil
		if ev.Op&fsnotify.Create != 0 && d.clock.Now().Sub(pending.at) <= d.pairWindow {
			d.handleMove(pending.name, name, ev.Name)
			return
		}
		d.acceptDelete(pending.name)
	}

	switch {
	case ev.Op&fsnotify.Remove != 0:
		if d.forgetDir(name) {
			return
		}
		d.acceptDelete(name)
	case ev.Op&fsnotify.Rename != 0:
		if d.forgetDir(name) {
			return
		}
		if d.ignored(name) {
			return
		}
		d.pendingRename = &pendingRename{name: name, at: d.clock.Now()}
	case ev.Op&fsnotify.Create != 0:
		if d.isNewDir(name, ev.Name) {
			return
		}
		d.acceptCreate(name)
	case ev.Op&fsnotify.Write != 0:
		if _, ok := d.dirs[name]; ok {
			return
		}
		d.acceptModify(name)
	}
}

func (d *Detector) handleMove(oldName, newName, newPath string) {
	if d.isNewDir(newName, newPath) {
		return
	}

	// Renames of meta files are never held as pending, so only the new name
	// needs checking here. A file moved to a meta name stops being
	// replicated, so the server drops it.
	if d.ignored(newName) {
		log.WithFields(log.Fields{"from": oldName, "to": newName}).Debug(
			"File renamed to a meta file")
		d.acceptDelete(oldName)
		return
	}

	if !d.isSameFile(oldName, newName) {
		log.WithFields(log.Fields{"from": oldName, "to": newName}).Debug(
			"Create doesn't match the renamed file")
		d.acceptDelete(oldName)
		d.acceptCreate(newName)
		return
	}

	// A debounced modification follows the file to its new name.
	if deadline, ok := d.suppressed[oldName]; ok {
		if last, ok := d.lastAccepted.Get(oldName); ok {
			d.lastAccepted.Add(newName, last)
		}
		d.suppressed[newName] = deadline
	} else if last, ok := d.lastAccepted.Get(oldName); ok {
		d.lastAccepted.Add(newName, accepted{state: last.(accepted).state})
	}
	d.forget(oldName)
	d.emit(Change{Kind: Moved, Name: oldName, NewName: newName})
}

// isSameFile returns whether `newName` is the file last accepted as
// `oldName`. Renames keep the size and modification time, so any other
// state means the create belongs to an unrelated file that arrived within
// the pairing window. A file with a debounced modification may have changed
// since it was accepted, but its catch-up re-checks it under the new name.
func (d *Detector) isSameFile(oldName, newName string) bool {
	if _, ok := d.suppressed[oldName]; ok {
		return true
	}
	last, ok := d.lastAccepted.Get(oldName)
	if !ok {
		return false
	}
	current, ok := d.stat(newName)
	return ok && last.(accepted).state.equal(current)
}

func (d *Detector) acceptCreate(name string) {
	if d.ignored(name) {
		return
	}
	d.accept(name)
	d.emit(Change{Kind: Created, Name: name})
}

func (d *Detector) acceptModify(name string) {
	if d.ignored(name) {
		return
	}

	now := d.clock.Now()
	if last, ok := d.lastAccepted.Get(name); ok {
		if at := last.(accepted).at; now.Sub(at) <= d.debounce {
			log.WithField("file", name).Debug("Debounced modification")
			d.suppressed[name] = at.Add(d.debounce)
			return
		}
	}
	d.accept(name)
	d.emit(Change{Kind: Modified, Name: name})
}

func (d *Detector) acceptDelete(name string) {
	if d.ignored(name) {
		return
	}
	d.forget(name)
	d.emit(Change{Kind: Deleted, Name: name})
}

func (d *Detector) accept(name string) {
	state, _ := d.stat(name)
	d.lastAccepted.Add(name, accepted{at: d.clock.Now(), state: state})
	delete(d.suppressed, name)
}

func (d *Detector) forget(name string) {
	d.lastAccepted.Remove(name)
	delete(d.suppressed, name)
}

func (d *Detector) stat(name string) (fileState, bool) {
	fi, err := fs.Stat(filepath.Join(d.dir, name))
	if err != nil || fi.IsDir() {
		return fileState{}, false
	}
	return fileState{size: fi.Size(), modTime: fi.ModTime()}, true
}

func (d *Detector) emit(c Change) {
	log.WithField("change", c.String()).Info("File changed")
	d.out <- c
}

func (d *Detector) ignored(name string) bool {
	if strings.HasPrefix(name, MetaPrefix) {
		return true
	}
	return d.ignore != nil && d.ignore.MatchesPath(name)
}

// isNewDir records `name` as a directory if `path` is one.
func (d *Detector) isNewDir(name, path string) bool {
	fi, err := fs.Stat(path)
	if err != nil || !fi.IsDir() {
		return false
	}
	d.dirs[name] = struct{}{}
	return true
}

func (d *Detector) forgetDir(name string) bool {
	if _, ok := d.dirs[name]; !ok {
		return false
	}
	delete(d.dirs, name)
	return true
}
