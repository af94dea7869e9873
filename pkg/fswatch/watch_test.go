package fswatch

import (
	"context"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/filesync/pkg/errors"
)

const watchDir = "/client_files"

type testDetector struct {
	*Detector
	clock clockwork.FakeClock
	out   chan Change
}

func newTestDetector(t *testing.T, ignore ...string) testDetector {
	fs = afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(watchDir, 0755))

	clock := clockwork.NewFakeClock()
	out := make(chan Change, 64)
	d, err := New(Config{Dir: watchDir, Ignore: ignore, Clock: clock}, out)
	require.NoError(t, err)
	return testDetector{d, clock, out}
}

func (td testDetector) event(op fsnotify.Op, name string) {
	td.Handle(fsnotify.Event{Name: watchDir + "/" + name, Op: op})
}

// create writes `name` and handles its create event.
func (td testDetector) create(t *testing.T, name, content string) {
	require.NoError(t, afero.WriteFile(fs, watchDir+"/"+name, []byte(content), 0644))
	td.event(fsnotify.Create, name)
}

// rename moves `oldName` to `newName` and handles the rename event. The
// create event for the new name is left to the caller.
func (td testDetector) rename(t *testing.T, oldName, newName string) {
	require.NoError(t, fs.Rename(watchDir+"/"+oldName, watchDir+"/"+newName))
	td.event(fsnotify.Rename, oldName)
}

func (td testDetector) changes() (changes []Change) {
	for {
		select {
		case c := <-td.out:
			changes = append(changes, c)
		default:
			return changes
		}
	}
}

func TestModifyDebounce(t *testing.T) {
	tests := []struct {
		name string
		gap  time.Duration
		exp  []Change
	}{
		{
			name: "within the window",
			gap:  100 * time.Millisecond,
			exp:  []Change{{Kind: Modified, Name: "a.txt"}},
		},
		{
			name: "exactly the window",
			gap:  DefaultDebounce,
			exp:  []Change{{Kind: Modified, Name: "a.txt"}},
		},
		{
			name: "after the window",
			gap:  1500 * time.Millisecond,
			exp: []Change{
				{Kind: Modified, Name: "a.txt"},
				{Kind: Modified, Name: "a.txt"},
			},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			td := newTestDetector(t)
			td.event(fsnotify.Write, "a.txt")
			td.clock.Advance(test.gap)
			td.event(fsnotify.Write, "a.txt")
			assert.Equal(t, test.exp, td.changes())
		})
	}
}

func TestDebouncedChangesCatchUp(t *testing.T) {
	tests := []struct {
		name     string
		rewrite  bool
		expLater []Change
	}{
		{
			name:     "changed during the window",
			rewrite:  true,
			expLater: []Change{{Kind: Modified, Name: "a.txt"}},
		},
		{
			name:    "unchanged during the window",
			rewrite: false,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			td := newTestDetector(t)
			path := watchDir + "/a.txt"
			require.NoError(t, afero.WriteFile(fs, path, []byte("first"), 0644))
			td.event(fsnotify.Write, "a.txt")

			td.clock.Advance(100 * time.Millisecond)
			if test.rewrite {
				require.NoError(t, afero.WriteFile(fs, path, []byte("second save"), 0644))
			}
			td.event(fsnotify.Write, "a.txt")
			assert.Equal(t, []Change{{Kind: Modified, Name: "a.txt"}}, td.changes())

			deadline, ok := td.nextDeadline()
			require.True(t, ok)
			assert.Equal(t, DefaultDebounce-100*time.Millisecond, deadline.Sub(td.clock.Now()))

			// Nothing is due before the window ends.
			td.clock.Advance(500 * time.Millisecond)
			td.expire()
			assert.Empty(t, td.changes())

			td.clock.Advance(400 * time.Millisecond)
			td.expire()
			assert.Equal(t, test.expLater, td.changes())

			_, ok = td.nextDeadline()
			assert.False(t, ok)
		})
	}
}

func TestDeleteCancelsCatchUp(t *testing.T) {
	td := newTestDetector(t)
	require.NoError(t, afero.WriteFile(fs, watchDir+"/a.txt", []byte("first"), 0644))
	td.event(fsnotify.Create, "a.txt")
	require.NoError(t, afero.WriteFile(fs, watchDir+"/a.txt", []byte("second save"), 0644))
	td.event(fsnotify.Write, "a.txt")
	require.NoError(t, fs.Remove(watchDir+"/a.txt"))
	td.event(fsnotify.Remove, "a.txt")

	td.clock.Advance(DefaultDebounce)
	td.expire()
	assert.Equal(t, []Change{
		{Kind: Created, Name: "a.txt"},
		{Kind: Deleted, Name: "a.txt"},
	}, td.changes())
}

func TestDebounceIsPerFile(t *testing.T) {
	td := newTestDetector(t)
	td.event(fsnotify.Write, "a.txt")
	td.event(fsnotify.Write, "a.txt")
	td.event(fsnotify.Write, "b.txt")
	assert.Equal(t, []Change{
		{Kind: Modified, Name: "a.txt"},
		{Kind: Modified, Name: "b.txt"},
	}, td.changes())
}

func TestCreateResetsDebounce(t *testing.T) {
	td := newTestDetector(t)
	td.event(fsnotify.Create, "a.txt")
	td.clock.Advance(100 * time.Millisecond)
	td.event(fsnotify.Write, "a.txt")
	td.clock.Advance(time.Second)
	td.event(fsnotify.Write, "a.txt")

	assert.Equal(t, []Change{
		{Kind: Created, Name: "a.txt"},
		{Kind: Modified, Name: "a.txt"},
	}, td.changes())
}

func TestCreateAndDeleteAreNotDebounced(t *testing.T) {
	td := newTestDetector(t)
	td.event(fsnotify.Create, "a.txt")
	td.event(fsnotify.Remove, "a.txt")
	td.event(fsnotify.Create, "a.txt")
	td.event(fsnotify.Remove, "a.txt")

	// The delete forgets the file, so the next modification goes through.
	td.event(fsnotify.Write, "a.txt")

	assert.Equal(t, []Change{
		{Kind: Created, Name: "a.txt"},
		{Kind: Deleted, Name: "a.txt"},
		{Kind: Created, Name: "a.txt"},
		{Kind: Deleted, Name: "a.txt"},
		{Kind: Modified, Name: "a.txt"},
	}, td.changes())
}

func TestMetaFilesIgnored(t *testing.T) {
	td := newTestDetector(t)
	for _, op := range []fsnotify.Op{fsnotify.Create, fsnotify.Write, fsnotify.Remove, fsnotify.Chmod} {
		td.event(op, ".a.txt")
		td.clock.Advance(2 * time.Second)
	}

	// Renames between meta names.
	td.event(fsnotify.Rename, ".a.txt")
	td.event(fsnotify.Create, ".b.txt")
	td.clock.Advance(time.Second)
	td.Flush()

	assert.Empty(t, td.changes())
}

func TestRenameToMetaFileDeletes(t *testing.T) {
	td := newTestDetector(t)
	td.create(t, "a.txt", "hi")
	td.rename(t, "a.txt", ".a.txt.bak")
	td.event(fsnotify.Create, ".a.txt.bak")
	td.Flush()

	assert.Equal(t, []Change{
		{Kind: Created, Name: "a.txt"},
		{Kind: Deleted, Name: "a.txt"},
	}, td.changes())
}

func TestIgnorePatterns(t *testing.T) {
	td := newTestDetector(t, "*.swp", "*~")
	td.event(fsnotify.Create, "a.txt.swp")
	td.event(fsnotify.Write, "a.txt~")
	td.event(fsnotify.Create, "a.txt")
	assert.Equal(t, []Change{{Kind: Created, Name: "a.txt"}}, td.changes())
}

func TestRenamePairing(t *testing.T) {
	t.Run("paired", func(t *testing.T) {
		td := newTestDetector(t)
		td.create(t, "a.txt", "hi")
		td.changes()

		td.rename(t, "a.txt", "b.txt")
		td.clock.Advance(10 * time.Millisecond)
		td.event(fsnotify.Create, "b.txt")
		assert.Equal(t, []Change{{Kind: Moved, Name: "a.txt", NewName: "b.txt"}}, td.changes())

		// The record follows the file, so it can be renamed again.
		td.rename(t, "b.txt", "c.txt")
		td.event(fsnotify.Create, "c.txt")
		assert.Equal(t, []Change{{Kind: Moved, Name: "b.txt", NewName: "c.txt"}}, td.changes())
	})

	t.Run("unrelated file moved in", func(t *testing.T) {
		td := newTestDetector(t)
		td.create(t, "a.txt", "hi")
		td.changes()

		// a.txt leaves the directory, and c.txt arrives from elsewhere within
		// the pairing window.
		require.NoError(t, fs.Remove(watchDir+"/a.txt"))
		require.NoError(t, afero.WriteFile(fs, watchDir+"/c.txt", []byte("other contents"), 0644))
		td.event(fsnotify.Rename, "a.txt")
		td.clock.Advance(50 * time.Millisecond)
		td.event(fsnotify.Create, "c.txt")
		assert.Equal(t, []Change{
			{Kind: Deleted, Name: "a.txt"},
			{Kind: Created, Name: "c.txt"},
		}, td.changes())
	})

	t.Run("file never accepted", func(t *testing.T) {
		td := newTestDetector(t)
		require.NoError(t, afero.WriteFile(fs, watchDir+"/a.txt", []byte("hi"), 0644))
		td.rename(t, "a.txt", "b.txt")
		td.event(fsnotify.Create, "b.txt")
		assert.Equal(t, []Change{
			{Kind: Deleted, Name: "a.txt"},
			{Kind: Created, Name: "b.txt"},
		}, td.changes())
	})

	t.Run("create too late", func(t *testing.T) {
		td := newTestDetector(t)
		td.event(fsnotify.Rename, "a.txt")
		td.clock.Advance(DefaultPairWindow + time.Millisecond)
		td.event(fsnotify.Create, "b.txt")
		assert.Equal(t, []Change{
			{Kind: Deleted, Name: "a.txt"},
			{Kind: Created, Name: "b.txt"},
		}, td.changes())
	})

	t.Run("interrupted by another event", func(t *testing.T) {
		td := newTestDetector(t)
		td.event(fsnotify.Rename, "a.txt")
		td.event(fsnotify.Write, "c.txt")
		assert.Equal(t, []Change{
			{Kind: Deleted, Name: "a.txt"},
			{Kind: Modified, Name: "c.txt"},
		}, td.changes())
	})

	t.Run("moved out of the directory", func(t *testing.T) {
		td := newTestDetector(t)
		td.event(fsnotify.Rename, "a.txt")
		assert.Empty(t, td.changes())
		td.Flush()
		assert.Equal(t, []Change{{Kind: Deleted, Name: "a.txt"}}, td.changes())
	})

	t.Run("moved in from a meta name", func(t *testing.T) {
		td := newTestDetector(t)
		td.event(fsnotify.Rename, ".a.txt.tmp")
		td.event(fsnotify.Create, "a.txt")
		assert.Equal(t, []Change{{Kind: Created, Name: "a.txt"}}, td.changes())
	})
}

func TestMoveForgetsDebounce(t *testing.T) {
	td := newTestDetector(t)
	require.NoError(t, afero.WriteFile(fs, watchDir+"/a.txt", []byte("hi"), 0644))
	td.event(fsnotify.Write, "a.txt")
	td.rename(t, "a.txt", "b.txt")
	td.event(fsnotify.Create, "b.txt")
	td.create(t, "a.txt", "new")
	td.event(fsnotify.Write, "b.txt")

	assert.Equal(t, []Change{
		{Kind: Modified, Name: "a.txt"},
		{Kind: Moved, Name: "a.txt", NewName: "b.txt"},
		{Kind: Created, Name: "a.txt"},
		{Kind: Modified, Name: "b.txt"},
	}, td.changes())
}

func TestMoveKeepsDebouncedChange(t *testing.T) {
	td := newTestDetector(t)
	require.NoError(t, afero.WriteFile(fs, watchDir+"/a.txt", []byte("first"), 0644))
	td.event(fsnotify.Write, "a.txt")
	require.NoError(t, afero.WriteFile(fs, watchDir+"/a.txt", []byte("second save"), 0644))
	td.event(fsnotify.Write, "a.txt")

	require.NoError(t, fs.Rename(watchDir+"/a.txt", watchDir+"/b.txt"))
	td.event(fsnotify.Rename, "a.txt")
	td.event(fsnotify.Create, "b.txt")

	td.clock.Advance(DefaultDebounce)
	td.expire()
	assert.Equal(t, []Change{
		{Kind: Modified, Name: "a.txt"},
		{Kind: Moved, Name: "a.txt", NewName: "b.txt"},
		{Kind: Modified, Name: "b.txt"},
	}, td.changes())
}

func TestDirectoriesIgnored(t *testing.T) {
	fs = afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(watchDir+"/existing", 0755))
	clock := clockwork.NewFakeClock()
	out := make(chan Change, 64)
	d, err := New(Config{Dir: watchDir, Clock: clock}, out)
	require.NoError(t, err)
	td := testDetector{d, clock, out}

	require.NoError(t, fs.Mkdir(watchDir+"/sub", 0755))
	td.event(fsnotify.Create, "sub")
	td.event(fsnotify.Write, "sub")
	td.event(fsnotify.Chmod, "sub")
	require.NoError(t, fs.Remove(watchDir+"/sub"))
	td.event(fsnotify.Remove, "sub")

	require.NoError(t, fs.Remove(watchDir+"/existing"))
	require.NoError(t, fs.Mkdir(watchDir+"/renamed", 0755))
	td.event(fsnotify.Rename, "existing")
	td.event(fsnotify.Create, "renamed")

	// Events on the watched directory itself.
	td.Handle(fsnotify.Event{Name: watchDir, Op: fsnotify.Write})
	td.Handle(fsnotify.Event{Name: watchDir + "/", Op: fsnotify.Remove})

	assert.Empty(t, td.changes())
}

func TestNewMissingDir(t *testing.T) {
	fs = afero.NewMemMapFs()
	_, err := New(Config{Dir: "/missing"}, make(chan Change))
	assert.Equal(t, errors.FileNotFound{Path: "/missing"}, err)
}

func TestRun(t *testing.T) {
	td := newTestDetector(t)
	events := make(chan fsnotify.Event)
	errs := make(chan error)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		td.Run(ctx, events, errs)
		close(done)
	}()

	events <- fsnotify.Event{Name: watchDir + "/a.txt", Op: fsnotify.Create}
	assert.Equal(t, Change{Kind: Created, Name: "a.txt"}, <-td.out)

	errs <- assert.AnError

	// A rename with no matching create becomes a delete once the pairing
	// window closes.
	events <- fsnotify.Event{Name: watchDir + "/a.txt", Op: fsnotify.Rename}
	td.clock.BlockUntil(1)
	td.clock.Advance(DefaultPairWindow)
	assert.Equal(t, Change{Kind: Deleted, Name: "a.txt"}, <-td.out)

	// Pending renames are flushed on shutdown.
	events <- fsnotify.Event{Name: watchDir + "/b.txt", Op: fsnotify.Rename}
	td.clock.BlockUntil(1)
	cancel()
	<-done
	assert.Equal(t, []Change{{Kind: Deleted, Name: "b.txt"}}, td.changes())
}

func TestRunCatchesUp(t *testing.T) {
	td := newTestDetector(t)
	events := make(chan fsnotify.Event)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		td.Run(ctx, events, nil)
		close(done)
	}()

	path := watchDir + "/a.txt"
	require.NoError(t, afero.WriteFile(fs, path, []byte(""), 0644))
	events <- fsnotify.Event{Name: path, Op: fsnotify.Create}
	assert.Equal(t, Change{Kind: Created, Name: "a.txt"}, <-td.out)

	// The contents are written right after the file is created, so the write
	// is debounced, and then replicated once the window ends.
	require.NoError(t, afero.WriteFile(fs, path, []byte("hi"), 0644))
	events <- fsnotify.Event{Name: path, Op: fsnotify.Write}
	td.clock.BlockUntil(1)
	td.clock.Advance(DefaultDebounce)
	assert.Equal(t, Change{Kind: Modified, Name: "a.txt"}, <-td.out)

	// Debounced changes are replicated on shutdown too.
	require.NoError(t, afero.WriteFile(fs, path, []byte("bye!"), 0644))
	events <- fsnotify.Event{Name: path, Op: fsnotify.Write}
	td.clock.BlockUntil(1)
	cancel()
	<-done
	assert.Equal(t, []Change{{Kind: Modified, Name: "a.txt"}}, td.changes())
}

func TestChangeString(t *testing.T) {
	assert.Equal(t, "created a.txt", Change{Kind: Created, Name: "a.txt"}.String())
	assert.Equal(t, "moved a.txt -> b.txt",
		Change{Kind: Moved, Name: "a.txt", NewName: "b.txt"}.String())
	assert.Equal(t, []string{"a.txt", "b.txt"},
		Change{Kind: Moved, Name: "a.txt", NewName: "b.txt"}.Names())
	assert.Equal(t, []string{"a.txt"}, Change{Kind: Deleted, Name: "a.txt"}.Names())
}
