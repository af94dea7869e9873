// Package store implements the server's File Store: a flat directory of files
// addressed by base name.
package store

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/filesync/pkg/errors"
	"github.com/sidkik/filesync/pkg/proto/filesync"
)

// stagingPrefix names in-progress writes.
const stagingPrefix = ".filesync-staging-"

// Store performs file operations confined to a single root directory.
// Operation failures are logged and reported as filesync.Failed rather than
// returned as errors, so that callers always have a well-formed result to
// send back to the client.
type Store struct {
	root string
	fs   afero.Fs
}

// New creates the root directory in `fs` if it doesn't exist, and returns a
// Store that is sandboxed to it.
func New(fs afero.Fs, root string) (*Store, error) {
	if err := fs.MkdirAll(root, 0755); err != nil {
		return nil, errors.WithContext(err, "create root")
	}
	return &Store{
		root: root,
		fs:   afero.NewBasePathFs(fs, root),
	}, nil
}

// Root returns the directory the store is confined to.
func (s *Store) Root() string {
	return s.root
}

// Write creates or overwrites `name` with everything read from `content`.
// The content is staged in a hidden file next to the target, so a failed
// write leaves any previous version of `name` in place.
func (s *Store) Write(name string, content io.Reader) filesync.Token {
	logger := log.WithField("file", name)
	logger.Info("Upload")
	if err := s.write(name, content); err != nil {
		logger.WithError(err).Error("Failed to write file")
		return filesync.Failed
	}
	return filesync.Uploaded
}

func (s *Store) write(name string, content io.Reader) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if isDir, _ := afero.IsDir(s.fs, name); isDir {
		return errors.InvalidName{Name: name, Reason: "is a directory"}
	}

	staging := stagingPrefix + uuid.New().String()
	f, err := s.fs.OpenFile(staging, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return errors.WithContext(err, "create staging file")
	}

	_, err = io.Copy(f, content)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = s.fs.Rename(staging, name)
	}
	if err != nil {
		s.fs.Remove(staging)
		return errors.WithContext(err, "write")
	}
	return nil
}

// Open opens `name` for reading. The caller must close the returned file.
func (s *Store) Open(name string) (io.ReadCloser, filesync.Token) {
	logger := log.WithField("file", name)
	logger.Info("Download")
	f, err := s.open(name)
	if err != nil {
		logger.WithError(err).Error("Failed to read file")
		return nil, filesync.Failed
	}
	return f, filesync.Downloaded
}

func (s *Store) open(name string) (afero.File, error) {
	if err := s.statFile(name); err != nil {
		return nil, err
	}
	return s.fs.Open(name)
}

// Remove deletes `name`.
func (s *Store) Remove(name string) filesync.Token {
	logger := log.WithField("file", name)
	logger.Info("Delete")
	if err := s.remove(name); err != nil {
		logger.WithError(err).Error("Failed to remove file")
		return filesync.Failed
	}
	return filesync.Deleted
}

func (s *Store) remove(name string) error {
	if err := s.statFile(name); err != nil {
		return err
	}
	return s.fs.Remove(name)
}

// Rename renames `oldName` to `newName`, replacing `newName` if it exists.
func (s *Store) Rename(oldName, newName string) filesync.Token {
	logger := log.WithFields(log.Fields{"from": oldName, "to": newName})
	logger.Info("Rename")
	if err := s.rename(oldName, newName); err != nil {
		logger.WithError(err).Error("Failed to rename file")
		return filesync.Failed
	}
	return filesync.Renamed
}

func (s *Store) rename(oldName, newName string) error {
	if err := s.statFile(oldName); err != nil {
		return err
	}
	if err := ValidateName(newName); err != nil {
		return err
	}
	return s.fs.Rename(oldName, newName)
}

// statFile checks that `name` is a valid name referring to an existing
// regular file.
func (s *Store) statFile(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	fi, err := s.fs.Stat(name)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.FileNotFound{Path: name}
		}
		return errors.WithContext(err, "stat")
	}
	if fi.IsDir() {
		return errors.InvalidName{Name: name, Reason: "is a directory"}
	}
	return nil
}

// ValidateName returns an error if `name` isn't a plain base name, so that it
// can't be used to reach outside of the store's root.
func ValidateName(name string) error {
	switch {
	case name == "":
		return errors.InvalidName{Name: name, Reason: "empty"}
	case name == "." || name == "..":
		return errors.InvalidName{Name: name, Reason: "refers to a directory"}
	case strings.ContainsAny(name, `/\`) || filepath.Base(name) != name:
		return errors.InvalidName{Name: name, Reason: "contains a path separator"}
	case strings.ContainsRune(name, 0):
		return errors.InvalidName{Name: name, Reason: "contains a NUL byte"}
	}
	return nil
}
