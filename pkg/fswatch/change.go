package fswatch

import "fmt"

// Kind is the kind of change made to a file in the watched directory.
type Kind string

const (
	Created  Kind = "created"
	Modified Kind = "modified"
	Deleted  Kind = "deleted"
	Moved    Kind = "moved"
)

// Change is a filesystem change that should be replicated. Names are base
// names relative to the watched directory. NewName is only set for Moved.
type Change struct {
	Kind    Kind
	Name    string
	NewName string
}

func (c Change) String() string {
	if c.Kind == Moved {
		return fmt.Sprintf("%s %s -> %s", c.Kind, c.Name, c.NewName)
	}
	return fmt.Sprintf("%s %s", c.Kind, c.Name)
}

// Names returns every file name touched by the change.
func (c Change) Names() []string {
	if c.Kind == Moved {
		return []string{c.Name, c.NewName}
	}
	return []string{c.Name}
}
