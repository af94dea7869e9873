// Package filesync defines the wire contract between the sync client and the
// sync server: the request and response messages, the status tokens, and the
// gRPC service that carries them.
package filesync

// Token is the status value returned by every remote file operation.
type Token string

const (
	// Uploaded is returned by Write on success.
	Uploaded Token = "uploaded"

	// Downloaded is returned by Read on success, alongside the file contents.
	Downloaded Token = "downloaded"

	// Deleted is returned by Remove on success.
	Deleted Token = "deleted"

	// Renamed is returned by Rename on success.
	Renamed Token = "renamed"

	// Failed is returned by any operation that couldn't be performed. It
	// intentionally carries no detail; the server logs the cause.
	Failed Token = "failed"
)

func (t Token) String() string {
	return ":" + string(t)
}

// OK returns whether the token reports a successful operation.
func (t Token) OK() bool {
	switch t {
	case Uploaded, Downloaded, Deleted, Renamed:
		return true
	}
	return false
}

// ChunkSize is the largest number of content bytes carried by a single
// message. Files are streamed in chunks so that their size isn't bounded by
// the transport's message size limit.
const ChunkSize = 64 * 1024

// WriteRequest is a message on the Write stream. The first message names the
// file, and the remaining messages carry its contents in order.
type WriteRequest struct {
	Name  string `json:"name,omitempty"`
	Chunk []byte `json:"chunk,omitempty"`
}

func (m *WriteRequest) GetName() string {
	if m != nil {
		return m.Name
	}
	return ""
}

func (m *WriteRequest) GetChunk() []byte {
	if m != nil {
		return m.Chunk
	}
	return nil
}

type WriteResponse struct {
	Token Token `json:"token"`
}

func (m *WriteResponse) GetToken() Token {
	if m != nil {
		return m.Token
	}
	return Failed
}

type ReadRequest struct {
	Name string `json:"name"`
}

func (m *ReadRequest) GetName() string {
	if m != nil {
		return m.Name
	}
	return ""
}

// ReadResponse is a message on the Read stream. The first message holds the
// token. If it's Downloaded, the remaining messages carry the contents of
// the file in order; if it's Failed, the stream ends.
type ReadResponse struct {
	Token Token  `json:"token,omitempty"`
	Chunk []byte `json:"chunk,omitempty"`
}

func (m *ReadResponse) GetToken() Token {
	if m != nil {
		return m.Token
	}
	return Failed
}

func (m *ReadResponse) GetChunk() []byte {
	if m != nil {
		return m.Chunk
	}
	return nil
}

type RemoveRequest struct {
	Name string `json:"name"`
}

func (m *RemoveRequest) GetName() string {
	if m != nil {
		return m.Name
	}
	return ""
}

type RemoveResponse struct {
	Token Token `json:"token"`
}

func (m *RemoveResponse) GetToken() Token {
	if m != nil {
		return m.Token
	}
	return Failed
}

type RenameRequest struct {
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

func (m *RenameRequest) GetOldName() string {
	if m != nil {
		return m.OldName
	}
	return ""
}

func (m *RenameRequest) GetNewName() string {
	if m != nil {
		return m.NewName
	}
	return ""
}

type RenameResponse struct {
	Token Token `json:"token"`
}

func (m *RenameResponse) GetToken() Token {
	if m != nil {
		return m.Token
	}
	return Failed
}

type GetVersionRequest struct{}

type GetVersionResponse struct {
	Version string `json:"version"`
}

func (m *GetVersionResponse) GetVersion() string {
	if m != nil {
		return m.Version
	}
	return ""
}
