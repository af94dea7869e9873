package client

//go:generate mockery -name Client

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding/gzip"

	"github.com/sidkik/filesync/pkg/errors"
	"github.com/sidkik/filesync/pkg/proto/filesync"
)

// Client is the interface for replicating files from the local sync root to
// the sync server. Every operation returns the token reported by the server.
// An error is only returned if the operation couldn't be sent, or if the
// local half of the operation failed.
type Client interface {
	Upload(ctx context.Context, name string) (filesync.Token, error)
	Download(ctx context.Context, name string) (filesync.Token, error)
	Delete(ctx context.Context, name string) (filesync.Token, error)
	Rename(ctx context.Context, oldName, newName string) (filesync.Token, error)
	GetVersion(ctx context.Context) (string, error)
	Close() error
}

// stagingPrefix names downloads in progress. Hidden names are meta files, so
// the watcher doesn't replicate them.
const stagingPrefix = ".filesync-download-"

type client struct {
	// root is the local sync root. Names are resolved relative to it.
	root afero.Fs

	pbClient filesync.FileSyncClient
	grpcConn *grpc.ClientConn
}

// New returns a Client connected to the sync server at `address`. The
// connection is shared by all calls made through the client, and is released
// by Close.
func New(address string, root afero.Fs, opts ...grpc.DialOption) (Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithInsecure(),
		grpc.WithDefaultCallOptions(grpc.UseCompressor(gzip.Name)),
	}, opts...)
	conn, err := grpc.Dial(address, opts...)
	if err != nil {
		return nil, errors.WithContext(err, "dial")
	}

	return &client{
		root:     root,
		pbClient: filesync.NewFileSyncClient(conn),
		grpcConn: conn,
	}, nil
}

// Upload streams the contents of `name` to the server in
// `filesync.ChunkSize` increments.
func (c *client) Upload(ctx context.Context, name string) (filesync.Token, error) {
	f, err := c.root.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			err = errors.FileNotFound{Path: name}
		}
		return filesync.Failed, errors.WithContext(err, "read local file")
	}
	defer f.Close()

	// Abandoning the stream cancels it, so the server discards the partial
	// file.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.pbClient.Write(ctx)
	if err != nil {
		return filesync.Failed, errors.WithContext(err, "start stream")
	}

	// Inform the server what file we're writing in the first message.
	err = stream.Send(&filesync.WriteRequest{Name: name})
	buf := make([]byte, filesync.ChunkSize)
	for err == nil {
		n, readErr := f.Read(buf)
		if n > 0 {
			err = stream.Send(&filesync.WriteRequest{Chunk: buf[:n]})
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return filesync.Failed, errors.WithContext(readErr, "read local file")
		}
	}

	// io.EOF means that the server closed the stream early. The reason is in
	// its response.
	if err != nil && err != io.EOF {
		return filesync.Failed, errors.WithContext(err, "send file chunk")
	}

	resp, err := stream.CloseAndRecv()
	if err != nil {
		return filesync.Failed, errors.WithContext(err, "write")
	}
	return resp.GetToken(), nil
}

// Download fetches `name` from the server and writes it to the local sync
// root. The local file is only replaced once the full contents have arrived,
// and is left untouched if the server fails to read it.
func (c *client) Download(ctx context.Context, name string) (filesync.Token, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.pbClient.Read(ctx, &filesync.ReadRequest{Name: name})
	if err != nil {
		return filesync.Failed, errors.WithContext(err, "read")
	}

	header, err := stream.Recv()
	if err != nil {
		return filesync.Failed, errors.WithContext(err, "read")
	}
	if header.GetToken() != filesync.Downloaded {
		return filesync.Failed, nil
	}

	if err := c.writeLocal(name, &chunkReader{stream: stream}); err != nil {
		return filesync.Failed, errors.WithContext(err, "write local file")
	}
	return filesync.Downloaded, nil
}

// writeLocal stages `content` in a hidden file, then moves it over `name`.
func (c *client) writeLocal(name string, content io.Reader) error {
	staging := stagingPrefix + uuid.New().String()
	f, err := c.root.OpenFile(staging, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	_, err = io.Copy(f, content)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = c.root.Rename(staging, name)
	}
	if err != nil {
		c.root.Remove(staging)
	}
	return err
}

// chunkReader reads the contents of a Read stream.
type chunkReader struct {
	stream filesync.FileSync_ReadClient
	buf    []byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		msg, err := r.stream.Recv()
		if err != nil {
			return 0, err
		}
		r.buf = msg.GetChunk()
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (c *client) Delete(ctx context.Context, name string) (filesync.Token, error) {
	resp, err := c.pbClient.Remove(ctx, &filesync.RemoveRequest{Name: name})
	if err != nil {
		return filesync.Failed, errors.WithContext(err, "remove")
	}
	return resp.GetToken(), nil
}

func (c *client) Rename(ctx context.Context, oldName, newName string) (filesync.Token, error) {
	resp, err := c.pbClient.Rename(ctx, &filesync.RenameRequest{
		OldName: oldName,
		NewName: newName,
	})
	if err != nil {
		return filesync.Failed, errors.WithContext(err, "rename")
	}
	return resp.GetToken(), nil
}

// GetVersion returns the version of the sync server.
func (c *client) GetVersion(ctx context.Context) (string, error) {
	resp, err := c.pbClient.GetVersion(ctx, &filesync.GetVersionRequest{})
	if err != nil {
		return "", errors.WithContext(err, "get version")
	}
	return resp.GetVersion(), nil
}

func (c *client) Close() error {
	return c.grpcConn.Close()
}
