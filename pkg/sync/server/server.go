package server

import (
	"context"
	"io"
	"net"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/stats"

	"github.com/sidkik/filesync/cmd/util"
	"github.com/sidkik/filesync/pkg/errors"
	"github.com/sidkik/filesync/pkg/proto/filesync"
	"github.com/sidkik/filesync/pkg/store"
	"github.com/sidkik/filesync/pkg/version"

	_ "google.golang.org/grpc/encoding/gzip" // Install the gzip compressor
)

// The server has no state of its own. Every constraint on names and contents
// is enforced by the store.
type server struct {
	store *store.Store
}

var _ filesync.FileSyncServer = &server{}

// Run listens on `address` and serves the FileSync service backed by `st`
// until `ctx` is cancelled.
func Run(ctx context.Context, address string, st *store.Store) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return errors.WithContext(err, "listen")
	}

	log.WithField("address", lis.Addr().String()).Info("Listening for connections..")
	return Serve(ctx, lis, st)
}

// Serve serves the FileSync service on `lis` until `ctx` is cancelled, at
// which point in-flight calls are allowed to finish before it returns.
func Serve(ctx context.Context, lis net.Listener, st *store.Store) error {
	grpcServer := NewGRPCServer(st)

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		defer util.HandlePanic()
		select {
		case <-ctx.Done():
			grpcServer.GracefulStop()
		case <-stopped:
		}
	}()

	if err := grpcServer.Serve(lis); err != nil {
		return errors.WithContext(err, "serve")
	}
	return nil
}

// NewGRPCServer returns a gRPC server with the FileSync service registered.
func NewGRPCServer(st *store.Store) *grpc.Server {
	grpcServer := grpc.NewServer(grpc.StatsHandler(&connLogger{}))
	filesync.RegisterFileSyncServer(grpcServer, &server{store: st})
	return grpcServer
}

// Write stores the file streamed by the client. The first message names the
// file and the rest carry its contents.
func (s *server) Write(stream filesync.FileSync_WriteServer) error {
	header, err := stream.Recv()
	if err != nil {
		return errors.WithContext(err, "read header")
	}

	tok := s.store.Write(header.GetName(), &chunkReader{stream: stream})
	if err := stream.SendAndClose(&filesync.WriteResponse{Token: tok}); err != nil {
		return errors.WithContext(err, "close stream")
	}
	return nil
}

// chunkReader reads the contents of a Write stream.
type chunkReader struct {
	stream filesync.FileSync_WriteServer
	buf    []byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		msg, err := r.stream.Recv()
		if err != nil {
			// io.EOF is returned as is once the client has sent everything.
			return 0, err
		}
		r.buf = msg.GetChunk()
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// Read streams the contents of a file to the client, preceded by a message
// holding the token.
func (s *server) Read(req *filesync.ReadRequest, stream filesync.FileSync_ReadServer) error {
	f, tok := s.store.Open(req.GetName())
	if f != nil {
		defer f.Close()
	}
	if err := stream.Send(&filesync.ReadResponse{Token: tok}); err != nil {
		return errors.WithContext(err, "send header")
	}
	if f == nil {
		return nil
	}

	buf := make([]byte, filesync.ChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if err := stream.Send(&filesync.ReadResponse{Chunk: buf[:n]}); err != nil {
				return errors.WithContext(err, "send file chunk")
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			log.WithError(err).WithField("file", req.GetName()).Error("Failed to read file")
			return errors.WithContext(err, "read file")
		}
	}
}

func (s *server) Remove(_ context.Context, req *filesync.RemoveRequest) (
	*filesync.RemoveResponse, error) {

	return &filesync.RemoveResponse{Token: s.store.Remove(req.GetName())}, nil
}

func (s *server) Rename(_ context.Context, req *filesync.RenameRequest) (
	*filesync.RenameResponse, error) {

	return &filesync.RenameResponse{
		Token: s.store.Rename(req.GetOldName(), req.GetNewName()),
	}, nil
}

func (s *server) GetVersion(context.Context, *filesync.GetVersionRequest) (
	*filesync.GetVersionResponse, error) {

	return &filesync.GetVersionResponse{Version: version.Version}, nil
}

type connKey struct{}

type connInfo struct {
	id         uint64
	remoteAddr net.Addr
}

// connLogger logs when clients connect and disconnect.
type connLogger struct {
	lastID uint64
}

func (h *connLogger) TagConn(ctx context.Context, info *stats.ConnTagInfo) context.Context {
	return context.WithValue(ctx, connKey{}, connInfo{
		id:         atomic.AddUint64(&h.lastID, 1),
		remoteAddr: info.RemoteAddr,
	})
}

func (h *connLogger) HandleConn(ctx context.Context, s stats.ConnStats) {
	info, _ := ctx.Value(connKey{}).(connInfo)
	logger := log.WithField("conn", info.id)
	if info.remoteAddr != nil {
		logger = logger.WithField("remote", info.remoteAddr.String())
	}

	switch s.(type) {
	case *stats.ConnBegin:
		logger.Info("Client connected")
	case *stats.ConnEnd:
		logger.Info("Client disconnected")
	}
}

func (h *connLogger) TagRPC(ctx context.Context, _ *stats.RPCTagInfo) context.Context {
	return ctx
}

func (h *connLogger) HandleRPC(context.Context, stats.RPCStats) {}
