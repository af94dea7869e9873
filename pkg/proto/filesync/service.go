package filesync

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "filesync.FileSync"

// FileSyncServer is the set of operations the sync server exposes.
type FileSyncServer interface {
	Write(FileSync_WriteServer) error
	Read(*ReadRequest, FileSync_ReadServer) error
	Remove(context.Context, *RemoveRequest) (*RemoveResponse, error)
	Rename(context.Context, *RenameRequest) (*RenameResponse, error)
	GetVersion(context.Context, *GetVersionRequest) (*GetVersionResponse, error)
}

// FileSyncClient is the client API for the FileSync service.
type FileSyncClient interface {
	Write(ctx context.Context, opts ...grpc.CallOption) (FileSync_WriteClient, error)
	Read(ctx context.Context, in *ReadRequest, opts ...grpc.CallOption) (FileSync_ReadClient, error)
	Remove(ctx context.Context, in *RemoveRequest, opts ...grpc.CallOption) (*RemoveResponse, error)
	Rename(ctx context.Context, in *RenameRequest, opts ...grpc.CallOption) (*RenameResponse, error)
	GetVersion(ctx context.Context, in *GetVersionRequest, opts ...grpc.CallOption) (*GetVersionResponse, error)
}

type fileSyncClient struct {
	cc grpc.ClientConnInterface
}

// NewFileSyncClient returns a FileSyncClient that sends its calls over `cc`
// encoded with the FileSync codec.
func NewFileSyncClient(cc grpc.ClientConnInterface) FileSyncClient {
	return &fileSyncClient{cc}
}

func (c *fileSyncClient) invoke(ctx context.Context, method string, in, out interface{},
	opts []grpc.CallOption) error {

	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...)
}

func (c *fileSyncClient) newStream(ctx context.Context, desc *grpc.StreamDesc,
	opts []grpc.CallOption) (grpc.ClientStream, error) {

	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.NewStream(ctx, desc, "/"+serviceName+"/"+desc.StreamName, opts...)
}

func (c *fileSyncClient) Write(ctx context.Context, opts ...grpc.CallOption) (FileSync_WriteClient, error) {
	stream, err := c.newStream(ctx, &serviceDesc.Streams[0], opts)
	if err != nil {
		return nil, err
	}
	return &fileSyncWriteClient{stream}, nil
}

// FileSync_WriteClient is the client's half of a Write stream.
type FileSync_WriteClient interface {
	Send(*WriteRequest) error
	CloseAndRecv() (*WriteResponse, error)
	grpc.ClientStream
}

type fileSyncWriteClient struct {
	grpc.ClientStream
}

func (x *fileSyncWriteClient) Send(m *WriteRequest) error {
	return x.ClientStream.SendMsg(m)
}

func (x *fileSyncWriteClient) CloseAndRecv() (*WriteResponse, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(WriteResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *fileSyncClient) Read(ctx context.Context, in *ReadRequest, opts ...grpc.CallOption) (FileSync_ReadClient, error) {
	stream, err := c.newStream(ctx, &serviceDesc.Streams[1], opts)
	if err != nil {
		return nil, err
	}
	x := &fileSyncReadClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// FileSync_ReadClient is the client's half of a Read stream.
type FileSync_ReadClient interface {
	Recv() (*ReadResponse, error)
	grpc.ClientStream
}

type fileSyncReadClient struct {
	grpc.ClientStream
}

func (x *fileSyncReadClient) Recv() (*ReadResponse, error) {
	m := new(ReadResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *fileSyncClient) Remove(ctx context.Context, in *RemoveRequest, opts ...grpc.CallOption) (*RemoveResponse, error) {
	out := new(RemoveResponse)
	if err := c.invoke(ctx, "Remove", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fileSyncClient) Rename(ctx context.Context, in *RenameRequest, opts ...grpc.CallOption) (*RenameResponse, error) {
	out := new(RenameResponse)
	if err := c.invoke(ctx, "Rename", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fileSyncClient) GetVersion(ctx context.Context, in *GetVersionRequest, opts ...grpc.CallOption) (*GetVersionResponse, error) {
	out := new(GetVersionResponse)
	if err := c.invoke(ctx, "GetVersion", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// RegisterFileSyncServer registers `srv` as the implementation of the
// FileSync service on `s`.
func RegisterFileSyncServer(s *grpc.Server, srv FileSyncServer) {
	s.RegisterService(&serviceDesc, srv)
}

func writeHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(FileSyncServer).Write(&fileSyncWriteServer{stream})
}

// FileSync_WriteServer is the server's half of a Write stream.
type FileSync_WriteServer interface {
	SendAndClose(*WriteResponse) error
	Recv() (*WriteRequest, error)
	grpc.ServerStream
}

type fileSyncWriteServer struct {
	grpc.ServerStream
}

func (x *fileSyncWriteServer) SendAndClose(m *WriteResponse) error {
	return x.ServerStream.SendMsg(m)
}

func (x *fileSyncWriteServer) Recv() (*WriteRequest, error) {
	m := new(WriteRequest)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func readHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(ReadRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(FileSyncServer).Read(m, &fileSyncReadServer{stream})
}

// FileSync_ReadServer is the server's half of a Read stream.
type FileSync_ReadServer interface {
	Send(*ReadResponse) error
	grpc.ServerStream
}

type fileSyncReadServer struct {
	grpc.ServerStream
}

func (x *fileSyncReadServer) Send(m *ReadResponse) error {
	return x.ServerStream.SendMsg(m)
}

func removeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

	in := new(RemoveRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FileSyncServer).Remove(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Remove"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FileSyncServer).Remove(ctx, req.(*RemoveRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func renameHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

	in := new(RenameRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FileSyncServer).Rename(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Rename"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FileSyncServer).Rename(ctx, req.(*RenameRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getVersionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

	in := new(GetVersionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FileSyncServer).GetVersion(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetVersion"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FileSyncServer).GetVersion(ctx, req.(*GetVersionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*FileSyncServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Remove", Handler: removeHandler},
		{MethodName: "Rename", Handler: renameHandler},
		{MethodName: "GetVersion", Handler: getVersionHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Write", Handler: writeHandler, ClientStreams: true},
		{StreamName: "Read", Handler: readHandler, ServerStreams: true},
	},
	Metadata: "filesync",
}
