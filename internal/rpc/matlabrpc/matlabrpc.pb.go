// Package matlabrpc holds the wire messages of the remote session protocol.
// The structs are kept in sync with matlabrpc.proto by hand until codegen is
// wired into the build; the struct tags carry the field numbers gogo/protobuf
// marshals by.
package matlabrpc

import (
	proto "github.com/gogo/protobuf/proto"
)

// Task kinds carried in TaskRequest.Op.
const (
	OpPing    = "ping"
	OpSnippet = "snippet"
	OpPlot    = "plot"
)

// TaskRequest is one task submission to a remote session server.
type TaskRequest struct {
	Registry  string `protobuf:"bytes,1,opt,name=registry,proto3" json:"registry,omitempty"`
	Op        string `protobuf:"bytes,2,opt,name=op,proto3" json:"op,omitempty"`
	TableType string `protobuf:"bytes,3,opt,name=table_type,json=tableType,proto3" json:"table_type,omitempty"`
	Snippet   string `protobuf:"bytes,4,opt,name=snippet,proto3" json:"snippet,omitempty"`
	Dump      []byte `protobuf:"bytes,5,opt,name=dump,proto3" json:"dump,omitempty"`
	Width     int32  `protobuf:"varint,6,opt,name=width,proto3" json:"width,omitempty"`
	Height    int32  `protobuf:"varint,7,opt,name=height,proto3" json:"height,omitempty"`
}

func (m *TaskRequest) Reset()         { *m = TaskRequest{} }
func (m *TaskRequest) String() string { return proto.CompactTextString(m) }
func (*TaskRequest) ProtoMessage()    {}

// TaskResponse carries the task result or the fault that prevented it.
type TaskResponse struct {
	Error string `protobuf:"bytes,1,opt,name=error,proto3" json:"error,omitempty"`
	Dump  []byte `protobuf:"bytes,2,opt,name=dump,proto3" json:"dump,omitempty"`
	Plot  []byte `protobuf:"bytes,3,opt,name=plot,proto3" json:"plot,omitempty"`
}

func (m *TaskResponse) Reset()         { *m = TaskResponse{} }
func (m *TaskResponse) String() string { return proto.CompactTextString(m) }
func (*TaskResponse) ProtoMessage()    {}

func init() {
	proto.RegisterType((*TaskRequest)(nil), "matlabrpc.TaskRequest")
	proto.RegisterType((*TaskResponse)(nil), "matlabrpc.TaskResponse")
}
