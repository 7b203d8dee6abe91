package bind_group_provider

// BufferWrite describes a single GPU buffer write operation targeting an owned buffer
// of a BindGroupProvider at a given byte offset.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  uint32
	Offset   uint64
	Data     []byte
}
