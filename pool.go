package memsession

import (
	"bytes"
	"sync"
)

var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

var idBufferPool = sync.Pool{
	New: func() any {
		// 64 bytes of raw entropy: enough for 32 symbols after rejection
		// sampling in the common case.
		b := make([]byte, 64)
		return &b
	},
}

// PutBuffer wipes the buffer's content and returns it to the pool.
// Snapshot documents carry session data, so the bytes are cleared
// before the buffer can be handed out again.
func PutBuffer(buf *bytes.Buffer) {
	b := buf.Bytes()
	clear(b)
	buf.Reset()
	bufferPool.Put(buf)
}
