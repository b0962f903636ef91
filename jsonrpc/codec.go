package jsonrpc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Framing selects how messages are delimited on a byte stream.
type Framing string

const (
	// FramingHeader uses a Content-Length header block before each message, as in LSP.
	FramingHeader Framing = "header"
	// FramingLine writes one JSON document per line, as in MCP over stdio.
	FramingLine Framing = "line"
)

// Codec reads and writes whole messages on a stream. Write may be called from several
// goroutines; Read must only be called from one. Read returns io.EOF when the peer closes
// the stream between messages.
type Codec interface {
	Write(m Message) error
	Read() (Message, error)
	Close() error
}

// NewCodec returns a codec for the given framing. Close closes w, and also r if it is an
// io.Closer.
func NewCodec(framing Framing, r io.Reader, w io.Writer) (Codec, error) {
	base := newStreamCodec(r, w)
	switch framing {
	case FramingHeader:
		return &headerCodec{streamCodec: base}, nil
	case FramingLine:
		return &lineCodec{streamCodec: base}, nil
	default:
		return nil, fmt.Errorf("unknown framing %q", framing)
	}
}

type streamCodec struct {
	reader    *bufio.Reader
	rawReader io.Reader
	writer    io.Writer
	writeLock sync.Mutex
	closed    bool
}

func newStreamCodec(r io.Reader, w io.Writer) *streamCodec {
	return &streamCodec{reader: bufio.NewReader(r), rawReader: r, writer: w}
}

func (s *streamCodec) writeFrame(frame ...[]byte) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	if s.closed {
		return &TransportError{Op: "write", Err: ErrClosed}
	}
	for _, part := range frame {
		if _, err := s.writer.Write(part); err != nil {
			return &TransportError{Op: "write", Err: err}
		}
	}
	return nil
}

func (s *streamCodec) Close() error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if c, ok := s.writer.(io.Closer); ok {
		err = c.Close()
	}
	if c, ok := s.rawReader.(io.Closer); ok {
		if rerr := c.Close(); err == nil {
			err = rerr
		}
	}
	return err
}

// readError classifies an error from the underlying reader. A closed pipe is treated like a
// clean end of stream.
func readError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
		return io.EOF
	}
	return &TransportError{Op: "read", Err: err}
}
