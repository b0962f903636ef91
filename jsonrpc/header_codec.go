package jsonrpc

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	maxHeaderLines = 32
	maxFrameSize   = 32 * 1024 * 1024
)

type headerCodec struct {
	*streamCodec
}

func (c *headerCodec) Write(m Message) error {
	body := m.Encode()
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	return c.writeFrame([]byte(header), body)
}

func (c *headerCodec) Read() (Message, error) {
	contentLength := -1
	headerLines := 0
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			if errors.Is(readError(err), io.EOF) {
				if headerLines == 0 && strings.TrimSpace(line) == "" {
					return Message{}, io.EOF
				}
				return Message{}, &ProtocolError{Reason: "stream ended inside a header block"}
			}
			return Message{}, readError(err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if headerLines == 0 {
				continue // tolerate stray blank lines between frames
			}
			break
		}
		headerLines++
		if headerLines > maxHeaderLines {
			return Message{}, &ProtocolError{Reason: "header block too long"}
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return Message{}, &ProtocolError{Reason: fmt.Sprintf("malformed header line %q", line)}
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return Message{}, &ProtocolError{Reason: fmt.Sprintf("invalid Content-Length %q", strings.TrimSpace(value))}
			}
			contentLength = n
		}
	}
	if contentLength <= 0 {
		return Message{}, &ProtocolError{Reason: "missing or zero Content-Length"}
	}
	if contentLength > maxFrameSize {
		return Message{}, &ProtocolError{Reason: fmt.Sprintf("Content-Length %d exceeds limit", contentLength)}
	}
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.reader, body); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(readError(err), io.EOF) {
			return Message{}, &ProtocolError{Reason: "stream ended before the end of the message body"}
		}
		return Message{}, readError(err)
	}
	return DecodeMessage(body)
}
