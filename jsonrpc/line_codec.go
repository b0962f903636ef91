package jsonrpc

import (
	"bytes"
	"errors"
	"io"
)

type lineCodec struct {
	*streamCodec
}

func (c *lineCodec) Write(m Message) error {
	return c.writeFrame(m.Encode(), []byte{'\n'})
}

func (c *lineCodec) Read() (Message, error) {
	for {
		line, err := c.reader.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			if err == nil || errors.Is(readError(err), io.EOF) {
				return DecodeMessage(trimmed)
			}
		}
		if err != nil {
			return Message{}, readError(err)
		}
	}
}
