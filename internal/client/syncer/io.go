package syncer

import (
	"fmt"

	"github.com/dmitrijs2005/memosync/internal/client/client"
)

// AttachmentReader loads the bytes of a not yet uploaded attachment from
// its LocalURI.
type AttachmentReader interface {
	ReadAttachment(localURI string) ([]byte, error)
}

// AttachmentReaderFunc adapts a plain function to AttachmentReader.
type AttachmentReaderFunc func(localURI string) ([]byte, error)

func (f AttachmentReaderFunc) ReadAttachment(localURI string) ([]byte, error) {
	return f(localURI)
}

// ContentCodec converts memo content between its local and wire forms.
type ContentCodec interface {
	Encode(content string) (string, error)
	Decode(content string) (string, error)
}

// PlainCodec sends content as is.
type PlainCodec struct{}

func (PlainCodec) Encode(content string) (string, error) { return content, nil }
func (PlainCodec) Decode(content string) (string, error) { return content, nil }

// decodeRemote returns a copy of rm with local-form content. A memo that
// cannot be decoded is rejected for this pass only.
func (e *Engine) decodeRemote(rm *client.Memo) (*client.Memo, error) {
	content, err := e.codec.Decode(rm.Content)
	if err != nil {
		return nil, fmt.Errorf("decode memo %s: %v: %w", rm.Name, err, client.ErrRejected)
	}
	out := *rm
	out.Content = content
	return &out, nil
}

func (e *Engine) encodeContent(id, content string) (string, error) {
	wire, err := e.codec.Encode(content)
	if err != nil {
		return "", fmt.Errorf("encode memo %s: %v: %w", id, err, client.ErrRejected)
	}
	return wire, nil
}
