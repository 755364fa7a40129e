package pose

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgpack = "application/msgpack"
)

var ErrUnsupportedContentType = errors.New("unsupported content type")

// DecodeResult parses one frame result. An empty content type is treated as
// JSON. Browsers sending raw frames usually prefer msgpack since the image
// bytes travel without base64.
func DecodeResult(contentType string, body []byte) (*Result, error) {
	mediaType := ContentTypeJSON
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return nil, fmt.Errorf("parsing content type %q: %w", contentType, err)
		}
		mediaType = mt
	}

	var result Result
	switch mediaType {
	case ContentTypeJSON:
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("decoding json result: %w", err)
		}
	case ContentTypeMsgpack, "application/x-msgpack":
		if err := msgpack.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("decoding msgpack result: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, mediaType)
	}
	return &result, nil
}

// EncodeResult is the inverse of DecodeResult.
func EncodeResult(contentType string, r *Result) ([]byte, error) {
	switch contentType {
	case "", ContentTypeJSON:
		return json.Marshal(r)
	case ContentTypeMsgpack, "application/x-msgpack":
		return msgpack.Marshal(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}
}
