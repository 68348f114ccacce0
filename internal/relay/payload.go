package relay

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// decodePayload unpacks the embedded-encoding blob from an upload-file
// event. The canonical form is a data URL
// ("data:<mime>;base64,<bytes>"); a bare base64 string is accepted as
// a fallback since some clients strip the prefix. Anything that does
// not decode is a malformed payload.
func decodePayload(payload string) (blob []byte, mimeType string, err error) {
	if payload == "" {
		return nil, "", fmt.Errorf("%w: empty payload", errPayloadMalformed)
	}

	raw := payload
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 {
			return nil, "", fmt.Errorf("%w: data URL without data", errPayloadMalformed)
		}
		meta := payload[len("data:"):comma]
		raw = payload[comma+1:]

		if !strings.HasSuffix(meta, ";base64") {
			return nil, "", fmt.Errorf("%w: unsupported data URL encoding %q", errPayloadMalformed, meta)
		}
		mimeType = strings.TrimSuffix(meta, ";base64")
	}

	blob, err = base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errPayloadMalformed, err)
	}
	return blob, mimeType, nil
}
