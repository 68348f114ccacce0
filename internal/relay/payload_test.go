package relay

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestDecodePayload(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString([]byte("hello world"))

	cases := []struct {
		name     string
		payload  string
		wantBlob string
		wantMime string
		wantErr  bool
	}{
		{"data url", "data:text/plain;base64," + b64, "hello world", "text/plain", false},
		{"data url no mime", "data:;base64," + b64, "hello world", "", false},
		{"bare base64", b64, "hello world", "", false},
		{"empty", "", "", "", true},
		{"data url without comma", "data:text/plain;base64", "", "", true},
		{"data url not base64 encoded", "data:text/plain,hello", "", "", true},
		{"garbage base64", "!!!not-base64!!!", "", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			blob, mime, err := decodePayload(tc.payload)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, errPayloadMalformed) {
					t.Fatalf("error %v does not wrap errPayloadMalformed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodePayload failed: %v", err)
			}
			if string(blob) != tc.wantBlob {
				t.Errorf("blob = %q, want %q", blob, tc.wantBlob)
			}
			if mime != tc.wantMime {
				t.Errorf("mime = %q, want %q", mime, tc.wantMime)
			}
		})
	}
}
