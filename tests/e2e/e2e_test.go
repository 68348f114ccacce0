//
// Emberdrop - End-to-End Test
//
// Purpose:
//   Validates the full relay flow over real websockets: two clients,
//   one room, a file shared through a 0x0.st-style paste host, the
//   download link fetched by the second client, and the single-shot
//   burn destroying the link for everyone. The paste host is a local
//   HTTP stub speaking the real protocol, so no external service is
//   touched.
//
// Usage:
//   go test -v ./tests/e2e
//
// Notes:
//   - The relay server runs in-process behind httptest; ports are
//     assigned dynamically.
//   - Event delivery is asynchronous, so every expectation reads with
//     a deadline rather than asserting immediately.

package e2e

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"emberdrop/internal/provider"
	"emberdrop/internal/relay"
)

// pasteHost is a minimal 0x0.st-compatible server: multipart POST in,
// plain-text URL out, files served back by id until deleted.
type pasteHost struct {
	mu    sync.Mutex
	files map[string][]byte
	next  int
	base  string
}

func newPasteHost() (*pasteHost, *httptest.Server) {
	ph := &pasteHost{files: make(map[string][]byte)}
	ts := httptest.NewServer(ph)
	ph.base = ts.URL
	return ph, ts
}

func (ph *pasteHost) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		content, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, "read failed", http.StatusInternalServerError)
			return
		}
		ph.mu.Lock()
		ph.next++
		id := fmt.Sprintf("f%d", ph.next)
		ph.files[id] = content
		ph.mu.Unlock()

		w.Header().Set("X-Expires", fmt.Sprintf("%d", time.Now().Add(time.Hour).UnixMilli()))
		fmt.Fprintf(w, "%s/%s\n", ph.base, id)
	case http.MethodGet:
		id := strings.TrimPrefix(r.URL.Path, "/")
		ph.mu.Lock()
		content, ok := ph.files[id]
		ph.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(content)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// wsClient wraps one websocket connection with deadline-based reads.
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, serverURL string) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(eventType string, payload any) {
	c.t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		c.t.Fatalf("marshal %s: %v", eventType, err)
	}
	e := relay.Event{Type: eventType, Data: data}
	if err := c.conn.WriteJSON(e); err != nil {
		c.t.Fatalf("write %s: %v", eventType, err)
	}
}

// waitFor reads events until one of the wanted type arrives, skipping
// everything else (progress milestones, membership updates).
func (c *wsClient) waitFor(eventType string) relay.Event {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var e relay.Event
		if err := c.conn.ReadJSON(&e); err != nil {
			c.t.Fatalf("waiting for %s: %v", eventType, err)
		}
		if e.Type == eventType {
			return e
		}
	}
}

func (c *wsClient) decode(e relay.Event, v any) {
	c.t.Helper()
	if err := json.Unmarshal(e.Data, v); err != nil {
		c.t.Fatalf("decode %s: %v", e.Type, err)
	}
}

type roomReply struct {
	Code  string `json:"code"`
	Files []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"files"`
}

type sharedFile struct {
	ID       string `json:"id"`
	TempID   string `json:"tempId"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	SharedBy string `json:"sharedBy"`
}

func TestRelaySingleShotShareFlow(t *testing.T) {
	_, paste := newPasteHost()
	defer paste.Close()

	providers := provider.NewRegistry()
	providers.Register(provider.NewNullPointer(paste.URL, nil))

	hub := relay.NewHub()
	ctrl := relay.NewController(relay.ControllerConfig{Providers: providers, Hub: hub})
	srv := relay.New(relay.Config{
		Addr:       ":0",
		Build:      relay.BuildInfo{Version: "e2e"},
		Controller: ctrl,
		Hub:        hub,
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	// Alice opens a room.
	alice := dial(t, ts.URL)
	alice.send("create-room", map[string]string{"name": "alice"})
	var created roomReply
	alice.decode(alice.waitFor("room-created"), &created)
	if len(created.Code) != 6 {
		t.Fatalf("room code = %q, want 6 chars", created.Code)
	}

	// Bob joins it and sees an empty manifest.
	bob := dial(t, ts.URL)
	bob.send("join-room", map[string]string{"name": "bob", "code": created.Code})
	var joined roomReply
	bob.decode(bob.waitFor("room-joined"), &joined)
	if len(joined.Files) != 0 {
		t.Fatalf("fresh room manifest = %+v", joined.Files)
	}
	alice.waitFor("user-joined")

	// Joining a room that never existed fails cleanly.
	stranger := dial(t, ts.URL)
	stranger.send("join-room", map[string]string{"name": "eve", "code": "000000"})
	var errReply struct {
		Reason string `json:"reason"`
	}
	stranger.decode(stranger.waitFor("error"), &errReply)
	if errReply.Reason != "room not found" {
		t.Fatalf("reason = %q", errReply.Reason)
	}

	// Alice shares a single-shot file.
	content := []byte("the launch codes")
	alice.send("upload-file", map[string]any{
		"tempId":   "tmp-1",
		"name":     "codes.txt",
		"size":     len(content),
		"type":     "text/plain",
		"provider": "nullpointer",
		"payload":  "data:text/plain;base64," + base64.StdEncoding.EncodeToString(content),
		"burnPolicy": map[string]any{
			"kind":      "downloads",
			"threshold": 1,
		},
	})

	var shared sharedFile
	bob.decode(bob.waitFor("file-shared"), &shared)
	if shared.Name != "codes.txt" || shared.SharedBy != "alice" {
		t.Fatalf("shared = %+v", shared)
	}
	if shared.URL == "" {
		t.Fatal("shared file carries no URL")
	}
	// The uploader gets the same broadcast.
	alice.waitFor("file-shared")

	// Bob fetches the link and gets the original bytes.
	resp, err := http.Get(shared.URL)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	got, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(got) != string(content) {
		t.Fatalf("downloaded %q, want %q", got, content)
	}

	// Reporting the download burns the single-shot file for everyone.
	bob.send("file-downloaded", map[string]string{"fileId": shared.ID})
	var burned struct {
		FileID string `json:"fileId"`
	}
	bob.decode(bob.waitFor("file-burned"), &burned)
	if burned.FileID != shared.ID {
		t.Fatalf("burned id = %q, want %q", burned.FileID, shared.ID)
	}
	alice.waitFor("file-burned")

	// An upload naming an unregistered provider fails for the uploader
	// only.
	alice.send("upload-file", map[string]any{
		"tempId":   "tmp-2",
		"name":     "x.txt",
		"provider": "carrier-pigeon",
		"payload":  base64.StdEncoding.EncodeToString([]byte("x")),
	})
	var upErr struct {
		TempID string `json:"tempId"`
		Error  string `json:"error"`
	}
	alice.decode(alice.waitFor("upload-error"), &upErr)
	if upErr.TempID != "tmp-2" || upErr.Error == "" {
		t.Fatalf("upload-error = %+v", upErr)
	}

	// Everyone leaves; the room and all tracker state must be gone.
	alice.send("leave-room", nil)
	bob.waitFor("users-update")
	bob.send("leave-room", nil)

	deadline := time.Now().Add(3 * time.Second)
	for {
		var health struct {
			Components map[string]struct {
				Details struct {
					Rooms   int `json:"rooms"`
					Tracked int `json:"tracked_burn_states"`
				} `json:"details"`
			} `json:"components"`
		}
		hr, err := http.Get(ts.URL + "/health")
		if err != nil {
			t.Fatalf("GET /health: %v", err)
		}
		err = json.NewDecoder(hr.Body).Decode(&health)
		hr.Body.Close()
		if err != nil {
			t.Fatalf("decode health: %v", err)
		}
		d := health.Components["relay"].Details
		if d.Rooms == 0 && d.Tracked == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("relay state lingered after teardown: %+v", d)
		}
		time.Sleep(20 * time.Millisecond)
	}

	// A late join against the destroyed room's code fails.
	late := dial(t, ts.URL)
	late.send("join-room", map[string]string{"name": "carol", "code": created.Code})
	late.decode(late.waitFor("error"), &errReply)
	if errReply.Reason != "room not found" {
		t.Fatalf("late join reason = %q", errReply.Reason)
	}
}
