package relay

import (
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
)

// Room codes use an ambiguity-avoiding alphabet: no 0/O, 1/I/L pairs
// that read alike when spoken or scribbled down.
const (
	roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 6
)

// maxManifestFiles bounds a room's manifest. The 101st share evicts
// the oldest entry, FIFO, independent of burn or expiry state.
const maxManifestFiles = 100

// room is one live room: membership plus the ordered file manifest.
type room struct {
	code    string
	members map[string]string // session id -> display name
	files   []*File
}

// memberNames returns the display names, sorted for stable broadcasts.
func (r *room) memberNames() []string {
	names := make([]string, 0, len(r.members))
	for _, name := range r.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RoomRegistry owns room existence, membership and manifests. File
// records belong to their room; the registry also keeps a file-id
// index so deferred burn timers and the expiry sweep can resolve a
// file without a session attached.
type RoomRegistry struct {
	mu        sync.Mutex
	rooms     map[string]*room
	fileRooms map[string]string // file id -> room code
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:     make(map[string]*room),
		fileRooms: make(map[string]string),
	}
}

// generateCode draws a 6-char code from the restricted alphabet.
func generateCode() (string, error) {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(buf), nil
}

// Create makes a new room with the creator as its first member. Codes
// are collision-checked against the live room set and regenerated on a
// hit; the room becomes visible atomically with its empty manifest.
func (reg *RoomRegistry) Create(sessionID, name string) (string, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	var code string
	for {
		c, err := generateCode()
		if err != nil {
			return "", fmt.Errorf("room code generation: %w", err)
		}
		if _, taken := reg.rooms[c]; !taken {
			code = c
			break
		}
	}

	reg.rooms[code] = &room{
		code:    code,
		members: map[string]string{sessionID: name},
	}
	return code, nil
}

// Join adds a member and returns the manifest snapshot plus the
// updated member names. Unregistered codes fail with room-not-found.
func (reg *RoomRegistry) Join(code, sessionID, name string) (files []*File, users []string, err error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[code]
	if !ok {
		return nil, nil, errRoomNotFound
	}
	r.members[sessionID] = name

	files = make([]*File, len(r.files))
	copy(files, r.files)
	return files, r.memberNames(), nil
}

// LeaveResult describes what Leave did. When the last member leaves
// the room is destroyed synchronously and every file that was in its
// manifest comes back for teardown; no room lingers empty past the
// call.
type LeaveResult struct {
	Member       bool // the session actually was in the room
	Name         string
	Destroyed    bool
	Users        []string // remaining member names, when not destroyed
	RemovedFiles []*File  // manifest contents, when destroyed
}

func (reg *RoomRegistry) Leave(code, sessionID string) LeaveResult {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[code]
	if !ok {
		return LeaveResult{}
	}
	name, member := r.members[sessionID]
	if !member {
		return LeaveResult{}
	}
	delete(r.members, sessionID)

	if len(r.members) > 0 {
		return LeaveResult{Member: true, Name: name, Users: r.memberNames()}
	}

	// Last member out: cascade. The caller purges tracker state for
	// each returned file.
	for _, f := range r.files {
		delete(reg.fileRooms, f.ID)
	}
	removed := r.files
	delete(reg.rooms, code)
	return LeaveResult{Member: true, Name: name, Destroyed: true, RemovedFiles: removed}
}

// AppendFile inserts a file into the room's manifest. If the manifest
// overflows, the oldest entry is evicted and returned so the caller
// can purge its tracker state. ok is false when the room disappeared
// while the upload was in flight.
func (reg *RoomRegistry) AppendFile(code string, f *File) (evicted *File, ok bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, exists := reg.rooms[code]
	if !exists {
		return nil, false
	}

	r.files = append(r.files, f)
	reg.fileRooms[f.ID] = code

	if len(r.files) > maxManifestFiles {
		evicted = r.files[0]
		r.files = r.files[1:]
		delete(reg.fileRooms, evicted.ID)
	}
	return evicted, true
}

// FileByID resolves a file and its room code through the index.
func (reg *RoomRegistry) FileByID(fileID string) (*File, string, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	code, ok := reg.fileRooms[fileID]
	if !ok {
		return nil, "", false
	}
	r := reg.rooms[code]
	for _, f := range r.files {
		if f.ID == fileID {
			return f, code, true
		}
	}
	return nil, "", false
}

// RemoveFile takes a file out of its room's manifest. Removing an id
// that is already gone is a no-op, which is what makes redundant burn
// triggers harmless.
func (reg *RoomRegistry) RemoveFile(fileID string) (*File, string, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	code, ok := reg.fileRooms[fileID]
	if !ok {
		return nil, "", false
	}
	r := reg.rooms[code]
	for i, f := range r.files {
		if f.ID == fileID {
			r.files = append(r.files[:i], r.files[i+1:]...)
			delete(reg.fileRooms, fileID)
			return f, code, true
		}
	}
	// Index pointed at a room that no longer holds the file; heal it.
	delete(reg.fileRooms, fileID)
	return nil, "", false
}

// RemoveExpired drops every file whose provider-declared expiry has
// passed, across all rooms, and returns the removals grouped by room
// code. Files without an ExpiresAt are never swept.
func (reg *RoomRegistry) RemoveExpired(expired func(*File) bool) map[string][]*File {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	removed := make(map[string][]*File)
	for code, r := range reg.rooms {
		kept := r.files[:0]
		for _, f := range r.files {
			if expired(f) {
				removed[code] = append(removed[code], f)
				delete(reg.fileRooms, f.ID)
				continue
			}
			kept = append(kept, f)
		}
		r.files = kept
	}
	if len(removed) == 0 {
		return nil
	}
	return removed
}

// Has reports whether a room code is live.
func (reg *RoomRegistry) Has(code string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	_, ok := reg.rooms[code]
	return ok
}

// Counts returns the live room and member totals, for health and
// metrics reporting.
func (reg *RoomRegistry) Counts() (rooms, members int) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	rooms = len(reg.rooms)
	for _, r := range reg.rooms {
		members += len(r.members)
	}
	return rooms, members
}

// ManifestLen reports the manifest size of one room; -1 when the room
// does not exist.
func (reg *RoomRegistry) ManifestLen(code string) int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[code]
	if !ok {
		return -1
	}
	return len(r.files)
}
