package relay

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"emberdrop/internal/history"
	"emberdrop/internal/provider"
)

// Broadcaster fans an event out to every member of a room and tracks
// which senders a room delivers to.
type Broadcaster interface {
	Broadcast(roomCode string, e Event)
	Join(roomCode string, s EventSender)
}

// Upload progress milestones relayed to the uploader while the file is
// still invisible to the room.
const (
	progressAccepted = 10
	progressStoring  = 40
	progressStored   = 80
	progressDone     = 100
)

// historyTimeout bounds each best-effort share-log write.
const historyTimeout = 5 * time.Second

// ControllerConfig wires the lifecycle controller's collaborators.
type ControllerConfig struct {
	Rooms     *RoomRegistry
	Burns     *BurnTracker
	Providers *provider.Registry
	Hub       Broadcaster

	// History is the optional share log; nil disables it.
	History *history.Store
}

// Controller orchestrates the life of a shared file:
// Uploading -> Shared -> one of Burned, Expired or Evicted. All three
// endings are terminal, mutually exclusive, and leave neither a
// manifest entry nor tracker state behind.
//
// All room, manifest and tracker transitions run under one mutex: a
// single logical mutation stream, so broadcasts for a room are
// observed in the order the events were applied. The only suspension
// point, the provider store call, runs outside the lock; an in-flight
// upload never blocks membership changes or burn evaluations, and its
// file stays invisible to leave and overflow logic until it is Shared.
type Controller struct {
	mu        sync.Mutex
	rooms     *RoomRegistry
	burns     *BurnTracker
	providers *provider.Registry
	hub       Broadcaster
	history   *history.Store
}

func NewController(cfg ControllerConfig) *Controller {
	if cfg.Rooms == nil {
		cfg.Rooms = NewRoomRegistry()
	}
	if cfg.Burns == nil {
		cfg.Burns = NewBurnTracker()
	}
	return &Controller{
		rooms:     cfg.Rooms,
		burns:     cfg.Burns,
		providers: cfg.Providers,
		hub:       cfg.Hub,
		history:   cfg.History,
	}
}

// Rooms exposes the registry for health and readiness reporting.
func (c *Controller) Rooms() *RoomRegistry { return c.rooms }

// Burns exposes the tracker; tests use it to check for leaked state.
func (c *Controller) Burns() *BurnTracker { return c.burns }

// CreateRoom makes a room with the creator as first member.
func (c *Controller) CreateRoom(sessionID, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	code, err := c.rooms.Create(sessionID, name)
	if err != nil {
		return "", err
	}
	GetMetrics().RecordRoomCreated()
	Info("room created", map[string]any{"room": code})
	return code, nil
}

// JoinRoom adds a member, broadcasts the membership change and returns
// the manifest snapshot for the room-joined reply. The joiner's sender
// is subscribed to the hub in the same critical section that takes the
// snapshot, so every broadcast after the snapshot reaches the new
// member: a racing share lands either in the snapshot or in the
// member's delivery stream, never between.
func (c *Controller) JoinRoom(code, sessionID, name string, sub EventSender) ([]*File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	files, users, err := c.rooms.Join(code, sessionID, name)
	if err != nil {
		return nil, err
	}
	GetMetrics().RecordJoin()
	c.hub.Broadcast(code, newEvent(EvtUserJoined, userJoinedEvt{Name: name}))
	c.hub.Broadcast(code, newEvent(EvtUsersUpdate, usersUpdateEvt{Users: users}))
	if sub != nil {
		c.hub.Join(code, sub)
	}
	return files, nil
}

// LeaveRoom removes a member. Emptying the room destroys it in the
// same call: every manifest file is torn down and its tracker state
// purged before control returns, so no empty room ever lingers.
func (c *Controller) LeaveRoom(code, sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := c.rooms.Leave(code, sessionID)
	if !res.Member {
		return
	}
	GetMetrics().RecordLeave()

	if !res.Destroyed {
		c.hub.Broadcast(code, newEvent(EvtUsersUpdate, usersUpdateEvt{Users: res.Users}))
		return
	}

	for _, f := range res.RemovedFiles {
		c.burns.Purge(f.ID)
		GetMetrics().RecordEviction()
		c.record(history.KindEvicted, code, f)
	}
	Info("room destroyed", map[string]any{"room": code, "files": len(res.RemovedFiles)})
}

// ShareRequest carries one upload-file event into the controller.
// Notify delivers uploader-only messages (progress, upload errors);
// everything room-visible goes through the Broadcaster.
type ShareRequest struct {
	RoomCode      string
	SessionID     string
	SharedBy      string
	TempID        string
	Name          string
	Size          int64
	DeclaredType  string
	Provider      string
	Payload       string
	ExpiryMinutes float64
	BurnPolicy    *BurnPolicy
	Encrypted     bool
	EncryptionKey string
	Notify        func(Event)
}

func (req *ShareRequest) notify(e Event) {
	if req.Notify != nil {
		req.Notify(e)
	}
}

func (req *ShareRequest) fail(msg string) {
	req.notify(newEvent(EvtUploadError, uploadErrorEvt{TempID: req.TempID, Error: msg}))
	GetMetrics().RecordUploadError()
}

// Share drives Uploading -> Shared. Validation and the provider call
// happen before the file exists anywhere; only a successful store
// inserts it into the manifest and broadcasts it. Failures are
// reported to the uploader alone and produce no broadcast. If the room
// died while the store was in flight there is nobody to tell, so the
// result is dropped.
func (c *Controller) Share(ctx context.Context, req ShareRequest) {
	// Provider selection is a configuration problem, caught before any
	// payload work or network traffic.
	p, err := c.providers.Lookup(req.Provider)
	if err != nil {
		req.fail(err.Error())
		return
	}

	blob, payloadMime, err := decodePayload(req.Payload)
	if err != nil {
		req.fail(errPayloadMalformed.Error())
		return
	}

	if !req.BurnPolicy.Valid() {
		req.fail(errBadBurnPolicy.Error())
		return
	}

	mimeType := req.DeclaredType
	if mimeType == "" {
		mimeType = payloadMime
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	req.notify(newEvent(EvtUploadProgress, uploadProgressEvt{TempID: req.TempID, Progress: progressAccepted}))
	req.notify(newEvent(EvtUploadProgress, uploadProgressEvt{TempID: req.TempID, Progress: progressStoring}))

	// The one suspension point. No lock is held here: other uploads,
	// membership changes and burn evaluations proceed concurrently.
	start := time.Now()
	obj, err := p.Store(ctx, blob, req.Name, mimeType, provider.StoreOptions{
		Expiry: time.Duration(req.ExpiryMinutes * float64(time.Minute)),
	})
	if err != nil {
		Error("provider store failed", map[string]any{
			"room":     req.RoomCode,
			"provider": req.Provider,
			"name":     req.Name,
		}, err)
		req.fail(err.Error())
		return
	}

	req.notify(newEvent(EvtUploadProgress, uploadProgressEvt{TempID: req.TempID, Progress: progressStored}))

	f := &File{
		ID:            uuid.NewString(),
		TempID:        req.TempID,
		Name:          req.Name,
		Size:          req.Size,
		DeclaredType:  req.DeclaredType,
		Provider:      p.Name(),
		URL:           obj.URL,
		ExpiresAt:     obj.ExpiresAt,
		SharedBy:      req.SharedBy,
		SharedAt:      time.Now().UTC(),
		BurnPolicy:    req.BurnPolicy,
		Encrypted:     req.Encrypted,
		EncryptionKey: req.EncryptionKey,
	}

	c.mu.Lock()
	evicted, ok := c.rooms.AppendFile(req.RoomCode, f)
	if !ok {
		c.mu.Unlock()
		// Room torn down mid-upload; silent drop.
		Info("share dropped, room gone", map[string]any{"room": req.RoomCode, "name": req.Name})
		return
	}
	if evicted != nil {
		c.burns.Purge(evicted.ID)
		GetMetrics().RecordEviction()
		c.record(history.KindEvicted, req.RoomCode, evicted)
	}
	req.notify(newEvent(EvtUploadProgress, uploadProgressEvt{TempID: req.TempID, Progress: progressDone}))
	c.hub.Broadcast(req.RoomCode, newEvent(EvtFileShared, f))
	c.mu.Unlock()

	GetMetrics().RecordUpload(int64(len(blob)), time.Since(start))
	c.record(history.KindShared, req.RoomCode, f)
}

// ReportAccess handles one "file accessed" signal from a member of
// roomCode. The access is counted, the first access arms the
// time-policy check, and the burn predicate is evaluated and acted on
// atomically: a file past its threshold is removed in the same
// critical section that observed it. Reports for files outside the
// reporter's room are dropped: only a file's own room may tick its
// counters.
func (c *Controller) ReportAccess(roomCode, fileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, room, ok := c.rooms.FileByID(fileID)
	if !ok || room != roomCode {
		return // burned, swept, never existed, or a foreign room: no-op
	}
	GetMetrics().RecordAccessReport()

	state := c.burns.RecordAccess(fileID, f.BurnPolicy, func() {
		c.timeWindowElapsed(fileID)
	})
	if ShouldBurn(f.BurnPolicy, state, time.Now()) {
		c.burnLocked(fileID)
	}
}

// timeWindowElapsed is the deferred one-shot check armed on first
// access of a time-policy file. A file removed by another path first
// makes this a no-op.
func (c *Controller) timeWindowElapsed(fileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, _, ok := c.rooms.FileByID(fileID)
	if !ok {
		return
	}
	if ShouldBurn(f.BurnPolicy, c.burns.State(fileID), time.Now()) {
		c.burnLocked(fileID)
	}
}

// burnLocked performs Shared -> Burned under the controller lock:
// manifest removal, tracker purge, one burn notice to the room.
func (c *Controller) burnLocked(fileID string) {
	f, code, ok := c.rooms.RemoveFile(fileID)
	if !ok {
		return
	}
	c.burns.Purge(fileID)
	GetMetrics().RecordBurn()
	c.hub.Broadcast(code, newEvent(EvtFileBurned, fileIDEvt{FileID: fileID}))
	Info("file burned", map[string]any{"room": code, "file": fileID})
	c.record(history.KindBurned, code, f)
}

// SweepExpired performs Shared -> Expired for every file whose
// provider-declared expiry has passed. It takes the same lock as
// interactive operations, so it cannot race a concurrent
// leave-triggered teardown. Returns the number of files removed.
func (c *Controller) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := c.rooms.RemoveExpired(func(f *File) bool {
		return f.ExpiresAt != nil && f.ExpiresAt.Before(now)
	})

	count := 0
	for code, files := range removed {
		for _, f := range files {
			c.burns.Purge(f.ID)
			GetMetrics().RecordExpired()
			c.hub.Broadcast(code, newEvent(EvtFileExpired, fileIDEvt{FileID: f.ID}))
			c.record(history.KindExpired, code, f)
			count++
		}
	}
	return count
}

// record writes to the share log without blocking the mutation stream.
func (c *Controller) record(kind, roomCode string, f *File) {
	if c.history == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()
		err := c.history.Record(ctx, history.Event{
			RoomCode: roomCode,
			FileID:   f.ID,
			Provider: f.Provider,
			FileName: f.Name,
			Size:     f.Size,
			Kind:     kind,
		})
		if err != nil {
			Warn("share log write failed", map[string]any{"room": roomCode, "file": f.ID, "kind": kind})
		}
	}()
}
