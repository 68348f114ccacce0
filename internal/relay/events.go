package relay

import (
	"encoding/json"
	"time"
)

// Event is the unit of the session protocol: a type tag plus a
// type-specific JSON payload, exchanged over a persistent connection.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound event types.
const (
	EvtCreateRoom     = "create-room"
	EvtJoinRoom       = "join-room"
	EvtUploadFile     = "upload-file"
	EvtFileDownloaded = "file-downloaded"
	EvtLeaveRoom      = "leave-room"
)

// Outbound event types.
const (
	EvtRoomCreated    = "room-created"
	EvtRoomJoined     = "room-joined"
	EvtError          = "error"
	EvtUsersUpdate    = "users-update"
	EvtUserJoined     = "user-joined"
	EvtUploadProgress = "upload-progress"
	EvtFileShared     = "file-shared"
	EvtUploadError    = "upload-error"
	EvtFileBurned     = "file-burned"
	EvtFileExpired    = "file-expired"
)

// Burn policy kinds.
const (
	BurnKindDownloads = "downloads"
	BurnKindTime      = "time"
)

// BurnPolicy destroys a shared file after a number of downloads or
// after a time window measured from the first access.
type BurnPolicy struct {
	Kind          string  `json:"kind"`
	Threshold     int     `json:"threshold,omitempty"`
	WindowMinutes float64 `json:"windowMinutes,omitempty"`
}

// Valid reports whether the policy is well formed.
func (p *BurnPolicy) Valid() bool {
	if p == nil {
		return true // no policy: never burned, only swept by provider expiry
	}
	switch p.Kind {
	case BurnKindDownloads:
		return p.Threshold > 0
	case BurnKindTime:
		return p.WindowMinutes > 0
	default:
		return false
	}
}

// Window returns the time-policy window as a duration.
func (p *BurnPolicy) Window() time.Duration {
	return time.Duration(p.WindowMinutes * float64(time.Minute))
}

// File is one entry in a room's manifest. Name, size and declared type
// are client-supplied and never verified against the actual bytes.
// Encryption fields are opaque: the relay never decrypts, it only
// carries the key material along for recipients.
type File struct {
	ID            string      `json:"id"`
	TempID        string      `json:"tempId"`
	Name          string      `json:"name"`
	Size          int64       `json:"size"`
	DeclaredType  string      `json:"type"`
	Provider      string      `json:"provider"`
	URL           string      `json:"url"`
	ExpiresAt     *time.Time  `json:"expiresAt,omitempty"`
	SharedBy      string      `json:"sharedBy"`
	SharedAt      time.Time   `json:"sharedAt"`
	BurnPolicy    *BurnPolicy `json:"burnPolicy,omitempty"`
	Encrypted     bool        `json:"encrypted,omitempty"`
	EncryptionKey string      `json:"encryptionKey,omitempty"`
}

// Inbound payloads.

type createRoomReq struct {
	Name string `json:"name"`
}

type joinRoomReq struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type uploadFileReq struct {
	TempID        string      `json:"tempId"`
	Name          string      `json:"name"`
	Size          int64       `json:"size"`
	Type          string      `json:"type"`
	Payload       string      `json:"payload"` // data-URL encoded blob
	Provider      string      `json:"provider"`
	Expiry        float64     `json:"expiry,omitempty"` // requested retention, minutes
	BurnPolicy    *BurnPolicy `json:"burnPolicy,omitempty"`
	Encrypted     bool        `json:"encrypted,omitempty"`
	EncryptionKey string      `json:"encryptionKey,omitempty"`
}

type fileDownloadedReq struct {
	FileID string `json:"fileId"`
}

// Outbound payloads.

type roomCreatedEvt struct {
	Code string `json:"code"`
}

type roomJoinedEvt struct {
	Code  string  `json:"code"`
	Files []*File `json:"files"`
}

type errorEvt struct {
	Reason string `json:"reason"`
}

type usersUpdateEvt struct {
	Users []string `json:"users"`
}

type userJoinedEvt struct {
	Name string `json:"name"`
}

type uploadProgressEvt struct {
	TempID   string `json:"tempId"`
	Progress int    `json:"progress"`
}

type uploadErrorEvt struct {
	TempID string `json:"tempId"`
	Error  string `json:"error"`
}

type fileIDEvt struct {
	FileID string `json:"fileId"`
}

// newEvent marshals payload into an Event. Marshal failures cannot
// happen for the types above, so they are swallowed into an empty
// payload rather than propagated.
func newEvent(eventType string, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		data = nil
	}
	return Event{Type: eventType, Data: data}
}
