package relay

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// EventSender delivers events to one connected client. Send reports
// false when the client's queue is full and the event was dropped.
type EventSender interface {
	Send(e Event) bool
}

// Session is one connected client's live relationship to at most one
// room. It maps inbound protocol events onto the lifecycle controller
// and is the only layer that knows who is asking. A session is driven
// by a single goroutine (its connection's read loop), so its room
// binding needs no locking.
type Session struct {
	id       string
	name     string
	roomCode string

	ctrl *Controller
	hub  *Hub
	out  EventSender
}

func NewSession(ctrl *Controller, hub *Hub, out EventSender) *Session {
	return &Session{
		id:   uuid.NewString(),
		ctrl: ctrl,
		hub:  hub,
		out:  out,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// HandleEvent dispatches one inbound event. Unknown types and
// undecodable payloads answer the sender with an error event; nothing
// a single session sends can tear down a room or another connection.
func (s *Session) HandleEvent(e Event) {
	switch e.Type {
	case EvtCreateRoom:
		var req createRoomReq
		if !s.decode(e.Data, &req) {
			return
		}
		s.handleCreate(req)
	case EvtJoinRoom:
		var req joinRoomReq
		if !s.decode(e.Data, &req) {
			return
		}
		s.handleJoin(req)
	case EvtUploadFile:
		var req uploadFileReq
		if !s.decode(e.Data, &req) {
			return
		}
		s.handleUpload(req)
	case EvtFileDownloaded:
		var req fileDownloadedReq
		if !s.decode(e.Data, &req) {
			return
		}
		s.handleDownloaded(req)
	case EvtLeaveRoom:
		s.leave()
	default:
		s.out.Send(newEvent(EvtError, errorEvt{Reason: "unknown event type"}))
	}
}

func (s *Session) decode(data json.RawMessage, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		s.out.Send(newEvent(EvtError, errorEvt{Reason: "malformed event payload"}))
		return false
	}
	return true
}

func (s *Session) handleCreate(req createRoomReq) {
	name := req.Name
	if name == "" {
		name = "anonymous"
	}

	code, err := s.ctrl.CreateRoom(s.id, name)
	if err != nil {
		s.out.Send(newEvent(EvtError, errorEvt{Reason: "could not create room"}))
		return
	}

	// Creating while bound elsewhere is an implicit room switch. The
	// old binding is dropped only once the new room exists, so a
	// failure above costs the session nothing.
	s.leave()
	s.name = name
	s.roomCode = code
	s.hub.Join(code, s.out)
	s.out.Send(newEvent(EvtRoomCreated, roomCreatedEvt{Code: code}))
}

func (s *Session) handleJoin(req joinRoomReq) {
	name := req.Name
	if name == "" {
		name = "anonymous"
	}

	// Join the target before touching the current binding: a mistyped
	// code answers with an error and changes nothing, it must never
	// tear the session out of a live room. The controller subscribes
	// the sender to the hub atomically with the manifest snapshot.
	files, err := s.ctrl.JoinRoom(req.Code, s.id, name, s.out)
	if err != nil {
		s.out.Send(newEvent(EvtError, errorEvt{Reason: "room not found"}))
		return
	}

	if s.roomCode != "" && s.roomCode != req.Code {
		s.leave()
	}
	s.name = name
	s.roomCode = req.Code
	if files == nil {
		files = []*File{}
	}
	s.out.Send(newEvent(EvtRoomJoined, roomJoinedEvt{Code: req.Code, Files: files}))
}

func (s *Session) handleUpload(req uploadFileReq) {
	if s.roomCode == "" {
		return // racing a disconnect; not an error
	}

	share := ShareRequest{
		RoomCode:      s.roomCode,
		SessionID:     s.id,
		SharedBy:      s.name,
		TempID:        req.TempID,
		Name:          req.Name,
		Size:          req.Size,
		DeclaredType:  req.Type,
		Provider:      req.Provider,
		Payload:       req.Payload,
		ExpiryMinutes: req.Expiry,
		BurnPolicy:    req.BurnPolicy,
		Encrypted:     req.Encrypted,
		EncryptionKey: req.EncryptionKey,
		Notify:        func(e Event) { s.out.Send(e) },
	}

	// The store call may outlive this session: a disconnect mid-upload
	// lets the file complete and reach the remaining members, so the
	// upload runs detached from the connection's lifetime.
	go s.ctrl.Share(context.Background(), share)
}

func (s *Session) handleDownloaded(req fileDownloadedReq) {
	if s.roomCode == "" {
		return
	}
	s.ctrl.ReportAccess(s.roomCode, req.FileID)
}

func (s *Session) leave() {
	if s.roomCode == "" {
		return
	}
	code := s.roomCode
	s.roomCode = ""
	s.hub.Leave(code, s.out)
	s.ctrl.LeaveRoom(code, s.id)
}

// Close handles an explicit leave-room or the implicit teardown on
// disconnect; both paths are identical.
func (s *Session) Close() {
	s.leave()
}
