// Package connection decides what a viewer may do in a one-to-one chat given
// the Connection record between the viewer and the peer. Everything here is
// pure; persistence lives in the backend package.
package connection

import (
	"errors"
	"time"

	"zawj-chat/internal/models"
)

var (
	ErrNotAddressee   = errors.New("only the addressee can respond to a connection request")
	ErrNotParticipant = errors.New("user is not part of this connection")
)

// State names the single active flag of an Actions value.
type State string

const (
	StateNoConnection       State = "noConnection"
	StateBlocked            State = "blocked"
	StatePendingAsRequester State = "pendingAsRequester"
	StatePendingAsAddressee State = "pendingAsAddressee"
	StateAccepted           State = "accepted"
)

// Input placeholders shown to the viewer.
const (
	PlaceholderMustRespond = "Accept the request to reply…"
	PlaceholderDefault     = "Enter your message"
)

// Actions is the set of permissions derived for one viewer. Exactly one flag
// is true for every input to Derive.
type Actions struct {
	CanSend              bool `json:"canSend"`
	MustRequestFirst     bool `json:"mustRequestFirst"`
	AwaitingPeerResponse bool `json:"awaitingPeerResponse"`
	MustRespond          bool `json:"mustRespond"`
	Blocked              bool `json:"blocked"`
}

// Derive evaluates the rules in order; the first match governs.
func Derive(conn *models.Connection, viewerID, peerID string) Actions {
	if conn == nil {
		return Actions{MustRequestFirst: true}
	}

	switch conn.Status {
	case models.ConnectionBlocked, models.ConnectionDeclined:
		return Actions{Blocked: true}
	case models.ConnectionPending:
		switch {
		case conn.RequesterID == viewerID && conn.AddresseeID == peerID:
			return Actions{AwaitingPeerResponse: true}
		case conn.AddresseeID == viewerID && conn.RequesterID == peerID:
			return Actions{MustRespond: true}
		}
		// A record for some other pair never grants anything.
		return Actions{Blocked: true}
	case models.ConnectionAccepted:
		if conn.HasParticipant(viewerID) && conn.HasParticipant(peerID) {
			return Actions{CanSend: true}
		}
		return Actions{Blocked: true}
	default:
		return Actions{Blocked: true}
	}
}

// BlockListed is the result when the user block list forbids the pair. The
// block list is consulted before the Connection record.
func BlockListed() Actions {
	return Actions{Blocked: true}
}

// Active returns the state of the single set flag.
func (a Actions) Active() State {
	switch {
	case a.MustRequestFirst:
		return StateNoConnection
	case a.Blocked:
		return StateBlocked
	case a.AwaitingPeerResponse:
		return StatePendingAsRequester
	case a.MustRespond:
		return StatePendingAsAddressee
	default:
		return StateAccepted
	}
}

// Count returns how many flags are set. Always 1 for values built by Derive.
func (a Actions) Count() int {
	n := 0
	for _, f := range []bool{a.CanSend, a.MustRequestFirst, a.AwaitingPeerResponse, a.MustRespond, a.Blocked} {
		if f {
			n++
		}
	}
	return n
}

// Placeholder is the input hint for the chat composer.
func (a Actions) Placeholder() string {
	if a.MustRespond {
		return PlaceholderMustRespond
	}
	return PlaceholderDefault
}

// Effect is what a send attempt turns into.
type Effect int

const (
	EffectSendMessage Effect = iota
	// The first contact is a request: a pending Connection is created and the
	// typed text is dropped.
	EffectCreateRequest
	EffectRejectBlocked
	EffectRejectAwaiting
	EffectRejectMustRespond
)

func (e Effect) String() string {
	switch e {
	case EffectSendMessage:
		return "send_message"
	case EffectCreateRequest:
		return "create_request"
	case EffectRejectBlocked:
		return "reject_blocked"
	case EffectRejectAwaiting:
		return "reject_awaiting"
	case EffectRejectMustRespond:
		return "reject_must_respond"
	default:
		return "unknown"
	}
}

func (a Actions) SendEffect() Effect {
	switch a.Active() {
	case StateNoConnection:
		return EffectCreateRequest
	case StateBlocked:
		return EffectRejectBlocked
	case StatePendingAsRequester:
		return EffectRejectAwaiting
	case StatePendingAsAddressee:
		return EffectRejectMustRespond
	default:
		return EffectSendMessage
	}
}

// NewRequest builds the pending record created by a first contact.
func NewRequest(requesterID, addresseeID string, now time.Time) *models.Connection {
	return &models.Connection{
		PairKey:     models.PairKey(requesterID, addresseeID),
		RequesterID: requesterID,
		AddresseeID: addresseeID,
		Status:      models.ConnectionPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Accept moves a pending request to accepted. It reports false and leaves the
// record untouched when the request is no longer pending.
func Accept(conn *models.Connection, by string, now time.Time) (bool, error) {
	return respond(conn, by, models.ConnectionAccepted, now)
}

// Decline moves a pending request to declined, with the same rules as Accept.
func Decline(conn *models.Connection, by string, now time.Time) (bool, error) {
	return respond(conn, by, models.ConnectionDeclined, now)
}

func respond(conn *models.Connection, by string, to models.ConnectionStatus, now time.Time) (bool, error) {
	if conn == nil || conn.Status != models.ConnectionPending {
		return false, nil
	}
	if conn.AddresseeID != by {
		return false, ErrNotAddressee
	}
	conn.Status = to
	conn.UpdatedAt = now
	conn.RespondedAt = &now
	return true, nil
}

// Block lets either participant block the other at any time.
func Block(conn *models.Connection, by string, now time.Time) (bool, error) {
	if conn == nil {
		return false, nil
	}
	if !conn.HasParticipant(by) {
		return false, ErrNotParticipant
	}
	if conn.Status == models.ConnectionBlocked {
		return false, nil
	}
	conn.Status = models.ConnectionBlocked
	conn.UpdatedAt = now
	return true, nil
}

// RespondableFrom lists the statuses a response may be applied to.
func RespondableFrom() []models.ConnectionStatus {
	return []models.ConnectionStatus{models.ConnectionPending}
}

// BlockableFrom lists the statuses a block may be applied to.
func BlockableFrom() []models.ConnectionStatus {
	return []models.ConnectionStatus{models.ConnectionPending, models.ConnectionAccepted, models.ConnectionDeclined}
}
