package stream

import (
	"encoding/json"

	"github.com/itzfarzaan/BuddyWay/internal/session"
)

// Inbound events.
const (
	EventCreateSession          = "create-session"
	EventJoinSession            = "join-session"
	EventLeaveSession           = "leave-session"
	EventEndSession             = "end-session"
	EventSendLocation           = "send-location"
	EventMemberHasRoute         = "member-has-route"
	EventSetCommonDestination   = "set-common-destination"
	EventClearCommonDestination = "clear-common-destination"
	EventDestinationDeactivated = "common-destination-deactivated"
)

// Outbound events.
const (
	EventConnected         = "connected"
	EventSessionMembers    = "session-members"
	EventUserJoined        = "user-joined"
	EventJoinResponse      = "session-join-response"
	EventReceiveLocation   = "receive-location"
	EventRouteUpdate       = "member-route-update"
	EventDestinationUpdate = "common-destination-update"
	EventUserDisconnected  = "user-disconnected"
	EventSessionEnded      = "session-ended"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type createSessionPayload struct {
	SessionCode string `json:"sessionCode"`
	HostID      string `json:"hostId"`
	UserName    string `json:"userName"`
}

type joinSessionPayload struct {
	SessionCode string `json:"sessionCode"`
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	IsHost      bool   `json:"isHost,omitempty"`
}

type leaveSessionPayload struct {
	SessionCode string `json:"sessionCode"`
	UserID      string `json:"userId"`
}

type endSessionPayload struct {
	SessionCode string `json:"sessionCode"`
	HostID      string `json:"hostId"`
}

type sendLocationPayload struct {
	SessionCode string  `json:"sessionCode"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Name        string  `json:"name"`
}

type memberRoutePayload struct {
	SessionCode       string          `json:"sessionCode"`
	UserID            string          `json:"userId"`
	HasRoute          bool            `json:"hasRoute"`
	StartPoint        *session.LatLng `json:"startPoint,omitempty"`
	EndPoint          *session.LatLng `json:"endPoint,omitempty"`
	UsingLiveLocation bool            `json:"usingLiveLocation,omitempty"`
	TargetUserID      string          `json:"targetUserId,omitempty"`
}

type setDestinationPayload struct {
	SessionCode string          `json:"sessionCode"`
	HostID      string          `json:"hostId"`
	Destination *session.LatLng `json:"destination"`
	Active      bool            `json:"active"`
}

type clearDestinationPayload struct {
	SessionCode string `json:"sessionCode"`
	HostID      string `json:"hostId"`
}

type deactivateDestinationPayload struct {
	SessionCode string `json:"sessionCode"`
}

type connectedPayload struct {
	ID string `json:"id"`
}

type sessionMembersPayload struct {
	SessionCode string                    `json:"sessionCode"`
	Members     map[string]session.Member `json:"members"`
}

type userJoinedPayload struct {
	SessionCode string `json:"sessionCode"`
	ID          string `json:"id"`
	Name        string `json:"name"`
}

type joinResponsePayload struct {
	Success     bool   `json:"success"`
	SessionCode string `json:"sessionCode,omitempty"`
	Message     string `json:"message,omitempty"`
}

type receiveLocationPayload struct {
	SessionCode string  `json:"sessionCode"`
	ID          string  `json:"id"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Name        string  `json:"name"`
}

type userDisconnectedPayload struct {
	ID string `json:"id"`
}

// marshalEvent frames an outbound event. Payload marshal errors cannot
// happen for our own types, so the result is used directly.
func marshalEvent(event string, data any) []byte {
	var raw json.RawMessage
	if data != nil {
		raw, _ = json.Marshal(data)
	}
	out, _ := json.Marshal(Envelope{Event: event, Data: raw})
	return out
}
