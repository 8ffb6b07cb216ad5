package session

import "time"

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Member struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}

// Session is the per-code record held in the manager's table. ExpiresAt is
// set only while the session is in a grace period waiting for a reconnect.
type Session struct {
	HostID                  string            `json:"hostId"`
	CreatedAt               time.Time         `json:"createdAt"`
	Members                 map[string]Member `json:"members"`
	CommonDestination       *LatLng           `json:"commonDestination"`
	CommonDestinationActive bool              `json:"commonDestinationActive"`
	ExpiresAt               *time.Time        `json:"expiresAt,omitempty"`
}

func (s *Session) clone() Session {
	out := *s
	out.Members = make(map[string]Member, len(s.Members))
	for id, m := range s.Members {
		out.Members[id] = m
	}
	if s.CommonDestination != nil {
		dest := *s.CommonDestination
		out.CommonDestination = &dest
	}
	if s.ExpiresAt != nil {
		exp := *s.ExpiresAt
		out.ExpiresAt = &exp
	}
	return out
}

// Location is a member's last known position. Overwritten on every update,
// never persisted: clients re-announce after a restart.
type Location struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
}

// Route is a member's last announced navigation intent. A member reporting
// hasRoute=false removes its entry.
type Route struct {
	UserID            string  `json:"userId"`
	HasRoute          bool    `json:"hasRoute"`
	StartPoint        *LatLng `json:"startPoint,omitempty"`
	EndPoint          *LatLng `json:"endPoint,omitempty"`
	UsingLiveLocation bool    `json:"usingLiveLocation,omitempty"`
	TargetUserID      string  `json:"targetUserId,omitempty"`
}

// Destination is the broadcast form of the shared target.
type Destination struct {
	SessionCode string  `json:"sessionCode"`
	Destination *LatLng `json:"destination"`
	Active      bool    `json:"active"`
}

// Disconnected describes one session a dropped connection was removed from.
type Disconnected struct {
	SessionCode string
	UserName    string
	WasHost     bool
}
