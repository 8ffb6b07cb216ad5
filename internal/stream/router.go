package stream

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/itzfarzaan/BuddyWay/internal/session"
)

// Router resolves inbound events to session operations and fans the results
// out to the right room. Every handler except join fails silently: it logs
// and returns without broadcasting. Join is the one action the user needs
// feedback on, so it answers with a structured response either way.
type Router struct {
	hub     *Hub
	manager *session.Manager
}

func NewRouter(hub *Hub, manager *session.Manager) *Router {
	return &Router{hub: hub, manager: manager}
}

// HandleMessage dispatches one framed event from a connection. Events from
// the same connection arrive in order; the manager serializes the rest.
func (r *Router) HandleMessage(c *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		metricBadEvents.Inc()
		log.Printf("stream: dropping malformed message from %s", c.ID)
		return
	}
	metricEvents.WithLabelValues(env.Event).Inc()

	switch env.Event {
	case EventCreateSession:
		r.createSession(c, env.Data)
	case EventJoinSession:
		r.joinSession(c, env.Data)
	case EventLeaveSession:
		r.leaveSession(c, env.Data)
	case EventEndSession:
		r.endSession(c, env.Data)
	case EventSendLocation:
		r.sendLocation(c, env.Data)
	case EventMemberHasRoute:
		r.memberHasRoute(c, env.Data)
	case EventSetCommonDestination:
		r.setCommonDestination(c, env.Data)
	case EventClearCommonDestination:
		r.clearCommonDestination(c, env.Data)
	case EventDestinationDeactivated:
		r.destinationDeactivated(c, env.Data)
	default:
		log.Printf("stream: unknown event %q from %s", env.Event, c.ID)
	}
}

func (r *Router) createSession(c *Client, data json.RawMessage) {
	var p createSessionPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionCode == "" || p.HostID == "" {
		log.Printf("stream: bad create-session payload from %s", c.ID)
		return
	}

	s, isNew := r.manager.CreateOrUpdateSession(p.SessionCode, p.HostID, p.UserName)
	r.hub.JoinRoom(c, p.SessionCode)

	r.hub.Broadcast(p.SessionCode, marshalEvent(EventSessionMembers, sessionMembersPayload{
		SessionCode: p.SessionCode,
		Members:     s.Members,
	}))

	if !isNew {
		r.hub.BroadcastExcept(p.SessionCode, c, marshalEvent(EventUserJoined, userJoinedPayload{
			SessionCode: p.SessionCode,
			ID:          p.HostID,
			Name:        p.UserName,
		}))

		if s.CommonDestination != nil {
			r.hub.Unicast(c, marshalEvent(EventDestinationUpdate, session.Destination{
				SessionCode: p.SessionCode,
				Destination: s.CommonDestination,
				Active:      s.CommonDestinationActive,
			}))
		}
	}
}

func (r *Router) joinSession(c *Client, data json.RawMessage) {
	var p joinSessionPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionCode == "" || p.UserID == "" {
		log.Printf("stream: bad join-session payload from %s", c.ID)
		return
	}

	s, err := r.manager.JoinSession(p.SessionCode, p.UserID, p.UserName, p.IsHost)
	if err != nil {
		r.hub.Unicast(c, marshalEvent(EventJoinResponse, joinResponsePayload{
			Success: false,
			Message: "Session not found",
		}))
		return
	}

	r.hub.JoinRoom(c, p.SessionCode)

	r.hub.Unicast(c, marshalEvent(EventJoinResponse, joinResponsePayload{
		Success:     true,
		SessionCode: p.SessionCode,
	}))

	r.hub.Broadcast(p.SessionCode, marshalEvent(EventSessionMembers, sessionMembersPayload{
		SessionCode: p.SessionCode,
		Members:     s.Members,
	}))

	r.hub.BroadcastExcept(p.SessionCode, c, marshalEvent(EventUserJoined, userJoinedPayload{
		SessionCode: p.SessionCode,
		ID:          p.UserID,
		Name:        p.UserName,
	}))

	// Backfill: everyone else's last known position and route, then the
	// common destination, so the newcomer starts in sync with the room.
	for _, loc := range r.manager.SessionLocations(p.SessionCode) {
		if loc.ID == p.UserID {
			continue
		}
		r.hub.Unicast(c, marshalEvent(EventReceiveLocation, receiveLocationPayload{
			SessionCode: p.SessionCode,
			ID:          loc.ID,
			Latitude:    loc.Latitude,
			Longitude:   loc.Longitude,
			Name:        loc.Name,
		}))
	}

	for _, route := range r.manager.SessionRoutes(p.SessionCode) {
		if route.UserID == p.UserID {
			continue
		}
		r.hub.Unicast(c, marshalEvent(EventRouteUpdate, memberRoutePayload{
			SessionCode:       p.SessionCode,
			UserID:            route.UserID,
			HasRoute:          route.HasRoute,
			StartPoint:        route.StartPoint,
			EndPoint:          route.EndPoint,
			UsingLiveLocation: route.UsingLiveLocation,
			TargetUserID:      route.TargetUserID,
		}))
	}

	if s.CommonDestination != nil {
		r.hub.Unicast(c, marshalEvent(EventDestinationUpdate, session.Destination{
			SessionCode: p.SessionCode,
			Destination: s.CommonDestination,
			Active:      s.CommonDestinationActive,
		}))
	}
}

func (r *Router) leaveSession(c *Client, data json.RawMessage) {
	var p leaveSessionPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionCode == "" || p.UserID == "" {
		return
	}

	remaining, deleted, ok := r.manager.LeaveSession(p.SessionCode, p.UserID)
	if !ok {
		return
	}

	r.hub.LeaveRoom(c, p.SessionCode)

	if !deleted {
		r.hub.Broadcast(p.SessionCode, marshalEvent(EventSessionMembers, sessionMembersPayload{
			SessionCode: p.SessionCode,
			Members:     remaining.Members,
		}))
	}
}

func (r *Router) endSession(c *Client, data json.RawMessage) {
	var p endSessionPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionCode == "" {
		return
	}

	if err := r.manager.EndSession(p.SessionCode, p.HostID); err != nil {
		log.Printf("stream: end-session %s from %s rejected: %v", p.SessionCode, c.ID, err)
		return
	}

	r.hub.Broadcast(p.SessionCode, marshalEvent(EventSessionEnded, nil))
}

func (r *Router) sendLocation(c *Client, data json.RawMessage) {
	var p sendLocationPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionCode == "" {
		return
	}

	loc, err := r.manager.UpdateLocation(p.SessionCode, c.ID, p.Latitude, p.Longitude, p.Name)
	if err != nil {
		if !errors.Is(err, session.ErrSessionNotFound) {
			log.Printf("stream: send-location %s from %s rejected: %v", p.SessionCode, c.ID, err)
		}
		return
	}

	r.hub.BroadcastExcept(p.SessionCode, c, marshalEvent(EventReceiveLocation, receiveLocationPayload{
		SessionCode: p.SessionCode,
		ID:          loc.ID,
		Latitude:    loc.Latitude,
		Longitude:   loc.Longitude,
		Name:        loc.Name,
	}))
}

func (r *Router) memberHasRoute(c *Client, data json.RawMessage) {
	var p memberRoutePayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionCode == "" || p.UserID == "" {
		return
	}

	route, err := r.manager.UpdateRoute(p.SessionCode, session.Route{
		UserID:            p.UserID,
		HasRoute:          p.HasRoute,
		StartPoint:        p.StartPoint,
		EndPoint:          p.EndPoint,
		UsingLiveLocation: p.UsingLiveLocation,
		TargetUserID:      p.TargetUserID,
	})
	if err != nil {
		return
	}

	r.hub.Broadcast(p.SessionCode, marshalEvent(EventRouteUpdate, memberRoutePayload{
		SessionCode:       p.SessionCode,
		UserID:            route.UserID,
		HasRoute:          route.HasRoute,
		StartPoint:        route.StartPoint,
		EndPoint:          route.EndPoint,
		UsingLiveLocation: route.UsingLiveLocation,
		TargetUserID:      route.TargetUserID,
	}))
}

func (r *Router) setCommonDestination(c *Client, data json.RawMessage) {
	var p setDestinationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}

	result, err := r.manager.SetCommonDestination(p.SessionCode, p.HostID, p.Destination, p.Active)
	if err != nil {
		log.Printf("stream: set-common-destination %s from %s rejected: %v", p.SessionCode, c.ID, err)
		return
	}

	r.hub.Broadcast(p.SessionCode, marshalEvent(EventDestinationUpdate, result))
}

func (r *Router) clearCommonDestination(c *Client, data json.RawMessage) {
	var p clearDestinationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}

	result, err := r.manager.ClearCommonDestination(p.SessionCode, p.HostID)
	if err != nil {
		log.Printf("stream: clear-common-destination %s from %s rejected: %v", p.SessionCode, c.ID, err)
		return
	}

	r.hub.Broadcast(p.SessionCode, marshalEvent(EventDestinationUpdate, result))
}

func (r *Router) destinationDeactivated(c *Client, data json.RawMessage) {
	var p deactivateDestinationPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionCode == "" {
		return
	}

	// The event carries no host id on the wire, so the only gate is room
	// membership: a connection outside the session cannot toggle it.
	if !r.hub.InRoom(c, p.SessionCode) {
		log.Printf("stream: deactivate for %s from non-member %s ignored", p.SessionCode, c.ID)
		return
	}

	if err := r.manager.DeactivateCommonDestination(p.SessionCode); err != nil {
		log.Printf("stream: deactivate %s failed: %v", p.SessionCode, err)
	}
}

// HandleDisconnect cascades a dropped connection: the member leaves every
// session, peers get told, and the grace-period policy decides whether each
// session is parked or stays active.
func (r *Router) HandleDisconnect(c *Client) {
	affected := r.manager.HandleDisconnection(c.ID)

	for _, a := range affected {
		r.hub.Broadcast(a.SessionCode, marshalEvent(EventUserDisconnected, userDisconnectedPayload{ID: c.ID}))

		if s, ok := r.manager.Get(a.SessionCode); ok {
			r.hub.Broadcast(a.SessionCode, marshalEvent(EventSessionMembers, sessionMembersPayload{
				SessionCode: a.SessionCode,
				Members:     s.Members,
			}))
		}
	}

	r.hub.Unregister(c)
	log.Printf("stream: disconnected %s", c.ID)
}
