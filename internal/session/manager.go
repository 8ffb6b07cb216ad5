// Package session owns the session table: membership, lifecycle and grace
// periods, per-member location and route caches, and the host-controlled
// common destination. A single Manager instance serializes all mutations;
// the stream router is its only caller.
package session

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/itzfarzaan/BuddyWay/internal/shared/geo"
	"github.com/itzfarzaan/BuddyWay/internal/snapshot"
)

type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	locations map[string]map[string]Location
	routes    map[string]map[string]Route

	store      snapshot.Store
	hostGrace  time.Duration
	emptyGrace time.Duration
	now        func() time.Time

	dirty chan struct{}
}

// NewManager builds the table and loads the durable snapshot if one exists.
// Location and route caches start empty after a restart; members re-announce.
func NewManager(store snapshot.Store, hostGrace, emptyGrace time.Duration) *Manager {
	m := &Manager{
		sessions:   map[string]*Session{},
		locations:  map[string]map[string]Location{},
		routes:     map[string]map[string]Route{},
		store:      store,
		hostGrace:  hostGrace,
		emptyGrace: emptyGrace,
		now:        time.Now,
		dirty:      make(chan struct{}, 1),
	}
	m.loadSnapshot()
	return m
}

func (m *Manager) loadSnapshot() {
	if m.store == nil {
		return
	}
	data, err := m.store.Load(context.Background())
	if err != nil {
		log.Printf("session: snapshot load failed: %v", err)
		return
	}
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, &m.sessions); err != nil {
		log.Printf("session: snapshot decode failed: %v", err)
		return
	}
	log.Printf("session: loaded %d sessions from snapshot", len(m.sessions))
	metricActiveSessions.Set(float64(len(m.sessions)))
}

// markDirty is called with the lock held; the flusher picks the signal up.
func (m *Manager) markDirty() {
	select {
	case m.dirty <- struct{}{}:
	default:
	}
}

// Flush writes the session table through the snapshot store. Called by the
// flusher loop and once more on shutdown.
func (m *Manager) Flush(ctx context.Context) {
	if m.store == nil {
		return
	}
	m.mu.Lock()
	data, err := json.Marshal(m.sessions)
	count := len(m.sessions)
	m.mu.Unlock()
	if err != nil {
		log.Printf("session: snapshot encode failed: %v", err)
		return
	}
	if err := m.store.Save(ctx, data); err != nil {
		metricSnapshotErrors.Inc()
		log.Printf("session: snapshot save failed: %v", err)
		return
	}
	metricSnapshotWrites.Inc()
	log.Printf("session: saved %d sessions to snapshot", count)
}

// RunFlusher debounces snapshot writes off the event hot path. It flushes at
// most once per interval and always once more when ctx is cancelled.
func (m *Manager) RunFlusher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Flush(context.Background())
			return
		case <-ticker.C:
			select {
			case <-m.dirty:
				m.Flush(ctx)
			default:
			}
		}
	}
}

// CreateOrUpdateSession creates the session for an unseen code with the
// caller as sole host, or re-attaches the caller as host of an existing one.
// Host identity is last-writer-wins; the previous host's member record is
// demoted so the table never carries two isHost members. isNew tells the
// router whether to also announce a peer join.
func (m *Manager) CreateOrUpdateSession(code, hostID, name string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[code]
	if !ok {
		s = &Session{
			HostID:    hostID,
			CreatedAt: m.now(),
			Members: map[string]Member{
				hostID: {ID: hostID, Name: name, IsHost: true},
			},
		}
		m.sessions[code] = s
		log.Printf("session: created %s by %s (%s)", code, name, hostID)
		metricActiveSessions.Set(float64(len(m.sessions)))
		m.markDirty()
		return s.clone(), true
	}

	if s.ExpiresAt != nil {
		s.ExpiresAt = nil
		log.Printf("session: reactivated %s", code)
	}

	s.Members[hostID] = Member{ID: hostID, Name: name, IsHost: true}
	if s.HostID != hostID {
		if old, ok := s.Members[s.HostID]; ok {
			old.IsHost = false
			s.Members[s.HostID] = old
		}
		s.HostID = hostID
		log.Printf("session: new host for %s: %s (%s)", code, name, hostID)
	}

	m.markDirty()
	return s.clone(), false
}

// JoinSession adds a member to an existing session, reactivating it if it was
// in a grace period. Re-joining with the same id just refreshes the name.
func (m *Manager) JoinSession(code, userID, name string, isHost bool) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[code]
	if !ok {
		log.Printf("session: join rejected, %s not found", code)
		return Session{}, ErrSessionNotFound
	}

	if s.ExpiresAt != nil {
		s.ExpiresAt = nil
		log.Printf("session: reactivated %s", code)
	}

	s.Members[userID] = Member{ID: userID, Name: name, IsHost: isHost}
	log.Printf("session: %s (%s) joined %s", name, userID, code)

	m.markDirty()
	return s.clone(), nil
}

// LeaveSession removes the member and their cached location and route. An
// explicit leave gets no grace period: the last member out deletes the
// session. ok reports whether anything changed; deleted reports whether the
// session went away.
func (m *Manager) LeaveSession(code, userID string) (remaining Session, deleted, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, found := m.sessions[code]
	if !found {
		return Session{}, false, false
	}
	if _, found = s.Members[userID]; !found {
		return Session{}, false, false
	}

	delete(s.Members, userID)
	m.dropMemberCaches(code, userID)
	log.Printf("session: %s left %s", userID, code)

	if len(s.Members) == 0 {
		m.deleteSession(code)
		log.Printf("session: deleted %s (empty)", code)
		m.markDirty()
		return Session{}, true, true
	}

	m.markDirty()
	return s.clone(), false, true
}

// EndSession deletes the session outright. Host only.
func (m *Manager) EndSession(code, hostID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[code]
	if !ok {
		return ErrSessionNotFound
	}
	if s.HostID != hostID {
		return ErrNotHost
	}

	m.deleteSession(code)
	log.Printf("session: %s ended by host", code)
	m.markDirty()
	return nil
}

// Get returns a copy of the session record.
func (m *Manager) Get(code string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[code]
	if !ok {
		return Session{}, false
	}
	return s.clone(), true
}

// UpdateLocation overwrites the member's last known position. No staleness
// check and no throttling; clients pace themselves.
func (m *Manager) UpdateLocation(code, userID string, lat, lng float64, name string) (Location, error) {
	if !geo.Valid(lat, lng) {
		return Location{}, ErrInvalidRequest
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[code]; !ok {
		return Location{}, ErrSessionNotFound
	}

	if m.locations[code] == nil {
		m.locations[code] = map[string]Location{}
	}
	loc := Location{ID: userID, Latitude: lat, Longitude: lng, Name: name}
	m.locations[code][userID] = loc
	return loc, nil
}

// SessionLocations returns a copy of every member's last known position,
// used to backfill a late joiner.
func (m *Manager) SessionLocations(code string) map[string]Location {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := m.locations[code]
	if len(stored) == 0 {
		return nil
	}
	out := make(map[string]Location, len(stored))
	for id, loc := range stored {
		out[id] = loc
	}
	return out
}

// UpdateRoute records the member's navigation intent. hasRoute=false removes
// any stored route and returns the bare marker so the router can broadcast
// the clear.
func (m *Manager) UpdateRoute(code string, route Route) (Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[code]; !ok {
		return Route{}, ErrSessionNotFound
	}

	if !route.HasRoute {
		if m.routes[code] != nil {
			delete(m.routes[code], route.UserID)
		}
		return Route{UserID: route.UserID, HasRoute: false}, nil
	}

	if m.routes[code] == nil {
		m.routes[code] = map[string]Route{}
	}
	m.routes[code][route.UserID] = route
	return route, nil
}

// SessionRoutes returns a copy of every member's stored route.
func (m *Manager) SessionRoutes(code string) map[string]Route {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := m.routes[code]
	if len(stored) == 0 {
		return nil
	}
	out := make(map[string]Route, len(stored))
	for id, r := range stored {
		out[id] = r
	}
	return out
}

// SetCommonDestination stores the shared target. Host only.
func (m *Manager) SetCommonDestination(code, hostID string, dest *LatLng, active bool) (Destination, error) {
	if code == "" || hostID == "" || dest == nil {
		return Destination{}, ErrInvalidRequest
	}
	if !geo.Valid(dest.Lat, dest.Lng) {
		return Destination{}, ErrInvalidRequest
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[code]
	if !ok {
		return Destination{}, ErrSessionNotFound
	}
	if s.HostID != hostID {
		log.Printf("session: %s is not host of %s, destination rejected", hostID, code)
		return Destination{}, ErrNotHost
	}

	d := *dest
	s.CommonDestination = &d
	s.CommonDestinationActive = active
	log.Printf("session: %s destination set to %.5f,%.5f active=%v", code, d.Lat, d.Lng, active)

	m.markDirty()
	return Destination{SessionCode: code, Destination: &d, Active: active}, nil
}

// ClearCommonDestination resets the shared target. Host only.
func (m *Manager) ClearCommonDestination(code, hostID string) (Destination, error) {
	if code == "" || hostID == "" {
		return Destination{}, ErrInvalidRequest
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[code]
	if !ok {
		return Destination{}, ErrSessionNotFound
	}
	if s.HostID != hostID {
		return Destination{}, ErrNotHost
	}

	s.CommonDestination = nil
	s.CommonDestinationActive = false

	m.markDirty()
	return Destination{SessionCode: code, Destination: nil, Active: false}, nil
}

// DeactivateCommonDestination drops the active flag without touching the
// stored target. No host check on purpose: the router only accepts the event
// from a connection that is in the room, and the toggle originates from the
// host's own UI action.
func (m *Manager) DeactivateCommonDestination(code string) error {
	if code == "" {
		return ErrInvalidRequest
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[code]
	if !ok {
		return ErrSessionNotFound
	}

	s.CommonDestinationActive = false
	m.markDirty()
	return nil
}

// HandleDisconnection removes the connection from every session it belongs
// to and applies the grace policy: a dropped host parks the session for
// hostGrace even if members remain, a drop that empties the session parks it
// for emptyGrace, and otherwise the session stays fully active. The linear
// scan is fine at the session counts this runs at.
func (m *Manager) HandleDisconnection(userID string) []Disconnected {
	m.mu.Lock()
	defer m.mu.Unlock()

	var affected []Disconnected
	for code, s := range m.sessions {
		member, ok := s.Members[userID]
		if !ok {
			continue
		}

		wasHost := s.HostID == userID
		delete(s.Members, userID)
		m.dropMemberCaches(code, userID)
		log.Printf("session: %s (%s) disconnected from %s", member.Name, userID, code)

		if wasHost {
			exp := m.now().Add(m.hostGrace)
			s.ExpiresAt = &exp
			log.Printf("session: host gone, %s preserved until %s", code, exp.Format(time.RFC3339))
		} else if len(s.Members) == 0 {
			exp := m.now().Add(m.emptyGrace)
			s.ExpiresAt = &exp
			log.Printf("session: empty, %s preserved until %s", code, exp.Format(time.RFC3339))
		}

		affected = append(affected, Disconnected{SessionCode: code, UserName: member.Name, WasHost: wasHost})
	}

	if len(affected) > 0 {
		m.markDirty()
	}
	return affected
}

// CleanupExpired deletes every session whose grace period has elapsed,
// caches included. Safe against sessions already removed by a racing leave
// or end; both paths just find nothing to do.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cleaned := 0
	for code, s := range m.sessions {
		if s.ExpiresAt != nil && !s.ExpiresAt.After(now) {
			m.deleteSession(code)
			cleaned++
			log.Printf("session: expired %s", code)
		}
	}

	if cleaned > 0 {
		metricExpiredSessions.Add(float64(cleaned))
		m.markDirty()
	}
	return cleaned
}

// RunSweeper drives CleanupExpired on a fixed interval until ctx ends.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupExpired()
		}
	}
}

// deleteSession and dropMemberCaches are called with the lock held.
func (m *Manager) deleteSession(code string) {
	delete(m.sessions, code)
	delete(m.locations, code)
	delete(m.routes, code)
	metricActiveSessions.Set(float64(len(m.sessions)))
}

func (m *Manager) dropMemberCaches(code, userID string) {
	if m.locations[code] != nil {
		delete(m.locations[code], userID)
	}
	if m.routes[code] != nil {
		delete(m.routes[code], userID)
	}
}
