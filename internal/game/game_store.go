package game

import (
	"sort"
	"sync"

	"github.com/jason-s-yu/partyroom/internal/models"
)

// RoomStore is the process-wide registry of rooms. Its lock is independent of
// every room lock; callers holding a room lock may call into the store, never
// the other way round.
type RoomStore struct {
	mu      sync.Mutex
	rooms   map[int64]*Room
	members map[string]int64
	nextID  int64
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms:   make(map[int64]*Room),
		members: make(map[string]int64),
	}
}

// Create assigns the next room id, registers the room and binds the host to
// it. It fails if the host already belongs to a room.
func (s *RoomStore) Create(host models.Host, cfg RoomConfig, m Machine) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.members[host.ID]; taken {
		return nil, ErrAlreadyInAnotherRoom
	}
	s.nextID++
	r := newRoom(s.nextID, host, cfg, m)
	s.rooms[r.ID] = r
	s.members[host.ID] = r.ID
	return r, nil
}

func (s *RoomStore) Get(id int64) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Claim binds a session to a room. Claiming the room the session already
// belongs to is a no-op.
func (s *RoomStore) Claim(sessionID string, roomID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.members[sessionID]; ok && cur != roomID {
		return ErrAlreadyInAnotherRoom
	}
	s.members[sessionID] = roomID
	return nil
}

// Release unbinds a session if it is bound to roomID.
func (s *RoomStore) Release(sessionID string, roomID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.members[sessionID]; ok && cur == roomID {
		delete(s.members, sessionID)
	}
}

// RoomOf returns the room a session belongs to.
func (s *RoomStore) RoomOf(sessionID string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.members[sessionID]
	return id, ok
}

// Remove deletes a room and every membership pointing at it.
func (s *RoomStore) Remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
	for sid, rid := range s.members {
		if rid == id {
			delete(s.members, sid)
		}
	}
}

// List returns every room ordered by id.
func (s *RoomStore) List() []*Room {
	s.mu.Lock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.Unlock()
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms
}

func (s *RoomStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
