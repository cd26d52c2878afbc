package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"watering_notification_bot/internal/domain/classifier"
	"watering_notification_bot/internal/domain/notification"
	"watering_notification_bot/internal/domain/plant"
	"watering_notification_bot/internal/domain/planting"
	"watering_notification_bot/internal/domain/sensor"
	"watering_notification_bot/internal/domain/user"
	idb "watering_notification_bot/internal/infra/database"
)

type fakeLedger struct {
	mu        sync.Mutex
	records   []*notification.Record
	nextID    int64
	recordErr error
	readErr   error
}

func (l *fakeLedger) Record(_ context.Context, rec *notification.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recordErr != nil {
		return l.recordErr
	}
	l.nextID++
	rec.ID = l.nextID
	rec.IsLatest = true
	cp := *rec
	l.records = append(l.records, &cp)
	return nil
}

func (l *fakeLedger) sorted(match func(*notification.Record) bool) []*notification.Record {
	out := make([]*notification.Record, 0)
	for _, r := range l.records {
		if match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].SentAt.After(out[j].SentAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (l *fakeLedger) Latest(_ context.Context, userID string, plantID int64, t notification.Type) (*notification.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return nil, l.readErr
	}
	recs := l.sorted(func(r *notification.Record) bool {
		return r.UserID == userID && r.PlantID == plantID && r.Type == t
	})
	if len(recs) == 0 {
		return nil, idb.ErrNotificationNotFound
	}
	return recs[0], nil
}

func (l *fakeLedger) LatestAny(_ context.Context, userID string, plantID int64) (*notification.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return nil, l.readErr
	}
	recs := l.sorted(func(r *notification.Record) bool { return r.UserID == userID && r.PlantID == plantID })
	if len(recs) == 0 {
		return nil, idb.ErrNotificationNotFound
	}
	return recs[0], nil
}

func (l *fakeLedger) LatestAnyOnDevice(_ context.Context, userID string, plantID int64, deviceID int) (*notification.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return nil, l.readErr
	}
	recs := l.sorted(func(r *notification.Record) bool {
		return r.UserID == userID && r.PlantID == plantID && r.DeviceID.Valid && int(r.DeviceID.Int64) == deviceID
	})
	if len(recs) == 0 {
		return nil, idb.ErrNotificationNotFound
	}
	return recs[0], nil
}

func (l *fakeLedger) ListRecent(_ context.Context, userID string, plantID int64, limit int) ([]*notification.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	recs := l.sorted(func(r *notification.Record) bool { return r.UserID == userID && r.PlantID == plantID })
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (l *fakeLedger) count(t notification.Type) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.records {
		if r.Type == t {
			n++
		}
	}
	return n
}

// fakeReader returns a fixed value per channel, or err.
type fakeReader struct {
	values map[int]int
	err    error
}

func (r *fakeReader) Read(_ context.Context, channel int) (int, error) {
	if err := sensor.ValidateChannel(channel); err != nil {
		return 0, err
	}
	if r.err != nil {
		return 0, r.err
	}
	return r.values[channel], nil
}

func (r *fakeReader) Close() error { return nil }

type sentMessage struct {
	UserID string
	Text   string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *fakeSender) SendMessage(_ context.Context, userID string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{UserID: userID, Text: text})
	return nil
}

type fakeGuard struct {
	held     map[string]bool
	err      error
	released []string
}

func newFakeGuard() *fakeGuard { return &fakeGuard{held: map[string]bool{}} }

func (g *fakeGuard) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.held[key] {
		return false, nil
	}
	g.held[key] = true
	return true, nil
}

func (g *fakeGuard) Release(_ context.Context, key string) error {
	delete(g.held, key)
	g.released = append(g.released, key)
	return nil
}

type fakeUsers struct {
	users map[string]*user.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{users: map[string]*user.User{}} }

func (f *fakeUsers) GetOrCreate(_ context.Context, id string) (*user.User, error) {
	u, ok := f.users[id]
	if !ok {
		u = &user.User{ID: id, State: user.Idle{}}
		f.users[id] = u
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) ListAll(_ context.Context) ([]*user.User, error) {
	out := make([]*user.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUsers) UpdateState(_ context.Context, id string, s user.State) error {
	u, ok := f.users[id]
	if !ok {
		return idb.ErrUserNotFound
	}
	u.State = s
	return nil
}

type fakePlants struct {
	plants map[int64]*plant.Plant
}

func (f *fakePlants) GetByID(_ context.Context, id int64) (*plant.Plant, error) {
	p, ok := f.plants[id]
	if !ok {
		return nil, idb.ErrPlantNotFound
	}
	return p, nil
}

func (f *fakePlants) UpsertPlant(_ context.Context, p *plant.Plant) error {
	f.plants[p.ID] = p
	return nil
}

func (f *fakePlants) UpsertProfile(context.Context, *plant.Profile) error { return nil }

func (f *fakePlants) ListProfiles(context.Context) ([]*plant.Profile, error) {
	return nil, nil
}

type fakePlantings struct {
	items  []*planting.Planting
	nextID int64
}

func (f *fakePlantings) Register(_ context.Context, p *planting.Planting) error {
	for _, it := range f.items {
		if it.UserID == p.UserID && it.PlantID == p.PlantID && it.DeviceID == p.DeviceID {
			return idb.ErrDuplicatePlanting
		}
	}
	f.nextID++
	p.ID = f.nextID
	f.items = append(f.items, p)
	return nil
}

func (f *fakePlantings) GetByID(_ context.Context, id int64) (*planting.Planting, error) {
	for _, it := range f.items {
		if it.ID == id {
			return it, nil
		}
	}
	return nil, idb.ErrPlantingNotFound
}

func (f *fakePlantings) ListByUser(_ context.Context, userID string) ([]*planting.Planting, error) {
	out := make([]*planting.Planting, 0)
	for _, it := range f.items {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakePlantings) ListAll(_ context.Context) ([]*planting.Planting, error) {
	return f.items, nil
}

func (f *fakePlantings) Delete(_ context.Context, id int64, userID string) error {
	for i, it := range f.items {
		if it.ID == id && it.UserID == userID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return idb.ErrPlantingNotFound
}

type fakeClassifier struct {
	result *classifier.Result
	err    error
}

func (c *fakeClassifier) Classify(context.Context, []byte) (*classifier.Result, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

var errBoom = errors.New("boom")
