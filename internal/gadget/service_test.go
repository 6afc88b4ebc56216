package gadget

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// eventRecorder collects published events.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) Publish(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// testClock advances one second per call.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestService(t *testing.T) (*Service, *eventRecorder, *testClock) {
	t.Helper()
	rec := &eventRecorder{}
	clock := &testClock{t: baseTime}
	svc := NewService(NewSQLiteRepository(testDB(t)), rec, Options{
		Codes:       func() string { return "x7k2p9" },
		Probability: func() int { return 42 },
		Now:         clock.Now,
	})
	return svc, rec, clock
}

func mustCreate(t *testing.T, svc *Service, label string) *Gadget {
	t.Helper()
	g, err := svc.Create(context.Background(), "agent-1", label)
	if err != nil {
		t.Fatalf("Create(%q) error = %v", label, err)
	}
	return g
}

func ptr[T any](v T) *T { return &v }

// ─── Create / List / Get ────────────────────────────────────────────

func TestService_Create(t *testing.T) {
	svc, rec, _ := newTestService(t)

	g := mustCreate(t, svc, "  Kraken ")
	if g.Name != "The Kraken" {
		t.Errorf("Name = %q, want %q", g.Name, "The Kraken")
	}
	if g.Status != StatusAvailable {
		t.Errorf("Status = %s, want Available", g.Status)
	}
	if _, err := uuid.Parse(g.ID); err != nil {
		t.Errorf("ID %q is not a UUID", g.ID)
	}
	if g.DecommissionedAt != nil || g.DestroyedAt != nil {
		t.Error("new gadget has terminal timestamps")
	}

	events := rec.types()
	if len(events) != 1 || events[0] != EventCreated {
		t.Errorf("events = %v, want [gadget.created]", events)
	}
	if e := rec.events[0]; e.ActorID != "agent-1" || e.PreviousStatus != "" || e.GadgetID != g.ID {
		t.Errorf("created event = %+v", e)
	}
}

func TestService_CreateValidation(t *testing.T) {
	svc, rec, _ := newTestService(t)

	for _, label := range []string{"", "   ", strings.Repeat("x", DefaultMaxNameLength)} {
		_, err := svc.Create(context.Background(), "agent-1", label)
		if !IsValidationError(err) {
			t.Errorf("Create(%q) error = %v, want validation error", label, err)
		}
	}
	if len(rec.types()) != 0 {
		t.Error("rejected creates emitted events")
	}
}

func TestService_CreateDuplicate(t *testing.T) {
	svc, _, _ := newTestService(t)

	mustCreate(t, svc, "Kraken")
	if _, err := svc.Create(context.Background(), "agent-1", "Kraken"); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("Create(duplicate) error = %v, want ErrDuplicateName", err)
	}
}

func TestService_CustomPrefix(t *testing.T) {
	svc := NewService(NewSQLiteRepository(testDB(t)), nil, Options{CodenamePrefix: "Operation "})

	g, err := svc.Create(context.Background(), "", "Nightfall")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if g.Name != "Operation Nightfall" {
		t.Errorf("Name = %q", g.Name)
	}
}

func TestService_ListAnnotatesAndFilters(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a := mustCreate(t, svc, "Alpha")
	b := mustCreate(t, svc, "Bravo")
	if _, err := svc.Update(ctx, "agent-1", b.ID, Update{Status: ptr(StatusDeployed)}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	all, err := svc.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 || all[0].ID != a.ID || all[1].ID != b.ID {
		t.Fatalf("List() = %+v", all)
	}
	for _, v := range all {
		if v.MissionSuccessProbability != 42 {
			t.Errorf("MissionSuccessProbability = %d, want 42", v.MissionSuccessProbability)
		}
	}

	deployed, err := svc.List(ctx, Filter{Status: "deployed"})
	if err != nil {
		t.Fatalf("List(deployed) error = %v", err)
	}
	if len(deployed) != 1 || deployed[0].ID != b.ID {
		t.Errorf("List(deployed) = %+v", deployed)
	}

	if _, err := svc.List(ctx, Filter{Status: "Misplaced"}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("List(Misplaced) error = %v, want ErrInvalidStatus", err)
	}
}

func TestService_Get(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	g := mustCreate(t, svc, "Kraken")
	v, err := svc.Get(ctx, g.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if v.Name != "The Kraken" || v.MissionSuccessProbability != 42 {
		t.Errorf("Get() = %+v", v)
	}

	if _, err := svc.Get(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Get(ctx, "abc"); !errors.Is(err, ErrInvalidGadget) {
		t.Errorf("Get(malformed) error = %v, want ErrInvalidGadget", err)
	}
}

// ─── Update ─────────────────────────────────────────────────────────

func TestService_Update(t *testing.T) {
	svc, rec, _ := newTestService(t)
	ctx := context.Background()
	g := mustCreate(t, svc, "Kraken")

	got, err := svc.Update(ctx, "agent-2", g.ID, Update{Name: ptr("Leviathan"), Status: ptr(StatusDeployed)})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Name != "Leviathan" || got.Status != StatusDeployed {
		t.Errorf("Update() = %+v", got)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Error("UpdatedAt not advanced")
	}

	last := rec.events[len(rec.events)-1]
	if last.Type != EventUpdated || last.PreviousStatus != StatusAvailable || !last.StatusChanged() {
		t.Errorf("update event = %+v", last)
	}

	back, err := svc.Update(ctx, "agent-2", g.ID, Update{Status: ptr(Status("available"))})
	if err != nil {
		t.Fatalf("Update(back to available) error = %v", err)
	}
	if back.Status != StatusAvailable || back.Name != "Leviathan" {
		t.Errorf("Update(back) = %+v", back)
	}
}

func TestService_UpdateErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	g := mustCreate(t, svc, "Kraken")
	taken := mustCreate(t, svc, "Phoenix")

	tests := []struct {
		name    string
		id      string
		update  Update
		wantErr error
	}{
		{"empty update", g.ID, Update{}, ErrInvalidGadget},
		{"blank name", g.ID, Update{Name: ptr("  ")}, ErrInvalidGadget},
		{"unknown status", g.ID, Update{Status: ptr(Status("Lost"))}, ErrInvalidStatus},
		{"to destroyed", g.ID, Update{Status: ptr(StatusDestroyed)}, ErrInvalidTransition},
		{"to decommissioned", g.ID, Update{Status: ptr(StatusDecommissioned)}, ErrInvalidTransition},
		{"name taken", g.ID, Update{Name: ptr(taken.Name)}, ErrDuplicateName},
		{"unknown id", uuid.NewString(), Update{Name: ptr("X")}, ErrNotFound},
		{"malformed id", "123", Update{Name: ptr("X")}, ErrInvalidGadget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(ctx, "agent-1", tt.id, tt.update)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Update() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	stored, err := svc.Get(ctx, g.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Status != StatusAvailable || stored.Name != "The Kraken" {
		t.Errorf("failed updates changed the gadget: %+v", stored)
	}
}

func TestService_RenameTerminalGadget(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	g := mustCreate(t, svc, "Kraken")

	if _, err := svc.Decommission(ctx, "agent-1", g.ID); err != nil {
		t.Fatalf("Decommission() error = %v", err)
	}

	got, err := svc.Update(ctx, "agent-1", g.ID, Update{Name: ptr("Relic")})
	if err != nil {
		t.Fatalf("Update(rename) error = %v", err)
	}
	if got.Name != "Relic" || got.Status != StatusDecommissioned || got.DecommissionedAt == nil {
		t.Errorf("rename of retired gadget = %+v", got)
	}

	if _, err := svc.Update(ctx, "agent-1", g.ID, Update{Status: ptr(StatusAvailable)}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("reviving retired gadget error = %v, want ErrInvalidTransition", err)
	}
}

// ─── Decommission / SelfDestruct ────────────────────────────────────

func TestService_Decommission(t *testing.T) {
	svc, rec, _ := newTestService(t)
	ctx := context.Background()
	g := mustCreate(t, svc, "Kraken")

	got, err := svc.Decommission(ctx, "agent-1", g.ID)
	if err != nil {
		t.Fatalf("Decommission() error = %v", err)
	}
	if got.Status != StatusDecommissioned || got.DecommissionedAt == nil || got.DestroyedAt != nil {
		t.Errorf("Decommission() = %+v", got)
	}
	if !got.DecommissionedAt.Equal(got.UpdatedAt) {
		t.Errorf("DecommissionedAt = %v, UpdatedAt = %v", got.DecommissionedAt, got.UpdatedAt)
	}

	if _, err := svc.Decommission(ctx, "agent-1", g.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Decommission() error = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.SelfDestruct(ctx, "agent-1", g.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SelfDestruct(decommissioned) error = %v, want ErrInvalidTransition", err)
	}

	want := []EventType{EventCreated, EventDecommissioned}
	got2 := rec.types()
	if len(got2) != len(want) || got2[0] != want[0] || got2[1] != want[1] {
		t.Errorf("events = %v, want %v", got2, want)
	}
}

func TestService_SelfDestruct(t *testing.T) {
	svc, rec, _ := newTestService(t)
	ctx := context.Background()
	g := mustCreate(t, svc, "Kraken")
	if _, err := svc.Update(ctx, "agent-1", g.ID, Update{Status: ptr(StatusDeployed)}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	res, err := svc.SelfDestruct(ctx, "agent-1", g.ID)
	if err != nil {
		t.Fatalf("SelfDestruct() error = %v", err)
	}
	if res.ConfirmationCode != "x7k2p9" {
		t.Errorf("ConfirmationCode = %q", res.ConfirmationCode)
	}
	if res.Gadget.Status != StatusDestroyed || res.Gadget.DestroyedAt == nil || res.Gadget.DecommissionedAt != nil {
		t.Errorf("SelfDestruct() gadget = %+v", res.Gadget)
	}

	last := rec.events[len(rec.events)-1]
	if last.Type != EventDestroyed || last.PreviousStatus != StatusDeployed {
		t.Errorf("destroy event = %+v", last)
	}

	if _, err := svc.SelfDestruct(ctx, "agent-1", g.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second SelfDestruct() error = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.Decommission(ctx, "agent-1", g.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Decommission(destroyed) error = %v, want ErrInvalidTransition", err)
	}
}

func TestService_TransitionUnknownGadget(t *testing.T) {
	svc, rec, _ := newTestService(t)
	ctx := context.Background()
	id := uuid.NewString()

	if _, err := svc.Decommission(ctx, "agent-1", id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Decommission(unknown) error = %v, want ErrNotFound", err)
	}
	if _, err := svc.SelfDestruct(ctx, "agent-1", id); !errors.Is(err, ErrNotFound) {
		t.Errorf("SelfDestruct(unknown) error = %v, want ErrNotFound", err)
	}
	if len(rec.types()) != 0 {
		t.Error("failed transitions emitted events")
	}
}

func TestService_ConcurrentSelfDestruct(t *testing.T) {
	svc, _, _ := newTestService(t)
	g := mustCreate(t, svc, "Kraken")

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Go(func() {
			_, err := svc.SelfDestruct(context.Background(), "agent-1", g.ID)
			errs <- err
		})
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConcurrentUpdate):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("%d self-destructs succeeded, want exactly 1", ok)
	}
}

func TestSinks_FanOut(t *testing.T) {
	a, b := &eventRecorder{}, &eventRecorder{}
	var calls int
	sinks := Sinks{a, nil, b, EventSinkFunc(func(context.Context, Event) { calls++ })}

	sinks.Publish(context.Background(), Event{Type: EventCreated})

	if len(a.events) != 1 || len(b.events) != 1 || calls != 1 {
		t.Errorf("fan-out delivered a=%d b=%d func=%d", len(a.events), len(b.events), calls)
	}
}
