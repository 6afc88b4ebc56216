package gadget

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Logger is the logging interface used by Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Service. Zero values select the defaults.
type Options struct {
	// CodenamePrefix is prepended to labels on creation. Defaults to "The ".
	CodenamePrefix string

	// MaxNameLength bounds stored names. Defaults to DefaultMaxNameLength.
	MaxNameLength int

	Codes       CodeGenerator
	Probability ProbabilityEstimator
	Now         func() time.Time
}

// Service applies the gadget lifecycle on top of a Repository.
//
// There is no in-process locking: concurrent writers are serialised by the
// repository's version check, and the loser gets ErrConcurrentUpdate.
type Service struct {
	repo   Repository
	events EventSink
	logger Logger

	prefix  string
	maxName int
	codes   CodeGenerator
	prob    ProbabilityEstimator
	now     func() time.Time
}

// NewService creates a Service. events may be nil.
func NewService(repo Repository, events EventSink, opts Options) *Service {
	s := &Service{
		repo:    repo,
		events:  events,
		logger:  noopLogger{},
		prefix:  opts.CodenamePrefix,
		maxName: opts.MaxNameLength,
		codes:   opts.Codes,
		prob:    opts.Probability,
		now:     opts.Now,
	}
	if s.prefix == "" {
		s.prefix = "The "
	}
	if s.maxName <= 0 {
		s.maxName = DefaultMaxNameLength
	}
	if s.codes == nil {
		s.codes = RandomConfirmationCode
	}
	if s.prob == nil {
		s.prob = RandomProbability
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// Create registers a new gadget named prefix+label in status Available.
func (s *Service) Create(ctx context.Context, actorID, label string) (*Gadget, error) {
	label, err := ValidateName(label, s.maxName)
	if err != nil {
		return nil, err
	}
	name, err := ValidateName(Codename(s.prefix, label), s.maxName)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	g := &Gadget{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    StatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return nil, err
	}

	s.logger.Info("gadget created", "gadget_id", g.ID, "name", g.Name, "actor_id", actorID)
	s.emit(ctx, EventCreated, g, "", actorID)
	return g, nil
}

// List returns annotated gadgets, optionally filtered by status.
func (s *Service) List(ctx context.Context, filter Filter) ([]View, error) {
	if filter.Status != "" {
		st, err := ParseStatus(string(filter.Status))
		if err != nil {
			return nil, err
		}
		filter.Status = st
	}

	gadgets, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	views := make([]View, len(gadgets))
	for i := range gadgets {
		views[i] = s.annotate(&gadgets[i])
	}
	return views, nil
}

// Get returns one annotated gadget.
func (s *Service) Get(ctx context.Context, id string) (View, error) {
	if err := ValidateID(id); err != nil {
		return View{}, err
	}
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.annotate(g), nil
}

// Update renames a gadget and/or moves it between Available and Deployed.
//
// Renaming is allowed in every state, including terminal ones. The new
// name is stored as given, without the codename prefix.
func (s *Service) Update(ctx context.Context, actorID, id string, u Update) (*Gadget, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if u.Name == nil && u.Status == nil {
		return nil, fmt.Errorf("%w: name or status is required", ErrInvalidGadget)
	}

	var name string
	if u.Name != nil {
		var err error
		if name, err = ValidateName(*u.Name, s.maxName); err != nil {
			return nil, err
		}
	}

	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := g.Status

	if u.Status != nil {
		to, err := ParseStatus(string(*u.Status))
		if err != nil {
			return nil, err
		}
		if err := CheckStatusChange(g.Status, to); err != nil {
			return nil, err
		}
		g.Status = to
	}
	if u.Name != nil {
		g.Name = name
	}

	g.UpdatedAt = s.timestamp()
	if err := s.repo.Update(ctx, g); err != nil {
		return nil, err
	}

	s.logger.Info("gadget updated", "gadget_id", g.ID, "status", g.Status, "actor_id", actorID)
	s.emit(ctx, EventUpdated, g, previous, actorID)
	return g, nil
}

// Decommission retires a gadget. Fails with ErrInvalidTransition if it is
// already Destroyed or Decommissioned.
func (s *Service) Decommission(ctx context.Context, actorID, id string) (*Gadget, error) {
	g, previous, err := s.transition(ctx, id, decommission)
	if err != nil {
		return nil, err
	}

	s.logger.Info("gadget decommissioned", "gadget_id", g.ID, "actor_id", actorID)
	s.emit(ctx, EventDecommissioned, g, previous, actorID)
	return g, nil
}

// SelfDestruct destroys a gadget and returns a confirmation code. Fails
// with ErrInvalidTransition if it is already Destroyed or Decommissioned.
func (s *Service) SelfDestruct(ctx context.Context, actorID, id string) (*SelfDestructResult, error) {
	g, previous, err := s.transition(ctx, id, destroy)
	if err != nil {
		return nil, err
	}

	s.logger.Warn("gadget self-destructed", "gadget_id", g.ID, "actor_id", actorID)
	s.emit(ctx, EventDestroyed, g, previous, actorID)
	return &SelfDestructResult{Gadget: g, ConfirmationCode: s.codes()}, nil
}

func (s *Service) transition(ctx context.Context, id string, apply func(*Gadget, time.Time) error) (*Gadget, Status, error) {
	if err := ValidateID(id); err != nil {
		return nil, "", err
	}

	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	previous := g.Status

	now := s.timestamp()
	if err := apply(g, now); err != nil {
		return nil, "", err
	}
	g.UpdatedAt = now

	if err := s.repo.Update(ctx, g); err != nil {
		return nil, "", err
	}
	return g, previous, nil
}

func (s *Service) annotate(g *Gadget) View {
	return View{Gadget: g, MissionSuccessProbability: s.prob()}
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

func (s *Service) emit(ctx context.Context, t EventType, g *Gadget, previous Status, actorID string) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, Event{
		Type:           t,
		GadgetID:       g.ID,
		Gadget:         g.Clone(),
		PreviousStatus: previous,
		ActorID:        actorID,
		At:             g.UpdatedAt,
	})
}
