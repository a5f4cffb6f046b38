// Package memory provides an in-memory implementation of the repository
// interfaces for tests. Reads hand out copies so mutations only stick once
// written back through Update, mirroring row semantics.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/opencourt/pairing-settlement/internal/model"
	"github.com/opencourt/pairing-settlement/internal/repository"
)

// Store holds every table in maps guarded by one mutex.
type Store struct {
	mu sync.Mutex

	pairings      map[int64]*model.Pairing
	events        map[int64]*model.Event
	registrations map[int64]*model.Registration
	holds         map[int64]*model.AuthorizationHold
	ticketTypes   map[int64]*model.TicketType
	tickets       map[int64]*model.Ticket
	ledger        map[string]*model.PaymentLedgerRecord
	refunds       map[string]*model.RefundRequest
	outbox        []*model.OutboxEvent
	eventLog      []*model.EventLogEntry

	nextID int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		pairings:      make(map[int64]*model.Pairing),
		events:        make(map[int64]*model.Event),
		registrations: make(map[int64]*model.Registration),
		holds:         make(map[int64]*model.AuthorizationHold),
		ticketTypes:   make(map[int64]*model.TicketType),
		tickets:       make(map[int64]*model.Ticket),
		ledger:        make(map[string]*model.PaymentLedgerRecord),
		refunds:       make(map[string]*model.RefundRequest),
		nextID:        1000,
	}
}

// Within implements repository.UnitOfWork. The single mutex stands in for
// transaction isolation; rollback is not simulated, so handlers must keep
// their precondition checks ahead of mutation (which they do).
func (s *Store) Within(ctx context.Context, fn func(ctx context.Context, r *repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(ctx, s.repos())
}

// Repos returns repositories without a transaction scope, for the outbox
// publisher path.
func (s *Store) Repos() *repository.Repositories {
	return s.repos()
}

func (s *Store) repos() *repository.Repositories {
	return &repository.Repositories{
		Pairings:      (*pairingRepo)(s),
		Events:        (*eventRepo)(s),
		Registrations: (*registrationRepo)(s),
		Holds:         (*holdRepo)(s),
		Tickets:       (*ticketRepo)(s),
		Ledger:        (*ledgerRepo)(s),
		Outbox:        (*outboxRepo)(s),
		EventLog:      (*eventLogRepo)(s),
		Refunds:       (*refundRepo)(s),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func clonePairing(p *model.Pairing) *model.Pairing {
	cp := *p
	cp.Slots = make([]*model.Slot, len(p.Slots))

	for i, slot := range p.Slots {
		c := *slot
		cp.Slots[i] = &c
	}

	return &cp
}

// --- seeding helpers ---

// PutPairing stores a pairing (and assigns slot ids if missing).
func (s *Store) PutPairing(p *model.Pairing) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == 0 {
		p.ID = s.id()
	}

	for _, slot := range p.Slots {
		if slot.ID == 0 {
			slot.ID = s.id()
		}

		slot.PairingID = p.ID
	}

	s.pairings[p.ID] = clonePairing(p)
}

// PutEvent stores an event snapshot.
func (s *Store) PutEvent(ev *model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == 0 {
		ev.ID = s.id()
	}

	c := *ev
	s.events[ev.ID] = &c
}

// PutRegistration stores a registration.
func (s *Store) PutRegistration(reg *model.Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reg.ID == 0 {
		reg.ID = s.id()
	}

	c := *reg
	s.registrations[reg.ID] = &c
}

// PutHold stores an authorization hold.
func (s *Store) PutHold(h *model.AuthorizationHold) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ID == 0 {
		h.ID = s.id()
	}

	c := *h
	s.holds[h.PairingID] = &c
}

// PutTicketType stores a ticket type.
func (s *Store) PutTicketType(tt *model.TicketType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tt.ID == 0 {
		tt.ID = s.id()
	}

	c := *tt
	s.ticketTypes[tt.ID] = &c
}

// --- snapshot helpers for assertions ---

// Pairing returns a copy of the stored pairing.
func (s *Store) Pairing(id int64) *model.Pairing {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pairings[id]
	if !ok {
		return nil
	}

	return clonePairing(p)
}

// Registration returns a copy of the stored registration.
func (s *Store) Registration(id int64) *model.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registrations[id]
	if !ok {
		return nil
	}

	c := *reg

	return &c
}

// Hold returns a copy of the hold for a pairing.
func (s *Store) Hold(pairingID int64) *model.AuthorizationHold {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holds[pairingID]
	if !ok {
		return nil
	}

	c := *h

	return &c
}

// TicketType returns a copy of the stored ticket type.
func (s *Store) TicketType(id int64) *model.TicketType {
	s.mu.Lock()
	defer s.mu.Unlock()

	tt, ok := s.ticketTypes[id]
	if !ok {
		return nil
	}

	c := *tt

	return &c
}

// Tickets returns copies of all issued tickets.
func (s *Store) Tickets() []*model.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Ticket, 0, len(s.tickets))

	for _, t := range s.tickets {
		c := *t
		out = append(out, &c)
	}

	return out
}

// Ledger returns a copy of the ledger record for an intent.
func (s *Store) Ledger(intentID string) *model.PaymentLedgerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.ledger[intentID]
	if !ok {
		return nil
	}

	c := *rec

	return &c
}

// OutboxEvents returns copies of all appended outbox events.
func (s *Store) OutboxEvents() []*model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.OutboxEvent, len(s.outbox))

	for i, ev := range s.outbox {
		c := *ev
		out[i] = &c
	}

	return out
}

// EventLogEntries returns copies of all appended audit entries.
func (s *Store) EventLogEntries() []*model.EventLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.EventLogEntry, len(s.eventLog))

	for i, e := range s.eventLog {
		c := *e
		out[i] = &c
	}

	return out
}

// Refunds returns copies of all enqueued refund requests.
func (s *Store) Refunds() []*model.RefundRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.RefundRequest, 0, len(s.refunds))

	for _, r := range s.refunds {
		c := *r
		out = append(out, &c)
	}

	return out
}

// --- repository implementations ---

type pairingRepo Store

func (r *pairingRepo) Get(_ context.Context, id int64) (*model.Pairing, error) {
	p, ok := r.pairings[id]
	if !ok {
		return nil, model.ErrPairingNotFound
	}

	return clonePairing(p), nil
}

func (r *pairingRepo) Update(_ context.Context, p *model.Pairing) error {
	r.pairings[p.ID] = clonePairing(p)
	return nil
}

type eventRepo Store

func (r *eventRepo) Get(_ context.Context, id int64) (*model.Event, error) {
	ev, ok := r.events[id]
	if !ok {
		return nil, model.ErrEventNotFound
	}

	c := *ev

	return &c, nil
}

type registrationRepo Store

func (r *registrationRepo) Get(_ context.Context, id int64) (*model.Registration, error) {
	reg, ok := r.registrations[id]
	if !ok {
		return nil, model.ErrRegistrationNotFound
	}

	c := *reg

	return &c, nil
}

func (r *registrationRepo) GetByPairing(_ context.Context, pairingID int64) (*model.Registration, error) {
	for _, reg := range r.registrations {
		if reg.PairingID == pairingID {
			c := *reg
			return &c, nil
		}
	}

	return nil, model.ErrRegistrationNotFound
}

func (r *registrationRepo) Update(_ context.Context, reg *model.Registration) error {
	c := *reg
	r.registrations[reg.ID] = &c

	return nil
}

type holdRepo Store

func (r *holdRepo) GetActive(_ context.Context, pairingID int64) (*model.AuthorizationHold, error) {
	h, ok := r.holds[pairingID]
	if !ok || h.Status != model.HoldActive {
		return nil, nil
	}

	c := *h

	return &c, nil
}

func (r *holdRepo) EnsureActive(_ context.Context, pairingID int64) (*model.AuthorizationHold, error) {
	h, ok := r.holds[pairingID]
	if ok && h.Status == model.HoldActive {
		c := *h
		return &c, nil
	}

	created := &model.AuthorizationHold{ID: (*Store)(r).id(), PairingID: pairingID, Status: model.HoldActive}
	r.holds[pairingID] = created
	c := *created

	return &c, nil
}

func (r *holdRepo) Cancel(_ context.Context, pairingID int64) error {
	if h, ok := r.holds[pairingID]; ok {
		h.Status = model.HoldCancelled
	}

	return nil
}

type ticketRepo Store

func (r *ticketRepo) GetTicketType(_ context.Context, id int64) (*model.TicketType, error) {
	tt, ok := r.ticketTypes[id]
	if !ok {
		return nil, model.ErrTicketTypeNotFound
	}

	c := *tt

	return &c, nil
}

func (r *ticketRepo) Get(_ context.Context, id int64) (*model.Ticket, error) {
	t, ok := r.tickets[id]
	if !ok {
		return nil, model.ErrTicketNotFound
	}

	c := *t

	return &c, nil
}

func (r *ticketRepo) FindByIntent(_ context.Context, intentID string) (*model.Ticket, error) {
	for _, t := range r.tickets {
		if t.PaymentIntentID == intentID {
			c := *t
			return &c, nil
		}
	}

	return nil, nil
}

func (r *ticketRepo) Issue(_ context.Context, t *model.Ticket) error {
	t.ID = (*Store)(r).id()
	t.IssuedAt = time.Now()
	c := *t
	r.tickets[t.ID] = &c

	return nil
}

func (r *ticketRepo) IncrementSold(_ context.Context, ticketTypeID int64, qty int) error {
	tt, ok := r.ticketTypes[ticketTypeID]
	if !ok {
		return model.ErrTicketTypeNotFound
	}

	tt.SoldQuantity += qty

	return nil
}

type ledgerRepo Store

func (r *ledgerRepo) Get(_ context.Context, intentID string) (*model.PaymentLedgerRecord, error) {
	rec, ok := r.ledger[intentID]
	if !ok {
		return nil, nil
	}

	c := *rec

	return &c, nil
}

func (r *ledgerRepo) Insert(_ context.Context, rec *model.PaymentLedgerRecord) error {
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	c := *rec
	r.ledger[rec.IntentID] = &c

	return nil
}

func (r *ledgerRepo) Update(_ context.Context, rec *model.PaymentLedgerRecord) error {
	rec.UpdatedAt = time.Now()
	c := *rec
	r.ledger[rec.IntentID] = &c

	return nil
}

type outboxRepo Store

func (r *outboxRepo) Append(_ context.Context, ev *model.OutboxEvent) error {
	ev.ID = (*Store)(r).id()
	ev.CreatedAt = time.Now()
	c := *ev
	r.outbox = append(r.outbox, &c)

	return nil
}

func (r *outboxRepo) ListUnpublished(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	var out []*model.OutboxEvent

	for _, ev := range r.outbox {
		if ev.PublishedAt != nil {
			continue
		}

		c := *ev
		out = append(out, &c)

		if len(out) == limit {
			break
		}
	}

	return out, nil
}

func (r *outboxRepo) MarkPublished(_ context.Context, id int64) error {
	for _, ev := range r.outbox {
		if ev.ID == id {
			now := time.Now()
			ev.PublishedAt = &now
		}
	}

	return nil
}

type eventLogRepo Store

func (r *eventLogRepo) Append(_ context.Context, e *model.EventLogEntry) error {
	e.ID = (*Store)(r).id()
	e.CreatedAt = time.Now()
	c := *e
	r.eventLog = append(r.eventLog, &c)

	return nil
}

type refundRepo Store

func (r *refundRepo) Enqueue(_ context.Context, req *model.RefundRequest) error {
	if _, ok := r.refunds[req.PaymentIntentID]; ok {
		return nil
	}

	req.ID = (*Store)(r).id()
	req.RequestedAt = time.Now()
	c := *req
	r.refunds[req.PaymentIntentID] = &c

	return nil
}
