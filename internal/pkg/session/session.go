// Package session implements the unit of work that backs a request: one
// transaction, an identity map of loaded entities and a queue of pending writes
// that are validated together and committed on Flush.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/AutoClub/app/models"
	"github.com/ManuelReschke/AutoClub/internal/pkg/metrics"
	"github.com/ManuelReschke/AutoClub/internal/pkg/storeerr"
)

// ErrIdentityConflict is returned when a second instance of an already loaded
// entity is handed to the session.
var ErrIdentityConflict = errors.New("session: entity already tracked as a different instance")

// Criteria filters reads by column. Values are normalised like stored values.
type Criteria map[string]any

// Manager opens sessions on a shared connection pool.
type Manager struct {
	db        *gorm.DB
	txOptions *sql.TxOptions
}

type Option func(*Manager)

// WithTxOptions sets the isolation level and read-only flag of session transactions.
func WithTxOptions(opts *sql.TxOptions) Option {
	return func(m *Manager) {
		m.txOptions = opts
	}
}

func NewManager(db *gorm.DB, opts ...Option) *Manager {
	m := &Manager{db: db}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DB exposes the pool for work that must run outside any session, such as
// issuing membership numbers.
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Open starts a session bound to ctx. Its transaction is begun immediately so
// an unreachable store is reported here rather than on first use.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	s := &Session{
		id:        uuid.NewString(),
		ctx:       ctx,
		manager:   m,
		identity:  make(map[identityKey]models.Entity),
		snapshots: make(map[identityKey]map[string]any),
	}
	if err := s.begin(); err != nil {
		return nil, err
	}

	metrics.SessionsOpened.Inc()
	metrics.SessionsActive.Inc()
	return s, nil
}

type opKind int

const (
	opCreate opKind = iota
	opUpdate
	opDelete
)

func (k opKind) String() string {
	switch k {
	case opCreate:
		return "create"
	case opUpdate:
		return "update"
	default:
		return "delete"
	}
}

type pendingOp struct {
	kind   opKind
	key    identityKey
	entity models.Entity
}

type identityKey struct {
	typ reflect.Type
	id  string
}

func keyOf(e models.Entity) identityKey {
	return identityKey{typ: reflect.TypeOf(e).Elem(), id: e.Meta().ID}
}

// Session is not shared between requests. Its methods may be called from
// several goroutines of the same request; they are serialised internally.
type Session struct {
	mu      sync.Mutex
	id      string
	ctx     context.Context
	manager *Manager

	tx        *gorm.DB
	identity  map[identityKey]models.Entity
	snapshots map[identityKey]map[string]any
	pending   []pendingOp
	// created lists entities inserted in the current transaction; they are
	// evicted from the identity map if it rolls back.
	created []identityKey
	// undo holds what the identity map knew about a key before the current
	// transaction first wrote it; restored if the transaction rolls back.
	undo   map[identityKey]undoEntry
	closed bool
}

type undoEntry struct {
	entity   models.Entity
	snapshot map[string]any
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) logger() *zerolog.Logger {
	return zerolog.Ctx(s.ctx)
}

func (s *Session) begin() error {
	tx := s.manager.db.WithContext(s.ctx).Begin(s.txOptions()...)
	if tx.Error != nil {
		return fmt.Errorf("session: begin: %w", classifyBegin(tx.Error))
	}
	s.tx = tx
	return nil
}

func (s *Session) txOptions() []*sql.TxOptions {
	if s.manager.txOptions == nil {
		return nil
	}
	return []*sql.TxOptions{s.manager.txOptions}
}

// classifyBegin reports every failure to start a transaction as the store
// being unavailable; nothing else can go wrong before a statement runs.
func classifyBegin(err error) error {
	classified := storeerr.Classify(err)
	if errors.Is(classified, storeerr.ErrStoreUnavailable) {
		return classified
	}
	return fmt.Errorf("%w: %w", storeerr.ErrStoreUnavailable, err)
}

// activeTx returns the open transaction, starting a new one after a commit
// or rollback.
func (s *Session) activeTx() (*gorm.DB, error) {
	if s.tx == nil {
		if err := s.begin(); err != nil {
			return nil, err
		}
	}
	return s.tx, nil
}

func (s *Session) checkOpen() error {
	if s.closed {
		return storeerr.ErrSessionClosed
	}
	return nil
}

// Add schedules a new entity for insertion.
func (s *Session) Add(e models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	e.Meta().EnsureID()
	key := keyOf(e)
	if tracked, ok := s.identity[key]; ok && tracked != e {
		return fmt.Errorf("%w: %s %s", ErrIdentityConflict, key.typ.Name(), key.id)
	}
	if s.queued(e, opCreate) {
		return nil
	}

	s.identity[key] = e
	s.pending = append(s.pending, pendingOp{kind: opCreate, key: key, entity: e})
	return nil
}

// Update schedules a tracked or detached entity to be written back. A copy of
// a tracked entity is merged into the tracked instance.
func (s *Session) Update(e models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if e.Meta().ID == "" {
		return storeerr.Violation(e.TableName(), "id", "required", errors.New("update of an entity without id"))
	}

	key := keyOf(e)
	if tracked, ok := s.identity[key]; ok && tracked != e {
		// Merge the caller's copy into the tracked instance so its snapshot
		// still guards the restricted fields.
		copyEntity(tracked, e)
		e = tracked
	}
	// A pending insert already writes the latest state.
	if s.queued(e, opCreate) || s.queued(e, opUpdate) {
		return nil
	}

	s.identity[key] = e
	s.pending = append(s.pending, pendingOp{kind: opUpdate, key: key, entity: e})
	return nil
}

// Remove schedules an entity for deletion.
func (s *Session) Remove(e models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if e.Meta().ID == "" {
		return nil
	}

	key := keyOf(e)
	if tracked, ok := s.identity[key]; ok {
		e = tracked
	}
	if s.dropQueuedCreate(e) {
		delete(s.identity, key)
		return nil
	}
	if s.queued(e, opDelete) {
		return nil
	}
	s.pending = append(s.pending, pendingOp{kind: opDelete, key: key, entity: e})
	return nil
}

func (s *Session) queued(e models.Entity, kind opKind) bool {
	for _, op := range s.pending {
		if op.kind == kind && op.entity == e {
			return true
		}
	}
	return false
}

// dropQueuedCreate cancels an insert that has not reached the store yet.
func (s *Session) dropQueuedCreate(e models.Entity) bool {
	for i, op := range s.pending {
		if op.kind == opCreate && op.entity == e {
			kept := s.pending[:i:i]
			for _, rest := range s.pending[i+1:] {
				if rest.entity != e {
					kept = append(kept, rest)
				}
			}
			s.pending = kept
			return true
		}
	}
	return false
}

// Query runs fn against the session transaction after writing pending
// operations into it, so reads see the session's own changes. Entities read
// inside fn should be passed through Attach.
func (s *Session) Query(fn func(tx *gorm.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.syncLocked(); err != nil {
		return err
	}

	tx, err := s.activeTx()
	if err != nil {
		return err
	}
	if err := fn(tx.Session(&gorm.Session{NewDB: true})); err != nil {
		return storeerr.Classify(err)
	}
	return nil
}

// Attach registers a freshly loaded entity and returns the canonical instance
// for its identity: the one already tracked, if any, otherwise e itself.
func (s *Session) Attach(e models.Entity) models.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attachLocked(e)
}

func (s *Session) attachLocked(e models.Entity) models.Entity {
	if s.closed {
		return e
	}
	key := keyOf(e)
	if tracked, ok := s.identity[key]; ok {
		return tracked
	}
	s.identity[key] = e
	s.snapshots[key] = models.Snapshot(e)
	return e
}

// Find loads every row matching criteria into dest, a pointer to a slice of
// entity pointers, and replaces already tracked rows by their tracked instance.
func (s *Session) Find(dest any, criteria ...Criteria) error {
	slice := reflect.ValueOf(dest)
	if slice.Kind() != reflect.Pointer || slice.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("session: Find needs a pointer to a slice, got %T", dest)
	}
	model, ok := reflect.New(slice.Elem().Type().Elem().Elem()).Interface().(models.Entity)
	if !ok {
		return fmt.Errorf("session: Find needs a slice of entity pointers, got %T", dest)
	}

	err := s.Query(func(tx *gorm.DB) error {
		return where(tx, model, criteria).Find(dest).Error
	})
	if err != nil {
		return err
	}

	rows := slice.Elem()
	for i := 0; i < rows.Len(); i++ {
		row, ok := rows.Index(i).Interface().(models.Entity)
		if !ok {
			continue
		}
		rows.Index(i).Set(reflect.ValueOf(s.Attach(row)))
	}
	return nil
}

// First loads one row matching criteria into dest, a pointer to an entity.
// If the row is already tracked, the tracked state is copied into dest;
// otherwise dest becomes the tracked instance. Returns ErrNotFound when
// nothing matches.
func (s *Session) First(dest models.Entity, criteria ...Criteria) error {
	// A non-zero primary key in dest would be added to the query by GORM.
	reflect.ValueOf(dest).Elem().SetZero()
	err := s.Query(func(tx *gorm.DB) error {
		return where(tx, dest, criteria).Take(dest).Error
	})
	if err != nil {
		return err
	}
	s.adopt(dest)
	return nil
}

// Get loads the entity with the given primary key into dest.
func (s *Session) Get(dest models.Entity, id string) error {
	s.mu.Lock()
	if !s.closed {
		if tracked, ok := s.identity[identityKey{typ: reflect.TypeOf(dest).Elem(), id: id}]; ok && !s.removedLocked(tracked) {
			copyEntity(dest, tracked)
			s.mu.Unlock()
			return nil
		}
	}
	s.mu.Unlock()

	return s.First(dest, Criteria{"id": id})
}

// Lookup returns the tracked instance for an entity value loaded by First or
// Get, so that callers can keep working on the canonical pointer.
func (s *Session) Lookup(e models.Entity) models.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tracked, ok := s.identity[keyOf(e)]; ok {
		return tracked
	}
	return e
}

func (s *Session) adopt(dest models.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tracked := s.attachLocked(dest); tracked != dest {
		copyEntity(dest, tracked)
	}
}

func (s *Session) removedLocked(e models.Entity) bool {
	return s.queued(e, opDelete)
}

func copyEntity(dst, src models.Entity) {
	reflect.ValueOf(dst).Elem().Set(reflect.ValueOf(src).Elem())
}

func where(tx *gorm.DB, model models.Entity, criteria []Criteria) *gorm.DB {
	q := tx.Model(model)
	for _, c := range criteria {
		if len(c) == 0 {
			continue
		}
		q = q.Where(map[string]any(models.NormalizeCriteria(model, c)))
	}
	return q
}

// Flush writes every pending operation and commits. All pending entities are
// prepared and checked before the first statement runs; if anything fails the
// transaction is rolled back, pending work is discarded and the error returned.
func (s *Session) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	start := time.Now()
	err := s.flushLocked()
	metrics.SessionFlushDuration.Observe(time.Since(start).Seconds())
	metrics.SessionFlushes.WithLabelValues(metrics.FlushResult(err,
		errors.Is(err, storeerr.ErrConstraintViolation),
		errors.Is(err, storeerr.ErrStoreUnavailable),
	)).Inc()
	return err
}

func (s *Session) flushLocked() error {
	if err := s.syncLocked(); err != nil {
		return err
	}
	if s.tx == nil {
		return nil
	}

	if err := s.tx.Commit().Error; err != nil {
		s.tx = nil
		s.revertLocked()
		return fmt.Errorf("session: commit: %w", storeerr.Classify(err))
	}
	s.tx = nil
	s.created = nil
	s.undo = nil
	return nil
}

// syncLocked writes pending operations into the open transaction without
// committing. On failure it rolls the transaction back.
func (s *Session) syncLocked() error {
	if len(s.pending) == 0 {
		return nil
	}

	tx, err := s.activeTx()
	if err != nil {
		s.pending = nil
		return err
	}

	if err := s.checkPending(tx); err != nil {
		s.abortLocked()
		return err
	}

	for _, op := range s.pending {
		if err := s.write(tx, op); err != nil {
			s.logger().Debug().Err(err).Str("op", op.kind.String()).Str("entity", op.entity.TableName()).Msg("session write failed")
			s.abortLocked()
			return err
		}
	}
	s.pending = nil
	return nil
}

// checkPending prepares every pending entity and checks restricted field
// changes before anything is written.
func (s *Session) checkPending(tx *gorm.DB) error {
	for _, op := range s.pending {
		if op.kind == opDelete {
			continue
		}
		if err := models.Prepare(op.entity); err != nil {
			return err
		}
		if op.kind != opUpdate {
			continue
		}
		before, ok := s.snapshots[op.key]
		if !ok {
			stored, err := s.loadStored(tx, op.entity)
			if err != nil {
				return err
			}
			before = models.Snapshot(stored)
			s.snapshots[op.key] = before
		}
		if err := models.CheckChange(op.entity, before); err != nil {
			return err
		}
	}
	return nil
}

// loadStored reads the stored row of a detached entity to learn the values
// its restricted fields currently hold.
func (s *Session) loadStored(tx *gorm.DB, e models.Entity) (models.Entity, error) {
	stored := reflect.New(reflect.TypeOf(e).Elem()).Interface().(models.Entity)
	err := tx.Session(&gorm.Session{NewDB: true}).Where("id = ?", e.Meta().ID).Take(stored).Error
	if err != nil {
		return nil, storeerr.Classify(err)
	}
	return stored, nil
}

func (s *Session) write(tx *gorm.DB, op pendingOp) error {
	db := tx.Session(&gorm.Session{NewDB: true})

	var err error
	switch op.kind {
	case opCreate:
		err = db.Omit(clause.Associations).Create(op.entity).Error
		if err == nil {
			s.created = append(s.created, op.key)
		}
	case opUpdate:
		err = db.Model(op.entity).Select("*").Omit(clause.Associations, "created_on").Updates(op.entity).Error
	case opDelete:
		err = db.Delete(op.entity).Error
	}
	if err != nil {
		return fmt.Errorf("session: %s %s: %w", op.kind, op.entity.TableName(), storeerr.Classify(err))
	}

	s.rememberLocked(op.key)
	switch op.kind {
	case opDelete:
		delete(s.identity, op.key)
		delete(s.snapshots, op.key)
	default:
		s.snapshots[op.key] = models.Snapshot(op.entity)
	}
	return nil
}

// abortLocked rolls back the current transaction and forgets pending work.
func (s *Session) abortLocked() {
	for _, op := range s.pending {
		if op.kind == opCreate {
			s.created = append(s.created, op.key)
		}
	}
	s.pending = nil
	if s.tx != nil {
		if err := s.tx.Rollback().Error; err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logger().Warn().Err(err).Str("session_id", s.id).Msg("session rollback failed")
		}
		s.tx = nil
	}
	s.revertLocked()
}

// rememberLocked records the tracked state of key the first time the current
// transaction writes it.
func (s *Session) rememberLocked(key identityKey) {
	if _, ok := s.undo[key]; ok {
		return
	}
	if s.undo == nil {
		s.undo = make(map[identityKey]undoEntry)
	}
	s.undo[key] = undoEntry{entity: s.identity[key], snapshot: s.snapshots[key]}
}

// revertLocked brings the identity map and snapshots back to what the store
// holds after a rollback: written entities get their earlier snapshots and
// inserted ones are evicted.
func (s *Session) revertLocked() {
	for key, u := range s.undo {
		if u.entity == nil {
			delete(s.identity, key)
		} else {
			s.identity[key] = u.entity
		}
		if u.snapshot == nil {
			delete(s.snapshots, key)
		} else {
			s.snapshots[key] = u.snapshot
		}
	}
	s.undo = nil

	for _, key := range s.created {
		delete(s.identity, key)
		delete(s.snapshots, key)
	}
	s.created = nil
}

// Rollback discards pending operations and uncommitted writes. The session
// stays usable.
func (s *Session) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.abortLocked()
	return nil
}

// Pending reports how many operations wait for the next sync.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close rolls back anything not committed and releases the connection. Only
// the first call does work; later calls return ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storeerr.ErrSessionClosed
	}
	s.closed = true
	metrics.SessionsActive.Dec()

	var err error
	if s.tx != nil {
		if rerr := s.tx.Rollback().Error; rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			err = fmt.Errorf("session: rollback on close: %w", rerr)
			metrics.SessionCloseErrors.Inc()
		}
		s.tx = nil
	}

	s.pending = nil
	s.created = nil
	s.undo = nil
	s.identity = nil
	s.snapshots = nil
	return err
}
