package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/iudanet/boardsync/internal/channel"
	"github.com/iudanet/boardsync/internal/client/store"
	"github.com/iudanet/boardsync/internal/events"
	"github.com/iudanet/boardsync/internal/models"
)

// Entity is an independently addressable board object of type T updated by
// patches of type P. Implementations are value types.
type Entity[T any, P any] interface {
	ObjectID() string
	WithID(id string) T
	WithBoard(boardID string) T
	Apply(patch P) T
	Validate() error
}

// Patch is a partial update of an Entity.
type Patch interface {
	IsEmpty() bool
}

// ObjectsConfig описывает один вид синхронизируемых объектов
type ObjectsConfig struct {
	BoardID string
	Kind    models.ObjectKind
	Topic   string
	// StoreAssignsIDs Create ждет InsertObject и использует id хранилища
	StoreAssignsIDs bool
}

type objectEntry[T any] struct {
	value T
	seq   uint64
}

// Objects keeps one object kind of a board consistent with remote peers and
// the store. Local changes are applied immediately, broadcast, and persisted
// in the background in the order they were made.
type Objects[T Entity[T, P], P Patch] struct {
	ch       channel.Channel
	store    store.Store
	logger   *slog.Logger
	onChange func()
	onError  ErrorHandler
	items    map[string]*objectEntry[T]
	cfg      ObjectsConfig
	queue    []func(context.Context)
	wg       sync.WaitGroup
	nextSeq  uint64
	mu       sync.Mutex
	qmu      sync.Mutex
	draining bool
}

// Notes синхронизатор стикеров
type Notes = Objects[models.Note, models.NotePatch]

// Shapes синхронизатор фигур
type Shapes = Objects[models.Shape, models.ShapePatch]

// TextBoxes синхронизатор текстовых блоков
type TextBoxes = Objects[models.TextBox, models.TextBoxPatch]

// NewObjects creates a synchronizer for one object kind. st may be nil when
// the objects are not persisted.
func NewObjects[T Entity[T, P], P Patch](cfg ObjectsConfig, ch channel.Channel, st store.Store, logger *slog.Logger) *Objects[T, P] {
	return &Objects[T, P]{
		cfg:    cfg,
		ch:     ch,
		store:  st,
		logger: logger.With("kind", string(cfg.Kind)),
		items:  make(map[string]*objectEntry[T]),
	}
}

// NewNotes creates the sticky note synchronizer of a board.
func NewNotes(boardID string, ch channel.Channel, st store.Store, logger *slog.Logger) *Notes {
	return NewObjects[models.Note, models.NotePatch](ObjectsConfig{
		BoardID: boardID,
		Kind:    models.KindNote,
		Topic:   events.TopicNotes,
	}, ch, st, logger)
}

// NewShapes creates the shape synchronizer of a board.
func NewShapes(boardID string, ch channel.Channel, st store.Store, logger *slog.Logger) *Shapes {
	return NewObjects[models.Shape, models.ShapePatch](ObjectsConfig{
		BoardID: boardID,
		Kind:    models.KindShape,
		Topic:   events.TopicShapes,
	}, ch, st, logger)
}

// NewTextBoxes creates the text box synchronizer of a board.
func NewTextBoxes(boardID string, ch channel.Channel, st store.Store, logger *slog.Logger) *TextBoxes {
	return NewObjects[models.TextBox, models.TextBoxPatch](ObjectsConfig{
		BoardID: boardID,
		Kind:    models.KindTextBox,
		Topic:   events.TopicTexts,
	}, ch, st, logger)
}

// Kind returns the object kind handled by o.
func (o *Objects[T, P]) Kind() models.ObjectKind { return o.cfg.Kind }

// Topic returns the channel topic of the object kind.
func (o *Objects[T, P]) Topic() string { return o.cfg.Topic }

// OnChange registers a listener called after every state change.
func (o *Objects[T, P]) OnChange(fn func()) {
	o.mu.Lock()
	o.onChange = fn
	o.mu.Unlock()
}

// SetErrorHandler registers a handler for rolled back changes.
func (o *Objects[T, P]) SetErrorHandler(fn ErrorHandler) {
	o.mu.Lock()
	o.onError = fn
	o.mu.Unlock()
}

// Create validates draft, assigns it an id, inserts it locally and
// broadcasts it. The returned object carries the authoritative id.
func (o *Objects[T, P]) Create(ctx context.Context, draft T) (T, error) {
	var zero T
	obj := draft.WithBoard(o.cfg.BoardID)
	if err := obj.Validate(); err != nil {
		return zero, err
	}

	if o.cfg.StoreAssignsIDs && o.store != nil {
		stored, err := o.insertRemote(ctx, obj.WithID(""))
		if err != nil {
			return zero, err
		}
		obj = stored
	} else {
		obj = obj.WithID(uuid.NewString())
	}

	o.mu.Lock()
	if _, exists := o.items[obj.ObjectID()]; exists {
		o.mu.Unlock()
		return zero, fmt.Errorf("failed to create object: duplicate id %q", obj.ObjectID())
	}
	o.insertLocked(obj)
	notify := o.onChange
	o.mu.Unlock()
	notifyChange(notify)

	err := o.publish(ctx, events.ObjectCreated[T, P]{Object: obj})
	if forbidden(err) {
		o.rollbackCreate(obj.ObjectID())
		if o.cfg.StoreAssignsIDs {
			// строка уже в хранилище, удаляем её
			id := obj.ObjectID()
			o.persist(func(ctx context.Context) error {
				return o.store.DeleteObject(ctx, o.cfg.BoardID, o.cfg.Kind, id)
			}, func() {})
		}
		return zero, err
	}

	if !o.cfg.StoreAssignsIDs {
		o.persist(func(ctx context.Context) error {
			fields, err := json.Marshal(obj)
			if err != nil {
				return err
			}
			_, err = o.store.InsertObject(ctx, o.cfg.BoardID, o.cfg.Kind, fields)
			return err
		}, func() { o.rollbackCreate(obj.ObjectID()) })
	}
	return obj, err
}

func (o *Objects[T, P]) insertRemote(ctx context.Context, obj T) (T, error) {
	var zero T
	fields, err := json.Marshal(obj)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal object: %w", err)
	}
	raw, err := o.store.InsertObject(ctx, o.cfg.BoardID, o.cfg.Kind, fields)
	if err != nil {
		o.logger.Error("Failed to insert object", "board_id", o.cfg.BoardID, "error", err)
		return zero, fmt.Errorf("failed to insert object: %w", err)
	}
	var stored T
	if err := json.Unmarshal(raw, &stored); err != nil {
		return zero, fmt.Errorf("failed to decode stored object: %w", err)
	}
	if stored.ObjectID() == "" {
		return zero, fmt.Errorf("failed to insert object: store returned no id")
	}
	return stored, nil
}

// Update applies patch to the object with id, broadcasts it and persists it.
// An empty patch is a no-op.
func (o *Objects[T, P]) Update(ctx context.Context, id string, patch P) error {
	if patch.IsEmpty() {
		o.mu.Lock()
		_, ok := o.items[id]
		o.mu.Unlock()
		if !ok {
			return ErrObjectNotFound
		}
		return nil
	}

	o.mu.Lock()
	entry, ok := o.items[id]
	if !ok {
		o.mu.Unlock()
		return ErrObjectNotFound
	}
	prev := entry.value
	next := prev.Apply(patch).WithID(id)
	if err := next.Validate(); err != nil {
		o.mu.Unlock()
		return err
	}
	entry.value = next
	notify := o.onChange
	o.mu.Unlock()
	notifyChange(notify)

	err := o.publish(ctx, events.ObjectPatched[T, P]{ID: id, Patch: patch})
	if forbidden(err) {
		o.rollbackUpdate(id, next, prev)
		return err
	}

	o.persist(func(ctx context.Context) error {
		fields, err := json.Marshal(patch)
		if err != nil {
			return err
		}
		return o.store.PatchObject(ctx, o.cfg.BoardID, o.cfg.Kind, id, fields)
	}, func() { o.rollbackUpdate(id, next, prev) })
	return err
}

// Remove deletes the object with id locally, broadcasts the removal and
// persists it.
func (o *Objects[T, P]) Remove(ctx context.Context, id string) error {
	o.mu.Lock()
	entry, ok := o.items[id]
	if !ok {
		o.mu.Unlock()
		return ErrObjectNotFound
	}
	delete(o.items, id)
	removed := *entry
	notify := o.onChange
	o.mu.Unlock()
	notifyChange(notify)

	return o.publishRemove(ctx, id, removed)
}

// RemoveAll removes every object with events, as Remove does for each.
func (o *Objects[T, P]) RemoveAll(ctx context.Context) error {
	o.mu.Lock()
	entries := o.sortedLocked()
	o.items = make(map[string]*objectEntry[T])
	notify := o.onChange
	o.mu.Unlock()
	if len(entries) == 0 {
		return nil
	}
	notifyChange(notify)

	var errs []error
	for _, e := range entries {
		if err := o.publishRemove(ctx, e.value.ObjectID(), *e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// publishRemove broadcasts the removal of an object already dropped
// locally. A refused broadcast puts the object back and skips the store.
func (o *Objects[T, P]) publishRemove(ctx context.Context, id string, removed objectEntry[T]) error {
	err := o.publish(ctx, events.ObjectRemoved[T, P]{ID: id})
	if forbidden(err) {
		o.rollbackRemove(removed)
		return err
	}
	o.persist(func(ctx context.Context) error {
		return o.store.DeleteObject(ctx, o.cfg.BoardID, o.cfg.Kind, id)
	}, func() { o.rollbackRemove(removed) })
	return err
}

// Clear drops every object locally without broadcasting or persisting.
func (o *Objects[T, P]) Clear() {
	o.mu.Lock()
	changed := len(o.items) > 0
	o.items = make(map[string]*objectEntry[T])
	notify := o.onChange
	o.mu.Unlock()
	if changed {
		notifyChange(notify)
	}
}

// Replace swaps the whole collection, keeping the order of objs.
func (o *Objects[T, P]) Replace(objs []T) {
	o.mu.Lock()
	o.items = make(map[string]*objectEntry[T], len(objs))
	for _, obj := range objs {
		if obj.ObjectID() == "" {
			continue
		}
		if entry, ok := o.items[obj.ObjectID()]; ok {
			entry.value = obj
			continue
		}
		o.insertLocked(obj)
	}
	notify := o.onChange
	o.mu.Unlock()
	notifyChange(notify)
}

// Load replaces the collection with the objects stored for the board.
func (o *Objects[T, P]) Load(ctx context.Context) error {
	if o.store == nil {
		return nil
	}
	raws, err := o.store.ListObjects(ctx, o.cfg.BoardID, o.cfg.Kind)
	if err != nil {
		return fmt.Errorf("failed to list %s objects: %w", o.cfg.Kind, err)
	}
	objs := make([]T, 0, len(raws))
	for _, raw := range raws {
		var obj T
		if err := json.Unmarshal(raw, &obj); err != nil {
			o.logger.Warn("Skipping undecodable stored object", "board_id", o.cfg.BoardID, "error", err)
			continue
		}
		if err := obj.Validate(); err != nil || obj.ObjectID() == "" {
			o.logger.Warn("Skipping invalid stored object", "board_id", o.cfg.BoardID, "object_id", obj.ObjectID(), "error", err)
			continue
		}
		objs = append(objs, obj)
	}
	o.Replace(objs)
	return nil
}

// HandleMessage decodes a message of the object topic and applies it.
// Malformed payloads are logged and dropped.
func (o *Objects[T, P]) HandleMessage(msg channel.Message) {
	ev, err := events.DecodeObject[T, P](msg.Event, msg.Data)
	if err != nil {
		o.logger.Warn("Dropping object event", "board_id", o.cfg.BoardID, "message_id", msg.ID, "error", err)
		return
	}
	o.ApplyRemote(ev)
}

// ApplyRemote merges an event received from the channel. It is idempotent:
// duplicate creations and removals of absent objects are no-ops.
func (o *Objects[T, P]) ApplyRemote(ev events.ObjectEvent[T, P]) {
	o.mu.Lock()
	changed := false
	switch e := ev.(type) {
	case events.ObjectCreated[T, P]:
		id := e.Object.ObjectID()
		if _, exists := o.items[id]; exists {
			break
		}
		if err := e.Object.Validate(); err != nil {
			o.logger.Warn("Dropping invalid remote object", "board_id", o.cfg.BoardID, "object_id", id, "error", err)
			break
		}
		o.insertLocked(e.Object)
		changed = true

	case events.ObjectPatched[T, P]:
		entry, ok := o.items[e.ID]
		if !ok {
			o.logger.Debug("Dropping patch for unknown object", "board_id", o.cfg.BoardID, "object_id", e.ID)
			break
		}
		if e.Patch.IsEmpty() {
			break
		}
		next := entry.value.Apply(e.Patch).WithID(e.ID)
		if err := next.Validate(); err != nil {
			o.logger.Warn("Dropping invalid remote patch", "board_id", o.cfg.BoardID, "object_id", e.ID, "error", err)
			break
		}
		entry.value = next
		changed = true

	case events.ObjectRemoved[T, P]:
		if _, ok := o.items[e.ID]; ok {
			delete(o.items, e.ID)
			changed = true
		}
	}
	notify := o.onChange
	o.mu.Unlock()

	if changed {
		notifyChange(notify)
	}
}

// Get returns the object with id.
func (o *Objects[T, P]) Get(id string) (T, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	return entry.value, true
}

// List returns every object in creation order.
func (o *Objects[T, P]) List() []T {
	o.mu.Lock()
	defer o.mu.Unlock()
	entries := o.sortedLocked()
	out := make([]T, len(entries))
	for i, e := range entries {
		out[i] = e.value
	}
	return out
}

// Len returns the number of objects.
func (o *Objects[T, P]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// Wait blocks until every queued persistence call has finished.
func (o *Objects[T, P]) Wait() {
	o.wg.Wait()
}

func (o *Objects[T, P]) insertLocked(obj T) {
	o.nextSeq++
	o.items[obj.ObjectID()] = &objectEntry[T]{value: obj, seq: o.nextSeq}
}

func (o *Objects[T, P]) sortedLocked() []*objectEntry[T] {
	entries := make([]*objectEntry[T], 0, len(o.items))
	for _, e := range o.items {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	return entries
}

func (o *Objects[T, P]) publish(ctx context.Context, ev events.ObjectEvent[T, P]) error {
	name, data, err := events.EncodeObject[T, P](ev)
	if err != nil {
		return err
	}
	if err := o.ch.Publish(ctx, o.cfg.Topic, name, data); err != nil {
		o.logger.Warn("Failed to publish object event", "board_id", o.cfg.BoardID, "event", name, "error", err)
		return fmt.Errorf("failed to publish %s: %w", name, err)
	}
	return nil
}

// persist queues a store call. Calls run one at a time in queue order on a
// detached context; rollback runs only when the store denies permission.
func (o *Objects[T, P]) persist(call func(context.Context) error, rollback func()) {
	if o.store == nil {
		return
	}
	op := func(ctx context.Context) {
		err := call(ctx)
		if err == nil {
			return
		}
		if errors.Is(err, store.ErrPermissionDenied) {
			o.logger.Warn("Store denied change, rolling back", "board_id", o.cfg.BoardID, "error", err)
			rollback()
			o.mu.Lock()
			onError := o.onError
			o.mu.Unlock()
			if onError != nil {
				onError(fmt.Errorf("failed to persist %s: %w", o.cfg.Kind, err))
			}
			return
		}
		o.logger.Error("Failed to persist object change", "board_id", o.cfg.BoardID, "error", err)
	}

	o.qmu.Lock()
	o.queue = append(o.queue, op)
	if o.draining {
		o.qmu.Unlock()
		return
	}
	o.draining = true
	o.wg.Add(1)
	o.qmu.Unlock()

	go o.drain()
}

func (o *Objects[T, P]) drain() {
	defer o.wg.Done()
	ctx := context.Background()
	for {
		o.qmu.Lock()
		if len(o.queue) == 0 {
			o.draining = false
			o.qmu.Unlock()
			return
		}
		op := o.queue[0]
		o.queue = o.queue[1:]
		o.qmu.Unlock()
		op(ctx)
	}
}

func (o *Objects[T, P]) rollbackCreate(id string) {
	o.mu.Lock()
	_, ok := o.items[id]
	delete(o.items, id)
	notify := o.onChange
	o.mu.Unlock()
	if ok {
		notifyChange(notify)
	}
}

// rollbackUpdate restores prev unless the object changed again since.
func (o *Objects[T, P]) rollbackUpdate(id string, applied, prev T) {
	o.mu.Lock()
	entry, ok := o.items[id]
	if ok {
		cur, _ := json.Marshal(entry.value)
		want, _ := json.Marshal(applied)
		ok = string(cur) == string(want)
		if ok {
			entry.value = prev
		}
	}
	notify := o.onChange
	o.mu.Unlock()
	if ok {
		notifyChange(notify)
	}
}

func (o *Objects[T, P]) rollbackRemove(removed objectEntry[T]) {
	o.mu.Lock()
	id := removed.value.ObjectID()
	_, exists := o.items[id]
	if !exists {
		o.items[id] = &objectEntry[T]{value: removed.value, seq: removed.seq}
	}
	notify := o.onChange
	o.mu.Unlock()
	if !exists {
		notifyChange(notify)
	}
}

func notifyChange(fn func()) {
	if fn != nil {
		fn()
	}
}
