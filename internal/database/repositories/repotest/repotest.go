// Package repotest provides in-memory implementations of the repositories
// for tests of the layers above them. Metadata transactions apply writes
// immediately and undo them on Rollback.
package repotest

import (
	"context"
	"encoding/binary"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"notely/internal/database/models"
	"notely/internal/database/repositories"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Clock hands out strictly increasing timestamps.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Users is an in-memory UserRepository.
type Users struct {
	mu    sync.Mutex
	clock *Clock
	next  int64
	rows  map[int64]models.User
	calls atomic.Int64
}

func NewUsers(clock *Clock) *Users {
	return &Users{clock: clock, rows: map[int64]models.User{}}
}

var _ repositories.UserRepository = (*Users)(nil)

func (u *Users) Calls() int64 { return u.calls.Load() }

func (u *Users) Create(_ context.Context, user *models.User) error {
	u.calls.Add(1)
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, row := range u.rows {
		if row.Username == user.Username || row.Email == user.Email {
			return repositories.ErrDuplicate
		}
	}
	u.next++
	user.ID = u.next
	user.CreatedAt = u.clock.Now()
	u.rows[user.ID] = *user
	return nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u.calls.Add(1)
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, row := range u.rows {
		if row.Email == email {
			return &row, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (u *Users) Exists(_ context.Context, username, email string) (bool, error) {
	u.calls.Add(1)
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, row := range u.rows {
		if row.Username == username || row.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// MetadataFaults makes every matching call fail with the given error until
// the field is cleared.
type MetadataFaults struct {
	Begin         error
	SetContentRef error
	Commit        error
}

// Metadata is an in-memory NoteMetadataRepository.
type Metadata struct {
	mu     sync.Mutex
	clock  *Clock
	rows   map[uuid.UUID]models.NoteMetadata
	calls  atomic.Int64
	Faults MetadataFaults
}

func NewMetadata(clock *Clock) *Metadata {
	return &Metadata{clock: clock, rows: map[uuid.UUID]models.NoteMetadata{}}
}

var _ repositories.NoteMetadataRepository = (*Metadata)(nil)

func (m *Metadata) Calls() int64 { return m.calls.Load() }

// Rows returns a copy of every committed or in-flight row.
func (m *Metadata) Rows() []models.NoteMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.NoteMetadata, 0, len(m.rows))
	for _, row := range m.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// Put stores row as is, bypassing transactions.
func (m *Metadata) Put(row models.NoteMetadata) {
	m.mu.Lock()
	m.rows[row.ID] = row
	m.mu.Unlock()
}

func (m *Metadata) Begin(context.Context) (repositories.NoteMetadataTx, error) {
	m.calls.Add(1)
	if err := m.Faults.Begin; err != nil {
		return nil, err
	}
	return &metadataTx{m: m}, nil
}

func (m *Metadata) GetByID(_ context.Context, id uuid.UUID, userID int64) (*models.NoteMetadata, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.UserID != userID {
		return nil, repositories.ErrNotFound
	}
	return &row, nil
}

func (m *Metadata) GetAll(_ context.Context, userID int64) ([]models.NoteMetadata, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.NoteMetadata{}
	for _, row := range m.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Metadata) ExistingContentRefs(_ context.Context, refs []string) (map[string]bool, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]bool, len(refs))
	for _, ref := range refs {
		want[ref] = true
	}
	existing := map[string]bool{}
	for _, row := range m.rows {
		if want[row.ContentRef] {
			existing[row.ContentRef] = true
		}
	}
	return existing, nil
}

func (m *Metadata) Page(_ context.Context, after uuid.UUID, limit int) ([]models.NoteMetadata, error) {
	m.calls.Add(1)
	all := m.Rows()
	out := []models.NoteMetadata{}
	for _, row := range all {
		if row.ID.String() > after.String() && len(out) < limit {
			out = append(out, row)
		}
	}
	return out, nil
}

type metadataTx struct {
	m    *Metadata
	undo []func()
	done bool
}

func (t *metadataTx) Create(_ context.Context, note *models.NoteMetadata) error {
	t.m.calls.Add(1)
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for _, row := range t.m.rows {
		if row.ContentRef == note.ContentRef {
			return repositories.ErrDuplicate
		}
	}
	note.ID = uuid.New()
	note.CreatedAt = t.m.clock.Now()
	note.UpdatedAt = note.CreatedAt
	t.m.rows[note.ID] = *note
	id := note.ID
	t.undo = append(t.undo, func() { delete(t.m.rows, id) })
	return nil
}

func (t *metadataTx) SetContentRef(_ context.Context, id uuid.UUID, ref string) error {
	t.m.calls.Add(1)
	if err := t.m.Faults.SetContentRef; err != nil {
		return err
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	row, ok := t.m.rows[id]
	if !ok {
		return repositories.ErrNotFound
	}
	for otherID, other := range t.m.rows {
		if otherID != id && other.ContentRef == ref {
			return repositories.ErrDuplicate
		}
	}
	prev := row
	row.ContentRef = ref
	t.m.rows[id] = row
	t.undo = append(t.undo, func() { t.m.rows[id] = prev })
	return nil
}

func (t *metadataTx) Update(_ context.Context, note *models.NoteMetadata) error {
	t.m.calls.Add(1)
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	row, ok := t.m.rows[note.ID]
	if !ok || row.UserID != note.UserID {
		return repositories.ErrNotFound
	}
	prev := row
	row.Title = note.Title
	row.UpdatedAt = t.m.clock.Now()
	t.m.rows[row.ID] = row
	*note = row
	t.undo = append(t.undo, func() { t.m.rows[prev.ID] = prev })
	return nil
}

func (t *metadataTx) ContentRef(_ context.Context, id uuid.UUID, userID int64) (string, error) {
	t.m.calls.Add(1)
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	row, ok := t.m.rows[id]
	if !ok || row.UserID != userID {
		return "", repositories.ErrNotFound
	}
	return row.ContentRef, nil
}

func (t *metadataTx) Delete(_ context.Context, id uuid.UUID, userID int64) error {
	t.m.calls.Add(1)
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	row, ok := t.m.rows[id]
	if !ok || row.UserID != userID {
		return repositories.ErrNotFound
	}
	delete(t.m.rows, id)
	t.undo = append(t.undo, func() { t.m.rows[id] = row })
	return nil
}

func (t *metadataTx) Commit() error {
	t.m.calls.Add(1)
	if err := t.m.Faults.Commit; err != nil {
		return err
	}
	t.done = true
	return nil
}

func (t *metadataTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	return nil
}

// ContentFaults makes every matching call fail with the given error until
// the field is cleared.
type ContentFaults struct {
	Create error
	Update error
	Delete error
}

// Contents is an in-memory NoteContentRepository.
type Contents struct {
	mu     sync.Mutex
	clock  *Clock
	docs   map[string]models.NoteContent
	calls  atomic.Int64
	Faults ContentFaults
}

func NewContents(clock *Clock) *Contents {
	return &Contents{clock: clock, docs: map[string]models.NoteContent{}}
}

var _ repositories.NoteContentRepository = (*Contents)(nil)

func (c *Contents) Calls() int64 { return c.calls.Load() }

// Docs returns a copy of every stored record keyed by ref.
func (c *Contents) Docs() map[string]models.NoteContent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]models.NoteContent, len(c.docs))
	for k, v := range c.docs {
		out[k] = v
	}
	return out
}

// Put stores doc as is, assigning an id stamped with the clock if it has
// none, and returns its ref.
func (c *Contents) Put(doc models.NoteContent) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if doc.ID.IsZero() {
		doc.ID = c.newID()
	}
	c.docs[doc.Ref()] = doc
	return doc.Ref()
}

func (c *Contents) newID() primitive.ObjectID {
	id := primitive.NewObjectID()
	binary.BigEndian.PutUint32(id[0:4], uint32(c.clock.Now().Unix()))
	return id
}

func (c *Contents) Create(_ context.Context, content *models.NoteContent) error {
	c.calls.Add(1)
	if err := c.Faults.Create; err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range c.docs {
		if doc.MetadataID == content.MetadataID {
			return repositories.ErrDuplicate
		}
	}
	if content.Tags == nil {
		content.Tags = []string{}
	}
	content.ID = c.newID()
	c.docs[content.Ref()] = cloneContent(*content)
	return nil
}

func (c *Contents) GetByRef(_ context.Context, ref string) (*models.NoteContent, error) {
	c.calls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[ref]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	doc = cloneContent(doc)
	return &doc, nil
}

func (c *Contents) GetByRefs(_ context.Context, refs []string) (map[string]models.NoteContent, error) {
	c.calls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	found := map[string]models.NoteContent{}
	for _, ref := range refs {
		if doc, ok := c.docs[ref]; ok {
			found[ref] = cloneContent(doc)
		}
	}
	return found, nil
}

func (c *Contents) Update(_ context.Context, ref string, content string, tags []string) (*models.NoteContent, error) {
	c.calls.Add(1)
	if err := c.Faults.Update; err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[ref]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if tags == nil {
		tags = []string{}
	}
	doc.Content = content
	doc.Tags = append([]string{}, tags...)
	c.docs[ref] = doc
	doc = cloneContent(doc)
	return &doc, nil
}

func (c *Contents) Delete(_ context.Context, ref string) (bool, error) {
	c.calls.Add(1)
	if err := c.Faults.Delete; err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.docs[ref]
	delete(c.docs, ref)
	return ok, nil
}

func (c *Contents) CreatedBefore(_ context.Context, cutoff time.Time, after string, limit int) ([]models.NoteContent, error) {
	c.calls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	refs := make([]string, 0, len(c.docs))
	for ref, doc := range c.docs {
		if doc.ID.Timestamp().Before(cutoff) && ref > after {
			refs = append(refs, ref)
		}
	}
	sort.Strings(refs)
	if len(refs) > limit {
		refs = refs[:limit]
	}
	out := make([]models.NoteContent, 0, len(refs))
	for _, ref := range refs {
		out = append(out, cloneContent(c.docs[ref]))
	}
	return out, nil
}

func (c *Contents) DeleteMany(_ context.Context, refs []string) (int64, error) {
	c.calls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, ref := range refs {
		if _, ok := c.docs[ref]; ok {
			delete(c.docs, ref)
			n++
		}
	}
	return n, nil
}

func cloneContent(doc models.NoteContent) models.NoteContent {
	doc.Tags = append([]string{}, doc.Tags...)
	return doc
}
