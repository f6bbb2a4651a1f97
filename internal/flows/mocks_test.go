package flows

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"scholarforge/internal/catalog"
	"scholarforge/internal/contract"
	"scholarforge/internal/perception"
	"scholarforge/internal/prompt"
	"scholarforge/internal/runner"
	"scholarforge/internal/schema"
	"scholarforge/internal/store"
	"scholarforge/internal/types"
)

// scriptedInvoker answers each module with canned text. Modules listed in
// fail exhaust their retries; modules with no script return non-JSON text.
type scriptedInvoker struct {
	mu      sync.Mutex
	texts   map[types.ModuleID]string
	fail    map[types.ModuleID]bool
	prompts map[types.ModuleID][]string
	// before, when set, runs ahead of every invocation.
	before func(ctx context.Context, id types.ModuleID) error
}

func newInvoker() *scriptedInvoker {
	return &scriptedInvoker{
		texts:   map[types.ModuleID]string{},
		fail:    map[types.ModuleID]bool{},
		prompts: map[types.ModuleID][]string{},
	}
}

func (s *scriptedInvoker) script(id types.ModuleID, text string) *scriptedInvoker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts[id] = text
	return s
}

func (s *scriptedInvoker) failing(id types.ModuleID) *scriptedInvoker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[id] = true
	return s
}

func (s *scriptedInvoker) Invoke(ctx context.Context, desc catalog.Descriptor, p string) (perception.Completion, error) {
	if s.before != nil {
		if err := s.before(ctx, desc.ID); err != nil {
			return perception.Completion{}, &perception.InvocationError{Module: desc.ID, Attempts: 1, Last: err}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[desc.ID] = append(s.prompts[desc.ID], p)
	if s.fail[desc.ID] {
		return perception.Completion{}, &perception.InvocationError{
			Module: desc.ID, Attempts: 3,
			Last: &perception.TransportError{Provider: "stub", StatusCode: 503, Err: errors.New("upstream unavailable")},
		}
	}
	text, ok := s.texts[desc.ID]
	if !ok {
		text = "I'm sorry, I can't help with that."
	}
	return perception.Completion{
		Text:         text,
		Model:        "stub-model",
		ModelVersion: "stub-model-001",
		Usage:        types.TokenUsage{Prompt: 50, Completion: 10},
		Attempts:     1,
	}, nil
}

func (s *scriptedInvoker) promptsFor(id types.ModuleID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts[id]...)
}

// memStore is an in-memory flows.Store.
type memStore struct {
	mu           sync.Mutex
	items        map[string]store.Item
	answers      map[string]store.PrivateAnswer
	order        []string
	coordination map[string][]store.CoordinationRecord
	plans        map[string]schema.SessionPlan
	diagnostics  map[string]schema.PriorDiagnostics
	writeErr     error
	nextID       int
}

func newMemStore() *memStore {
	return &memStore{
		items:        map[string]store.Item{},
		answers:      map[string]store.PrivateAnswer{},
		coordination: map[string][]store.CoordinationRecord{},
		plans:        map[string]schema.SessionPlan{},
		diagnostics:  map[string]schema.PriorDiagnostics{},
	}
}

func (m *memStore) put(item store.Item, answer store.PrivateAnswer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.Status == "" {
		item.Status = store.StatusLive
	}
	m.items[item.ID] = item
	answer.ItemID = item.ID
	m.answers[item.ID] = answer
	m.order = append(m.order, item.ID)
}

func servable(status string) bool {
	for _, s := range store.ServableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (m *memStore) CountServable(_ context.Context, skillID string, difficulty int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, it := range m.items {
		if it.SkillID == skillID && it.Difficulty == difficulty && servable(it.Status) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) FetchServable(_ context.Context, f store.Filter) ([]store.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	skills := toSet(f.SkillIDs)
	excluded := toSet(f.ExcludeIDs)
	var out []store.Item
	for _, id := range m.order {
		it := m.items[id]
		switch {
		case !servable(it.Status):
		case len(skills) > 0 && !skills[it.SkillID]:
		case f.Difficulty > 0 && it.Difficulty != f.Difficulty:
		case f.Domain != "" && it.Domain != f.Domain:
		case f.Level > 0 && it.Level != f.Level:
		case excluded[it.ID]:
		default:
			out = append(out, it)
		}
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) GetItem(_ context.Context, id string) (store.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return store.Item{}, fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}
	return it, nil
}

func (m *memStore) GetPrivateAnswer(_ context.Context, id string) (store.PrivateAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.answers[id]
	if !ok {
		return store.PrivateAnswer{}, fmt.Errorf("answer %s: %w", id, store.ErrNotFound)
	}
	return a, nil
}

func (m *memStore) WriteApprovedDrafts(_ context.Context, drafts []store.Draft) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	ids := make([]string, 0, len(drafts))
	for _, d := range drafts {
		m.nextID++
		item := d.Item
		item.ID = fmt.Sprintf("gen-%d", m.nextID)
		item.Status = store.StatusAgentApproved
		m.items[item.ID] = item
		ans := d.Answer
		ans.ItemID = item.ID
		m.answers[item.ID] = ans
		m.order = append(m.order, item.ID)
		ids = append(ids, item.ID)
	}
	return ids, nil
}

func (m *memStore) SaveCoordination(_ context.Context, runID, subjectID string, obj schema.CoordinationObject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.coordination[subjectID] = append(m.coordination[subjectID], store.CoordinationRecord{RunID: runID, SubjectID: subjectID, Object: obj})
	return nil
}

func (m *memStore) SaveSessionPlan(_ context.Context, plan schema.SessionPlan) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return "", m.writeErr
	}
	id := fmt.Sprintf("plan-%d", len(m.plans)+1)
	m.plans[id] = plan
	return id, nil
}

func (m *memStore) SaveDiagnostics(_ context.Context, subjectID string, d schema.PriorDiagnostics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.diagnostics[subjectID] = d
	return nil
}

func (m *memStore) LatestDiagnostics(_ context.Context, subjectID string) (store.DiagnosticsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.diagnostics[subjectID]
	if !ok {
		return store.DiagnosticsRecord{}, fmt.Errorf("diagnostics for %s: %w", subjectID, store.ErrNotFound)
	}
	return store.DiagnosticsRecord{SubjectID: subjectID, Diagnostics: d}, nil
}

func (m *memStore) itemIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.items))
	for id := range m.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// staticSkills is a fixed skill source.
type staticSkills map[string]store.Skill

func (s staticSkills) Get(_ context.Context, id string) (store.Skill, error) {
	sk, ok := s[id]
	if !ok {
		return store.Skill{}, fmt.Errorf("skill %s: %w", id, store.ErrNotFound)
	}
	return sk, nil
}

func testSkills() staticSkills {
	return staticSkills{
		"add": {ID: "add", Name: "Addition", Domain: "number", Level: 2},
		"sub": {ID: "sub", Name: "Subtraction", Domain: "number", Level: 2},
	}
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

type harness struct {
	svc      *Service
	invoker  *scriptedInvoker
	store    *memStore
	observed []runner.RunResult
	mu       sync.Mutex
}

func newHarness(t *testing.T, inv *scriptedInvoker, opts ...Option) *harness {
	t.Helper()
	cat := catalog.Default()
	r, err := runner.New(cat, prompt.Default(), contract.Default(cat), inv)
	require.NoError(t, err)

	h := &harness{invoker: inv, store: newMemStore()}
	opts = append([]Option{WithRunObserver(func(_ context.Context, res runner.RunResult) {
		h.mu.Lock()
		h.observed = append(h.observed, res)
		h.mu.Unlock()
	})}, opts...)
	h.svc, err = NewService(r, h.store, testSkills(), opts...)
	require.NoError(t, err)
	return h
}

func (h *harness) runs() []runner.RunResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]runner.RunResult(nil), h.observed...)
}
