package subsystem

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

type fakeRepo struct {
	subs   map[string]*domain.Subsystem
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{subs: make(map[string]*domain.Subsystem)}
}

func (r *fakeRepo) Find(_ context.Context, name string) (*domain.Subsystem, error) {
	if s, ok := r.subs[name]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeRepo) GetOrCreate(_ context.Context, name string) (*domain.Subsystem, error) {
	if s, ok := r.subs[name]; ok {
		cp := *s
		return &cp, nil
	}
	r.nextID++
	s := &domain.Subsystem{ID: r.nextID, Name: name, CreatedAt: time.Now().UTC()}
	r.subs[name] = s
	cp := *s
	return &cp, nil
}

func (r *fakeRepo) SetSubscribed(_ context.Context, name string, subscribed bool) error {
	r.subs[name].Subscribed = subscribed
	return nil
}

func (r *fakeRepo) List(_ context.Context, subscribedOnly bool) ([]domain.Subsystem, error) {
	var out []domain.Subsystem
	for _, s := range r.subs {
		if subscribedOnly && !s.Subscribed {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (r *fakeRepo) Search(_ context.Context, keyword string) ([]domain.Subsystem, error) {
	var out []domain.Subsystem
	for _, s := range r.subs {
		if strings.Contains(s.Name, strings.ToLower(keyword)) {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakeLogs struct {
	entries []domain.OperationLog
}

func (l *fakeLogs) Append(_ context.Context, e *domain.OperationLog) error {
	l.entries = append(l.entries, *e)
	return nil
}

func (l *fakeLogs) ListRecent(_ context.Context, limit int) ([]domain.OperationLog, error) {
	if limit > len(l.entries) {
		limit = len(l.entries)
	}
	return l.entries[len(l.entries)-limit:], nil
}

func TestSubscribe_CreatesAndAudits(t *testing.T) {
	repo := newFakeRepo()
	logs := &fakeLogs{}
	svc := NewService(repo, logs)
	op := Operator{ID: "u1", Name: "alice"}

	changed, err := svc.Subscribe(context.Background(), op, []string{"Rust-For-Linux", " netdev ", "rust-for-linux"})
	require.NoError(t, err)
	assert.Equal(t, []string{"rust-for-linux", "netdev"}, changed)

	names, err := svc.ListSubscribed(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"rust-for-linux", "netdev"}, names)

	require.Len(t, logs.entries, 2)
	assert.Equal(t, domain.ActionSubscribe, logs.entries[0].Action)
	assert.Equal(t, "alice", logs.entries[0].OperatorName)
}

func TestSubscribe_AlreadySubscribedIsNoop(t *testing.T) {
	repo := newFakeRepo()
	logs := &fakeLogs{}
	svc := NewService(repo, logs)

	_, err := svc.Subscribe(context.Background(), Operator{}, []string{"netdev"})
	require.NoError(t, err)

	changed, err := svc.Subscribe(context.Background(), Operator{}, []string{"netdev"})
	require.NoError(t, err)
	assert.Empty(t, changed)
	assert.Len(t, logs.entries, 1)
}

func TestUnsubscribe(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeLogs{})
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, Operator{}, []string{"netdev"})
	require.NoError(t, err)

	changed, err := svc.Unsubscribe(ctx, Operator{}, []string{"netdev", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, []string{"netdev"}, changed)

	names, err := svc.ListSubscribed(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestSearch_EmptyKeyword(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)
	out, err := svc.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestAuditWithoutLogRepoIsSafe(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)
	_, err := svc.Subscribe(context.Background(), Operator{}, []string{"netdev"})
	require.NoError(t, err)

	out, err := svc.RecentOperations(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, out)
}
