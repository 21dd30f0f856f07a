package handler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mortgage-criteria-chat/internal/domain"
	"mortgage-criteria-chat/internal/usecase"
)

type countingGauge struct {
	values []int
}

func (g *countingGauge) SetActiveSessions(n int) {
	g.values = append(g.values, n)
}

func orchestratorFactory(t *testing.T) SessionFactory {
	t.Helper()
	return OrchestratorFactory(&stubResolver{}, &stubSender{}, domain.SearchParameters{}, usecase.WithLogger(quietLogger()))
}

func sequentialIDs(t *testing.T) {
	t.Helper()
	orig := newSessionID
	n := 0
	newSessionID = func() string {
		n++
		return fmt.Sprintf("sess-%d", n)
	}
	t.Cleanup(func() { newSessionID = orig })
}

func TestNewRegistry_ValidatesFactory(t *testing.T) {
	_, err := NewRegistry(nil, time.Minute)
	require.Error(t, err)
}

func TestRegistry_CreatesAndReusesSessions(t *testing.T) {
	sequentialIDs(t)
	gauge := &countingGauge{}
	reg, err := NewRegistry(orchestratorFactory(t), time.Minute, WithSessionCounter(gauge))
	require.NoError(t, err)

	s1, err := reg.Get(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "sess-1", s1.SessionID())

	again, err := reg.Get(context.Background(), " sess-1 ")
	require.NoError(t, err)
	require.Same(t, s1, again)

	s2, err := reg.Get(context.Background(), "forged")
	require.NoError(t, err)
	require.Equal(t, "sess-2", s2.SessionID(), "unknown IDs get a fresh server-side ID")
	require.Equal(t, 2, reg.Len())
	require.Equal(t, []int{1, 2}, gauge.values)
}

func TestRegistry_EvictsIdleSessions(t *testing.T) {
	sequentialIDs(t)
	gauge := &countingGauge{}
	reg, err := NewRegistry(orchestratorFactory(t), time.Minute, WithSessionCounter(gauge))
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	_, err = reg.Get(context.Background(), "")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	s, err := reg.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, "sess-2", s.SessionID())
	require.Equal(t, 1, reg.Len())
	require.Equal(t, []int{1, 0, 1}, gauge.values)
}

type pinnedSession struct {
	*usecase.Orchestrator
}

func (p pinnedSession) View() usecase.View {
	v := p.Orchestrator.View()
	v.Busy = true
	return v
}

func TestRegistry_KeepsBusySessions(t *testing.T) {
	sequentialIDs(t)
	base := orchestratorFactory(t)
	reg, err := NewRegistry(func(ctx context.Context, id string) (Session, error) {
		s, err := base(ctx, id)
		if err != nil {
			return nil, err
		}
		return pinnedSession{s.(*usecase.Orchestrator)}, nil
	}, time.Minute)
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	first, err := reg.Get(context.Background(), "")
	require.NoError(t, err)

	now = now.Add(time.Hour)
	again, err := reg.Get(context.Background(), first.SessionID())
	require.NoError(t, err)
	require.Equal(t, first.SessionID(), again.SessionID())
}

func TestRegistry_FactoryError(t *testing.T) {
	reg, err := NewRegistry(func(context.Context, string) (Session, error) {
		return nil, errors.New("no directory")
	}, time.Minute)
	require.NoError(t, err)

	_, err = reg.Get(context.Background(), "")
	require.ErrorContains(t, err, "no directory")
	require.Zero(t, reg.Len())
}

func TestOrchestratorFactory(t *testing.T) {
	resolver := &stubResolver{fallback: true}
	factory := OrchestratorFactory(resolver, &stubSender{}, domain.SearchParameters{ResultCount: 99})

	s, err := factory(context.Background(), "sess-x")
	require.NoError(t, err)
	require.Equal(t, "sess-x", s.SessionID())
	require.True(t, s.View().Directory.Fallback)
	require.Equal(t, domain.MaxResultCount, s.View().Parameters.ResultCount)
	require.Equal(t, 1, resolver.calls)

	_, err = OrchestratorFactory(nil, &stubSender{}, domain.SearchParameters{})(context.Background(), "x")
	require.Error(t, err)

	_, err = OrchestratorFactory(resolver, nil, domain.SearchParameters{})(context.Background(), "x")
	require.Error(t, err)
}
