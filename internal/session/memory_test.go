package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCreatesEmptySession(t *testing.T) {
	store := NewMemoryStore()
	s, err := store.Get(context.Background(), "owner/repo/7")
	require.NoError(t, err)
	assert.Equal(t, "owner/repo/7", s.PullRequestID)
	assert.Equal(t, StateNone, s.ApprovalState)
	assert.Nil(t, s.PendingChange)
	assert.Empty(t, s.History)
}

func TestGetIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.Get(ctx, "pr-1")
	require.NoError(t, err)
	second, err := store.Get(ctx, "pr-1")
	require.NoError(t, err)
	assert.Equal(t, first.ApprovalState, second.ApprovalState)
}

func TestSaveAndReload(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s := NewSession("pr-2")
	s.PendingChange = &PendingChange{
		FilePath:   "README.md",
		NewContent: "# Updated",
		ProposedAt: time.Now(),
	}
	s.ApprovalState = StateAwaitingApproval
	require.NoError(t, store.Save(ctx, s))

	loaded, err := store.Get(ctx, "pr-2")
	require.NoError(t, err)
	require.NotNil(t, loaded.PendingChange)
	assert.Equal(t, "README.md", loaded.PendingChange.FilePath)
	assert.Equal(t, StateAwaitingApproval, loaded.ApprovalState)
}

func TestGetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s := NewSession("pr-3")
	s.PendingChange = &PendingChange{FilePath: "README.md", NewContent: "v1"}
	require.NoError(t, store.Save(ctx, s))

	loaded, _ := store.Get(ctx, "pr-3")
	loaded.PendingChange.NewContent = "tampered"

	reloaded, _ := store.Get(ctx, "pr-3")
	assert.Equal(t, "v1", reloaded.PendingChange.NewContent)
}

func TestAppendHistoryIsMonotonic(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i, ref := range []string{"c1", "c2", "c3"} {
		err := store.AppendHistory(ctx, "pr-4", HistoryEntry{
			FilePath:   "README.md",
			NewContent: ref,
			CommitRef:  ref,
			AppliedAt:  time.Now().Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	s, err := store.Get(ctx, "pr-4")
	require.NoError(t, err)
	require.Len(t, s.History, 3)
	assert.Equal(t, "c1", s.History[0].CommitRef)
	assert.Equal(t, "c3", s.History[2].CommitRef)
	assert.Equal(t, "c3", s.LastHistory().CommitRef)
}

func TestMutateErrorDiscardsChanges(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.Mutate(ctx, "pr-5", func(s *Session) error {
		s.ApprovalState = StateAwaitingApproval
		return assert.AnError
	})
	require.Error(t, err)

	s, _ := store.Get(ctx, "pr-5")
	assert.Equal(t, StateNone, s.ApprovalState)
}

func TestMutateSerializesSamePullRequest(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Mutate(ctx, "pr-6", func(s *Session) error {
				s.History = append(s.History, HistoryEntry{FilePath: "README.md"})
				return nil
			})
		}()
	}
	wg.Wait()

	s, err := store.Get(ctx, "pr-6")
	require.NoError(t, err)
	assert.Len(t, s.History, workers)
}

func TestSessionsAreIndependent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Mutate(ctx, "pr-a", func(s *Session) error {
		s.ApprovalState = StateApplied
		return nil
	}))

	other, _ := store.Get(ctx, "pr-b")
	assert.Equal(t, StateNone, other.ApprovalState)
}
