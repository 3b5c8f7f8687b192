package store

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/voicelink/internal/conversation"
)

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Profile(t *testing.T) {
	ctx := context.Background()
	s := openMem(t)

	p, err := s.Profile(ctx)
	require.NoError(t, err)
	assert.False(t, p.OnboardingComplete)

	want := Profile{Name: "Asha", Language: "hi-IN", Gender: "female", OnboardingComplete: true}
	require.NoError(t, s.SaveProfile(ctx, want))

	p, err = s.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, p)
}

func TestStore_Conversation(t *testing.T) {
	ctx := context.Background()
	s := openMem(t)

	recents, err := s.Recents(ctx)
	require.NoError(t, err)
	assert.Empty(t, recents)

	phrases := []conversation.Phrase{{ID: "water", English: "Water", Hindi: "पानी"}}
	require.NoError(t, s.SaveRecents(ctx, phrases))

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msgs := []conversation.Message{{ID: "1", Text: "hello", Sender: conversation.SenderPartner, Type: conversation.TypeVoice, Timestamp: ts}}
	require.NoError(t, s.SaveHistory(ctx, msgs))

	recents, err = s.Recents(ctx)
	require.NoError(t, err)
	assert.Equal(t, phrases, recents)

	history, err := s.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Text)
	assert.True(t, ts.Equal(history[0].Timestamp))

	require.NoError(t, s.ClearConversation(ctx))
	require.NoError(t, s.ClearConversation(ctx))

	history, err = s.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestStore_OnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(Options{Dir: dir}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.SaveProfile(ctx, Profile{Name: "Ravi", OnboardingComplete: true}))
	require.NoError(t, s.Close())

	s, err = Open(Options{Dir: dir}, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	p, err := s.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ravi", p.Name)
}

func TestOpen_RequiresDir(t *testing.T) {
	_, err := Open(Options{}, zerolog.Nop())
	assert.Error(t, err)
}
