// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/flowchat-tui/internal/conversation"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleMessages() []*conversation.Message {
	return []*conversation.Message{
		conversation.NewMessage(conversation.RoleUser, "What is the capital of France?"),
		conversation.NewMessage(conversation.RoleBot, "The capital of France is Paris."),
	}
}

func TestSaveAndLoad(t *testing.T) {
	store := openTestStore(t)
	msgs := sampleMessages()

	require.NoError(t, store.Save("session-1", msgs))

	loaded, err := store.Load("session-1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, msgs[0].ID, loaded[0].ID)
	require.Equal(t, conversation.RoleUser, loaded[0].Role)
	require.Equal(t, "What is the capital of France?", loaded[0].Text)
	require.Equal(t, conversation.RoleBot, loaded[1].Role)
}

func TestSave_ReplacesSnapshot(t *testing.T) {
	store := openTestStore(t)
	msgs := sampleMessages()

	require.NoError(t, store.Save("session-1", msgs[:1]))
	require.NoError(t, store.Save("session-1", msgs))

	loaded, err := store.Load("session-1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
}

func TestLoad_NotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Load("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestList_OrderAndMetadata(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Save("first", sampleMessages()))
	require.NoError(t, store.Save("second", sampleMessages()[:1]))

	metas, err := store.List()
	require.NoError(t, err)
	require.Len(t, metas, 2)
	require.Equal(t, "second", metas[0].ID, "most recently updated first")
	require.Equal(t, 1, metas[0].MessageCount)
	require.Equal(t, 2, metas[1].MessageCount)
	require.Equal(t, "What is the capital of France?", metas[1].Title)
}

func TestDelete(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Save("session-1", sampleMessages()))

	require.NoError(t, store.Delete("session-1"))
	_, err := store.Load("session-1")
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, store.Delete("session-1"), ErrNotFound)
}

func TestPrune_KeepsNewest(t *testing.T) {
	store := openTestStore(t)
	store.MaxConversations = 3

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("session-%d", i)
		require.NoError(t, store.Save(id, sampleMessages()))
	}

	metas, err := store.List()
	require.NoError(t, err)
	require.Len(t, metas, 3)
	for _, m := range metas {
		require.NotEqual(t, "session-0", m.ID)
		require.NotEqual(t, "session-1", m.ID)
	}
}

func TestSave_TitleCatchesUpOnLaterSaves(t *testing.T) {
	store := openTestStore(t)

	// First save happens before any user message exists.
	errOnly := []*conversation.Message{
		conversation.NewMessage(conversation.RoleError, "Something went wrong"),
	}
	require.NoError(t, store.Save("session-1", errOnly))

	metas, err := store.List()
	require.NoError(t, err)
	require.Equal(t, untitled, metas[0].Title)

	require.NoError(t, store.Save("session-1", sampleMessages()))

	metas, err = store.List()
	require.NoError(t, err)
	require.Equal(t, "What is the capital of France?", metas[0].Title)

	// A later save with no user message keeps the derived title.
	require.NoError(t, store.Save("session-1", errOnly))

	metas, err = store.List()
	require.NoError(t, err)
	require.Equal(t, "What is the capital of France?", metas[0].Title)
}

func TestDeriveTitle_LongMessageTruncated(t *testing.T) {
	store := openTestStore(t)
	long := "This is a very long question that should definitely be cut down to a reasonable title length for the list view"
	msgs := []*conversation.Message{conversation.NewMessage(conversation.RoleUser, long)}

	require.NoError(t, store.Save("session-1", msgs))

	metas, err := store.List()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	require.LessOrEqual(t, len([]rune(metas[0].Title)), 60)
}
