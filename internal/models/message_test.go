package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchApplyOverwritesOnlyDeclaredFields(t *testing.T) {
	m := Message{
		ID: "m1", Kind: KindText, Content: "before",
		IsRead: false, Pending: true, LocalPreviewURL: "blob:local",
	}
	content := "after"
	MessagePatch{Content: &content}.Apply(&m)

	assert.Equal(t, "after", m.Content)
	assert.False(t, m.IsRead, "undeclared fields stay put")
	assert.True(t, m.Pending, "client-local fields survive any patch")
	assert.Equal(t, "blob:local", m.LocalPreviewURL)
}

func TestPatchApplyDeleteForEveryoneScrubs(t *testing.T) {
	m := Message{
		ID: "m1", Kind: KindImage, Content: "caption",
		AttachmentURL: "/uploads/a.png", AttachmentName: "a.png", AttachmentSize: 1024,
	}
	deleted := true
	MessagePatch{DeletedForEveryone: &deleted}.Apply(&m)

	assert.True(t, m.DeletedForEveryone)
	assert.Equal(t, DeletedPlaceholder, m.Content)
	assert.Empty(t, m.AttachmentURL)
	assert.Empty(t, m.AttachmentName)
	assert.Zero(t, m.AttachmentSize)
}

func TestPatchApplyDeleteForEveryoneIsMonotonic(t *testing.T) {
	m := Message{ID: "m1", Kind: KindText, Content: "secret", DeletedForEveryone: true}
	MessagePatch{}.Apply(&m)
	assert.Equal(t, DeletedPlaceholder, m.Content, "apply re-asserts the placeholder")

	undeleted := false
	content := "resurrected"
	MessagePatch{DeletedForEveryone: &undeleted, Content: &content}.Apply(&m)
	assert.True(t, m.DeletedForEveryone)
	assert.Equal(t, DeletedPlaceholder, m.Content)
}

func TestPatchApplyReplaysIdentically(t *testing.T) {
	m := Message{ID: "m1", Kind: KindText, Content: "v1"}
	content := "v2"
	edited := true
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	patch := MessagePatch{Content: &content, IsEdited: &edited, EditedAt: &at}

	patch.Apply(&m)
	once := m
	patch.Apply(&m)
	assert.Equal(t, once, m, "a replayed patch is a no-op")
}

func TestPatchIsZero(t *testing.T) {
	assert.True(t, MessagePatch{}.IsZero())
	read := true
	assert.False(t, MessagePatch{IsRead: &read}.IsZero())
}

func TestMessageKindValid(t *testing.T) {
	require.True(t, KindText.Valid())
	require.True(t, KindImage.Valid())
	require.True(t, KindFile.Valid())
	require.False(t, MessageKind("video").Valid())
	require.False(t, MessageKind("").Valid())
}
