package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devanshm/campuschat-backend/internal/models"
	"github.com/devanshm/campuschat-backend/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestSendValidation(t *testing.T) {
	st := newStubStore()
	session, _ := openTestSession(t, st, testStudent)

	cases := []struct {
		name  string
		draft Draft
	}{
		{"empty text", Draft{Kind: models.KindText}},
		{"unknown kind", Draft{Kind: "video", Content: "x"}},
		{"image without payload", Draft{Kind: models.KindImage}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := session.Send(context.Background(), tc.draft)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
	// Nothing reached the list or the wire.
	require.Empty(t, session.Snapshot())
}

func TestSendPromotesPlaceholderOnAck(t *testing.T) {
	st := newStubStore()
	session, _ := openTestSession(t, st, testStudent)

	require.NoError(t, session.Send(context.Background(), Draft{Kind: models.KindText, Content: "hello"}))

	got := session.Snapshot()
	require.Len(t, got, 1)
	require.Equal(t, "durable-1", got[0].ID)
	require.False(t, got[0].Pending)
	require.Equal(t, StatusDelivered, StatusOf(got[0]))
}

func TestSendEchoBeforeAck(t *testing.T) {
	// Scenario: the push-insert echo for an optimistic send lands before
	// the direct write acknowledgment. The final list holds exactly one
	// message, under the durable ID.
	st := newStubStore()
	session, _ := openTestSession(t, st, testStudent)

	entered := make(chan models.Message, 1)
	release := make(chan struct{})
	st.insertHook = func(msg models.Message) (*models.Message, error) {
		entered <- msg
		<-release
		d := msg
		d.ID = "d1"
		d.CreatedAt = time.Now().UTC()
		return &d, nil
	}

	sendDone := make(chan error, 1)
	go func() {
		sendDone <- session.Send(context.Background(), Draft{Kind: models.KindText, Content: "hello"})
	}()

	wire := <-entered
	// Placeholder is already visible and pending.
	got := session.Snapshot()
	require.Len(t, got, 1)
	require.True(t, got[0].Pending)
	require.Equal(t, StatusSent, StatusOf(got[0]))

	// The echo arrives first.
	echo := wire
	echo.ID = "d1"
	echo.CreatedAt = time.Now().UTC()
	st.Emit(models.FeedEvent{Type: models.FeedInsert, ConversationID: testConvID, Message: &echo})

	got = session.Snapshot()
	require.Len(t, got, 1, "echo must absorb the placeholder, not duplicate it")
	require.Equal(t, "d1", got[0].ID)
	require.False(t, got[0].Pending)

	// Now the ack returns; it must be a no-op.
	close(release)
	require.NoError(t, <-sendDone)

	got = session.Snapshot()
	require.Len(t, got, 1)
	require.Equal(t, "d1", got[0].ID)
}

func TestSendFailureRollsBackOnce(t *testing.T) {
	st := newStubStore()
	session, _ := openTestSession(t, st, testStudent)

	boom := errors.New("connection reset")
	st.insertHook = func(models.Message) (*models.Message, error) { return nil, boom }

	draft := Draft{Kind: models.KindText, Content: "lost?"}
	err := session.Send(context.Background(), draft)

	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	require.Equal(t, draft.Content, sendErr.Draft.Content, "draft returns to the caller")
	require.True(t, sendErr.Retryable())
	require.Empty(t, session.Snapshot(), "placeholder rolled back")
}

func TestSendPermissionDeniedNotRetryable(t *testing.T) {
	st := newStubStore()
	session, _ := openTestSession(t, st, testStudent)

	st.insertHook = func(models.Message) (*models.Message, error) {
		return nil, storage.ErrPermissionDenied
	}

	err := session.Send(context.Background(), Draft{Kind: models.KindText, Content: "nope"})
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	require.False(t, sendErr.Retryable())
	require.Empty(t, session.Snapshot())
}

func TestIdenticalBurstMatchesFIFO(t *testing.T) {
	// Two identical in-flight sends: each echo absorbs the oldest
	// remaining placeholder, so the list ends with exactly two entries.
	st := newStubStore()
	session, _ := openTestSession(t, st, testStudent)

	entered := make(chan models.Message, 2)
	release := make(chan struct{})
	st.insertHook = func(msg models.Message) (*models.Message, error) {
		entered <- msg
		<-release
		return nil, errors.New("ack lost") // echoes win both races
	}

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			results <- session.Send(context.Background(), Draft{Kind: models.KindText, Content: "same"})
		}()
	}
	first := <-entered
	second := <-entered

	for i, wire := range []models.Message{first, second} {
		echo := wire
		echo.ID = []string{"d1", "d2"}[i]
		echo.CreatedAt = time.Now().UTC()
		st.Emit(models.FeedEvent{Type: models.FeedInsert, ConversationID: testConvID, Message: &echo})
	}

	got := session.Snapshot()
	require.Len(t, got, 2)
	require.ElementsMatch(t, []string{"d1", "d2"}, []string{got[0].ID, got[1].ID})

	// Failed acks find promoted entries and must not remove them.
	close(release)
	<-results
	<-results
	require.Len(t, session.Snapshot(), 2)
}

func TestSendAttachmentUploadsBeforeInsert(t *testing.T) {
	st := newStubStore()
	notifier := &stubNotifier{}
	uploader := &stubUploader{url: "https://cdn.campus/notes.pdf"}
	session, err := Open(context.Background(), Options{
		Store:     st,
		Uploader:  uploader,
		Notifier:  notifier,
		SelfID:    testStudent,
		StudentID: testStudent,
		FacultyID: testFaculty,
	})
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	draft := Draft{
		Kind: models.KindFile,
		Attachment: &Attachment{
			Name:     "notes.pdf",
			Data:     []byte("pdf bytes"),
			LocalRef: "blob:local-handle",
		},
	}
	require.NoError(t, session.Send(context.Background(), draft))

	got := session.Snapshot()
	require.Len(t, got, 1)
	require.Equal(t, "https://cdn.campus/notes.pdf", got[0].AttachmentURL)
	require.Equal(t, int64(len("pdf bytes")), got[0].AttachmentSize)
}

func TestSendAttachmentUploadFailureAborts(t *testing.T) {
	st := newStubStore()
	uploader := &stubUploader{err: errors.New("upload quota exceeded")}
	session, err := Open(context.Background(), Options{
		Store:     st,
		Uploader:  uploader,
		SelfID:    testStudent,
		StudentID: testStudent,
		FacultyID: testFaculty,
	})
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	sendErr := session.Send(context.Background(), Draft{
		Kind:       models.KindImage,
		Attachment: &Attachment{Name: "pic.png", Data: []byte("png"), LocalRef: "blob:x"},
	})
	var serr *SendError
	require.ErrorAs(t, sendErr, &serr)
	require.Empty(t, session.Snapshot(), "aborted attachment send leaves no placeholder")
	require.Zero(t, st.updateCount())
}

type stubUploader struct {
	url string
	err error
}

func (u *stubUploader) Upload(context.Context, string, []byte) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	return u.url, nil
}
