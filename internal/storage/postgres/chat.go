package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/devanshm/campuschat-backend/internal/models"
	"github.com/devanshm/campuschat-backend/internal/storage"
	_ "github.com/lib/pq" // PostgreSQL driver
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_conversations (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	student_id TEXT NOT NULL,
	faculty_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (student_id, faculty_id)
);
CREATE TABLE IF NOT EXISTS chat_messages (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	seq BIGSERIAL,
	conversation_id UUID NOT NULL REFERENCES chat_conversations(id),
	sender_id TEXT NOT NULL,
	kind TEXT NOT NULL DEFAULT 'text',
	content TEXT NOT NULL DEFAULT '',
	attachment_url TEXT NOT NULL DEFAULT '',
	attachment_name TEXT NOT NULL DEFAULT '',
	attachment_size BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	is_read BOOLEAN NOT NULL DEFAULT FALSE,
	is_edited BOOLEAN NOT NULL DEFAULT FALSE,
	edited_at TIMESTAMPTZ,
	deleted_for_sender BOOLEAN NOT NULL DEFAULT FALSE,
	deleted_for_everyone BOOLEAN NOT NULL DEFAULT FALSE,
	reply_to_id TEXT,
	reply_to_sender TEXT,
	reply_to_preview TEXT
);
CREATE INDEX IF NOT EXISTS chat_messages_conversation_idx
	ON chat_messages (conversation_id, created_at, seq);
`

const messageColumns = `id, conversation_id, sender_id, kind, content,
	attachment_url, attachment_name, attachment_size, created_at,
	is_read, is_edited, edited_at,
	deleted_for_sender, deleted_for_everyone,
	reply_to_id, reply_to_sender, reply_to_preview`

// ChatStore implements storage.Store on PostgreSQL. The change feed is
// process-local: writes publish to an in-process bus after committing,
// which is sufficient for the single-server deployment this backs.
type ChatStore struct {
	db   *sql.DB
	feed *storage.Bus
}

// NewChatStore opens the database, verifies connectivity, and ensures the
// schema exists.
func NewChatStore(dataSourceName string) (*ChatStore, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database connection for chat: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connecting to database for chat: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("ensuring chat schema: %w", err)
	}
	log.Println("[store] connected to PostgreSQL for chat")
	return &ChatStore{db: db, feed: storage.NewBus()}, nil
}

// GetOrCreateConversation finds or creates the conversation for the pair.
// A concurrent create of the same pair loses the unique-constraint race
// silently: ON CONFLICT DO NOTHING returns no row, and the re-select
// picks up the winner. Both callers see the same conversation.
func (s *ChatStore) GetOrCreateConversation(ctx context.Context, studentID, facultyID string) (*models.Conversation, error) {
	selectQuery := `
		SELECT id, student_id, faculty_id, created_at
		FROM chat_conversations
		WHERE student_id = $1 AND faculty_id = $2
	`
	conv := &models.Conversation{}
	err := s.db.QueryRowContext(ctx, selectQuery, studentID, facultyID).Scan(
		&conv.ID, &conv.StudentID, &conv.FacultyID, &conv.CreatedAt,
	)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("looking up conversation: %w", err)
	}

	insertQuery := `
		INSERT INTO chat_conversations (student_id, faculty_id)
		VALUES ($1, $2)
		ON CONFLICT (student_id, faculty_id) DO NOTHING
		RETURNING id, student_id, faculty_id, created_at
	`
	err = s.db.QueryRowContext(ctx, insertQuery, studentID, facultyID).Scan(
		&conv.ID, &conv.StudentID, &conv.FacultyID, &conv.CreatedAt,
	)
	if err == nil {
		log.Printf("[store] created conversation %s (%s, %s)", conv.ID, studentID, facultyID)
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	// Lost the race; the winner's row exists now.
	err = s.db.QueryRowContext(ctx, selectQuery, studentID, facultyID).Scan(
		&conv.ID, &conv.StudentID, &conv.FacultyID, &conv.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("re-fetching conversation after conflict: %w", err)
	}
	return conv, nil
}

func (s *ChatStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, student_id, faculty_id, created_at
		FROM chat_conversations WHERE id = $1
	`, id).Scan(&conv.ID, &conv.StudentID, &conv.FacultyID, &conv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation %s: %w", id, err)
	}
	return conv, nil
}

func (s *ChatStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM chat_messages WHERE id = $1`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading message %s: %w", id, err)
	}
	return msg, nil
}

func (s *ChatStore) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM chat_messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, seq ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages for %s: %w", conversationID, err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		msgs = append(msgs, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}
	return msgs, nil
}

func (s *ChatStore) InsertMessage(ctx context.Context, msg models.Message) (*models.Message, error) {
	var replyID, replySender, replyPreview sql.NullString
	if msg.ReplyTo != nil {
		replyID = sql.NullString{String: msg.ReplyTo.MessageID, Valid: true}
		replySender = sql.NullString{String: msg.ReplyTo.SenderID, Valid: true}
		replyPreview = sql.NullString{String: msg.ReplyTo.Preview, Valid: true}
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO chat_messages
			(conversation_id, sender_id, kind, content,
			 attachment_url, attachment_name, attachment_size,
			 reply_to_id, reply_to_sender, reply_to_preview)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+messageColumns,
		msg.ConversationID, msg.SenderID, string(msg.Kind), msg.Content,
		msg.AttachmentURL, msg.AttachmentName, msg.AttachmentSize,
		replyID, replySender, replyPreview,
	)
	stored, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	echo := *stored
	s.feed.Publish(models.FeedEvent{
		Type:           models.FeedInsert,
		ConversationID: stored.ConversationID,
		Message:        &echo,
	})
	return stored, nil
}

// UpdateMessage applies the patch with a read-modify-write under row lock
// so the merge rules (only declared fields, delete-for-everyone is
// monotonic and rewrites content) live in exactly one place: the patch
// itself.
func (s *ChatStore) UpdateMessage(ctx context.Context, id string, patch models.MessagePatch) (*models.Message, error) {
	if patch.IsEdited != nil && *patch.IsEdited && patch.EditedAt == nil {
		now := time.Now().UTC()
		patch.EditedAt = &now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting update transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM chat_messages WHERE id = $1 FOR UPDATE`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("locking message %s: %w", id, err)
	}

	patch.Apply(msg)

	_, err = tx.ExecContext(ctx, `
		UPDATE chat_messages SET
			content = $2, attachment_url = $3, attachment_name = $4,
			attachment_size = $5, is_read = $6, is_edited = $7,
			edited_at = $8, deleted_for_sender = $9, deleted_for_everyone = $10
		WHERE id = $1
	`, id, msg.Content, msg.AttachmentURL, msg.AttachmentName,
		msg.AttachmentSize, msg.IsRead, msg.IsEdited, msg.EditedAt,
		msg.DeletedForSender, msg.DeletedForEveryone,
	)
	if err != nil {
		return nil, fmt.Errorf("updating message %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing update of %s: %w", id, err)
	}

	s.feed.Publish(models.FeedEvent{
		Type:           models.FeedUpdate,
		ConversationID: msg.ConversationID,
		MessageID:      id,
		Patch:          &patch,
	})
	return msg, nil
}

func (s *ChatStore) MarkConversationRead(ctx context.Context, conversationID, readerID string) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE chat_messages
		SET is_read = TRUE
		WHERE conversation_id = $1 AND sender_id <> $2 AND NOT is_read
		RETURNING id
	`, conversationID, readerID)
	if err != nil {
		return 0, fmt.Errorf("bulk read-mark for %s: %w", conversationID, err)
	}
	defer rows.Close()

	var flippedIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("scanning read-mark row: %w", err)
		}
		flippedIDs = append(flippedIDs, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating read-mark rows: %w", err)
	}

	read := true
	for _, id := range flippedIDs {
		s.feed.Publish(models.FeedEvent{
			Type:           models.FeedUpdate,
			ConversationID: conversationID,
			MessageID:      id,
			Patch:          &models.MessagePatch{IsRead: &read},
		})
	}
	return len(flippedIDs), nil
}

func (s *ChatStore) Subscribe(conversationID string, fn func(models.FeedEvent)) (storage.Subscription, error) {
	return s.feed.Subscribe(conversationID, fn), nil
}

// Close closes the database connection.
func (s *ChatStore) Close() error {
	return s.db.Close()
}

// scanMessage reads one message row from either *sql.Row or *sql.Rows.
func scanMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	msg := &models.Message{}
	var (
		kind                               string
		editedAt                           sql.NullTime
		replyID, replySender, replyPreview sql.NullString
	)
	err := row.Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &kind, &msg.Content,
		&msg.AttachmentURL, &msg.AttachmentName, &msg.AttachmentSize, &msg.CreatedAt,
		&msg.IsRead, &msg.IsEdited, &editedAt,
		&msg.DeletedForSender, &msg.DeletedForEveryone,
		&replyID, &replySender, &replyPreview,
	)
	if err != nil {
		return nil, err
	}
	msg.Kind = models.MessageKind(kind)
	if editedAt.Valid {
		t := editedAt.Time
		msg.EditedAt = &t
	}
	if replyID.Valid {
		msg.ReplyTo = &models.ReplySnapshot{
			MessageID: replyID.String,
			SenderID:  replySender.String,
			Preview:   replyPreview.String,
		}
	}
	return msg, nil
}
