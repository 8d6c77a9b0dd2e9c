// chatctl is a terminal client for exercising a conversation end to end.
// It opens both parties' live sessions over one store, so every optimistic
// send, feed echo, edit and delete can be watched reconciling in real time.
//
// Usage:
//
//	s <text>            send as the student
//	f <text>            send as the faculty member
//	file s <path>       send a file attachment as the student
//	edit f <id> <text>  edit one of the faculty's messages
//	delme s <id>        delete a student message from the student's view
//	delall s <id>       delete a student message for everyone
//	focus f / blur f    toggle the faculty's auto read-marking
//	show s              print the timeline as the student sees it
//	unread s            read the student's unread counter (needs VALKEY_ADDR)
//	mute s / unmute s   toggle the student's notifications (needs VALKEY_ADDR)
//	q                   quit
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/devanshm/campuschat-backend/internal/chat"
	"github.com/devanshm/campuschat-backend/internal/config"
	"github.com/devanshm/campuschat-backend/internal/files"
	"github.com/devanshm/campuschat-backend/internal/models"
	"github.com/devanshm/campuschat-backend/internal/notify"
	"github.com/devanshm/campuschat-backend/internal/storage"
	"github.com/devanshm/campuschat-backend/internal/storage/memory"
	"github.com/devanshm/campuschat-backend/internal/storage/postgres"
)

func main() {
	studentID := flagOr(1, "stu-1")
	facultyID := flagOr(2, "fac-1")
	cfg := config.Load()
	ctx := context.Background()

	var store storage.Store
	if cfg.DatabaseURL != "" {
		pgStore, err := postgres.NewChatStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("opening postgres store: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
	} else {
		log.Println("[chatctl] DATABASE_URL not set, using in-memory store")
		store = memory.NewChatStore()
	}

	uploader, err := files.NewLocalStore(cfg.UploadDir, cfg.UploadBaseURL)
	if err != nil {
		log.Fatalf("opening upload dir: %v", err)
	}

	sessions := map[string]*chat.Session{}
	dispatchers := map[string]*notify.ValkeyDispatcher{}
	for tag, self := range map[string]string{"s": studentID, "f": facultyID} {
		opts := chat.Options{
			Store:     store,
			Uploader:  uploader,
			SelfID:    self,
			StudentID: studentID,
			FacultyID: facultyID,
		}
		if cfg.ValkeyAddr != "" {
			dispatcher, err := notify.NewValkeyDispatcher(cfg.ValkeyAddr, self)
			if err != nil {
				log.Fatalf("connecting notifier for %s: %v", self, err)
			}
			defer dispatcher.Close()
			opts.Notifier = dispatcher
			dispatchers[tag] = dispatcher
		}
		session, err := chat.Open(ctx, opts)
		if err != nil {
			log.Fatalf("opening session for %s: %v", self, err)
		}
		defer session.Close()
		sessions[tag] = session
	}
	fmt.Printf("conversation %s open: s=%s f=%s\n", sessions["s"].Conversation().ID, studentID, facultyID)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "q" {
			return
		}
		if err := dispatch(ctx, sessions, dispatchers, line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func dispatch(ctx context.Context, sessions map[string]*chat.Session, dispatchers map[string]*notify.ValkeyDispatcher, line string) error {
	fields := strings.Fields(line)
	cmd := fields[0]

	if session, ok := sessions[cmd]; ok {
		text := strings.TrimSpace(strings.TrimPrefix(line, cmd))
		if text == "" {
			return fmt.Errorf("nothing to send")
		}
		return session.Send(ctx, chat.Draft{Kind: models.KindText, Content: text})
	}

	if len(fields) < 2 {
		return fmt.Errorf("unknown command %q", line)
	}
	session, ok := sessions[fields[1]]
	if !ok {
		return fmt.Errorf("unknown party %q, want s or f", fields[1])
	}

	switch cmd {
	case "show":
		render(session)
		return nil
	case "focus":
		session.Focus(ctx)
		return nil
	case "blur":
		session.Blur()
		return nil
	case "file":
		if len(fields) < 3 {
			return fmt.Errorf("file needs a path")
		}
		data, err := os.ReadFile(fields[2])
		if err != nil {
			return err
		}
		return session.Send(ctx, chat.Draft{
			Kind: models.KindFile,
			Attachment: &chat.Attachment{
				Name: filepath.Base(fields[2]),
				Data: data,
			},
		})
	case "edit":
		if len(fields) < 4 {
			return fmt.Errorf("edit needs an id and new text")
		}
		return session.Edit(ctx, fields[2], strings.Join(fields[3:], " "))
	case "delme":
		if len(fields) < 3 {
			return fmt.Errorf("delme needs an id")
		}
		return session.DeleteForMe(ctx, fields[2])
	case "delall":
		if len(fields) < 3 {
			return fmt.Errorf("delall needs an id")
		}
		return session.DeleteForEveryone(ctx, fields[2])
	case "unread":
		dispatcher, ok := dispatchers[fields[1]]
		if !ok {
			return fmt.Errorf("no notifier; set VALKEY_ADDR")
		}
		n, err := dispatcher.Unread(session.Conversation().ID)
		if err != nil {
			return err
		}
		conv := session.Conversation()
		fmt.Printf("%d unread from %s\n", n, conv.PeerOf(session.SelfID()))
		return nil
	case "mute", "unmute":
		dispatcher, ok := dispatchers[fields[1]]
		if !ok {
			return fmt.Errorf("no notifier; set VALKEY_ADDR")
		}
		return dispatcher.SetEnabled(cmd == "unmute")
	}
	return fmt.Errorf("unknown command %q", cmd)
}

// render prints the timeline the way a client would lay it out: grouped by
// calendar day, sender runs marked, own messages carrying their delivery
// status.
func render(session *chat.Session) {
	self := session.SelfID()
	for _, group := range chat.GroupTimeline(session.Snapshot()) {
		fmt.Printf("-- %s --\n", group.Date.Format("Mon 02 Jan 2006"))
		for _, entry := range group.Messages {
			m := entry.Message
			marker := " "
			if entry.FirstInRun {
				marker = m.SenderID
			}
			status := ""
			if m.SenderID == self {
				switch chat.StatusOf(m) {
				case chat.StatusSent:
					status = " [sending]"
				case chat.StatusDelivered:
					status = " [delivered]"
				case chat.StatusRead:
					status = " [read]"
				}
			}
			body := m.Content
			if m.Kind != models.KindText && !m.DeletedForEveryone {
				body = fmt.Sprintf("(%s) %s %s", m.Kind, m.AttachmentName, m.AttachmentURL)
			}
			edited := ""
			if m.IsEdited {
				edited = " (edited)"
			}
			fmt.Printf("%8s  %s  %s%s%s  [%s]\n",
				marker, m.CreatedAt.Format("15:04"), body, edited, status, m.ID)
		}
	}
}

func flagOr(i int, fallback string) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return fallback
}
