//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"support-relay/contract"
	"support-relay/domain"
)

var _ contract.TranscriptStore = ConversationRepository{}

type IConversationRepository interface {
	StoreMessage(msg domain.Message) error
	Transcript(seekerID string, cursor *string) ([]StoredMessage, *string, error)
}

// ConversationRepository persists relayed messages per conversation. Routing
// state is volatile; only conversation content survives a restart.
type ConversationRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewConversationRepository(db *badger.DB, log *slog.Logger, limitMessages *int) ConversationRepository {
	return ConversationRepository{db: db, log: log, limitMessages: limitMessages}
}

// StoredMessage is the on-disk representation of one relayed message.
type StoredMessage struct {
	ID         uuid.UUID   `json:"id"`
	SeekerID   string      `json:"seeker_id"`
	SenderRole domain.Role `json:"sender_role"`
	SenderID   string      `json:"sender_id"`
	Text       string      `json:"text"`
	At         time.Time   `json:"at"`
}

// StoreMessage persists one message. The key is
// "conv:{seeker_id}:{timestamp_padded}:{uuid}" so that:
//  1. A prefix scan per seeker walks its conversation chronologically
//     (19-digit zero padding keeps lexicographic and time order aligned).
//  2. The trailing uuid disambiguates two messages landing on the same
//     nanosecond.
func (c ConversationRepository) StoreMessage(msg domain.Message) error {
	id := msg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	at := msg.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	key := fmt.Sprintf("conv:%s:%019d:%s", msg.SeekerID, at.UnixNano(), id)
	data, err := json.Marshal(StoredMessage{
		ID:         id,
		SeekerID:   msg.SeekerID,
		SenderRole: msg.SenderRole,
		SenderID:   msg.SenderID,
		Text:       msg.Text,
		At:         at,
	})
	if err != nil {
		return err
	}

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Transcript pages through a seeker's conversation newest-first. The
// returned cursor, fed back on the next call, resumes right after the last
// delivered message; nil means the conversation is exhausted.
func (c ConversationRepository) Transcript(seekerID string, cursor *string) ([]StoredMessage, *string, error) {
	var messages []StoredMessage
	var lastKey string

	err := c.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("conv:%s:", seekerID)
		prefix := []byte(prefixStr)

		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if c.limitMessages != nil && len(messages) == *c.limitMessages {
				c.log.Debug(fmt.Sprintf("Transcript page limit of %d reached", *c.limitMessages))
				break
			}

			item := it.Item()
			var stored StoredMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			}); err != nil {
				return err
			}
			messages = append(messages, stored)
			lastKey = strings.TrimPrefix(string(item.Key()), prefixStr)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// No cursor when the page came back short: the caller reached the end.
	if c.limitMessages == nil || len(messages) < *c.limitMessages || lastKey == "" {
		return messages, nil, nil
	}
	return messages, lo.ToPtr(lastKey), nil
}
