package mailsink

import (
	"sort"
	"sync"
	"time"
)

// Message is one captured email
type Message struct {
	ID         int       `json:"id"`
	From       string    `json:"from"`
	To         []string  `json:"to"`
	Header     Header    `json:"header"`
	Subject    string    `json:"subject"`
	TextBody   string    `json:"textBody"`
	HTMLBody   string    `json:"htmlBody"`
	TLS        bool      `json:"tls"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Header keeps the parsed addressing headers of a captured message
type Header struct {
	From      string `json:"from"`
	To        string `json:"to"`
	ReplyTo   string `json:"replyTo"`
	MessageID string `json:"messageId"`
}

// Store manages captured messages in memory
type Store struct {
	mu       sync.RWMutex
	messages map[int]*Message
	nextID   int
}

// NewStore creates a new message store
func NewStore() *Store {
	return &Store{
		messages: make(map[int]*Message),
		nextID:   1,
	}
}

// Save stores a new message and returns its ID
func (s *Store) Save(msg *Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = s.nextID
	s.messages[s.nextID] = msg
	s.nextID++

	return msg.ID
}

// All returns captured messages ordered by ID
func (s *Store) All() []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Message, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// To returns the messages addressed to rcpt
func (s *Store) To(rcpt string) []*Message {
	var out []*Message
	for _, m := range s.All() {
		for _, to := range m.To {
			if to == rcpt {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// Reset removes all messages
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = make(map[int]*Message)
	s.nextID = 1
}

// Count returns the number of stored messages
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.messages)
}
