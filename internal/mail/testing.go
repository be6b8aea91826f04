package mail

import (
	"context"
	"sync"
)

// TestSender records messages instead of delivering them. Failures can be
// scripted per recipient or for every send.
type TestSender struct {
	mu       sync.Mutex
	sent     []*Message
	failWith error
	failFor  map[string]error
}

// NewTestSender returns an empty recording sender.
func NewTestSender() *TestSender {
	return &TestSender{
		sent:    make([]*Message, 0),
		failFor: make(map[string]error),
	}
}

// FailWith makes every subsequent Send return err.
func (s *TestSender) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// FailFor makes sends to a specific recipient return err.
func (s *TestSender) FailFor(recipient string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFor[recipient] = err
}

// Send records the message, or returns the scripted failure.
func (s *TestSender) Send(ctx context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return s.failWith
	}
	if err, ok := s.failFor[msg.To]; ok {
		return err
	}

	s.sent = append(s.sent, msg)
	return nil
}

// Sent returns a copy of the recorded messages.
func (s *TestSender) Sent() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]*Message, len(s.sent))
	copy(res, s.sent)
	return res
}

// Reset clears recorded messages and scripted failures.
func (s *TestSender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = make([]*Message, 0)
	s.failWith = nil
	s.failFor = make(map[string]error)
}
