package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StepAddress = "address"
	StepPayment = "payment"
	StepDone    = "done"
)

var ErrInvalidStep = errors.New("checkout is not at that step")

// Session is the state of a user's checkout wizard.
type Session struct {
	Step           string    `json:"step"`
	AddressID      string    `json:"addressId,omitempty"`
	GatewayOrderID string    `json:"gatewayOrderId,omitempty"`
	Amount         int64     `json:"amount,omitempty"` // minor units quoted to the gateway
	Lines          string    `json:"lines,omitempty"`  // Fingerprint of the quoted lines
	OrderID        string    `json:"orderId,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func NewSession() *Session {
	return &Session{Step: StepAddress, UpdatedAt: time.Now()}
}

// ChooseAddress moves address -> payment. Choosing again while on the
// payment step just swaps the address and drops any quoted gateway order.
func (s *Session) ChooseAddress(addressID string) error {
	if s.Step != StepAddress && s.Step != StepPayment {
		return ErrInvalidStep
	}
	s.Step = StepPayment
	s.AddressID = addressID
	s.GatewayOrderID = ""
	s.Amount = 0
	s.Lines = ""
	s.UpdatedAt = time.Now()
	return nil
}

// Back is the only backwards edge: payment -> address.
func (s *Session) Back() error {
	if s.Step != StepPayment {
		return ErrInvalidStep
	}
	s.Step = StepAddress
	s.GatewayOrderID = ""
	s.Amount = 0
	s.Lines = ""
	s.UpdatedAt = time.Now()
	return nil
}

// Quote records the gateway order opened for this payment step and the
// lines it was opened for.
func (s *Session) Quote(gatewayOrderID string, amount int64, lines string) error {
	if s.Step != StepPayment {
		return ErrInvalidStep
	}
	s.GatewayOrderID = gatewayOrderID
	s.Amount = amount
	s.Lines = lines
	s.UpdatedAt = time.Now()
	return nil
}

func (s *Session) Complete(orderID string) error {
	if s.Step != StepPayment {
		return ErrInvalidStep
	}
	s.Step = StepDone
	s.OrderID = orderID
	s.UpdatedAt = time.Now()
	return nil
}

// SessionStore keeps wizard sessions in Redis. A finished session is
// replaced by a fresh one on the next load.
type SessionStore struct {
	conn *redis.Client
	ttl  time.Duration
}

func NewSessionStore(conn *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{conn: conn, ttl: ttl}
}

func sessionKey(userID string) string {
	return "checkout:session:" + userID
}

// Load returns the current session, or a new one at the address step.
func (s *SessionStore) Load(ctx context.Context, userID string) (*Session, error) {
	raw, err := s.conn.Get(ctx, sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewSession(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkout session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return NewSession(), nil
	}
	return &sess, nil
}

// Current is Load, except that a finished session starts over.
func (s *SessionStore) Current(ctx context.Context, userID string) (*Session, error) {
	sess, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess.Step == StepDone {
		return NewSession(), nil
	}
	return sess, nil
}

// Drop forgets the session; the next load starts at the address step.
func (s *SessionStore) Drop(ctx context.Context, userID string) error {
	if err := s.conn.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("drop checkout session: %w", err)
	}
	return nil
}

func (s *SessionStore) Save(ctx context.Context, userID string, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.conn.Set(ctx, sessionKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save checkout session: %w", err)
	}
	return nil
}
