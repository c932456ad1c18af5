package realtime

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MembershipStore resolves the principals that belong to a conversation.
type MembershipStore interface {
	// MembersOf returns ErrConversationNotFound if the conversation does not exist.
	MembersOf(ctx context.Context, conversationID int64) (map[int64]struct{}, error)
}

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresMembershipStore reads <schema>.conversations and <schema>.conversation_members.
type PostgresMembershipStore struct {
	pool   *pgxpool.Pool
	schema string
}

type MembershipOption func(*PostgresMembershipStore) error

// WithMembershipSchema sets the DB schema (default "parley").
func WithMembershipSchema(schema string) MembershipOption {
	return func(s *PostgresMembershipStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("realtime: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return errors.New("realtime: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

func NewPostgresMembershipStore(pool *pgxpool.Pool, opts ...MembershipOption) (*PostgresMembershipStore, error) {
	st := &PostgresMembershipStore{pool: pool, schema: "parley"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("realtime: nil pool")
	}
	return st, nil
}

func (s *PostgresMembershipStore) MembersOf(ctx context.Context, conversationID int64) (map[int64]struct{}, error) {
	if conversationID <= 0 {
		return nil, ErrConversationNotFound
	}

	conversations := pgx.Identifier{s.schema, "conversations"}.Sanitize()
	members := pgx.Identifier{s.schema, "conversation_members"}.Sanitize()

	// LEFT JOIN keeps one row for a conversation without members.
	rows, err := s.pool.Query(ctx,
		`SELECT m.user_id FROM `+conversations+` c
		 LEFT JOIN `+members+` m ON m.conversation_id = c.id
		 WHERE c.id = $1`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("realtime: query members: %w", err)
	}

	defer rows.Close()

	out := make(map[int64]struct{})
	found := false
	for rows.Next() {
		var uid *int64
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("realtime: scan member: %w", err)
		}
		found = true
		if uid != nil {
			out[*uid] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("realtime: read members: %w", err)
	}
	if !found {
		return nil, ErrConversationNotFound
	}
	return out, nil
}

// InMemoryMembershipStore is a process-local MembershipStore for dev and tests.
type InMemoryMembershipStore struct {
	mu    sync.RWMutex
	convs map[int64]map[int64]struct{}
}

func NewInMemoryMembershipStore() *InMemoryMembershipStore {
	return &InMemoryMembershipStore{convs: make(map[int64]map[int64]struct{})}
}

// SetMembers creates or replaces a conversation with the given members.
func (s *InMemoryMembershipStore) SetMembers(conversationID int64, principals ...int64) {
	set := make(map[int64]struct{}, len(principals))
	for _, p := range principals {
		set[p] = struct{}{}
	}
	s.mu.Lock()
	s.convs[conversationID] = set
	s.mu.Unlock()
}

// AddMember adds a principal, creating the conversation if needed.
func (s *InMemoryMembershipStore) AddMember(conversationID, principalID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.convs[conversationID]
	if !ok {
		set = make(map[int64]struct{})
		s.convs[conversationID] = set
	}
	set[principalID] = struct{}{}
}

func (s *InMemoryMembershipStore) RemoveMember(conversationID, principalID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs[conversationID], principalID)
}

func (s *InMemoryMembershipStore) DeleteConversation(conversationID int64) {
	s.mu.Lock()
	delete(s.convs, conversationID)
	s.mu.Unlock()
}

func (s *InMemoryMembershipStore) MembersOf(ctx context.Context, conversationID int64) (map[int64]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.convs[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	out := make(map[int64]struct{}, len(set))
	for p := range set {
		out[p] = struct{}{}
	}
	return out, nil
}
