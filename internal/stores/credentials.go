package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	credentialRecordVersionV1 = 1
	maxCredentialField        = 65535
)

var (
	ErrCredentialNotFound         = errors.New("credential record not found")
	ErrCredentialEmailTaken       = errors.New("credential email already registered")
	ErrCredentialUsernameTaken    = errors.New("credential username already registered")
	ErrCredentialVersionConflict  = errors.New("credential version conflict")
	ErrCredentialRedisUnavailable = errors.New("credential redis unavailable")
)

// CredentialRecord is the persisted login identity of one user. PasswordHash
// holds the PHC string verbatim; this package never interprets it.
type CredentialRecord struct {
	UserID       string
	Username     string
	Email        string
	PasswordHash string
	Version      uint64
	CreatedAt    int64
	UpdatedAt    int64
}

type CredentialStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewCredentialStore(redisClient redis.UniversalClient, prefix string) *CredentialStore {
	if prefix == "" {
		prefix = "acr"
	}
	return &CredentialStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *CredentialStore) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

func (s *CredentialStore) emailKey(email string) string {
	return s.prefix + ":e:" + NormalizeEmail(email)
}

func (s *CredentialStore) usernameKey(username string) string {
	return s.prefix + ":n:" + username
}

// NormalizeEmail is the lookup form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts record and both of its index keys in one transaction. It
// fails with ErrCredentialEmailTaken or ErrCredentialUsernameTaken when an
// index already points elsewhere; both are reported together when both clash.
func (s *CredentialStore) Create(ctx context.Context, record *CredentialRecord) error {
	const maxRetries = 4

	encoded, err := encodeCredentialRecord(record)
	if err != nil {
		return err
	}

	userKey := s.userKey(record.UserID)
	emailKey := s.emailKey(record.Email)
	usernameKey := s.usernameKey(record.Username)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, emailKey).Result()
			if err != nil {
				return err
			}
			emailTaken := n > 0

			n, err = tx.Exists(ctx, usernameKey).Result()
			if err != nil {
				return err
			}
			usernameTaken := n > 0

			switch {
			case emailTaken && usernameTaken:
				return errors.Join(ErrCredentialEmailTaken, ErrCredentialUsernameTaken)
			case emailTaken:
				return ErrCredentialEmailTaken
			case usernameTaken:
				return ErrCredentialUsernameTaken
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, userKey, encoded, 0)
				pipe.Set(ctx, emailKey, record.UserID, 0)
				pipe.Set(ctx, usernameKey, record.UserID, 0)
				return nil
			})
			return err
		}, emailKey, usernameKey, userKey)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrCredentialEmailTaken) || errors.Is(err, ErrCredentialUsernameTaken) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrCredentialRedisUnavailable, err)
		}
		return nil
	}

	return fmt.Errorf("%w: create contention", ErrCredentialRedisUnavailable)
}

func (s *CredentialStore) GetByID(ctx context.Context, userID string) (*CredentialRecord, error) {
	data, err := s.redis.Get(ctx, s.userKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrCredentialRedisUnavailable, err)
	}
	return decodeCredentialRecord(data)
}

func (s *CredentialStore) GetByEmail(ctx context.Context, email string) (*CredentialRecord, error) {
	userID, err := s.redis.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrCredentialRedisUnavailable, err)
	}
	return s.GetByID(ctx, userID)
}

// Exists reports which of email and username are already indexed.
func (s *CredentialStore) Exists(ctx context.Context, email, username string) (emailTaken, usernameTaken bool, err error) {
	pipe := s.redis.Pipeline()
	emailCmd := pipe.Exists(ctx, s.emailKey(email))
	usernameCmd := pipe.Exists(ctx, s.usernameKey(username))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, false, fmt.Errorf("%w: %v", ErrCredentialRedisUnavailable, err)
	}
	return emailCmd.Val() > 0, usernameCmd.Val() > 0, nil
}

// UpdatePasswordHash replaces the stored hash if the record is still at
// expectedVersion, and returns the record at its new version.
func (s *CredentialStore) UpdatePasswordHash(
	ctx context.Context,
	userID string,
	expectedVersion uint64,
	passwordHash string,
	now int64,
) (*CredentialRecord, error) {
	const maxRetries = 4
	key := s.userKey(userID)

	for i := 0; i < maxRetries; i++ {
		var updated *CredentialRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return ErrCredentialNotFound
				}
				return err
			}

			record, err := decodeCredentialRecord(data)
			if err != nil {
				return err
			}
			if record.Version != expectedVersion {
				return ErrCredentialVersionConflict
			}

			record.PasswordHash = passwordHash
			record.Version++
			record.UpdatedAt = now

			encoded, err := encodeCredentialRecord(record)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				return nil
			})
			if err != nil {
				return err
			}

			updated = record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, ErrCredentialNotFound), errors.Is(err, ErrCredentialVersionConflict):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", ErrCredentialRedisUnavailable, err)
			}
		}

		return updated, nil
	}

	return nil, ErrCredentialVersionConflict
}

func encodeCredentialRecord(record *CredentialRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(credentialRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.Version); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.UpdatedAt); err != nil {
		return nil, err
	}

	for _, field := range []string{record.UserID, record.Username, record.Email, record.PasswordHash} {
		if err := writeField(&buf, field); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func decodeCredentialRecord(data []byte) (*CredentialRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != credentialRecordVersionV1 {
		return nil, errors.New("invalid credential record version")
	}

	record := &CredentialRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.Version); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.UpdatedAt); err != nil {
		return nil, err
	}

	for _, field := range []*string{&record.UserID, &record.Username, &record.Email, &record.PasswordHash} {
		if *field, err = readField(reader); err != nil {
			return nil, err
		}
	}

	return record, nil
}

func writeField(buf *bytes.Buffer, field string) error {
	if len(field) > maxCredentialField {
		return errors.New("credential record field too long")
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(field))); err != nil {
		return err
	}
	buf.WriteString(field)
	return nil
}

func readField(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	field := make([]byte, n)
	if _, err := io.ReadFull(reader, field); err != nil {
		return "", err
	}
	return string(field), nil
}
