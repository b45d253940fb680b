package jwt

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// IssuerName is the only issuer this service signs for and accepts.
const IssuerName = "conduit.blog.app"

const (
	userSubjectPrefix = "user:"
	publicSubject     = "public"
)

// Issuer is the token issuer. It has a single value whose text form is
// IssuerName.
type Issuer struct{}

// ParseIssuer accepts IssuerName and rejects anything else.
func ParseIssuer(s string) (Issuer, error) {
	if s != IssuerName {
		return Issuer{}, fmt.Errorf("%w: unknown issuer %q", ErrInvalidPayload, s)
	}
	return Issuer{}, nil
}

// String returns IssuerName.
func (Issuer) String() string { return IssuerName }

// SubjectKind distinguishes authenticated users from anonymous callers.
type SubjectKind uint8

const (
	// SubjectPublic identifies an anonymous caller.
	SubjectPublic SubjectKind = iota + 1
	// SubjectUser identifies an account by its UUID.
	SubjectUser
)

// Subject is who a token speaks for. Its text form is "user:<uuid>" or
// "public". The zero value is invalid and is rejected by Issue.
type Subject struct {
	kind   SubjectKind
	userID uuid.UUID
}

// PublicSubject returns the anonymous subject.
func PublicSubject() Subject {
	return Subject{kind: SubjectPublic}
}

// UserSubject returns the subject for the given account.
func UserSubject(id uuid.UUID) Subject {
	return Subject{kind: SubjectUser, userID: id}
}

// ParseSubject decodes the text form. User IDs must be in canonical
// lowercase hyphenated form so the value re-encodes byte for byte.
func ParseSubject(s string) (Subject, error) {
	if s == publicSubject {
		return PublicSubject(), nil
	}
	raw, ok := strings.CutPrefix(s, userSubjectPrefix)
	if !ok {
		return Subject{}, fmt.Errorf("%w: malformed subject", ErrInvalidPayload)
	}
	id, err := uuid.Parse(raw)
	if err != nil || id.String() != raw {
		return Subject{}, fmt.Errorf("%w: malformed subject user id", ErrInvalidPayload)
	}
	return UserSubject(id), nil
}

// Kind reports which variant s holds.
func (s Subject) Kind() SubjectKind { return s.kind }

// IsPublic reports whether s is the anonymous subject.
func (s Subject) IsPublic() bool { return s.kind == SubjectPublic }

// UserID returns the account id for user subjects.
func (s Subject) UserID() (uuid.UUID, bool) {
	if s.kind != SubjectUser {
		return uuid.Nil, false
	}
	return s.userID, true
}

// String returns the text form, or "" for the zero value.
func (s Subject) String() string {
	switch s.kind {
	case SubjectPublic:
		return publicSubject
	case SubjectUser:
		return userSubjectPrefix + s.userID.String()
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Subject) MarshalText() ([]byte, error) {
	if s.kind == 0 {
		return nil, fmt.Errorf("%w: empty subject", ErrInvalidPayload)
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Subject) UnmarshalText(text []byte) error {
	parsed, err := ParseSubject(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Subject) valid() bool {
	return s.kind == SubjectPublic || s.kind == SubjectUser
}
