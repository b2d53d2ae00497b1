package domain

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	dErrors "namex/pkg/domain-errors"
)

// RequestID is the surrogate key of a name request.
type RequestID int64

// UserID is the surrogate key of a staff or system user.
type UserID int64

// NRNumber is the public identifier of a name request, e.g. "NR 1234567".
type NRNumber string

// EventID identifies a single audit event.
type EventID uuid.UUID

var nrNumberPattern = regexp.MustCompile(`^NR L?\d{7,8}$`)

const maxIDLength = 32

// ParseRequestID parses a positive decimal request identifier.
func ParseRequestID(s string) (RequestID, error) {
	n, err := parsePositive(s, "request ID")
	return RequestID(n), err
}

// ParseUserID parses a positive decimal user identifier.
func ParseUserID(s string) (UserID, error) {
	n, err := parsePositive(s, "user ID")
	return UserID(n), err
}

func parsePositive(s, label string) (int64, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if len(s) > maxIDLength {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	return n, nil
}

// ParseNRNumber accepts "NR 1234567" and the compact "NR1234567" form and
// returns the canonical spaced form.
func ParseNRNumber(s string) (NRNumber, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "NR number is required")
	}
	if len(s) > maxIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid NR number")
	}
	v := strings.ToUpper(s)
	if rest, ok := strings.CutPrefix(v, "NR"); ok && !strings.HasPrefix(rest, " ") {
		v = "NR " + rest
	}
	if !nrNumberPattern.MatchString(v) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid NR number")
	}
	return NRNumber(v), nil
}

func (n NRNumber) String() string { return string(n) }

func (id RequestID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id EventID) String() string { return uuid.UUID(id).String() }

func (id EventID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *EventID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

// NewEventID returns a random event identifier.
func NewEventID() EventID { return EventID(uuid.New()) }

// ParseEventID parses a UUID event identifier.
func ParseEventID(s string) (EventID, error) {
	if s == "" {
		return EventID{}, dErrors.New(dErrors.CodeInvalidInput, "event ID is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return EventID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid event ID")
	}
	return EventID(id), nil
}
