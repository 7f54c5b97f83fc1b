// Package personacache stores generated per-movie descriptions for a client
// session so repeated detail requests skip generation.
package personacache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL is how long a description survives after its last write.
const DefaultTTL = 30 * time.Minute

const keyPrefix = "persona:"

// Entry is one cached description, decoded.
type Entry struct {
	MovieID  int64
	TicketID int64
	Title    string
	Detail   string
}

// Cache is keyed by (session, movie, ticket). Misses and backend failures
// both read as a miss. Writes are whole-value, last write wins.
type Cache interface {
	Get(ctx context.Context, sessionID string, movieID, ticketID int64) (string, bool)
	Put(ctx context.Context, sessionID string, movieID, ticketID int64, value string, ttl time.Duration) error
	ClearSession(ctx context.Context, sessionID string) (int, error)
	SessionEntries(ctx context.Context, sessionID string) ([]Entry, error)
	Backend() string
	Close() error
}

func Key(sessionID string, movieID, ticketID int64) string {
	return fmt.Sprintf("%s%s:%d:%d", keyPrefix, sessionID, movieID, ticketID)
}

// parseKey splits from the right so session ids may contain ':'.
func parseKey(key string) (sessionID string, movieID, ticketID int64, ok bool) {
	rest, found := strings.CutPrefix(key, keyPrefix)
	if !found {
		return "", 0, 0, false
	}
	i := strings.LastIndexByte(rest, ':')
	if i <= 0 {
		return "", 0, 0, false
	}
	ticketID, err := strconv.ParseInt(rest[i+1:], 10, 64)
	if err != nil {
		return "", 0, 0, false
	}
	rest = rest[:i]
	j := strings.LastIndexByte(rest, ':')
	if j <= 0 {
		return "", 0, 0, false
	}
	movieID, err = strconv.ParseInt(rest[j+1:], 10, 64)
	if err != nil {
		return "", 0, 0, false
	}
	return rest[:j], movieID, ticketID, true
}

// EncodeValue joins title and detail as "title|detail". Backslashes and
// pipes inside the title are escaped; the detail is stored raw.
func EncodeValue(title, detail string) string {
	var b strings.Builder
	for _, r := range title {
		if r == '\\' || r == '|' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('|')
	b.WriteString(detail)
	return b.String()
}

// DecodeValue reverses EncodeValue. A value with no unescaped separator is
// treated as a bare detail.
func DecodeValue(v string) (title, detail string, ok bool) {
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		switch c := v[i]; {
		case c == '\\' && i+1 < len(v):
			i++
			b.WriteByte(v[i])
		case c == '|':
			return b.String(), v[i+1:], true
		default:
			b.WriteByte(c)
		}
	}
	return "", v, false
}

func decodeEntry(key, value string) (Entry, bool) {
	_, movieID, ticketID, ok := parseKey(key)
	if !ok {
		return Entry{}, false
	}
	title, detail, _ := DecodeValue(value)
	return Entry{MovieID: movieID, TicketID: ticketID, Title: title, Detail: detail}, true
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
