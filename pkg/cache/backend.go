// Package cache stores compiled artifacts (reflection data, proxy sources,
// monitor snapshots) behind a small tag-aware key/value contract.
package cache

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var (
	ErrInvalidIdentifier = errors.New("cache: invalid identifier")
	ErrInvalidTag        = errors.New("cache: invalid tag")
	ErrUnknownBackend    = errors.New("cache: unknown backend")
)

var (
	identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_%\-&]{1,250}$`)
	tagPattern        = identifierPattern
)

// Backend is the storage contract shared by every cache.
//
// A lifetime of zero or less means the backend default lifetime applies; a
// default lifetime of zero means entries never expire.
type Backend interface {
	Set(entryID string, data []byte, tags []string, lifetime time.Duration) error
	Get(entryID string) ([]byte, bool, error)
	Has(entryID string) (bool, error)
	Remove(entryID string) (bool, error)
	Flush() error
	// FlushByTag removes every entry carrying tag and reports how many went
	FlushByTag(tag string) (int, error)
}

func ValidIdentifier(id string) bool {
	return identifierPattern.MatchString(id)
}

func ValidTag(tag string) bool {
	return tagPattern.MatchString(tag)
}

// Encode maps an arbitrary string, such as a package path, into the
// identifier alphabet by percent-encoding everything outside it.
func Encode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			c == '_', c == '-', c == '&':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// Decode reverses Encode.
func Decode(s string) (string, error) {
	return url.PathUnescape(s)
}

func checkEntry(entryID string, tags []string) error {
	if !ValidIdentifier(entryID) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, entryID)
	}
	for _, tag := range tags {
		if !ValidTag(tag) {
			return fmt.Errorf("%w: %q", ErrInvalidTag, tag)
		}
	}
	return nil
}

func expiry(now time.Time, lifetime, fallback time.Duration) int64 {
	if lifetime <= 0 {
		lifetime = fallback
	}
	if lifetime <= 0 {
		return 0
	}
	return now.Add(lifetime).Unix()
}

func expired(now time.Time, expires int64) bool {
	return expires != 0 && now.Unix() >= expires
}
