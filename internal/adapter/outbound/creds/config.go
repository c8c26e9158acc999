package creds

import (
	"bufio"
	"io"
	"strings"

	"github.com/privd/privd/internal/apperr"
)

// ParseDefaults reads a creds.conf-style file (§4.12): `key=value` lines,
// keys `client_default`/`user_default` case-insensitive, `#` starts a
// trailing comment, blank lines ignored, a duplicate key is a
// configuration error.
func ParseDefaults(r io.Reader) (Defaults, error) {
	var d Defaults
	seen := make(map[string]bool)
	haveClient, haveUser := false, false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Defaults{}, apperr.New(apperr.CodeInvalidCommandline, "malformed line: "+line)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if seen[key] {
			return Defaults{}, apperr.New(apperr.CodeInvalidCommandline, "duplicate key: "+key)
		}
		seen[key] = true

		switch key {
		case "client_default":
			m, err := ParseClientMethod(value)
			if err != nil {
				return Defaults{}, err
			}
			d.ClientDefault = m
			haveClient = true
		case "user_default":
			m, err := ParseUserMethod(value)
			if err != nil {
				return Defaults{}, err
			}
			d.UserDefault = m
			haveUser = true
		default:
			return Defaults{}, apperr.New(apperr.CodeInvalidCommandline, "unknown key: "+key)
		}
	}
	if err := scanner.Err(); err != nil {
		return Defaults{}, apperr.Wrap(apperr.CodeInvalidCommandline, "read creds.conf", err)
	}
	if !haveClient {
		return Defaults{}, apperr.New(apperr.CodeInvalidCommandline, "missing client_default")
	}
	if !haveUser {
		return Defaults{}, apperr.New(apperr.CodeInvalidCommandline, "missing user_default")
	}
	return d, nil
}
