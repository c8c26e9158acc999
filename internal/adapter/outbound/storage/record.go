package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/privd/privd/internal/apperr"
	"github.com/privd/privd/internal/domain/policy"
)

func encodeType(t policy.Type) string {
	return fmt.Sprintf("0x%04X", uint16(t))
}

func decodeType(s string) (policy.Type, error) {
	if len(s) < 2 || (s[0:2] != "0x" && s[0:2] != "0X") {
		return 0, fmt.Errorf("policy type missing 0x prefix: %q", s)
	}
	v, err := strconv.ParseUint(s[2:], 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid policy type %q: %w", s, err)
	}
	return policy.Type(v), nil
}

// encodeIndexLine renders one "buckets" index record: id;default-type;default-meta.
func encodeIndexLine(id string, def policy.Result) string {
	return fmt.Sprintf("%s;%s;%s", id, encodeType(def.Type), def.Metadata)
}

func decodeIndexLine(line string) (id string, def policy.Result, err error) {
	parts := strings.SplitN(line, ";", 3)
	if len(parts) != 3 {
		return "", policy.Result{}, fmt.Errorf("malformed index line: %q", line)
	}
	t, err := decodeType(parts[1])
	if err != nil {
		return "", policy.Result{}, err
	}
	return parts[0], policy.Result{Type: t, Metadata: parts[2]}, nil
}

// encodePolicyLine renders one bucket-file record:
// client;user;privilege;type-hex;metadata.
func encodePolicyLine(p policy.Policy) string {
	return fmt.Sprintf("%s;%s;%s;%s;%s", p.Key.Client, p.Key.User, p.Key.Privilege, encodeType(p.Result.Type), p.Result.Metadata)
}

func decodePolicyLine(line string) (policy.Policy, error) {
	parts := strings.SplitN(line, ";", 5)
	if len(parts) != 5 {
		return policy.Policy{}, apperr.New(apperr.CodeDatabaseCorrupted, fmt.Sprintf("malformed policy line: %q", line))
	}
	t, err := decodeType(parts[3])
	if err != nil {
		return policy.Policy{}, apperr.New(apperr.CodeDatabaseCorrupted, err.Error())
	}
	return policy.Policy{
		Key:    policy.Key{Client: parts[0], User: parts[1], Privilege: parts[2]},
		Result: policy.Result{Type: t, Metadata: parts[4]},
	}, nil
}
