package storage

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/privd/privd/internal/apperr"
	"github.com/privd/privd/internal/domain/policy"
)

// bulkFieldSeparator and the one-record-per-line shape mirror the
// original admin bulk format (cyad's AdminPolicyParser.cpp): each line is
// "bucket;client;user;privilege;type;metadata", trailing metadata may be
// empty, and a line starting with '#' or blank is skipped (the original
// only skips a final empty line; comments are a privd-native convenience
// for the YAML-adjacent --bulk format).
const bulkFieldSeparator = ";"

// ParseBulkType resolves a bulk record's type token: the four built-in
// names, or a literal "0xHHHH" plugin type the caller's registry is
// expected to recognise at evaluation time (this parser does no plugin
// lookups; it only builds well-formed Result values).
func ParseBulkType(token, metadata string) (policy.Result, error) {
	switch strings.ToUpper(token) {
	case "ALLOW":
		return policy.ResultAllow, nil
	case "DENY":
		return policy.ResultDeny, nil
	case "NONE":
		return policy.ResultNone, nil
	case "BUCKET":
		return policy.ResultBucket(metadata), nil
	}
	t, err := decodeType(token)
	if err != nil {
		return policy.Result{}, apperr.Wrap(apperr.CodeInvalidCommandline, "unrecognised policy type: "+token, err)
	}
	return policy.Result{Type: t, Metadata: metadata}, nil
}

func parseBulkLine(line string) (bucketID string, p policy.Policy, err error) {
	parts := strings.SplitN(line, bulkFieldSeparator, 6)
	if len(parts) < 5 {
		return "", policy.Policy{}, apperr.New(apperr.CodeInvalidCommandline, fmt.Sprintf("malformed bulk record (need at least 5 fields): %q", line))
	}
	metadata := ""
	if len(parts) == 6 {
		metadata = parts[5]
	}
	result, err := ParseBulkType(parts[4], metadata)
	if err != nil {
		return "", policy.Policy{}, err
	}
	key := policy.Key{Client: parts[1], User: parts[2], Privilege: parts[3]}
	return parts[0], policy.Policy{Key: key, Result: result}, nil
}

// ParseBulk reads a stream of bulk policy records and groups them into
// per-bucket PolicyEdit batches, preserving first-seen bucket order, ready
// to pass to Store.InsertPolicies as one atomic batch (§4.2). Its caller
// is the privadm bulk subcommand.
func ParseBulk(r io.Reader) ([]policy.PolicyEdit, error) {
	order := make([]string, 0)
	byBucket := make(map[string][]policy.Policy)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		bucketID, p, err := parseBulkLine(line)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInvalidCommandline, fmt.Sprintf("line %d", lineNum), err)
		}
		if _, ok := byBucket[bucketID]; !ok {
			order = append(order, bucketID)
		}
		byBucket[bucketID] = append(byBucket[bucketID], p)
	}
	if err := scanner.Err(); err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidCommandline, "read bulk input", err)
	}

	edits := make([]policy.PolicyEdit, 0, len(order))
	for _, id := range order {
		edits = append(edits, policy.PolicyEdit{BucketID: id, Policies: byBucket[id]})
	}
	return edits, nil
}
