package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
	"github.com/treeline-labs/confsync-cli/internal/core/ports/driven"
)

// ParseChangeset parses a change listing into an ordered changeset.
//
// Two dialects are accepted, mixed freely line by line: tab-separated
// "STATUS\tpath[\tnewPath]" as produced by git diff --name-status, and
// space-separated tokens where paths containing blanks are double
// quoted. A line holding nothing but a path is a modify. Blank lines
// and lines starting with # are skipped.
//
// Records are filtered to Markdown files under docRoot; their paths
// are returned relative to it. Any line that cannot be interpreted
// fails the whole parse: a truncated listing must not turn into a
// half-applied run.
func ParseChangeset(text, docRoot string) (*domain.Changeset, error) {
	cs := &domain.Changeset{}

	for i, line := range strings.Split(text, "\n") {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		rec, err := parseChangeLine(trimmed, lineNo)
		if err != nil {
			return nil, err
		}

		rec, ok := scopeRecord(rec, docRoot)
		if !ok {
			continue
		}
		cs.Records = append(cs.Records, rec)
	}

	return cs, nil
}

// parseChangeLine interprets one non-empty line.
func parseChangeLine(line string, lineNo int) (domain.ChangeRecord, error) {
	var tokens []string
	if strings.Contains(line, "\t") {
		for _, tok := range strings.Split(line, "\t") {
			tok = strings.TrimSpace(tok)
			if tok != "" {
				tokens = append(tokens, tok)
			}
		}
	} else {
		var err error
		tokens, err = splitQuoted(line)
		if err != nil {
			return domain.ChangeRecord{}, &domain.ParseError{Line: lineNo, Text: line, Reason: err.Error()}
		}
	}

	fail := func(reason string) (domain.ChangeRecord, error) {
		return domain.ChangeRecord{}, &domain.ParseError{Line: lineNo, Text: line, Reason: reason}
	}

	switch len(tokens) {
	case 0:
		return fail("empty record")

	case 1:
		// A bare status letter has no path to act on.
		if _, ok := parseStatus(tokens[0]); ok {
			return fail("status without path")
		}
		return domain.ChangeRecord{Op: domain.OpModify, Path: tokens[0]}, nil

	case 2:
		op, ok := parseStatus(tokens[0])
		if !ok {
			return fail(fmt.Sprintf("unknown status %q", tokens[0]))
		}
		if op == domain.OpRename {
			return fail("rename needs old and new paths")
		}
		return domain.ChangeRecord{Op: op, Path: tokens[1]}, nil

	case 3:
		op, ok := parseStatus(tokens[0])
		if !ok {
			return fail(fmt.Sprintf("unknown status %q", tokens[0]))
		}
		if op != domain.OpRename {
			return fail(fmt.Sprintf("status %q takes one path", tokens[0]))
		}
		return domain.ChangeRecord{Op: op, Path: tokens[1], NewPath: tokens[2]}, nil

	default:
		return fail("too many fields; quote paths containing spaces")
	}
}

// parseStatus maps a git name-status code to a change op. Rename and
// copy codes carry an optional similarity score suffix (R100, C75).
func parseStatus(token string) (domain.ChangeOp, bool) {
	if token == "" {
		return "", false
	}
	letter := token[0]
	if letter >= 'a' && letter <= 'z' {
		letter -= 'a' - 'A'
	}
	for _, r := range token[1:] {
		if r < '0' || r > '9' {
			return "", false
		}
	}

	switch letter {
	case 'A':
		return domain.OpAdd, true
	case 'M':
		return domain.OpModify, true
	case 'D':
		return domain.OpDelete, true
	case 'R':
		return domain.OpRename, true
	default:
		return "", false
	}
}

// splitQuoted splits on spaces, treating double-quoted runs as single
// tokens.
func splitQuoted(line string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	inQuote := false
	hasToken := false

	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			hasToken = true
		case (r == ' ' || r == '\t') && !inQuote:
			if hasToken {
				tokens = append(tokens, current.String())
				current.Reset()
				hasToken = false
			}
		default:
			current.WriteRune(r)
			hasToken = true
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote")
	}
	if hasToken {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}

// scopeRecord filters a record to Markdown files under docRoot and
// rewrites its paths relative to it. Renames crossing the doc root
// boundary degrade to an add or delete of the half that is inside.
func scopeRecord(rec domain.ChangeRecord, docRoot string) (domain.ChangeRecord, bool) {
	oldRel, oldIn := relToRoot(rec.Path, docRoot)

	if rec.Op != domain.OpRename {
		if !oldIn || !domain.IsMarkdown(oldRel) {
			return domain.ChangeRecord{}, false
		}
		rec.Path = oldRel
		return rec, true
	}

	newRel, newIn := relToRoot(rec.NewPath, docRoot)
	oldIn = oldIn && domain.IsMarkdown(oldRel)
	newIn = newIn && domain.IsMarkdown(newRel)

	switch {
	case oldIn && newIn:
		rec.Path, rec.NewPath = oldRel, newRel
		return rec, true
	case newIn:
		// Moved into the tree: a plain add of the new path.
		return domain.ChangeRecord{Op: domain.OpAdd, Path: newRel}, true
	case oldIn:
		// Moved out of the tree: the source is gone, the page stays.
		return domain.ChangeRecord{Op: domain.OpDelete, Path: oldRel}, true
	default:
		return domain.ChangeRecord{}, false
	}
}

// relToRoot rewrites p relative to docRoot. A path outside the root
// reports false. An empty docRoot keeps every path.
func relToRoot(p, docRoot string) (string, bool) {
	p = domain.NormalizePath(p)
	root := domain.NormalizePath(docRoot)
	if root == "" {
		return p, p != ""
	}
	if p == root {
		return "", false
	}
	if strings.HasPrefix(p, root+"/") {
		return strings.TrimPrefix(p, root+"/"), true
	}
	return "", false
}

// FullChangeset synthesises an add-everything changeset from a
// workspace walk. Used for full runs and as the watch loop's initial
// pass.
func FullChangeset(ctx context.Context, ws driven.Workspace) (*domain.Changeset, error) {
	paths, err := ws.Walk(ctx)
	if err != nil {
		return nil, fmt.Errorf("walk workspace: %w", err)
	}

	cs := &domain.Changeset{Full: true}
	for _, p := range paths {
		cs.Records = append(cs.Records, domain.ChangeRecord{Op: domain.OpAdd, Path: p})
	}
	return cs, nil
}

// PathChangeset builds a changeset treating each given path as
// modified. Paths may be given relative to the doc root or prefixed
// with it; both forms resolve identically.
func PathChangeset(paths []string, docRoot string) *domain.Changeset {
	cs := &domain.Changeset{}
	for _, p := range paths {
		rel, in := relToRoot(p, docRoot)
		if !in {
			rel = domain.NormalizePath(p)
		}
		if rel == "" || !domain.IsMarkdown(rel) {
			continue
		}
		cs.Records = append(cs.Records, domain.ChangeRecord{Op: domain.OpModify, Path: rel})
	}
	return cs
}
