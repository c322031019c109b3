package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/eventdsl/core/parser"
	"github.com/artpar/eventdsl/core/schema"
	"github.com/artpar/eventdsl/ports"
)

// DeclarationStore implements ports.DeclarationStore and ports.DeclarationSource.
type DeclarationStore struct {
	db    *DB
	ids   ports.IDGenerator
	clock ports.Clock
}

var (
	_ ports.DeclarationStore  = (*DeclarationStore)(nil)
	_ ports.DeclarationSource = (*DeclarationStore)(nil)
)

// NewDeclarationStore creates a declaration store. ids and clock fill in
// revisions put without an ID or creation time.
func NewDeclarationStore(db *DB, ids ports.IDGenerator, clock ports.Clock) *DeclarationStore {
	return &DeclarationStore{db: db, ids: ids, clock: clock}
}

// Put stores a new revision. The source must parse as exactly one
// declaration whose id matches rev.TypeID; when TypeID is empty it is taken
// from the source.
func (s *DeclarationStore) Put(ctx context.Context, rev ports.Revision) error {
	decl, err := parser.Parse(rev.Source)
	if err != nil {
		return fmt.Errorf("parse revision: %w", err)
	}
	if rev.TypeID == "" {
		rev.TypeID = decl.ID
	}
	if rev.TypeID != decl.ID {
		return fmt.Errorf("revision type %q does not match declared type %q", rev.TypeID, decl.ID)
	}
	if rev.ID == "" {
		rev.ID = s.ids.New()
	}
	if rev.CreatedAt.IsZero() {
		rev.CreatedAt = s.clock.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO declaration_revisions (id, type_id, source, created_at)
		VALUES (?, ?, ?, ?)`,
		rev.ID, rev.TypeID, rev.Source, rev.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}
	return nil
}

// Latest returns the newest revision of every type, ordered by type id.
func (s *DeclarationStore) Latest(ctx context.Context) ([]ports.Revision, error) {
	return s.query(ctx,
		`SELECT r.id, r.type_id, r.source, r.created_at
		FROM declaration_revisions r
		JOIN (
			SELECT type_id, MAX(seq) AS seq FROM declaration_revisions GROUP BY type_id
		) latest ON latest.seq = r.seq
		ORDER BY r.type_id`,
	)
}

// History returns every revision of typeID, newest first. It returns
// ports.ErrNotFound when the type has no revisions.
func (s *DeclarationStore) History(ctx context.Context, typeID string) ([]ports.Revision, error) {
	revs, err := s.query(ctx,
		`SELECT id, type_id, source, created_at
		FROM declaration_revisions
		WHERE type_id = ?
		ORDER BY seq DESC`,
		typeID,
	)
	if err != nil {
		return nil, err
	}
	if len(revs) == 0 {
		return nil, ports.ErrNotFound
	}
	return revs, nil
}

// Delete removes every revision of typeID.
func (s *DeclarationStore) Delete(ctx context.Context, typeID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM declaration_revisions WHERE type_id = ?`, typeID)
	if err != nil {
		return fmt.Errorf("delete revisions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// Name identifies the store in logs.
func (s *DeclarationStore) Name() string {
	return "sqlite:" + s.db.Path()
}

// Load parses the latest revision of every type.
func (s *DeclarationStore) Load(ctx context.Context) ([]schema.TypeDeclaration, error) {
	revs, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}

	decls := make([]schema.TypeDeclaration, 0, len(revs))
	for _, rev := range revs {
		decl, err := parser.Parse(rev.Source)
		if err != nil {
			var se *parser.SyntaxError
			if errors.As(err, &se) {
				se.File = fmt.Sprintf("%s@%s", rev.TypeID, rev.ID)
			}
			return nil, err
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

func (s *DeclarationStore) query(ctx context.Context, query string, args ...any) ([]ports.Revision, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	var revs []ports.Revision
	for rows.Next() {
		var rev ports.Revision
		var createdAt string
		if err := rows.Scan(&rev.ID, &rev.TypeID, &rev.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		rev.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		revs = append(revs, rev)
	}
	return revs, rows.Err()
}
