package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// documentRecord is one document in the shared documents table.
type documentRecord struct {
	Collection string         `gorm:"primaryKey;size:64;uniqueIndex:idx_documents_unique_key,priority:1"`
	ID         string         `gorm:"primaryKey;size:128"`
	UniqueKey  *string        `gorm:"size:255;uniqueIndex:idx_documents_unique_key,priority:2"`
	Data       datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (documentRecord) TableName() string {
	return "documents"
}

// Postgres keeps documents as jsonb rows. Like a hosted document database it
// only serves filter+order queries for which a composite index was declared.
// Server timestamps are read from the database clock.
type Postgres struct {
	db      *gorm.DB
	indexes map[string]bool
	clock   func(ctx context.Context) (time.Time, error)
}

// OpenPostgres connects, migrates the documents table and declares the
// ordered indexes given as "collection:field".
func OpenPostgres(dsn string, orderedIndexes []string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&documentRecord{}); err != nil {
		return nil, fmt.Errorf("migrate documents: %w", err)
	}

	s := NewPostgres(db)
	for _, idx := range orderedIndexes {
		collection, field, ok := strings.Cut(strings.TrimSpace(idx), ":")
		if !ok || collection == "" || field == "" {
			return nil, fmt.Errorf("bad ordered index %q, want collection:field", idx)
		}
		if err := s.DeclareOrderedIndex(collection, field); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func NewPostgres(db *gorm.DB) *Postgres {
	s := &Postgres{db: db, indexes: make(map[string]bool)}
	s.clock = s.serverNow
	return s
}

func (s *Postgres) serverNow(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := s.db.WithContext(ctx).Raw("SELECT now()").Scan(&now).Error; err != nil {
		return time.Time{}, fmt.Errorf("read server time: %w", err)
	}
	return now.UTC(), nil
}

// DeclareOrderedIndex creates an expression index on the numeric value of
// field and allows ordered queries on it.
func (s *Postgres) DeclareOrderedIndex(collection, field string) error {
	if !safeField(field) || !safeField(collection) {
		return fmt.Errorf("invalid index %s:%s", collection, field)
	}
	name := fmt.Sprintf("idx_documents_%s_%s", collection, field)
	stmt := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON documents (((data->>'%s')::numeric)) WHERE collection = '%s'",
		name, field, collection,
	)
	if err := s.db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	s.indexes[collection+":"+field] = true
	return nil
}

func (s *Postgres) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	tx, err := s.query(ctx, collection, q)
	if err != nil {
		return nil, err
	}

	var records []documentRecord
	if err := tx.Find(&records).Error; err != nil {
		if isCapabilityError(err) {
			return nil, fmt.Errorf("query %s: %v: %w", collection, err, ErrQueryCapability)
		}
		return nil, err
	}

	docs := make([]Document, 0, len(records))
	for _, r := range records {
		d, err := r.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// query builds the select for q. Ordering matches Less: a missing value sorts
// as 0 and ties keep insertion order.
func (s *Postgres) query(ctx context.Context, collection string, q Query) (*gorm.DB, error) {
	if q.OrderBy != "" && len(q.Filters) > 0 && !s.indexes[collection+":"+q.OrderBy] {
		return nil, fmt.Errorf("no index for %s ordered by %s: %w", collection, q.OrderBy, ErrQueryCapability)
	}
	if q.OrderBy != "" && !safeField(q.OrderBy) {
		return nil, fmt.Errorf("invalid order field %q", q.OrderBy)
	}

	tx := s.db.WithContext(ctx).Where("collection = ?", collection)
	for _, f := range q.Filters {
		value := f.Value
		if _, isString := value.(string); !isString {
			raw, err := json.Marshal(value)
			if err != nil {
				return nil, err
			}
			value = string(raw)
		}
		tx = tx.Where(datatypes.JSONQuery("data").Equals(value, f.Field))
	}
	if q.OrderBy != "" {
		tx = tx.Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "COALESCE((data->>?)::numeric, 0), created_at",
			Vars:               []any{q.OrderBy},
			WithoutParentheses: true,
		}})
	} else {
		tx = tx.Order("created_at")
	}
	return tx, nil
}

func (s *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	var r documentRecord
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return Document{}, err
	}
	return r.document()
}

func (s *Postgres) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	return s.create(ctx, collection, nil, fields)
}

func (s *Postgres) CreateUnique(ctx context.Context, collection, key string, fields map[string]any) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty unique key for %s", collection)
	}
	return s.create(ctx, collection, &key, fields)
}

func (s *Postgres) create(ctx context.Context, collection string, key *string, fields map[string]any) (string, error) {
	now, err := s.clock(ctx)
	if err != nil {
		return "", err
	}
	data, err := encode(fields, now)
	if err != nil {
		return "", err
	}
	r := &documentRecord{
		Collection: collection,
		ID:         uuid.NewString(),
		UniqueKey:  key,
		Data:       data,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		if isDuplicate(err) {
			return "", conflictError(collection, r.ID, key)
		}
		return "", err
	}
	return r.ID, nil
}

func conflictError(collection, id string, key *string) error {
	if key == nil {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrConflict)
	}
	return fmt.Errorf("%s key %q: %w", collection, *key, ErrConflict)
}

func (s *Postgres) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	now, err := s.clock(ctx)
	if err != nil {
		return err
	}
	data, err := encode(fields, now)
	if err != nil {
		return err
	}
	r := &documentRecord{Collection: collection, ID: id, Data: data, CreatedAt: now, UpdatedAt: now}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(r).Error
}

func (s *Postgres) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	now, err := s.clock(ctx)
	if err != nil {
		return err
	}
	data, err := mergeExpr(fields, now)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&documentRecord{}).
		Where("collection = ? AND id = ?", collection, id).
		Updates(map[string]any{
			"data":       data,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func encode(fields map[string]any, now time.Time) (datatypes.JSON, error) {
	doc, err := normalize(fields, nil, now)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// mergeExpr merges plain fields into data and applies transforms against the
// stored values in the same statement, so concurrent writers do not lose updates.
func mergeExpr(fields map[string]any, now time.Time) (clause.Expr, error) {
	plain := make(map[string]any, len(fields))
	var names []string
	for k, v := range fields {
		if _, ok := v.(fieldTransform); ok {
			names = append(names, k)
			continue
		}
		plain[k] = v
	}
	patch, err := encode(plain, now)
	if err != nil {
		return clause.Expr{}, err
	}

	sql := "data || ?::jsonb"
	vars := []any{string(patch)}
	sort.Strings(names)
	for _, k := range names {
		t := fields[k].(fieldTransform)
		switch t.op {
		case opIncrement:
			sql += " || jsonb_build_object(?::text, COALESCE((data->>?)::numeric, 0) + ?)"
		case opGreatest:
			sql += " || jsonb_build_object(?::text, GREATEST(COALESCE((data->>?)::numeric, 0), ?))"
		}
		vars = append(vars, k, k, t.value)
	}
	return gorm.Expr(sql, vars...), nil
}

func (r documentRecord) document() (Document, error) {
	var fields map[string]any
	if err := json.Unmarshal(r.Data, &fields); err != nil {
		return Document{}, fmt.Errorf("decode %s/%s: %w", r.Collection, r.ID, err)
	}
	return Document{ID: r.ID, Fields: fields}, nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isCapabilityError reports failures of the ordering expression itself,
// e.g. an order field holding text that does not cast to numeric.
func isCapabilityError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

func safeField(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
