// Package document_repo provides the PostgreSQL repository for invoices and quotes.
// Both kinds share one shape; the kind selects the table.
package document_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"easyentrepreneur/internal/core/apperror"
	"easyentrepreneur/internal/core/id"
	"easyentrepreneur/internal/core/numerator"
	"easyentrepreneur/internal/domain"
	"easyentrepreneur/internal/domain/documents"
	"easyentrepreneur/internal/infrastructure/storage/postgres"
)

const (
	InvoicesTable = "invoices"
	QuotesTable   = "quotes"
)

// TableName returns the table that stores documents of kind.
func TableName(kind numerator.Kind) (string, error) {
	switch kind {
	case numerator.KindInvoice:
		return InvoicesTable, nil
	case numerator.KindQuote:
		return QuotesTable, nil
	default:
		return "", apperror.NewValidation(fmt.Sprintf("unknown document kind %q", kind))
	}
}

// NumberConstraint is the name of the (user_id, number) unique constraint of a table.
func NumberConstraint(table string) string {
	return table + "_user_number_key"
}

// Repo implements documents.Repository, numerator.Store and quota.UsageCounter.
type Repo struct {
	db         postgres.QuerierProvider
	selectCols []string
}

// New creates a document repository.
func New(db postgres.QuerierProvider) *Repo {
	return &Repo{
		db:         db,
		selectCols: postgres.ExtractDBColumns[documents.Document](),
	}
}

var (
	_ documents.Repository = (*Repo)(nil)
	_ numerator.Store      = (*Repo)(nil)
)

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts a document. A duplicate number is reported as numerator.ErrNumberTaken.
func (r *Repo) Create(ctx context.Context, doc *documents.Document) error {
	table, err := TableName(doc.Kind)
	if err != nil {
		return err
	}

	data := postgres.PickColumns(postgres.StructToMap(doc), r.selectCols)
	sql, args, err := builder().Insert(table).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err, NumberConstraint(table)) {
			return fmt.Errorf("insert %s %s: %w", doc.Kind, doc.Number, numerator.ErrNumberTaken)
		}
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (r *Repo) get(ctx context.Context, kind numerator.Kind, where squirrel.Eq, key string) (*documents.Document, error) {
	table, err := TableName(kind)
	if err != nil {
		return nil, err
	}

	sql, args, err := builder().Select(r.selectCols...).From(table).Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var doc documents.Document
	if err := pgxscan.Get(ctx, r.db.GetQuerier(ctx), &doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(string(kind), key)
		}
		return nil, fmt.Errorf("get %s: %w", table, err)
	}
	doc.Kind = kind
	return &doc, nil
}

// GetByID retrieves a document by ID.
func (r *Repo) GetByID(ctx context.Context, kind numerator.Kind, tenantID string, docID id.ID) (*documents.Document, error) {
	return r.get(ctx, kind, squirrel.Eq{"user_id": tenantID, "id": docID}, docID.String())
}

// GetByNumber retrieves a document by its display number.
func (r *Repo) GetByNumber(ctx context.Context, kind numerator.Kind, tenantID, number string) (*documents.Document, error) {
	return r.get(ctx, kind, squirrel.Eq{"user_id": tenantID, "number": number}, number)
}

// List retrieves a page of documents with a total count.
func (r *Repo) List(ctx context.Context, kind numerator.Kind, tenantID string, filter domain.ListFilter) (domain.ListResult[*documents.Document], error) {
	result := domain.ListResult[*documents.Document]{
		Items:  []*documents.Document{},
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	table, err := TableName(kind)
	if err != nil {
		return result, err
	}

	q := listQuery(builder().Select(r.selectCols...).From(table), tenantID, filter)

	countSQL, countArgs, err := builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.db.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count %s: %w", table, err)
	}

	orderBy, err := parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list %s: %w", table, err)
	}
	for _, doc := range result.Items {
		doc.Kind = kind
	}
	return result, nil
}

func listQuery(q squirrel.SelectBuilder, tenantID string, filter domain.ListFilter) squirrel.SelectBuilder {
	q = q.Where(squirrel.Eq{"user_id": tenantID})
	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		q = q.Where(squirrel.ILike{"number": "%" + s + "%"})
	}
	return q
}

var sortable = map[string]struct{}{
	"number":     {},
	"issue_date": {},
	"created_at": {},
	"total_ttc":  {},
}

func parseOrderBy(orderBy string) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return "created_at DESC", nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else {
		field = strings.TrimPrefix(orderBy, "+")
	}

	if _, ok := sortable[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}
	return field + " " + direction, nil
}

// Delete sets the deletion mark. The number stays in the table.
func (r *Repo) Delete(ctx context.Context, kind numerator.Kind, tenantID string, docID id.ID) error {
	table, err := TableName(kind)
	if err != nil {
		return err
	}

	sql, args, err := builder().
		Update(table).
		Set("deletion_mark", true).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"user_id": tenantID, "id": docID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.db.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(string(kind), docID.String())
	}
	return nil
}

// ExistingNumbers returns every number of the year, soft-deleted rows included.
func (r *Repo) ExistingNumbers(ctx context.Context, tenantID string, kind numerator.Kind, year int) ([]string, error) {
	table, err := TableName(kind)
	if err != nil {
		return nil, err
	}

	sql, args, err := existingNumbersQuery(table, tenantID, year).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build numbers query: %w", err)
	}

	var numbers []string
	if err := pgxscan.Select(ctx, r.db.GetQuerier(ctx), &numbers, sql, args...); err != nil {
		return nil, fmt.Errorf("select %s numbers: %w", table, err)
	}
	return numbers, nil
}

func existingNumbersQuery(table, tenantID string, year int) squirrel.SelectBuilder {
	return builder().
		Select("number").
		From(table).
		Where(squirrel.Eq{"user_id": tenantID}).
		Where(squirrel.Like{"number": numerator.YearPrefix(year) + "%"})
}

// CountCreatedBetween counts invoices and quotes created in [from, to].
// Soft-deleted documents count: they were created.
func (r *Repo) CountCreatedBetween(ctx context.Context, tenantID string, from, to time.Time) (int64, error) {
	sql, args, err := usageQuery(tenantID, from, to).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build usage query: %w", err)
	}

	var invoices, quotes int64
	if err := r.db.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&invoices, &quotes); err != nil {
		return 0, fmt.Errorf("count monthly documents: %w", err)
	}
	return invoices + quotes, nil
}

func usageQuery(tenantID string, from, to time.Time) squirrel.SelectBuilder {
	count := func(table string) squirrel.SelectBuilder {
		// Inner builders keep "?" placeholders; the outer builder numbers them.
		return squirrel.Select("COUNT(*)").
			From(table).
			Where(squirrel.Eq{"user_id": tenantID}).
			Where(squirrel.GtOrEq{"created_at": from}).
			Where(squirrel.LtOrEq{"created_at": to})
	}
	return builder().
		Select().
		Column(squirrel.Alias(count(InvoicesTable), "invoices")).
		Column(squirrel.Alias(count(QuotesTable), "quotes"))
}
