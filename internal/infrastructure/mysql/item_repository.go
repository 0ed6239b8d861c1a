package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"silent-auction/internal/domain"
)

const itemColumns = `id, seller_id, title, description, category, image_url,
        starting_price, current_price, leading_bid_id, deadline, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner, extra ...interface{}) (*domain.Item, error) {
	var item domain.Item
	var category string
	var status int
	var leadingBidID sql.NullString

	dest := []interface{}{
		&item.ID, &item.SellerID, &item.Title, &item.Description, &category, &item.ImageURL,
		&item.StartingPrice, &item.CurrentPrice, &leadingBidID, &item.Deadline, &status,
		&item.CreatedAt, &item.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	item.Category = domain.Category(category)
	item.LeadingBidID = leadingBidID.String
	item.Status = domain.ItemStatus(status)
	return &item, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type MySQLItemRepository struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewMySQLItemRepository(db *sql.DB) *MySQLItemRepository {
	return &MySQLItemRepository{
		db:     db,
		tracer: otel.Tracer("silent-auction/mysql"),
	}
}

func (r *MySQLItemRepository) CreateItem(ctx context.Context, item *domain.Item) error {
	query := `
        INSERT INTO items (` + itemColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.SellerID, item.Title, item.Description, string(item.Category), item.ImageURL,
		item.StartingPrice, item.CurrentPrice, nullString(item.LeadingBidID), item.Deadline,
		int(item.Status), item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (r *MySQLItemRepository) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = ?`

	item, err := scanItem(r.db.QueryRowContext(ctx, query, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", itemID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func (r *MySQLItemRepository) ListActiveItems(ctx context.Context, filter domain.ItemFilter) ([]*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE status = ?`
	args := []interface{}{int(domain.ItemActive)}
	if filter.SellerID != "" {
		query += ` AND seller_id = ?`
		args = append(args, filter.SellerID)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active items: %w", err)
	}
	defer rows.Close()

	items := []*domain.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// WithItemTx locks the item row with SELECT ... FOR UPDATE for the lifetime
// of fn. Concurrent callers for the same item queue on the row lock.
func (r *MySQLItemRepository) WithItemTx(ctx context.Context, itemID string, fn func(tx domain.ItemTx) error) (err error) {
	ctx, span := r.tracer.Start(ctx, "mysql.WithItemTx", trace.WithAttributes(attribute.String("item.id", itemID)))
	defer func() {
		if err != nil && !domain.IsBusinessRejection(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + itemColumns + ` FROM items WHERE id = ? FOR UPDATE`
	item, err := scanItem(tx.QueryRowContext(ctx, query, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("item %s: %w", itemID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock item: %w", err)
	}

	if err := fn(&itemTx{tx: tx, item: item}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type itemTx struct {
	tx   *sql.Tx
	item *domain.Item
}

func (t *itemTx) Item() *domain.Item {
	return t.item
}

func (t *itemTx) LeadingBid(ctx context.Context) (*domain.Bid, error) {
	if t.item.LeadingBidID == "" {
		return nil, nil
	}

	query := `SELECT ` + bidColumns + ` FROM bids WHERE id = ?`
	bid, err := scanBid(t.tx.QueryRowContext(ctx, query, t.item.LeadingBidID))
	if err != nil {
		return nil, fmt.Errorf("get leading bid: %w", err)
	}
	return bid, nil
}

func (t *itemTx) AppendBid(ctx context.Context, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (` + bidColumns + `)
        VALUES (?, ?, ?, ?, ?)
    `
	_, err := t.tx.ExecContext(ctx, query,
		bid.ID, bid.ItemID, bid.BidderID, bid.Amount, bid.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}
	return nil
}

func (t *itemTx) ApplyBid(ctx context.Context, bid *domain.Bid) error {
	query := `UPDATE items SET current_price = ?, leading_bid_id = ?, updated_at = ? WHERE id = ?`
	_, err := t.tx.ExecContext(ctx, query, bid.Amount, bid.ID, bid.CreatedAt, t.item.ID)
	if err != nil {
		return fmt.Errorf("update item price: %w", err)
	}

	t.item.CurrentPrice = bid.Amount
	t.item.LeadingBidID = bid.ID
	t.item.UpdatedAt = bid.CreatedAt
	return nil
}

func (t *itemTx) SetStatus(ctx context.Context, status domain.ItemStatus) error {
	now := time.Now().UTC()
	query := `UPDATE items SET status = ?, updated_at = ? WHERE id = ?`
	_, err := t.tx.ExecContext(ctx, query, int(status), now, t.item.ID)
	if err != nil {
		return fmt.Errorf("update item status: %w", err)
	}

	t.item.Status = status
	t.item.UpdatedAt = now
	return nil
}
