package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"silent-auction/internal/domain"
)

const bidColumns = `id, item_id, bidder_id, amount, created_at`

func scanBid(row rowScanner) (*domain.Bid, error) {
	var bid domain.Bid
	err := row.Scan(&bid.ID, &bid.ItemID, &bid.BidderID, &bid.Amount, &bid.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

type MySQLBidRepository struct {
	db *sql.DB
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{db: db}
}

func (r *MySQLBidRepository) LeadingBid(ctx context.Context, itemID string) (*domain.Bid, error) {
	query := `
        SELECT ` + bidColumns + `
        FROM bids
        WHERE item_id = ?
        ORDER BY amount DESC, created_at ASC
        LIMIT 1
    `

	bid, err := scanBid(r.db.QueryRowContext(ctx, query, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get leading bid: %w", err)
	}
	return bid, nil
}

func (r *MySQLBidRepository) ListBidsForItem(ctx context.Context, itemID string) ([]*domain.Bid, error) {
	query := `
        SELECT ` + bidColumns + `
        FROM bids
        WHERE item_id = ?
        ORDER BY amount DESC, created_at ASC
    `

	rows, err := r.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()

	bids := []*domain.Bid{}
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

// ListUserBids returns every item the user has bid on with the user's
// highest amount for it.
func (r *MySQLBidRepository) ListUserBids(ctx context.Context, userID string) ([]*domain.UserBid, error) {
	query := `
        SELECT i.id, i.seller_id, i.title, i.description, i.category, i.image_url,
               i.starting_price, i.current_price, i.leading_bid_id, i.deadline, i.status,
               i.created_at, i.updated_at, ub.max_amount
        FROM (
            SELECT item_id, MAX(amount) AS max_amount, MIN(created_at) AS first_bid_at
            FROM bids
            WHERE bidder_id = ?
            GROUP BY item_id
        ) ub
        JOIN items i ON i.id = ub.item_id
        ORDER BY ub.first_bid_at ASC
    `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list user bids: %w", err)
	}
	defer rows.Close()

	result := []*domain.UserBid{}
	for rows.Next() {
		var maxAmount decimal.Decimal
		item, err := scanItem(rows, &maxAmount)
		if err != nil {
			return nil, fmt.Errorf("scan user bid: %w", err)
		}
		result = append(result, &domain.UserBid{Item: item, UserMaxAmount: maxAmount})
	}
	return result, rows.Err()
}
