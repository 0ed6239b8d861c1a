package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"silent-auction/internal/domain"
)

var itemColumnNames = []string{
	"id", "seller_id", "title", "description", "category", "image_url",
	"starting_price", "current_price", "leading_bid_id", "deadline", "status", "created_at", "updated_at",
}

func itemRows(leadingBidID interface{}, price string, status domain.ItemStatus) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(itemColumnNames).AddRow(
		"item-1", "seller", "Vase", "blue", "Art", "",
		"90.00", price, leadingBidID, now.Add(time.Hour), int(status), now, now,
	)
}

func newMock(t *testing.T) (*MySQLItemRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLItemRepository(db), mock
}

func TestWithItemTxCommitsBidAndPrice(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM items WHERE id = \? FOR UPDATE`).
		WithArgs("item-1").
		WillReturnRows(itemRows("b0", "100.00", domain.ItemActive))
	mock.ExpectQuery(`SELECT .+ FROM bids WHERE id = \?`).
		WithArgs("b0").
		WillReturnRows(sqlmock.NewRows([]string{"id", "item_id", "bidder_id", "amount", "created_at"}).
			AddRow("b0", "item-1", "alice", "100.00", time.Now()))
	mock.ExpectExec(`INSERT INTO bids`).
		WithArgs("b1", "item-1", "bob", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE items SET current_price = \?, leading_bid_id = \?, updated_at = \? WHERE id = \?`).
		WithArgs(sqlmock.AnyArg(), "b1", sqlmock.AnyArg(), "item-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.WithItemTx(ctx, "item-1", func(tx domain.ItemTx) error {
		require.True(t, tx.Item().CurrentPrice.Equal(decimal.NewFromInt(100)))

		leader, err := tx.LeadingBid(ctx)
		require.NoError(t, err)
		require.Equal(t, "alice", leader.BidderID)

		bid := &domain.Bid{ID: "b1", ItemID: "item-1", BidderID: "bob", Amount: decimal.NewFromInt(150), CreatedAt: time.Now()}
		if err := tx.AppendBid(ctx, bid); err != nil {
			return err
		}
		if err := tx.ApplyBid(ctx, bid); err != nil {
			return err
		}
		require.Equal(t, "b1", tx.Item().LeadingBidID)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithItemTxRollsBackOnCallbackError(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM items WHERE id = \? FOR UPDATE`).
		WithArgs("item-1").
		WillReturnRows(itemRows(nil, "90.00", domain.ItemEnded))
	mock.ExpectRollback()

	err := repo.WithItemTx(context.Background(), "item-1", func(tx domain.ItemTx) error {
		require.Equal(t, domain.ItemEnded, tx.Item().Status)
		require.Empty(t, tx.Item().LeadingBidID)
		return domain.ErrAuctionClosed
	})
	require.ErrorIs(t, err, domain.ErrAuctionClosed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithItemTxRollsBackWhenBidInsertFails(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()
	insertErr := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM items WHERE id = \? FOR UPDATE`).
		WithArgs("item-1").
		WillReturnRows(itemRows(nil, "90.00", domain.ItemActive))
	mock.ExpectExec(`INSERT INTO bids`).WillReturnError(insertErr)
	mock.ExpectRollback()

	err := repo.WithItemTx(ctx, "item-1", func(tx domain.ItemTx) error {
		bid := &domain.Bid{ID: "b1", ItemID: "item-1", BidderID: "bob", Amount: decimal.NewFromInt(100), CreatedAt: time.Now()}
		if err := tx.AppendBid(ctx, bid); err != nil {
			return err
		}
		return tx.ApplyBid(ctx, bid)
	})
	require.ErrorIs(t, err, insertErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithItemTxMissingItem(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM items WHERE id = \? FOR UPDATE`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(itemColumnNames))
	mock.ExpectRollback()

	err := repo.WithItemTx(context.Background(), "nope", func(domain.ItemTx) error {
		t.Fatal("callback must not run")
		return nil
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveItemsFiltersBySeller(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT .+ FROM items WHERE status = \? AND seller_id = \? ORDER BY created_at DESC`).
		WithArgs(int(domain.ItemActive), "seller").
		WillReturnRows(itemRows(nil, "90.00", domain.ItemActive))

	items, err := repo.ListActiveItems(context.Background(), domain.ItemFilter{SellerID: "seller"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, domain.CategoryArt, items[0].Category)
	require.NoError(t, mock.ExpectationsWereMet())
}
