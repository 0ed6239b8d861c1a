package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"silent-auction/internal/domain"
)

// errDuplicateEntry is MySQL's ER_DUP_ENTRY.
const errDuplicateEntry = 1062

func isDuplicateEntry(err error) bool {
	var mysqlErr *mysqldriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry
}

type MySQLNotificationRepository struct {
	db *sql.DB
}

func NewMySQLNotificationRepository(db *sql.DB) *MySQLNotificationRepository {
	return &MySQLNotificationRepository{db: db}
}

// CreateNotification relies on the (event_key, user_id) unique key to drop
// redelivered intents.
func (r *MySQLNotificationRepository) CreateNotification(ctx context.Context, n *domain.Notification) (bool, error) {
	query := `
        INSERT INTO notifications (id, user_id, item_id, type, message, bid_amount,
            item_title, item_image, event_key, is_read, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	var amount decimal.NullDecimal
	if n.BidAmount != nil {
		amount = decimal.NewNullDecimal(*n.BidAmount)
	}

	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.UserID, n.ItemID, string(n.Type), n.Message, amount,
		n.ItemTitle, n.ItemImage, n.EventKey, n.IsRead, n.CreatedAt)
	if isDuplicateEntry(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	return true, nil
}

func (r *MySQLNotificationRepository) ListNotifications(ctx context.Context, userID string) ([]*domain.Notification, error) {
	query := `
        SELECT id, user_id, item_id, type, message, bid_amount,
            item_title, item_image, event_key, is_read, created_at
        FROM notifications
        WHERE user_id = ?
        ORDER BY created_at DESC
    `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []*domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		var notificationType string
		var amount decimal.NullDecimal

		err := rows.Scan(&n.ID, &n.UserID, &n.ItemID, &notificationType, &n.Message, &amount,
			&n.ItemTitle, &n.ItemImage, &n.EventKey, &n.IsRead, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}

		n.Type = domain.NotificationType(notificationType)
		if amount.Valid {
			n.BidAmount = &amount.Decimal
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

func (r *MySQLNotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = FALSE`

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (r *MySQLNotificationRepository) MarkRead(ctx context.Context, notificationID, userID string) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = ? AND user_id = ?`
	result, err := r.db.ExecContext(ctx, query, notificationID, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Zero rows means missing, owned by someone else, or already read.
	var owner string
	err = r.db.QueryRowContext(ctx, `SELECT user_id FROM notifications WHERE id = ?`, notificationID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup notification: %w", err)
	}
	if owner != userID {
		return fmt.Errorf("notification %s belongs to another user: %w", notificationID, domain.ErrForbidden)
	}
	return nil
}
