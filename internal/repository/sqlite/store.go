package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"property-auction/internal/biddingerrors"
	model "property-auction/internal/models"
	"property-auction/utils"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS properties (
	id INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS auctions (
	property_id            INTEGER PRIMARY KEY,
	start_time             INTEGER NOT NULL,
	end_time               INTEGER NOT NULL,
	minimum_bid            TEXT    NOT NULL,
	minimum_increment      TEXT    NOT NULL,
	currency               TEXT    NOT NULL,
	current_highest_bid_id INTEGER,
	current_highest_amount TEXT    NOT NULL DEFAULT '0',
	state                  TEXT    NOT NULL CHECK (state IN ('scheduled', 'active', 'closed')),
	settled                INTEGER NOT NULL DEFAULT 0,
	settle_lease           INTEGER NOT NULL DEFAULT 0,
	created_at             INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_auctions_state_end ON auctions(state, end_time);

CREATE TABLE IF NOT EXISTS bids (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	property_id  INTEGER NOT NULL,
	bidder_id    INTEGER NOT NULL,
	amount       TEXT    NOT NULL,
	submitted_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bids_property_submitted ON bids(property_id, submitted_at);
CREATE INDEX IF NOT EXISTS idx_bids_bidder ON bids(bidder_id);

CREATE TABLE IF NOT EXISTS notifications (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	recipient_user_id INTEGER NOT NULL,
	kind              TEXT    NOT NULL,
	payload           TEXT    NOT NULL,
	created_at        INTEGER NOT NULL,
	delivered         INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_user_id, delivered);

CREATE TABLE IF NOT EXISTS sales (
	property_id    INTEGER PRIMARY KEY,
	winning_bid_id INTEGER NOT NULL,
	amount         TEXT    NOT NULL,
	buyer_id       INTEGER NOT NULL,
	recorded_at    INTEGER NOT NULL
);
`

const auctionColumns = `property_id, start_time, end_time, minimum_bid, minimum_increment, currency,
	current_highest_bid_id, current_highest_amount, state, settled, created_at`

// Store is the SQLite-backed implementation of the repository contracts.
// SQLite allows one writer at a time, so the pool is pinned to a single connection and
// every multi-statement operation runs inside a transaction on it.
type Store struct {
	db *sql.DB
}

// Open connects to the database file at path and applies the schema
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	utils.Info("sqlite store ready", map[string]any{"path": path})
	return s, nil
}

// InitSchema creates the tables and indexes if they do not exist yet
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close releases the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (model.Auction, error) {
	var (
		a                model.Auction
		start, end, made int64
		highestID        sql.NullInt64
		state            string
		settled          int
	)
	err := row.Scan(&a.PropertyID, &start, &end, &a.MinimumBid, &a.MinimumIncrement, &a.Currency,
		&highestID, &a.CurrentHighestBid, &state, &settled, &made)
	if err != nil {
		return model.Auction{}, err
	}

	a.StartTime = fromUnix(start)
	a.EndTime = fromUnix(end)
	a.CreatedAt = fromUnix(made)
	a.State = model.AuctionState(state)
	a.Settled = settled == 1
	if highestID.Valid {
		id := highestID.Int64
		a.CurrentHighestBidID = &id
	}
	return a, nil
}

func scanBid(row rowScanner) (model.Bid, error) {
	var (
		b         model.Bid
		submitted int64
	)
	if err := row.Scan(&b.ID, &b.PropertyID, &b.BidderID, &b.Amount, &submitted); err != nil {
		return model.Bid{}, err
	}
	b.SubmittedAt = fromUnix(submitted)
	return b, nil
}

// GetAuction returns the auction for a property
func (s *Store) GetAuction(ctx context.Context, propertyID int64) (model.Auction, error) {
	return getAuction(ctx, s.db, propertyID)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getAuction(ctx context.Context, q querier, propertyID int64) (model.Auction, error) {
	row := q.QueryRowContext(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE property_id = ?`, propertyID)
	a, err := scanAuction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Auction{}, fmt.Errorf("get auction %d: %w", propertyID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return model.Auction{}, fmt.Errorf("get auction %d: %w", propertyID, err)
	}
	return a, nil
}

// CreateAuction inserts a new auction row
func (s *Store) CreateAuction(ctx context.Context, auction model.Auction) (model.Auction, error) {
	if auction.State == "" {
		auction.State = model.StateScheduled
	}
	auction.CurrentHighestBidID = nil
	auction.CurrentHighestBid = decimal.Zero
	auction.Settled = false

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO auctions (property_id, start_time, end_time, minimum_bid, minimum_increment, currency,
			current_highest_bid_id, current_highest_amount, state, settled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, '0', ?, 0, ?)
		ON CONFLICT (property_id) DO NOTHING`,
		auction.PropertyID, toUnix(auction.StartTime), toUnix(auction.EndTime),
		auction.MinimumBid, auction.MinimumIncrement, auction.Currency,
		string(auction.State), toUnix(auction.CreatedAt),
	)
	if err != nil {
		return model.Auction{}, fmt.Errorf("create auction %d: %w", auction.PropertyID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return model.Auction{}, fmt.Errorf("create auction %d: %w", auction.PropertyID, err)
	} else if n == 0 {
		return model.Auction{}, fmt.Errorf("create auction %d: %w", auction.PropertyID, biddingerrors.ErrAuctionExists)
	}
	return s.GetAuction(ctx, auction.PropertyID)
}

// UpdateHighestBid performs the compare-and-swap on the leading-bid pointer
func (s *Store) UpdateHighestBid(ctx context.Context, propertyID, bidID int64, amount decimal.Decimal, expectedPriorBidID *int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return updateHighest(ctx, tx, propertyID, bidID, amount, expectedPriorBidID)
	})
}

func updateHighest(ctx context.Context, tx *sql.Tx, propertyID, bidID int64, amount decimal.Decimal, expectedPriorBidID *int64) error {
	current, err := getAuction(ctx, tx, propertyID)
	if err != nil {
		return fmt.Errorf("update highest bid: %w", err)
	}
	if current.State == model.StateClosed {
		return fmt.Errorf("update highest bid %d: %w", propertyID, biddingerrors.ErrTooLate)
	}
	if current.HasBids() && !amount.GreaterThan(current.CurrentHighestBid) {
		return fmt.Errorf("update highest bid %d: %w", propertyID, biddingerrors.ErrConflict)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE auctions
		SET current_highest_bid_id = ?, current_highest_amount = ?
		WHERE property_id = ? AND state != 'closed' AND current_highest_bid_id IS ?`,
		bidID, amount, propertyID, nullableID(expectedPriorBidID),
	)
	if err != nil {
		return fmt.Errorf("update highest bid %d: %w", propertyID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update highest bid %d: %w", propertyID, err)
	}
	if n == 0 {
		return fmt.Errorf("update highest bid %d: %w", propertyID, biddingerrors.ErrConflict)
	}
	return nil
}

// CommitBid appends the bid and swings the pointer in one transaction
func (s *Store) CommitBid(ctx context.Context, bid model.Bid, expectedPriorBidID *int64) (model.Bid, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := clampToLeader(ctx, tx, &bid); err != nil {
			return err
		}
		id, err := appendBid(ctx, tx, bid)
		if err != nil {
			return err
		}
		bid.ID = id
		return updateHighest(ctx, tx, bid.PropertyID, id, bid.Amount, expectedPriorBidID)
	})
	if err != nil {
		return model.Bid{}, fmt.Errorf("commit bid for property %d: %w", bid.PropertyID, err)
	}
	return bid, nil
}

// clampToLeader moves bid.SubmittedAt up to the current leader's so history order follows commit order
func clampToLeader(ctx context.Context, tx *sql.Tx, bid *model.Bid) error {
	var leaderAt sql.NullInt64
	err := tx.QueryRowContext(ctx, `
		SELECT b.submitted_at FROM auctions a
		LEFT JOIN bids b ON b.id = a.current_highest_bid_id
		WHERE a.property_id = ?`, bid.PropertyID).Scan(&leaderAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("get auction %d: %w", bid.PropertyID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return fmt.Errorf("leader of auction %d: %w", bid.PropertyID, err)
	}
	if leaderAt.Valid && toUnix(bid.SubmittedAt) < leaderAt.Int64 {
		bid.SubmittedAt = fromUnix(leaderAt.Int64)
	}
	return nil
}

// ActivateAuction moves a scheduled auction to active
func (s *Store) ActivateAuction(ctx context.Context, propertyID int64) (bool, error) {
	return s.transition(ctx, propertyID, `state = 'scheduled'`, model.StateActive)
}

// CloseAuction moves any non-closed auction to closed. It reports false when already closed.
func (s *Store) CloseAuction(ctx context.Context, propertyID int64) (bool, error) {
	return s.transition(ctx, propertyID, `state != 'closed'`, model.StateClosed)
}

func (s *Store) transition(ctx context.Context, propertyID int64, guard string, to model.AuctionState) (bool, error) {
	var moved bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getAuction(ctx, tx, propertyID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE auctions SET state = ? WHERE property_id = ? AND `+guard, string(to), propertyID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		moved = n == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("transition auction %d to %s: %w", propertyID, to, err)
	}
	return moved, nil
}

// MarkSettled flags that the sale of a closed auction has been recorded
func (s *Store) MarkSettled(ctx context.Context, propertyID int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE auctions SET settled = 1 WHERE property_id = ?`, propertyID)
	if err != nil {
		return fmt.Errorf("mark settled %d: %w", propertyID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("mark settled %d: %w", propertyID, biddingerrors.ErrAuctionNotFound)
	}
	return nil
}

// ClaimSettlement takes the settlement lease of a closed, unsettled auction until now+lease.
// It reports false while another holder's lease is still running.
func (s *Store) ClaimSettlement(ctx context.Context, propertyID int64, now time.Time, lease time.Duration) (bool, error) {
	var claimed bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getAuction(ctx, tx, propertyID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE auctions SET settle_lease = ?
			WHERE property_id = ? AND state = 'closed' AND settled = 0 AND settle_lease <= ?`,
			toUnix(now.Add(lease)), propertyID, toUnix(now),
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		claimed = n == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("claim settlement %d: %w", propertyID, err)
	}
	return claimed, nil
}

// ReleaseSettlement drops the settlement lease so the next sweep can retry
func (s *Store) ReleaseSettlement(ctx context.Context, propertyID int64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE auctions SET settle_lease = 0 WHERE property_id = ?`, propertyID); err != nil {
		return fmt.Errorf("release settlement %d: %w", propertyID, err)
	}
	return nil
}

// ListDue returns auctions needing a lifecycle step at now
func (s *Store) ListDue(ctx context.Context, now time.Time) ([]model.Auction, error) {
	ts := toUnix(now)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+auctionColumns+` FROM auctions
		WHERE (state = 'scheduled' AND start_time <= ?)
		   OR (state != 'closed' AND end_time <= ?)
		   OR (state = 'closed' AND settled = 0 AND current_highest_bid_id IS NOT NULL)
		ORDER BY property_id`, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("list due auctions: %w", err)
	}
	defer rows.Close()

	due := make([]model.Auction, 0)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("list due auctions: %w", err)
		}
		due = append(due, a)
	}
	return due, rows.Err()
}

// AppendBid adds a bid to the ledger and returns its id
func (s *Store) AppendBid(ctx context.Context, bid model.Bid) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = appendBid(ctx, tx, bid)
		return err
	})
	return id, err
}

func appendBid(ctx context.Context, tx *sql.Tx, bid model.Bid) (int64, error) {
	if _, err := getAuction(ctx, tx, bid.PropertyID); err != nil {
		return 0, fmt.Errorf("append bid: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO bids (property_id, bidder_id, amount, submitted_at) VALUES (?, ?, ?, ?)`,
		bid.PropertyID, bid.BidderID, bid.Amount, toUnix(bid.SubmittedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("append bid for property %d: %w", bid.PropertyID, err)
	}
	return res.LastInsertId()
}

// GetBid returns a bid by id
func (s *Store) GetBid(ctx context.Context, bidID int64) (model.Bid, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, property_id, bidder_id, amount, submitted_at FROM bids WHERE id = ?`, bidID)
	b, err := scanBid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Bid{}, fmt.Errorf("get bid %d: %w", bidID, biddingerrors.ErrBidNotFound)
	}
	if err != nil {
		return model.Bid{}, fmt.Errorf("get bid %d: %w", bidID, err)
	}
	return b, nil
}

// History returns all bids for a property ordered by submission time
func (s *Store) History(ctx context.Context, propertyID int64) ([]model.Bid, error) {
	if _, err := s.GetAuction(ctx, propertyID); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, property_id, bidder_id, amount, submitted_at FROM bids
		WHERE property_id = ?
		ORDER BY submitted_at, id`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("history for property %d: %w", propertyID, err)
	}
	defer rows.Close()

	history := make([]model.Bid, 0)
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("history for property %d: %w", propertyID, err)
		}
		history = append(history, b)
	}
	return history, rows.Err()
}

// AuctionsByBidder returns every auction a user has an accepted bid on
func (s *Store) AuctionsByBidder(ctx context.Context, bidderID int64) ([]model.Auction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+auctionColumns+` FROM auctions
		WHERE property_id IN (SELECT DISTINCT property_id FROM bids WHERE bidder_id = ?)
		ORDER BY property_id`, bidderID)
	if err != nil {
		return nil, fmt.Errorf("auctions for bidder %d: %w", bidderID, err)
	}
	defer rows.Close()

	auctions := make([]model.Auction, 0)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("auctions for bidder %d: %w", bidderID, err)
		}
		auctions = append(auctions, a)
	}
	return auctions, rows.Err()
}

// InsertNotification stores a notification as undelivered
func (s *Store) InsertNotification(ctx context.Context, n model.Notification) (int64, error) {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return 0, fmt.Errorf("insert notification: marshal payload: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (recipient_user_id, kind, payload, created_at, delivered)
		VALUES (?, ?, ?, ?, 0)`,
		n.RecipientUserID, string(n.Kind), string(payload), toUnix(n.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert notification for user %d: %w", n.RecipientUserID, err)
	}
	return res.LastInsertId()
}

// MarkDelivered flags a notification as delivered. Repeated calls succeed.
func (s *Store) MarkDelivered(ctx context.Context, notificationID int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET delivered = 1 WHERE id = ?`, notificationID)
	if err != nil {
		return fmt.Errorf("mark delivered %d: %w", notificationID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark delivered %d: %w", notificationID, err)
	}
	if n == 0 {
		return fmt.Errorf("mark delivered %d: %w", notificationID, biddingerrors.ErrNotificationNotFound)
	}
	return nil
}

// PendingFor returns undelivered notifications for a user, oldest first
func (s *Store) PendingFor(ctx context.Context, userID int64) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipient_user_id, kind, payload, created_at, delivered FROM notifications
		WHERE recipient_user_id = ? AND delivered = 0
		ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("pending notifications for user %d: %w", userID, err)
	}
	defer rows.Close()

	pending := make([]model.Notification, 0)
	for rows.Next() {
		var (
			n         model.Notification
			kind      string
			payload   string
			created   int64
			delivered int
		)
		if err := rows.Scan(&n.ID, &n.RecipientUserID, &kind, &payload, &created, &delivered); err != nil {
			return nil, fmt.Errorf("pending notifications for user %d: %w", userID, err)
		}
		if err := json.Unmarshal([]byte(payload), &n.Payload); err != nil {
			return nil, fmt.Errorf("notification %d: unmarshal payload: %w", n.ID, err)
		}
		n.Kind = model.NotificationKind(kind)
		n.CreatedAt = fromUnix(created)
		n.Delivered = delivered == 1
		pending = append(pending, n)
	}
	return pending, rows.Err()
}

// PropertyExists reports whether the listing id is known
func (s *Store) PropertyExists(ctx context.Context, propertyID int64) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM properties WHERE id = ?`, propertyID)
}

// UserExists reports whether the user id is known
func (s *Store) UserExists(ctx context.Context, userID int64) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM users WHERE id = ?`, userID)
}

func (s *Store) exists(ctx context.Context, query string, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AddProperty registers a listing id for seeding and tests
func (s *Store) AddProperty(ctx context.Context, propertyID int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO properties (id) VALUES (?)`, propertyID)
	return err
}

// AddUser registers a user id for seeding and tests
func (s *Store) AddUser(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO users (id) VALUES (?)`, userID)
	return err
}

// RecordSale keeps the first sale recorded per property
func (s *Store) RecordSale(ctx context.Context, sale model.Sale) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (property_id, winning_bid_id, amount, buyer_id, recorded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (property_id) DO NOTHING`,
		sale.PropertyID, sale.WinningBidID, sale.Amount, sale.BuyerID, toUnix(sale.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("record sale for property %d: %w", sale.PropertyID, err)
	}
	return nil
}

// Sales returns every recorded sale ordered by property id
func (s *Store) Sales(ctx context.Context) ([]model.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT property_id, winning_bid_id, amount, buyer_id, recorded_at FROM sales ORDER BY property_id`)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	sales := make([]model.Sale, 0)
	for rows.Next() {
		var (
			sale     model.Sale
			recorded int64
		)
		if err := rows.Scan(&sale.PropertyID, &sale.WinningBidID, &sale.Amount, &sale.BuyerID, &recorded); err != nil {
			return nil, fmt.Errorf("list sales: %w", err)
		}
		sale.RecordedAt = fromUnix(recorded)
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func toUnix(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnix(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
