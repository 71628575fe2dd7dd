package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"property-auction/internal/biddingerrors"
	model "property-auction/internal/models"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

// AuctionStore holds one auction record per property
type AuctionStore interface {
	GetAuction(ctx context.Context, propertyID int64) (model.Auction, error)
	CreateAuction(ctx context.Context, auction model.Auction) (model.Auction, error)
	// UpdateHighestBid swings the leading-bid pointer only if it still equals expectedPriorBidID.
	UpdateHighestBid(ctx context.Context, propertyID, bidID int64, amount decimal.Decimal, expectedPriorBidID *int64) error
	ActivateAuction(ctx context.Context, propertyID int64) (bool, error)
	CloseAuction(ctx context.Context, propertyID int64) (bool, error)
	MarkSettled(ctx context.Context, propertyID int64) error
	// ClaimSettlement grants one caller at a time the right to record the sale of a closed auction.
	ClaimSettlement(ctx context.Context, propertyID int64, now time.Time, lease time.Duration) (bool, error)
	ReleaseSettlement(ctx context.Context, propertyID int64) error
	ListDue(ctx context.Context, now time.Time) ([]model.Auction, error)
}

// BidLedger is the append-only history of accepted bids
type BidLedger interface {
	AppendBid(ctx context.Context, bid model.Bid) (int64, error)
	GetBid(ctx context.Context, bidID int64) (model.Bid, error)
	History(ctx context.Context, propertyID int64) ([]model.Bid, error)
	AuctionsByBidder(ctx context.Context, bidderID int64) ([]model.Auction, error)
}

// AuctionDB is the storage the bidding engine and the scheduler work against
type AuctionDB interface {
	AuctionStore
	BidLedger
	// CommitBid appends bid and moves the leading pointer to it in one unit of work.
	// Nothing is persisted when the pointer no longer equals expectedPriorBidID.
	CommitBid(ctx context.Context, bid model.Bid, expectedPriorBidID *int64) (model.Bid, error)
}

// NotificationStore persists notification records until they are delivered
type NotificationStore interface {
	InsertNotification(ctx context.Context, n model.Notification) (int64, error)
	MarkDelivered(ctx context.Context, notificationID int64) error
	PendingFor(ctx context.Context, userID int64) ([]model.Notification, error)
}

// Directory answers existence checks against the marketplace's users and listings
type Directory interface {
	PropertyExists(ctx context.Context, propertyID int64) (bool, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
}

// SaleRecorder records the transaction produced by a won auction.
// Recording the same property twice is a no-op.
type SaleRecorder interface {
	RecordSale(ctx context.Context, sale model.Sale) error
}

// MemoryRepo is a concurrency-safe in-memory implementation of every store contract
type MemoryRepo struct {
	mu               sync.RWMutex
	auctions         map[int64]*model.Auction      // key: propertyID
	bids             []model.Bid                   // index: bidID-1
	propertyBids     map[int64][]int64             // key: propertyID -> value: bid ids in commit order
	bidderProperties map[int64][]int64             // key: bidderID -> value: propertyIDs bid on
	notifications    map[int64]*model.Notification // key: notificationID
	userInbox        map[int64][]int64             // key: userID -> value: notification ids
	properties       map[int64]struct{}
	users            map[int64]struct{}
	sales            map[int64]model.Sale // key: propertyID
	settleLeases     map[int64]time.Time  // key: propertyID -> value: lease expiry
	nextNotification int64
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions:         make(map[int64]*model.Auction),
		propertyBids:     make(map[int64][]int64),
		bidderProperties: make(map[int64][]int64),
		notifications:    make(map[int64]*model.Notification),
		userInbox:        make(map[int64][]int64),
		properties:       make(map[int64]struct{}),
		users:            make(map[int64]struct{}),
		sales:            make(map[int64]model.Sale),
		settleLeases:     make(map[int64]time.Time),
	}
}

// GetAuction returns the auction for a property
func (r *MemoryRepo) GetAuction(_ context.Context, propertyID int64) (model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.auctions[propertyID]
	if !ok {
		return model.Auction{}, fmt.Errorf("get auction %d: %w", propertyID, biddingerrors.ErrAuctionNotFound)
	}
	return copyAuction(a), nil
}

// CreateAuction stores a new auction. Window validation belongs to the caller.
func (r *MemoryRepo) CreateAuction(_ context.Context, auction model.Auction) (model.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[auction.PropertyID]; ok {
		return model.Auction{}, fmt.Errorf("create auction %d: %w", auction.PropertyID, biddingerrors.ErrAuctionExists)
	}
	auction.CurrentHighestBidID = nil
	auction.CurrentHighestBid = decimal.Zero
	if auction.State == "" {
		auction.State = model.StateScheduled
	}
	stored := auction
	r.auctions[auction.PropertyID] = &stored
	return copyAuction(&stored), nil
}

// UpdateHighestBid performs the compare-and-swap on the leading-bid pointer
func (r *MemoryRepo) UpdateHighestBid(_ context.Context, propertyID, bidID int64, amount decimal.Decimal, expectedPriorBidID *int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateHighestLocked(propertyID, bidID, amount, expectedPriorBidID)
}

func (r *MemoryRepo) updateHighestLocked(propertyID, bidID int64, amount decimal.Decimal, expectedPriorBidID *int64) error {
	a, ok := r.auctions[propertyID]
	if !ok {
		return fmt.Errorf("update highest bid %d: %w", propertyID, biddingerrors.ErrAuctionNotFound)
	}
	if a.State == model.StateClosed {
		return fmt.Errorf("update highest bid %d: %w", propertyID, biddingerrors.ErrTooLate)
	}
	if !sameBidID(a.CurrentHighestBidID, expectedPriorBidID) {
		return fmt.Errorf("update highest bid %d: %w", propertyID, biddingerrors.ErrConflict)
	}
	if a.HasBids() && !amount.GreaterThan(a.CurrentHighestBid) {
		return fmt.Errorf("update highest bid %d: %w", propertyID, biddingerrors.ErrConflict)
	}
	id := bidID
	a.CurrentHighestBidID = &id
	a.CurrentHighestBid = amount
	return nil
}

// ActivateAuction moves a scheduled auction to active
func (r *MemoryRepo) ActivateAuction(_ context.Context, propertyID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.auctions[propertyID]
	if !ok {
		return false, fmt.Errorf("activate auction %d: %w", propertyID, biddingerrors.ErrAuctionNotFound)
	}
	if a.State != model.StateScheduled {
		return false, nil
	}
	a.State = model.StateActive
	return true, nil
}

// CloseAuction moves any non-closed auction to closed. It reports false when already closed.
func (r *MemoryRepo) CloseAuction(_ context.Context, propertyID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.auctions[propertyID]
	if !ok {
		return false, fmt.Errorf("close auction %d: %w", propertyID, biddingerrors.ErrAuctionNotFound)
	}
	if a.State == model.StateClosed {
		return false, nil
	}
	a.State = model.StateClosed
	return true, nil
}

// MarkSettled flags that the sale of a closed auction has been recorded
func (r *MemoryRepo) MarkSettled(_ context.Context, propertyID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.auctions[propertyID]
	if !ok {
		return fmt.Errorf("mark settled %d: %w", propertyID, biddingerrors.ErrAuctionNotFound)
	}
	a.Settled = true
	return nil
}

// ClaimSettlement takes the settlement lease of a closed, unsettled auction until now+lease.
// It reports false while another holder's lease is still running.
func (r *MemoryRepo) ClaimSettlement(_ context.Context, propertyID int64, now time.Time, lease time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.auctions[propertyID]
	if !ok {
		return false, fmt.Errorf("claim settlement %d: %w", propertyID, biddingerrors.ErrAuctionNotFound)
	}
	if a.State != model.StateClosed || a.Settled || now.Before(r.settleLeases[propertyID]) {
		return false, nil
	}
	r.settleLeases[propertyID] = now.Add(lease)
	return true, nil
}

// ReleaseSettlement drops the settlement lease so the next sweep can retry
func (r *MemoryRepo) ReleaseSettlement(_ context.Context, propertyID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.settleLeases, propertyID)
	return nil
}

// ListDue returns auctions needing a lifecycle step at now, ordered by property id
func (r *MemoryRepo) ListDue(_ context.Context, now time.Time) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	due := make([]model.Auction, 0)
	for _, a := range r.auctions {
		if isDue(a, now) {
			due = append(due, copyAuction(a))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].PropertyID < due[j].PropertyID })
	return due, nil
}

func isDue(a *model.Auction, now time.Time) bool {
	switch a.State {
	case model.StateClosed:
		return !a.Settled && a.HasBids()
	case model.StateScheduled:
		return !now.Before(a.StartTime)
	default:
		return !now.Before(a.EndTime)
	}
}

// AppendBid adds a bid to the ledger and returns its id
func (r *MemoryRepo) AppendBid(_ context.Context, bid model.Bid) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appendLocked(bid)
}

func (r *MemoryRepo) appendLocked(bid model.Bid) (int64, error) {
	if _, ok := r.auctions[bid.PropertyID]; !ok {
		return 0, fmt.Errorf("append bid for property %d: %w", bid.PropertyID, biddingerrors.ErrAuctionNotFound)
	}

	bid.ID = int64(len(r.bids) + 1)
	r.bids = append(r.bids, bid)
	r.propertyBids[bid.PropertyID] = append(r.propertyBids[bid.PropertyID], bid.ID)

	for _, id := range r.bidderProperties[bid.BidderID] {
		if id == bid.PropertyID {
			return bid.ID, nil
		}
	}
	r.bidderProperties[bid.BidderID] = append(r.bidderProperties[bid.BidderID], bid.PropertyID)
	return bid.ID, nil
}

// CommitBid appends the bid and swings the pointer under a single lock
func (r *MemoryRepo) CommitBid(_ context.Context, bid model.Bid, expectedPriorBidID *int64) (model.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// validate the swap first so a losing bid never reaches the ledger
	a, ok := r.auctions[bid.PropertyID]
	if !ok {
		return model.Bid{}, fmt.Errorf("commit bid for property %d: %w", bid.PropertyID, biddingerrors.ErrAuctionNotFound)
	}
	if a.State == model.StateClosed {
		return model.Bid{}, fmt.Errorf("commit bid for property %d: %w", bid.PropertyID, biddingerrors.ErrTooLate)
	}
	if !sameBidID(a.CurrentHighestBidID, expectedPriorBidID) {
		return model.Bid{}, fmt.Errorf("commit bid for property %d: %w", bid.PropertyID, biddingerrors.ErrConflict)
	}
	if a.HasBids() {
		if !bid.Amount.GreaterThan(a.CurrentHighestBid) {
			return model.Bid{}, fmt.Errorf("commit bid for property %d: %w", bid.PropertyID, biddingerrors.ErrConflict)
		}
		// history is ordered by submission time, so a bid never sorts ahead of the one it beat
		if leaderID := *a.CurrentHighestBidID; leaderID >= 1 && leaderID <= int64(len(r.bids)) {
			if leader := r.bids[leaderID-1]; bid.SubmittedAt.Before(leader.SubmittedAt) {
				bid.SubmittedAt = leader.SubmittedAt
			}
		}
	}

	id, err := r.appendLocked(bid)
	if err != nil {
		return model.Bid{}, err
	}
	bid.ID = id
	if err := r.updateHighestLocked(bid.PropertyID, id, bid.Amount, expectedPriorBidID); err != nil {
		return model.Bid{}, err
	}
	return bid, nil
}

// GetBid returns a bid by id
func (r *MemoryRepo) GetBid(_ context.Context, bidID int64) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if bidID < 1 || bidID > int64(len(r.bids)) {
		return model.Bid{}, fmt.Errorf("get bid %d: %w", bidID, biddingerrors.ErrBidNotFound)
	}
	return r.bids[bidID-1], nil
}

// History returns all bids for a property ordered by submission time, ties in commit order
func (r *MemoryRepo) History(_ context.Context, propertyID int64) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.auctions[propertyID]; !ok {
		return nil, fmt.Errorf("history for property %d: %w", propertyID, biddingerrors.ErrAuctionNotFound)
	}

	ids := r.propertyBids[propertyID]
	history := make([]model.Bid, 0, len(ids))
	for _, id := range ids {
		history = append(history, r.bids[id-1])
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].SubmittedAt.Before(history[j].SubmittedAt)
	})
	return history, nil
}

// AuctionsByBidder returns every auction a user has an accepted bid on
func (r *MemoryRepo) AuctionsByBidder(_ context.Context, bidderID int64) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	propertyIDs := r.bidderProperties[bidderID]
	auctions := make([]model.Auction, 0, len(propertyIDs))
	for _, id := range propertyIDs {
		if a, exists := r.auctions[id]; exists {
			auctions = append(auctions, copyAuction(a))
		}
	}
	sort.Slice(auctions, func(i, j int) bool { return auctions[i].PropertyID < auctions[j].PropertyID })
	return auctions, nil
}

// InsertNotification stores a notification as undelivered
func (r *MemoryRepo) InsertNotification(_ context.Context, n model.Notification) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextNotification++
	n.ID = r.nextNotification
	n.Delivered = false
	r.notifications[n.ID] = &n
	r.userInbox[n.RecipientUserID] = append(r.userInbox[n.RecipientUserID], n.ID)
	return n.ID, nil
}

// MarkDelivered flags a notification as delivered. Repeated calls succeed.
func (r *MemoryRepo) MarkDelivered(_ context.Context, notificationID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[notificationID]
	if !ok {
		return fmt.Errorf("mark delivered %d: %w", notificationID, biddingerrors.ErrNotificationNotFound)
	}
	n.Delivered = true
	return nil
}

// PendingFor returns undelivered notifications for a user, oldest first
func (r *MemoryRepo) PendingFor(_ context.Context, userID int64) ([]model.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pending := make([]model.Notification, 0)
	for _, id := range r.userInbox[userID] {
		if n := r.notifications[id]; !n.Delivered {
			pending = append(pending, *n)
		}
	}
	return pending, nil
}

// PropertyExists reports whether the property was registered
func (r *MemoryRepo) PropertyExists(_ context.Context, propertyID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.properties[propertyID]
	return ok, nil
}

// UserExists reports whether the user was registered
func (r *MemoryRepo) UserExists(_ context.Context, userID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok, nil
}

// RecordSale keeps the first sale recorded per property
func (r *MemoryRepo) RecordSale(_ context.Context, sale model.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sales[sale.PropertyID]; ok {
		return nil
	}
	r.sales[sale.PropertyID] = sale
	return nil
}

// Sales returns every recorded sale ordered by property id
func (r *MemoryRepo) Sales() []model.Sale {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sales := make([]model.Sale, 0, len(r.sales))
	for _, s := range r.sales {
		sales = append(sales, s)
	}
	sort.Slice(sales, func(i, j int) bool { return sales[i].PropertyID < sales[j].PropertyID })
	return sales
}

// AddProperty registers a listing id. The marketplace owns listings; this is used for seeding and tests.
func (r *MemoryRepo) AddProperty(propertyID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.properties[propertyID] = struct{}{}
}

// AddUser registers a user id for seeding and tests
func (r *MemoryRepo) AddUser(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID] = struct{}{}
}

func copyAuction(a *model.Auction) model.Auction {
	c := *a
	if a.CurrentHighestBidID != nil {
		id := *a.CurrentHighestBidID
		c.CurrentHighestBidID = &id
	}
	return c
}

func sameBidID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
