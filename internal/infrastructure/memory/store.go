// Package memory is a concurrency-safe in-process implementation of the
// repository interfaces. It backs local runs and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"silent-auction/internal/domain"
)

type Store struct {
	mu               sync.RWMutex
	items            map[string]*domain.Item
	bids             map[string][]*domain.Bid // itemID -> bids in commit order
	bidsByID         map[string]*domain.Bid
	userItems        map[string][]string // userID -> itemIDs in first-bid order
	notifications    map[string]*domain.Notification
	userNotification map[string][]string // userID -> notification ids in insert order
	notificationKeys map[string]struct{}
	jobs             map[string]*domain.ScheduledJob

	locksMu   sync.Mutex
	itemLocks map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		items:            make(map[string]*domain.Item),
		bids:             make(map[string][]*domain.Bid),
		bidsByID:         make(map[string]*domain.Bid),
		userItems:        make(map[string][]string),
		notifications:    make(map[string]*domain.Notification),
		userNotification: make(map[string][]string),
		notificationKeys: make(map[string]struct{}),
		jobs:             make(map[string]*domain.ScheduledJob),
		itemLocks:        make(map[string]*sync.Mutex),
	}
}

func cloneItem(item *domain.Item) *domain.Item {
	c := *item
	return &c
}

func cloneBid(bid *domain.Bid) *domain.Bid {
	c := *bid
	return &c
}

func cloneNotification(n *domain.Notification) *domain.Notification {
	c := *n
	if n.BidAmount != nil {
		amount := *n.BidAmount
		c.BidAmount = &amount
	}
	return &c
}

// itemLock returns the mutex guarding one item's critical section. Distinct
// items get distinct mutexes so they never wait on each other.
func (s *Store) itemLock(itemID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.itemLocks[itemID]
	if !ok {
		lock = &sync.Mutex{}
		s.itemLocks[itemID] = lock
	}
	return lock
}

func (s *Store) CreateItem(ctx context.Context, item *domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID]; exists {
		return fmt.Errorf("memory: item %s already exists", item.ID)
	}
	s.items[item.ID] = cloneItem(item)
	return nil
}

func (s *Store) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, fmt.Errorf("memory: item %s: %w", itemID, domain.ErrNotFound)
	}
	return cloneItem(item), nil
}

func (s *Store) ListActiveItems(ctx context.Context, filter domain.ItemFilter) ([]*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*domain.Item, 0, len(s.items))
	for _, item := range s.items {
		if item.Status != domain.ItemActive {
			continue
		}
		if filter.SellerID != "" && item.SellerID != filter.SellerID {
			continue
		}
		items = append(items, cloneItem(item))
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	return items, nil
}

func (s *Store) WithItemTx(ctx context.Context, itemID string, fn func(tx domain.ItemTx) error) error {
	lock := s.itemLock(itemID)
	lock.Lock()
	defer lock.Unlock()

	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return err
	}

	tx := &itemTx{store: s, item: item}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory: commit item %s: %w", itemID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx.apply()
	return nil
}

// itemTx stages writes against a private copy of the item. Nothing becomes
// visible to readers until apply runs.
type itemTx struct {
	store   *Store
	item    *domain.Item
	newBids []*domain.Bid
	dirty   bool
}

func (t *itemTx) Item() *domain.Item {
	return t.item
}

func (t *itemTx) LeadingBid(ctx context.Context) (*domain.Bid, error) {
	if t.item.LeadingBidID == "" {
		return nil, nil
	}
	for _, bid := range t.newBids {
		if bid.ID == t.item.LeadingBidID {
			return cloneBid(bid), nil
		}
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	bid, ok := t.store.bidsByID[t.item.LeadingBidID]
	if !ok {
		return nil, fmt.Errorf("memory: leading bid %s of item %s missing", t.item.LeadingBidID, t.item.ID)
	}
	return cloneBid(bid), nil
}

func (t *itemTx) AppendBid(ctx context.Context, bid *domain.Bid) error {
	if bid.ItemID != t.item.ID {
		return fmt.Errorf("memory: bid for item %s appended in transaction of item %s", bid.ItemID, t.item.ID)
	}
	t.newBids = append(t.newBids, cloneBid(bid))
	return nil
}

func (t *itemTx) ApplyBid(ctx context.Context, bid *domain.Bid) error {
	t.item.CurrentPrice = bid.Amount
	t.item.LeadingBidID = bid.ID
	t.item.UpdatedAt = bid.CreatedAt
	t.dirty = true
	return nil
}

func (t *itemTx) SetStatus(ctx context.Context, status domain.ItemStatus) error {
	t.item.Status = status
	t.item.UpdatedAt = time.Now().UTC()
	t.dirty = true
	return nil
}

// apply publishes the staged writes. Caller holds store.mu for writing.
func (t *itemTx) apply() {
	s := t.store
	for _, bid := range t.newBids {
		s.bids[bid.ItemID] = append(s.bids[bid.ItemID], bid)
		s.bidsByID[bid.ID] = bid

		seen := false
		for _, id := range s.userItems[bid.BidderID] {
			if id == bid.ItemID {
				seen = true
				break
			}
		}
		if !seen {
			s.userItems[bid.BidderID] = append(s.userItems[bid.BidderID], bid.ItemID)
		}
	}
	if t.dirty {
		s.items[t.item.ID] = cloneItem(t.item)
	}
}

func (s *Store) LeadingBid(ctx context.Context, itemID string) (*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var leader *domain.Bid
	for _, bid := range s.bids[itemID] {
		if bid.Leads(leader) {
			leader = bid
		}
	}
	if leader == nil {
		return nil, nil
	}
	return cloneBid(leader), nil
}

func (s *Store) ListBidsForItem(ctx context.Context, itemID string) ([]*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bids := make([]*domain.Bid, 0, len(s.bids[itemID]))
	for _, bid := range s.bids[itemID] {
		bids = append(bids, cloneBid(bid))
	}
	sort.SliceStable(bids, func(i, j int) bool {
		return bids[i].Leads(bids[j])
	})
	return bids, nil
}

func (s *Store) ListUserBids(ctx context.Context, userID string) ([]*domain.UserBid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.UserBid, 0, len(s.userItems[userID]))
	for _, itemID := range s.userItems[userID] {
		item, ok := s.items[itemID]
		if !ok {
			continue
		}

		var best *domain.Bid
		for _, bid := range s.bids[itemID] {
			if bid.BidderID != userID {
				continue
			}
			if best == nil || bid.Amount.GreaterThan(best.Amount) {
				best = bid
			}
		}
		if best == nil {
			continue
		}
		result = append(result, &domain.UserBid{Item: cloneItem(item), UserMaxAmount: best.Amount})
	}
	return result, nil
}

func notificationKey(eventKey, userID string) string {
	return eventKey + "\x00" + userID
}

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := notificationKey(n.EventKey, n.UserID)
	if _, exists := s.notificationKeys[key]; exists {
		return false, nil
	}
	if _, exists := s.notifications[n.ID]; exists {
		return false, fmt.Errorf("memory: notification %s already exists", n.ID)
	}

	s.notificationKeys[key] = struct{}{}
	s.notifications[n.ID] = cloneNotification(n)
	s.userNotification[n.UserID] = append(s.userNotification[n.UserID], n.ID)
	return true, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string) ([]*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.userNotification[userID]
	result := make([]*domain.Notification, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		result = append(result, cloneNotification(s.notifications[ids[i]]))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) CountUnread(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, id := range s.userNotification[userID] {
		if !s.notifications[id].IsRead {
			count++
		}
	}
	return count, nil
}

func (s *Store) MarkRead(ctx context.Context, notificationID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[notificationID]
	if !ok {
		return fmt.Errorf("memory: notification %s: %w", notificationID, domain.ErrNotFound)
	}
	if n.UserID != userID {
		return fmt.Errorf("memory: notification %s belongs to another user: %w", notificationID, domain.ErrForbidden)
	}
	n.IsRead = true
	return nil
}

func (s *Store) CreateJob(ctx context.Context, job *domain.ScheduledJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *job
	s.jobs[job.ID] = &c
	return nil
}

func (s *Store) GetPendingJobs(ctx context.Context, before time.Time) ([]*domain.ScheduledJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []*domain.ScheduledJob
	for _, job := range s.jobs {
		if job.Status == domain.JobPending && !job.RunAt.After(before) {
			c := *job
			jobs = append(jobs, &c)
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].RunAt.Before(jobs[j].RunAt)
	})
	return jobs, nil
}

func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("memory: job %s: %w", jobID, domain.ErrNotFound)
	}
	job.Status = status
	return nil
}

func (s *Store) CancelJobsForItem(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		if job.ItemID == itemID && job.Status == domain.JobPending {
			job.Status = domain.JobCancelled
		}
	}
	return nil
}
