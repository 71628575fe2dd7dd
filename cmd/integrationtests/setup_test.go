package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	bidding "property-auction/internal/biddingService"
	"property-auction/internal/lifecycle"
	model "property-auction/internal/models"
	"property-auction/internal/notification"
	"property-auction/internal/repository"
	"property-auction/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// testEnv wires the full stack over the in-memory repository
type testEnv struct {
	router     *gin.Engine
	repo       *repository.MemoryRepo
	dispatcher *notification.Dispatcher
	scheduler  *lifecycle.Scheduler
}

// SetupTestEnv initializes the router with in-memory repository for integration testing.
// Properties and users 1..5 exist.
func SetupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryRepo()
	for id := int64(1); id <= 5; id++ {
		repo.AddProperty(id)
		repo.AddUser(id)
	}

	dispatcher := notification.NewDispatcher(repo, notification.Options{Workers: 2, QueueLength: 32, MaxAttempts: 3, RetryDelay: time.Millisecond})
	t.Cleanup(dispatcher.Close)

	service := bidding.NewBiddingService(repo, repo, dispatcher, bidding.Options{
		MaxRetries:       3,
		RetryDelay:       time.Millisecond,
		DefaultIncrement: decimal.NewFromInt(1),
		Currency:         "USD",
	})
	scheduler := lifecycle.NewScheduler(repo, repo, dispatcher, time.Second)

	return &testEnv{
		router:     server.SetupRouter(service, scheduler, dispatcher),
		repo:       repo,
		dispatcher: dispatcher,
		scheduler:  scheduler,
	}
}

// SeedAuction stores an auction directly, bypassing the start-in-the-future check of the API
func (e *testEnv) SeedAuction(t *testing.T, propertyID int64, start, end time.Time, minimumBid, increment int64) {
	t.Helper()
	_, err := e.repo.CreateAuction(context.Background(), model.Auction{
		PropertyID:       propertyID,
		StartTime:        start,
		EndTime:          end,
		MinimumBid:       decimal.NewFromInt(minimumBid),
		MinimumIncrement: decimal.NewFromInt(increment),
		Currency:         "USD",
	})
	require.NoError(t, err)
}

// SeedBids commits bids directly, each one outbidding the last
func (e *testEnv) SeedBids(t *testing.T, propertyID int64, submittedAt time.Time, bids ...[2]int64) {
	t.Helper()
	var prior *int64
	for i, b := range bids {
		committed, err := e.repo.CommitBid(context.Background(), model.Bid{
			PropertyID:  propertyID,
			BidderID:    b[0],
			Amount:      decimal.NewFromInt(b[1]),
			SubmittedAt: submittedAt.Add(time.Duration(i) * time.Second),
		}, prior)
		require.NoError(t, err)
		id := committed.ID
		prior = &id
	}
}

// ExecuteRequestAndParse executes an HTTP request on the given router and parses the response
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}

	return resp, w
}

// bidRequest builds a placement body
func bidRequest(bidderID int64, amount string) map[string]any {
	return map[string]any{"bidder_id": bidderID, "amount": amount}
}
