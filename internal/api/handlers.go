package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xtrntr/auction/internal/expiration"
	"github.com/xtrntr/auction/internal/feed"
	"github.com/xtrntr/auction/internal/lifecycle"
	"github.com/xtrntr/auction/internal/models"
)

// Authenticator registers users and resolves bearer tokens
type Authenticator interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	GetUserFromToken(token string) (int64, error)
}

// AuctionService is the auction lifecycle surface
type AuctionService interface {
	CreateAuction(ctx context.Context, in lifecycle.NewAuction) (*models.Auction, error)
	EndAuction(ctx context.Context, auctionID int64) (*models.Auction, error)
	AdvanceExpiredStatuses(ctx context.Context, now time.Time) (*lifecycle.StatusUpdate, error)
	GetAuction(ctx context.Context, auctionID int64) (*models.Auction, error)
	ListAuctions(ctx context.Context, status models.AuctionStatus, page, size int) ([]models.Auction, error)
	ListAuctionsBySeller(ctx context.Context, sellerID int64, page, size int) ([]models.Auction, error)
}

// BidService is the bid settlement surface
type BidService interface {
	PlaceBid(ctx context.Context, auctionID, bidderID int64, amount decimal.Decimal) (*models.Bid, error)
	RecentBids(ctx context.Context, auctionID int64) ([]models.Bid, error)
	BidsByUser(ctx context.Context, userID int64, page, size int) ([]models.Bid, error)
	CurrentWinningBid(ctx context.Context, auctionID int64) (*models.Bid, error)
	Statistics(ctx context.Context, auctionID int64) (models.BidStatistics, error)
}

// ExpirationRunner runs the expiration batch on demand
type ExpirationRunner interface {
	Run(ctx context.Context, cutoff time.Time) (*expiration.Report, error)
	IsRunning() bool
}

// Publisher pushes events to live clients
type Publisher interface {
	Publish(e feed.Event)
}

const defaultPageSize = 20

// Handler contains dependencies for HTTP handlers
type Handler struct {
	Auth       Authenticator
	Auctions   AuctionService
	Bids       BidService
	Expiration ExpirationRunner
	Feed       Publisher
	now        func() time.Time
}

// NewHandler creates a new handler
func NewHandler(auth Authenticator, auctions AuctionService, bids BidService, exp ExpirationRunner, pub Publisher) *Handler {
	return &Handler{Auth: auth, Auctions: auctions, Bids: bids, Expiration: exp, Feed: pub, now: time.Now}
}

// Routes registers every endpoint on r
func (h *Handler) Routes(r chi.Router) {
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)

	r.Get("/auctions", h.ListAuctions)
	r.Get("/auctions/{id}", h.GetAuction)
	r.Get("/auctions/{id}/bids", h.GetRecentBids)
	r.Get("/auctions/{id}/winning-bid", h.GetWinningBid)
	r.Get("/auctions/{id}/statistics", h.GetBidStatistics)

	// Protected endpoints (require JWT)
	r.Group(func(r chi.Router) {
		r.Use(h.JWTAuthMiddleware)
		r.Post("/auctions", h.CreateAuction)
		r.Post("/auctions/{id}/bids", h.PlaceBid)
		r.Post("/auctions/{id}/end", h.EndAuction)
		r.Get("/users/me/bids", h.GetUserBids)
		r.Get("/users/me/auctions", h.GetUserAuctions)

		r.Post("/admin/auctions/update-statuses", h.UpdateStatuses)
		r.Post("/admin/expiration/run", h.RunExpiration)
		r.Get("/admin/expiration/status", h.ExpirationStatus)
	})
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.Auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
	})
}

// Login handles user login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// CreateAuction lists a new auction for the authenticated seller
func (h *Handler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Title         string          `json:"title"`
		Description   string          `json:"description"`
		StartingPrice decimal.Decimal `json:"starting_price"`
		StartTime     time.Time       `json:"start_time"`
		EndTime       time.Time       `json:"end_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	auction, err := h.Auctions.CreateAuction(r.Context(), lifecycle.NewAuction{
		SellerID:      userID,
		Title:         req.Title,
		Description:   req.Description,
		StartingPrice: req.StartingPrice,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, auction)
}

// GetAuction returns one auction
func (h *Handler) GetAuction(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := pathID(w, r)
	if !ok {
		return
	}
	auction, err := h.Auctions.GetAuction(r.Context(), auctionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auction)
}

// ListAuctions pages through auctions, optionally filtered with ?status=
func (h *Handler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	page, size, ok := pageParams(w, r)
	if !ok {
		return
	}
	status := models.AuctionStatus(r.URL.Query().Get("status"))
	auctions, err := h.Auctions.ListAuctions(r.Context(), status, page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auctions)
}

// EndAuction ends an auction on behalf of its seller
func (h *Handler) EndAuction(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	auctionID, ok := pathID(w, r)
	if !ok {
		return
	}

	auction, err := h.Auctions.GetAuction(r.Context(), auctionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if auction.SellerID != userID {
		writeMessage(w, http.StatusForbidden, "Only the seller can end an auction")
		return
	}

	ended, err := h.Auctions.EndAuction(r.Context(), auctionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.Feed.Publish(feed.Event{Type: feed.EventAuctionEnded, AuctionID: auctionID, Payload: ended})

	writeJSON(w, http.StatusOK, ended)
}

// PlaceBid submits a bid for the authenticated user
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	auctionID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	bid, err := h.Bids.PlaceBid(r.Context(), auctionID, userID, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.Feed.Publish(feed.Event{Type: feed.EventBidPlaced, AuctionID: auctionID, Payload: bid})

	writeJSON(w, http.StatusCreated, bid)
}

// GetRecentBids returns the latest bids of an auction
func (h *Handler) GetRecentBids(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := pathID(w, r)
	if !ok {
		return
	}
	bids, err := h.Bids.RecentBids(r.Context(), auctionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

// GetWinningBid returns the current winning bid; 404 when there is none
func (h *Handler) GetWinningBid(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := pathID(w, r)
	if !ok {
		return
	}
	bid, err := h.Bids.CurrentWinningBid(r.Context(), auctionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if bid == nil {
		writeMessage(w, http.StatusNotFound, "No bids yet")
		return
	}
	writeJSON(w, http.StatusOK, bid)
}

// GetBidStatistics returns bid counts of an auction
func (h *Handler) GetBidStatistics(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := pathID(w, r)
	if !ok {
		return
	}
	stats, err := h.Bids.Statistics(r.Context(), auctionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetUserBids retrieves the authenticated user's bids
func (h *Handler) GetUserBids(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	page, size, ok := pageParams(w, r)
	if !ok {
		return
	}
	bids, err := h.Bids.BidsByUser(r.Context(), userID, page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

// GetUserAuctions retrieves the auctions the authenticated user sells
func (h *Handler) GetUserAuctions(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	page, size, ok := pageParams(w, r)
	if !ok {
		return
	}
	auctions, err := h.Auctions.ListAuctionsBySeller(r.Context(), userID, page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auctions)
}

// UpdateStatuses runs one unchunked status pass as of now
func (h *Handler) UpdateStatuses(w http.ResponseWriter, r *http.Request) {
	update, err := h.Auctions.AdvanceExpiredStatuses(r.Context(), h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, update)
}

// RunExpiration runs the expiration batch synchronously; the body may carry a cutoff
func (h *Handler) RunExpiration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cutoff *time.Time `json:"cutoff"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	cutoff := h.now()
	if req.Cutoff != nil {
		cutoff = *req.Cutoff
	}

	report, err := h.Expiration.Run(r.Context(), cutoff)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.Feed.Publish(feed.Event{Type: feed.EventRunFinished, Payload: report})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_key":      report.RunKey,
		"cutoff":       report.Cutoff,
		"processed":    report.Processed,
		"chunks":       report.Chunks,
		"elapsed_ms":   report.Elapsed.Milliseconds(),
		"partial":      report.Partial(),
		"chunk_errors": report.ChunkErrors,
	})
}

// ExpirationStatus reports whether an expiration run is in flight
func (h *Handler) ExpirationStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"running": h.Expiration.IsRunning()})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusBadRequest, "Invalid auction ID")
		return 0, false
	}
	return id, true
}

func pageParams(w http.ResponseWriter, r *http.Request) (page, size int, ok bool) {
	q := r.URL.Query()
	page, size = 0, defaultPageSize
	var err error
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid page")
			return 0, 0, false
		}
	}
	if v := q.Get("size"); v != "" {
		if size, err = strconv.Atoi(v); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid size")
			return 0, 0, false
		}
	}
	return page, size, true
}
