package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"visionmatch/internal/models"
	"visionmatch/internal/notify"
	"visionmatch/internal/repositories"
)

// memStore is an in-memory stand-in for the Postgres repositories.
type memStore struct {
	mu       sync.Mutex
	requests map[string]models.ProjectRequest
	messages map[string][]models.NegotiationMessage
	payments map[string]models.Payment
	bookings map[string]models.Booking
	balances map[string]int64
	seq      int
}

func newMemStore() *memStore {
	return &memStore{
		requests: map[string]models.ProjectRequest{},
		messages: map[string][]models.NegotiationMessage{},
		payments: map[string]models.Payment{},
		bookings: map[string]models.Booking{},
		balances: map[string]int64{},
	}
}

func (s *memStore) put(req models.ProjectRequest) *models.ProjectRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.Prepare()
	s.requests[req.ID] = req
	return &req
}

// requestStore

type memRequests struct{ *memStore }

func (s memRequests) Create(_ context.Context, req *models.ProjectRequest) error {
	req.Prepare()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = *req
	return nil
}

func (s memRequests) GetByID(_ context.Context, id string) (*models.ProjectRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (s memRequests) list(match func(models.ProjectRequest) bool, newestFirst bool) []models.ProjectRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.ProjectRequest{}
	for _, r := range s.requests {
		if match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s memRequests) ListByClientID(_ context.Context, id string) ([]models.ProjectRequest, error) {
	return s.list(func(r models.ProjectRequest) bool { return r.ClientID == id }, false), nil
}

func (s memRequests) ListByCreatorID(_ context.Context, id string) ([]models.ProjectRequest, error) {
	return s.list(func(r models.ProjectRequest) bool { return r.CreatorID == id }, true), nil
}

func (s memRequests) Mutate(_ context.Context, id string, fn func(*models.ProjectRequest) error) (*models.ProjectRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if err := fn(&req); err != nil {
		return nil, err
	}
	req.Version++
	s.requests[id] = req
	return &req, nil
}

// messageStore

type memMessages struct{ *memStore }

func (s memMessages) ListByRequestID(_ context.Context, requestID, after string) ([]models.NegotiationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.NegotiationMessage{}
	for _, m := range s.messages[requestID] {
		if after == "" || m.ID > after {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s memMessages) AppendMessage(_ context.Context, requestID string, decide repositories.DecideFunc) (*models.NegotiationMessage, *models.ProjectRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, nil, repositories.ErrNotFound
	}
	feed := append([]models.NegotiationMessage(nil), s.messages[requestID]...)
	msg, err := decide(&req, feed)
	if err != nil {
		return nil, nil, err
	}
	msg.RequestID = requestID
	s.seq++
	msg.Timestamp = time.Unix(int64(s.seq), 0).UTC()
	msg.Prepare()
	s.messages[requestID] = append(s.messages[requestID], *msg)
	req.Version++
	s.requests[requestID] = req
	return msg, &req, nil
}

// payments, bookings and balances

type memPayments struct{ *memStore }

func (s memPayments) Create(_ context.Context, p *models.Payment) error {
	p.Prepare()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = *p
	return nil
}

func (s memPayments) GetByID(_ context.Context, id string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.payments[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s memPayments) GetByGatewayOrderID(_ context.Context, orderID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.GatewayOrderID == orderID {
			return &p, nil
		}
	}
	return nil, nil
}

func (s memPayments) LatestByRequestID(_ context.Context, requestID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Payment
	for _, p := range s.payments {
		if p.RequestID == requestID && (latest == nil || p.CreatedAt.After(latest.CreatedAt)) {
			latest = &p
		}
	}
	return latest, nil
}

func (s memPayments) Escrow(_ context.Context, paymentID, gatewayPaymentID string, build repositories.BookingFunc) (*models.Payment, *models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, nil, repositories.ErrNotFound
	}
	if p.Status != models.PaymentPending {
		return nil, nil, repositories.ErrPaymentState
	}
	req := s.requests[p.RequestID]
	p.Status = models.PaymentEscrowed
	p.GatewayPaymentID = &gatewayPaymentID
	s.payments[p.ID] = p

	b := build(&req, &p)
	b.Prepare()
	s.bookings[b.ID] = *b

	req.Status = models.StatusPaid
	req.PaymentID = &p.ID
	req.BookingID = &b.ID
	req.Version++
	s.requests[req.ID] = req
	return &p, b, nil
}

func (s memPayments) Release(_ context.Context, paymentID string) (*models.Payment, *models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, nil, repositories.ErrNotFound
	}
	if p.Status != models.PaymentEscrowed {
		return nil, nil, repositories.ErrPaymentState
	}
	var booking *models.Booking
	for id, b := range s.bookings {
		if b.RequestID != p.RequestID {
			continue
		}
		if b.Status == models.BookingDisputed {
			return nil, nil, repositories.ErrPaymentState
		}
		b.Status = models.BookingCompleted
		b.EscrowStatus = models.EscrowReleased
		booking = &b
		booking.ID = id
	}
	if booking == nil {
		return nil, nil, repositories.ErrNotFound
	}
	s.bookings[booking.ID] = *booking
	now := time.Now().UTC()
	p.Status = models.PaymentCompleted
	p.CompletedAt = &now
	s.payments[p.ID] = p
	s.balances[p.CreatorID] += p.BaseAmount

	req := s.requests[p.RequestID]
	req.Status = models.StatusCompleted
	s.requests[req.ID] = req
	return &p, booking, nil
}

type memBookings struct{ *memStore }

func (s memBookings) GetByID(_ context.Context, id string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bookings[id]; ok {
		return &b, nil
	}
	return nil, nil
}

func (s memBookings) ListByClientID(_ context.Context, clientID string) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Booking{}
	for _, b := range s.bookings {
		if b.ClientID == clientID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s memBookings) Dispute(_ context.Context, id, reason string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if b.Status != models.BookingConfirmed {
		return nil, repositories.ErrPaymentState
	}
	b.Status = models.BookingDisputed
	b.DisputeReason = reason
	s.bookings[id] = b
	return &b, nil
}

type memBalances struct{ *memStore }

func (s memBalances) Get(_ context.Context, creatorID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[creatorID], nil
}

// users and tokens

type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]models.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[uuid.UUID]models.User{}}
}

func (u *memUsers) Create(_ context.Context, user *models.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	u.users[user.ID] = *user
	return nil
}

func (u *memUsers) FindUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if user, ok := u.users[id]; ok {
		return &user, nil
	}
	return nil, nil
}

func (u *memUsers) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, nil
}

func (u *memUsers) TouchLastLogin(_ context.Context, id uuid.UUID) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	user := u.users[id]
	now := time.Now()
	user.LastLoginAt = &now
	u.users[id] = user
	return nil
}

type memBlacklist struct {
	mu  sync.Mutex
	set map[string]bool
}

func (b *memBlacklist) Blacklist(_ context.Context, jti string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.set == nil {
		b.set = map[string]bool{}
	}
	b.set[jti] = true
	return nil
}

func (b *memBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.set[jti], nil
}

// notifications and gateway

type recordingNotifier struct {
	mu     sync.Mutex
	emails []notify.Email
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, e notify.Email) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emails = append(n.emails, e)
	return n.err
}

func (n *recordingNotifier) sent() []notify.Email {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Email(nil), n.emails...)
}

type fakeGateway struct {
	orders    int
	lastPaise int64
	validSig  string
	err       error
}

func (g *fakeGateway) CreateOrder(_ context.Context, amountPaise int64, _, _ string, _ map[string]string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.orders++
	g.lastPaise = amountPaise
	return "order_" + uuid.NewString()[:8], nil
}

func (g *fakeGateway) VerifySignature(_, _, signature string) bool {
	return signature == g.validSig
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

var errBoom = errors.New("boom")
