package ledger

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/MiriamFinn/cipher-trust-connect/internal/fhe"
	"github.com/MiriamFinn/cipher-trust-connect/internal/models"
)

var ErrNotFound = errors.New("record not found")

// ComparisonKey identifies one cached score comparison: which request, at
// which threshold, asked for by which principal.
type ComparisonKey struct {
	RequestID uint64
	Threshold uint64
	Principal common.Address
}

// Store holds the three append-only record arenas and the comparison-result
// cache. Ids are dense, zero-based, and assigned in append order; records are
// never deleted or reordered, and the active flags flip at most once.
//
// The store itself is not synchronized: the lending service serializes every
// operation against it, mirroring the serialized-transaction execution model
// this ledger originally ran under.
type Store struct {
	requests    []models.BorrowerRequest
	offers      []models.LenderOffer
	loans       []models.Loan
	comparisons map[ComparisonKey]fhe.Handle
}

func NewStore() *Store {
	return &Store{comparisons: map[ComparisonKey]fhe.Handle{}}
}

func (s *Store) AppendRequest(r models.BorrowerRequest) uint64 {
	r.ID = uint64(len(s.requests))
	s.requests = append(s.requests, r)
	return r.ID
}

func (s *Store) Request(id uint64) (models.BorrowerRequest, error) {
	if id >= uint64(len(s.requests)) {
		return models.BorrowerRequest{}, ErrNotFound
	}
	return s.requests[id], nil
}

func (s *Store) RequestCount() uint64 {
	return uint64(len(s.requests))
}

// CloseRequest flips the request inactive. Closing an already-closed request
// is a no-op rather than an error; the one-way property is what matters.
func (s *Store) CloseRequest(id uint64) error {
	if id >= uint64(len(s.requests)) {
		return ErrNotFound
	}
	s.requests[id].IsActive = false
	return nil
}

// ActiveRequestIDs returns ids of all active requests, ascending.
func (s *Store) ActiveRequestIDs() []uint64 {
	ids := make([]uint64, 0, len(s.requests))
	for _, r := range s.requests {
		if r.IsActive {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func (s *Store) AppendOffer(o models.LenderOffer) uint64 {
	o.ID = uint64(len(s.offers))
	s.offers = append(s.offers, o)
	return o.ID
}

func (s *Store) Offer(id uint64) (models.LenderOffer, error) {
	if id >= uint64(len(s.offers)) {
		return models.LenderOffer{}, ErrNotFound
	}
	return s.offers[id], nil
}

func (s *Store) OfferCount() uint64 {
	return uint64(len(s.offers))
}

func (s *Store) CloseOffer(id uint64) error {
	if id >= uint64(len(s.offers)) {
		return ErrNotFound
	}
	s.offers[id].IsActive = false
	return nil
}

func (s *Store) AppendLoan(l models.Loan) uint64 {
	l.ID = uint64(len(s.loans))
	s.loans = append(s.loans, l)
	return l.ID
}

func (s *Store) Loan(id uint64) (models.Loan, error) {
	if id >= uint64(len(s.loans)) {
		return models.Loan{}, ErrNotFound
	}
	return s.loans[id], nil
}

func (s *Store) LoanCount() uint64 {
	return uint64(len(s.loans))
}

// PutComparison caches h under key, overwriting any prior entry.
func (s *Store) PutComparison(key ComparisonKey, h fhe.Handle) {
	s.comparisons[key] = h
}

// Comparison is a pure lookup; absence is (zero, false), never an error.
func (s *Store) Comparison(key ComparisonKey) (fhe.Handle, bool) {
	h, ok := s.comparisons[key]
	return h, ok
}
