package lending

import (
	"github.com/MiriamFinn/cipher-trust-connect/internal/models"
)

// Counts are the collection sizes exposed by the query facade.
type Counts struct {
	Requests uint64 `json:"requests"`
	Offers   uint64 `json:"offers"`
	Loans    uint64 `json:"loans"`
}

func (s *Service) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Requests: s.store.RequestCount(),
		Offers:   s.store.OfferCount(),
		Loans:    s.store.LoanCount(),
	}
}

// GetBorrowerRequest returns the full record, encrypted score handle
// included. The handle is safe to expose: decrypt capability, not the handle,
// gates access to the value. Out-of-range ids fail with ledger.ErrNotFound.
func (s *Service) GetBorrowerRequest(id uint64) (models.BorrowerRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Request(id)
}

func (s *Service) GetLenderOffer(id uint64) (models.LenderOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Offer(id)
}

func (s *Service) GetLoan(id uint64) (models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Loan(id)
}
