package lending

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/MiriamFinn/cipher-trust-connect/internal/fhe"
	"github.com/MiriamFinn/cipher-trust-connect/internal/ledger"
	"github.com/MiriamFinn/cipher-trust-connect/internal/models"
)

// EventSink receives committed ledger notifications. Implementations must
// not fail; events are advisory, correctness never depends on them.
type EventSink interface {
	Emit(kind string, payload any)
}

// Service is the marketplace state machine over an injected ledger store.
// One mutex serializes every mutating operation end to end, so no two calls
// ever interleave their reads and writes; readers take the shared side and
// always observe fully committed state.
type Service struct {
	mu     sync.RWMutex
	store  *ledger.Store
	crypto fhe.Service
	events EventSink

	maxTermMonths int
	maxAPRBps     int64
	now           func() time.Time
}

func NewService(store *ledger.Store, crypto fhe.Service, events EventSink, maxTermMonths int, maxAPRBps int64) *Service {
	if maxTermMonths <= 0 {
		maxTermMonths = 120
	}
	if maxAPRBps <= 0 {
		maxAPRBps = 10000
	}
	return &Service{
		store:         store,
		crypto:        crypto,
		events:        events,
		maxTermMonths: maxTermMonths,
		maxAPRBps:     maxAPRBps,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SubmitBorrowerRequest validates the ask, verifies the encrypted score
// input, and appends a new active request. The borrower and the ledger both
// receive decrypt capability on the score handle; the ledger never uses its
// own, and no operation here ever decrypts the score.
func (s *Service) SubmitBorrowerRequest(borrower common.Address, rawScore, proof []byte, amount int64, termMonths int) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if termMonths < 1 || termMonths > s.maxTermMonths {
		return 0, ErrInvalidTerm
	}

	score, err := s.crypto.FromExternalInput(rawScore, proof, borrower)
	if err != nil {
		return 0, err
	}
	if err := s.crypto.GrantDecryptSelf(score); err != nil {
		return 0, err
	}
	if err := s.crypto.GrantDecrypt(score, borrower); err != nil {
		return 0, err
	}

	id := s.store.AppendRequest(models.BorrowerRequest{
		Borrower:       borrower,
		EncryptedScore: score,
		Amount:         amount,
		TermMonths:     termMonths,
		IsActive:       true,
		CreatedAt:      s.now(),
	})
	s.events.Emit(models.EventRequestCreated, requestCreatedPayload{
		RequestID: id,
		Borrower:  borrower.Hex(),
		Amount:    amount,
		Term:      termMonths,
	})
	return id, nil
}

// FindMatches returns the ids of all active requests, ascending. The
// threshold does not filter here: scores are encrypted, so the only plaintext
// filter available is activity. Score filtering happens per request through
// CheckScoreMatch.
func (s *Service) FindMatches(threshold uint64) []uint64 {
	_ = threshold

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.ActiveRequestIDs()
}

// CheckScoreMatch compares the stored encrypted score of requestID against
// threshold and grants principal decrypt capability on the resulting
// encrypted boolean. Compute, cache, and grant happen as one step under the
// write lock. This is a mutating operation, not a cheap read.
func (s *Service) CheckScoreMatch(principal common.Address, requestID uint64, threshold uint64) (fhe.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.store.Request(requestID)
	if err != nil {
		return "", ErrInvalidRequest
	}
	if !req.IsActive {
		return "", ErrInactiveRequest
	}

	encThreshold, err := s.crypto.EncryptPlaintext(threshold)
	if err != nil {
		return "", err
	}
	result, err := s.crypto.GreaterOrEqual(req.EncryptedScore, encThreshold)
	if err != nil {
		return "", err
	}

	s.store.PutComparison(ledger.ComparisonKey{
		RequestID: requestID,
		Threshold: threshold,
		Principal: principal,
	}, result)

	if err := s.crypto.GrantDecrypt(result, principal); err != nil {
		return "", err
	}
	if err := s.crypto.GrantDecryptSelf(result); err != nil {
		return "", err
	}

	s.events.Emit(models.EventScoreChecked, scoreCheckedPayload{
		RequestID: requestID,
		Threshold: threshold,
		Principal: principal.Hex(),
	})
	return result, nil
}

// GetComparisonResult is a pure cache lookup; a missing entry is (zero,
// false), never an error.
func (s *Service) GetComparisonResult(requestID, threshold uint64, principal common.Address) (fhe.Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Comparison(ledger.ComparisonKey{
		RequestID: requestID,
		Threshold: threshold,
		Principal: principal,
	})
}

func (s *Service) SubmitLenderOffer(lender common.Address, requestID uint64, amount, aprBps int64, termMonths int) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.store.Request(requestID)
	if err != nil {
		return 0, ErrInvalidRequest
	}
	if !req.IsActive {
		return 0, ErrInactiveRequest
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if aprBps < 1 || aprBps > s.maxAPRBps {
		return 0, ErrInvalidAPR
	}
	if termMonths < 1 || termMonths > s.maxTermMonths {
		return 0, ErrInvalidTerm
	}

	id := s.store.AppendOffer(models.LenderOffer{
		Lender:     lender,
		RequestID:  requestID,
		Amount:     amount,
		APRBps:     aprBps,
		TermMonths: termMonths,
		IsActive:   true,
		CreatedAt:  s.now(),
	})
	s.events.Emit(models.EventOfferCreated, offerCreatedPayload{
		OfferID:   id,
		RequestID: requestID,
		Lender:    lender.Hex(),
		Amount:    amount,
		APRBps:    aprBps,
		Term:      termMonths,
	})
	return id, nil
}

// AcceptLoanOffer finalizes a loan: only the request's borrower may accept,
// and the request's active flag is re-validated here, at execution time. That
// re-validation is the sole guard against two offers on one request both
// turning into loans. Sibling offers are left active; they become
// un-acceptable through the request check alone.
func (s *Service) AcceptLoanOffer(caller common.Address, offerID uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offer, err := s.store.Offer(offerID)
	if err != nil {
		return 0, ErrInvalidOffer
	}
	if !offer.IsActive {
		return 0, ErrInactiveOffer
	}

	req, err := s.store.Request(offer.RequestID)
	if err != nil {
		return 0, ErrInvalidRequest
	}
	if !req.IsActive {
		return 0, ErrInactiveRequest
	}
	if caller != req.Borrower {
		return 0, ErrNotAuthorized
	}

	loanID := s.store.AppendLoan(models.Loan{
		Borrower:   req.Borrower,
		Lender:     offer.Lender,
		Amount:     offer.Amount,
		APRBps:     offer.APRBps,
		TermMonths: offer.TermMonths,
		StartTime:  s.now(),
		IsActive:   true,
		IsRepaid:   false,
	})
	if err := s.store.CloseRequest(req.ID); err != nil {
		return 0, err
	}
	if err := s.store.CloseOffer(offer.ID); err != nil {
		return 0, err
	}

	s.events.Emit(models.EventLoanCreated, loanCreatedPayload{
		LoanID:    loanID,
		OfferID:   offer.ID,
		RequestID: req.ID,
		Borrower:  req.Borrower.Hex(),
		Lender:    offer.Lender.Hex(),
		Amount:    offer.Amount,
		APRBps:    offer.APRBps,
		Term:      offer.TermMonths,
	})
	return loanID, nil
}
