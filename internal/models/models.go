package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/MiriamFinn/cipher-trust-connect/internal/fhe"
)

// BorrowerRequest is a borrower's open ask for funding. The credit score is
// held only as an encrypted handle and is never decrypted by the ledger.
type BorrowerRequest struct {
	ID             uint64
	Borrower       common.Address
	EncryptedScore fhe.Handle
	Amount         int64
	TermMonths     int
	IsActive       bool
	CreatedAt      time.Time
}

// LenderOffer references a request that existed, and was active, when the
// offer was made. The request may close afterwards; the offer record stays.
type LenderOffer struct {
	ID         uint64
	Lender     common.Address
	RequestID  uint64
	Amount     int64
	APRBps     int64
	TermMonths int
	IsActive   bool
	CreatedAt  time.Time
}

type Loan struct {
	ID         uint64
	Borrower   common.Address
	Lender     common.Address
	Amount     int64
	APRBps     int64
	TermMonths int
	StartTime  time.Time
	IsActive   bool
	IsRepaid   bool
}

const (
	EventRequestCreated = "request_created"
	EventOfferCreated   = "offer_created"
	EventLoanCreated    = "loan_created"
	EventScoreChecked   = "score_checked"
)

// Event is a committed ledger notification, journaled and broadcast for UI
// collaborators. Not required for correctness.
type Event struct {
	Seq       int64
	Kind      string
	Payload   []byte
	CreatedAt time.Time
}
