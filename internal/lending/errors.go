package lending

import "errors"

var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidTerm     = errors.New("term out of range")
	ErrInvalidAPR      = errors.New("apr out of range")
	ErrInvalidRequest  = errors.New("no such borrower request")
	ErrInactiveRequest = errors.New("borrower request is no longer active")
	ErrInvalidOffer    = errors.New("no such lender offer")
	ErrInactiveOffer   = errors.New("lender offer is no longer active")
	ErrNotAuthorized   = errors.New("caller is not the request borrower")
)
