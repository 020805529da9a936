package lending

type requestCreatedPayload struct {
	RequestID uint64 `json:"requestId"`
	Borrower  string `json:"borrower"`
	Amount    int64  `json:"amount"`
	Term      int    `json:"term"`
}

type offerCreatedPayload struct {
	OfferID   uint64 `json:"offerId"`
	RequestID uint64 `json:"requestId"`
	Lender    string `json:"lender"`
	Amount    int64  `json:"amount"`
	APRBps    int64  `json:"aprBps"`
	Term      int    `json:"term"`
}

type loanCreatedPayload struct {
	LoanID    uint64 `json:"loanId"`
	OfferID   uint64 `json:"offerId"`
	RequestID uint64 `json:"requestId"`
	Borrower  string `json:"borrower"`
	Lender    string `json:"lender"`
	Amount    int64  `json:"amount"`
	APRBps    int64  `json:"aprBps"`
	Term      int    `json:"term"`
}

// The threshold is public query metadata (it travels in the clear with the
// call); only the comparison result is encrypted.
type scoreCheckedPayload struct {
	RequestID uint64 `json:"requestId"`
	Threshold uint64 `json:"threshold"`
	Principal string `json:"principal"`
}
