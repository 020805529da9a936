package http

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/MiriamFinn/cipher-trust-connect/internal/auth"
	"github.com/MiriamFinn/cipher-trust-connect/internal/fhe"
	"github.com/MiriamFinn/cipher-trust-connect/internal/ledger"
	"github.com/MiriamFinn/cipher-trust-connect/internal/lending"
)

type Handler struct {
	Market *lending.Service
	Crypto *fhe.Coprocessor
}

func NewHandler(market *lending.Service, crypto *fhe.Coprocessor) *Handler {
	return &Handler{Market: market, Crypto: crypto}
}

type submitRequestBody struct {
	Ciphertext string `json:"ciphertext"`
	Proof      string `json:"proof"`
	Amount     int64  `json:"amount"`
	TermMonths int    `json:"termMonths"`
}

func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.Principal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing principal")
		return
	}

	var body submitRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	raw, err := base64.StdEncoding.DecodeString(body.Ciphertext)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ciphertext is not base64")
		return
	}
	proof, err := base64.StdEncoding.DecodeString(body.Proof)
	if err != nil {
		writeError(w, http.StatusBadRequest, "proof is not base64")
		return
	}

	id, err := h.Market.SubmitBorrowerRequest(principal, raw, proof, body.Amount, body.TermMonths)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"requestId": id})
}

func (h *Handler) FindMatches(w http.ResponseWriter, r *http.Request) {
	threshold, _ := strconv.ParseUint(r.URL.Query().Get("threshold"), 10, 64)
	ids := h.Market.FindMatches(threshold)
	writeJSON(w, http.StatusOK, map[string][]uint64{"requestIds": ids})
}

type scoreCheckBody struct {
	Threshold uint64 `json:"threshold"`
}

func (h *Handler) CheckScore(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.Principal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing principal")
		return
	}
	requestID, err := pathID(r, "requestId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	var body scoreCheckBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	handle, err := h.Market.CheckScoreMatch(principal, requestID, body.Threshold)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"handle": handle.String()})
}

func (h *Handler) GetComparison(w http.ResponseWriter, r *http.Request) {
	requestID, err := pathID(r, "requestId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	threshold, err := strconv.ParseUint(r.URL.Query().Get("threshold"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid threshold")
		return
	}
	principalHex := r.URL.Query().Get("principal")
	if !common.IsHexAddress(principalHex) {
		writeError(w, http.StatusBadRequest, "invalid principal")
		return
	}

	handle, found := h.Market.GetComparisonResult(requestID, threshold, common.HexToAddress(principalHex))
	writeJSON(w, http.StatusOK, map[string]any{
		"handle": handle.String(),
		"found":  found,
	})
}

type submitOfferBody struct {
	RequestID  uint64 `json:"requestId"`
	Amount     int64  `json:"amount"`
	APRBps     int64  `json:"aprBps"`
	TermMonths int    `json:"termMonths"`
}

func (h *Handler) SubmitOffer(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.Principal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing principal")
		return
	}
	var body submitOfferBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	id, err := h.Market.SubmitLenderOffer(principal, body.RequestID, body.Amount, body.APRBps, body.TermMonths)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"offerId": id})
}

func (h *Handler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.Principal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing principal")
		return
	}
	offerID, err := pathID(r, "offerId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offer id")
		return
	}

	loanID, err := h.Market.AcceptLoanOffer(principal, offerID)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"loanId": loanID})
}

type requestResponse struct {
	ID             uint64 `json:"id"`
	Borrower       string `json:"borrower"`
	EncryptedScore string `json:"encryptedScore"`
	Amount         int64  `json:"amount"`
	TermMonths     int    `json:"termMonths"`
	IsActive       bool   `json:"isActive"`
	CreatedAt      string `json:"createdAt"`
}

func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "requestId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	req, err := h.Market.GetBorrowerRequest(id)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requestResponse{
		ID:             req.ID,
		Borrower:       req.Borrower.Hex(),
		EncryptedScore: req.EncryptedScore.String(),
		Amount:         req.Amount,
		TermMonths:     req.TermMonths,
		IsActive:       req.IsActive,
		CreatedAt:      req.CreatedAt.Format(time.RFC3339),
	})
}

type offerResponse struct {
	ID         uint64 `json:"id"`
	Lender     string `json:"lender"`
	RequestID  uint64 `json:"requestId"`
	Amount     int64  `json:"amount"`
	APRBps     int64  `json:"aprBps"`
	TermMonths int    `json:"termMonths"`
	IsActive   bool   `json:"isActive"`
	CreatedAt  string `json:"createdAt"`
}

func (h *Handler) GetOffer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "offerId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offer id")
		return
	}
	offer, err := h.Market.GetLenderOffer(id)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offerResponse{
		ID:         offer.ID,
		Lender:     offer.Lender.Hex(),
		RequestID:  offer.RequestID,
		Amount:     offer.Amount,
		APRBps:     offer.APRBps,
		TermMonths: offer.TermMonths,
		IsActive:   offer.IsActive,
		CreatedAt:  offer.CreatedAt.Format(time.RFC3339),
	})
}

type loanResponse struct {
	ID         uint64 `json:"id"`
	Borrower   string `json:"borrower"`
	Lender     string `json:"lender"`
	Amount     int64  `json:"amount"`
	APRBps     int64  `json:"aprBps"`
	TermMonths int    `json:"termMonths"`
	StartTime  string `json:"startTime"`
	IsActive   bool   `json:"isActive"`
	IsRepaid   bool   `json:"isRepaid"`
}

func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "loanId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid loan id")
		return
	}
	loan, err := h.Market.GetLoan(id)
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loanResponse{
		ID:         loan.ID,
		Borrower:   loan.Borrower.Hex(),
		Lender:     loan.Lender.Hex(),
		Amount:     loan.Amount,
		APRBps:     loan.APRBps,
		TermMonths: loan.TermMonths,
		StartTime:  loan.StartTime.Format(time.RFC3339),
		IsActive:   loan.IsActive,
		IsRepaid:   loan.IsRepaid,
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Market.Counts())
}

type decryptBody struct {
	Handle    string `json:"handle"`
	Principal string `json:"principal"`
	Deadline  int64  `json:"deadline"`
	Signature string `json:"signature"`
}

// Decrypt is the off-ledger step: the caller proves capability with a signed,
// time-bounded authorization and receives the plaintext of one handle.
func (h *Handler) Decrypt(w http.ResponseWriter, r *http.Request) {
	var body decryptBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if !common.IsHexAddress(body.Principal) {
		writeError(w, http.StatusBadRequest, "invalid principal")
		return
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(body.Signature, "0x"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "signature is not hex")
		return
	}

	value, err := h.Crypto.Decrypt(fhe.DecryptAuthorization{
		Handle:    fhe.Handle(body.Handle),
		Principal: common.HexToAddress(body.Principal),
		Deadline:  time.Unix(body.Deadline, 0).UTC(),
		Signature: sig,
	})
	if err != nil {
		writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"value": value})
}

func pathID(r *http.Request, name string) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, name), 10, 64)
}

func writeMarketError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lending.ErrInvalidAmount),
		errors.Is(err, lending.ErrInvalidTerm),
		errors.Is(err, lending.ErrInvalidAPR):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, lending.ErrInvalidRequest),
		errors.Is(err, lending.ErrInvalidOffer),
		errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, fhe.ErrUnknownHandle):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, lending.ErrInactiveRequest),
		errors.Is(err, lending.ErrInactiveOffer):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, lending.ErrNotAuthorized),
		errors.Is(err, fhe.ErrNoCapability),
		errors.Is(err, fhe.ErrBadAuthorization):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, fhe.ErrInvalidProof):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "operation failed")
	}
}
