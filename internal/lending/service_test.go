package lending

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/MiriamFinn/cipher-trust-connect/internal/fhe"
	"github.com/MiriamFinn/cipher-trust-connect/internal/ledger"
	"github.com/MiriamFinn/cipher-trust-connect/internal/models"
)

var (
	borrower = common.HexToAddress("0x1111111111111111111111111111111111111111")
	lender   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	stranger = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

// cryptoFake tracks plaintexts behind handles, mirroring the reference
// behavior of a local simulation mode.
type cryptoFake struct {
	next   int
	values map[fhe.Handle]uint64
	grants map[fhe.Handle]map[common.Address]bool
}

func newCryptoFake() *cryptoFake {
	return &cryptoFake{values: map[fhe.Handle]uint64{}, grants: map[fhe.Handle]map[common.Address]bool{}}
}

// encodeScore builds the (raw, proof) pair the fake accepts.
func encodeScore(v uint64) ([]byte, []byte) {
	raw := binary.BigEndian.AppendUint64(nil, v)
	return raw, []byte("ok")
}

func (f *cryptoFake) register(v uint64) fhe.Handle {
	f.next++
	h := fhe.Handle(fmt.Sprintf("h%d", f.next))
	f.values[h] = v
	f.grants[h] = map[common.Address]bool{}
	return h
}

func (f *cryptoFake) FromExternalInput(raw, proof []byte, _ common.Address) (fhe.Handle, error) {
	if string(proof) != "ok" || len(raw) != 8 {
		return "", fhe.ErrInvalidProof
	}
	return f.register(binary.BigEndian.Uint64(raw)), nil
}

func (f *cryptoFake) EncryptPlaintext(v uint64) (fhe.Handle, error) {
	return f.register(v), nil
}

func (f *cryptoFake) GreaterOrEqual(a, b fhe.Handle) (fhe.Handle, error) {
	av, ok := f.values[a]
	bv, ok2 := f.values[b]
	if !ok || !ok2 {
		return "", fhe.ErrUnknownHandle
	}
	if av >= bv {
		return f.register(1), nil
	}
	return f.register(0), nil
}

func (f *cryptoFake) GrantDecrypt(h fhe.Handle, p common.Address) error {
	if _, ok := f.values[h]; !ok {
		return fhe.ErrUnknownHandle
	}
	f.grants[h][p] = true
	return nil
}

func (f *cryptoFake) GrantDecryptSelf(h fhe.Handle) error {
	return f.GrantDecrypt(h, common.Address{})
}

type sinkRecorder struct {
	kinds []string
}

func (s *sinkRecorder) Emit(kind string, _ any) {
	s.kinds = append(s.kinds, kind)
}

func newTestService() (*Service, *cryptoFake, *sinkRecorder) {
	crypto := newCryptoFake()
	sink := &sinkRecorder{}
	svc := NewService(ledger.NewStore(), crypto, sink, 120, 10000)
	return svc, crypto, sink
}

func submitRequest(t *testing.T, svc *Service, score uint64, amount int64, term int) uint64 {
	t.Helper()
	raw, proof := encodeScore(score)
	id, err := svc.SubmitBorrowerRequest(borrower, raw, proof, amount, term)
	if err != nil {
		t.Fatalf("SubmitBorrowerRequest: %v", err)
	}
	return id
}

func TestSubmitRequestRoundTrip(t *testing.T) {
	svc, crypto, sink := newTestService()

	id := submitRequest(t, svc, 750, 5000, 12)
	if id != 0 {
		t.Fatalf("request id = %d, want 0", id)
	}

	req, err := svc.GetBorrowerRequest(id)
	if err != nil {
		t.Fatalf("GetBorrowerRequest: %v", err)
	}
	if req.Borrower != borrower || req.Amount != 5000 || req.TermMonths != 12 || !req.IsActive {
		t.Fatalf("unexpected record: %+v", req)
	}
	if req.EncryptedScore.IsZero() {
		t.Fatal("score handle is zero")
	}

	// Borrower and ledger both hold decrypt capability on the score.
	if !crypto.grants[req.EncryptedScore][borrower] {
		t.Fatal("borrower has no grant on own score")
	}
	if !crypto.grants[req.EncryptedScore][common.Address{}] {
		t.Fatal("ledger bookkeeping grant missing")
	}
	if len(sink.kinds) != 1 || sink.kinds[0] != models.EventRequestCreated {
		t.Fatalf("events = %v", sink.kinds)
	}
}

func TestSubmitRequestValidation(t *testing.T) {
	svc, _, _ := newTestService()
	raw, proof := encodeScore(700)

	cases := []struct {
		name    string
		amount  int64
		term    int
		wantErr error
	}{
		{"zero amount", 0, 12, ErrInvalidAmount},
		{"negative amount", -5, 12, ErrInvalidAmount},
		{"term zero", 1000, 0, ErrInvalidTerm},
		{"term too long", 1000, 121, ErrInvalidTerm},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.SubmitBorrowerRequest(borrower, raw, proof, tc.amount, tc.term); !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}

	// Boundary terms succeed.
	if _, err := svc.SubmitBorrowerRequest(borrower, raw, proof, 1000, 1); err != nil {
		t.Fatalf("term=1: %v", err)
	}
	if _, err := svc.SubmitBorrowerRequest(borrower, raw, proof, 1000, 120); err != nil {
		t.Fatalf("term=120: %v", err)
	}
}

func TestSubmitRequestBadProofLeavesNoState(t *testing.T) {
	svc, _, sink := newTestService()

	if _, err := svc.SubmitBorrowerRequest(borrower, []byte("raw"), []byte("bad"), 1000, 12); !errors.Is(err, fhe.ErrInvalidProof) {
		t.Fatalf("err = %v, want ErrInvalidProof", err)
	}
	if c := svc.Counts(); c.Requests != 0 {
		t.Fatalf("requests = %d after failed submit", c.Requests)
	}
	if len(sink.kinds) != 0 {
		t.Fatalf("events emitted on failure: %v", sink.kinds)
	}
}

func TestFindMatchesFiltersOnlyActivity(t *testing.T) {
	svc, _, _ := newTestService()

	submitRequest(t, svc, 400, 1000, 6)
	submitRequest(t, svc, 800, 2000, 12)
	submitRequest(t, svc, 600, 3000, 24)

	// The threshold never filters: scores are encrypted.
	ids := svc.FindMatches(9999)
	if len(ids) != 3 {
		t.Fatalf("matches = %v, want all three", ids)
	}

	offerID, err := svc.SubmitLenderOffer(lender, 1, 2000, 500, 12)
	if err != nil {
		t.Fatalf("SubmitLenderOffer: %v", err)
	}
	if _, err := svc.AcceptLoanOffer(borrower, offerID); err != nil {
		t.Fatalf("AcceptLoanOffer: %v", err)
	}

	ids = svc.FindMatches(0)
	if len(ids) != 2 || ids[0] != 0 || ids[1] != 2 {
		t.Fatalf("matches = %v, want [0 2]", ids)
	}
}

func TestCheckScoreMatch(t *testing.T) {
	svc, crypto, _ := newTestService()
	id := submitRequest(t, svc, 750, 5000, 12)

	h, err := svc.CheckScoreMatch(lender, id, 700)
	if err != nil {
		t.Fatalf("CheckScoreMatch: %v", err)
	}
	if crypto.values[h] != 1 {
		t.Fatalf("750 >= 700 encrypted as %d, want 1", crypto.values[h])
	}
	if !crypto.grants[h][lender] {
		t.Fatal("lender has no grant on comparison result")
	}

	h2, err := svc.CheckScoreMatch(lender, id, 800)
	if err != nil {
		t.Fatalf("CheckScoreMatch: %v", err)
	}
	if crypto.values[h2] != 0 {
		t.Fatalf("750 >= 800 encrypted as %d, want 0", crypto.values[h2])
	}
}

func TestCheckScoreMatchPreconditions(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.CheckScoreMatch(lender, 5, 700); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}

	id := submitRequest(t, svc, 750, 5000, 12)
	offerID, err := svc.SubmitLenderOffer(lender, id, 5000, 500, 12)
	if err != nil {
		t.Fatalf("SubmitLenderOffer: %v", err)
	}
	if _, err := svc.AcceptLoanOffer(borrower, offerID); err != nil {
		t.Fatalf("AcceptLoanOffer: %v", err)
	}

	if _, err := svc.CheckScoreMatch(lender, id, 700); !errors.Is(err, ErrInactiveRequest) {
		t.Fatalf("err = %v, want ErrInactiveRequest", err)
	}
}

func TestCheckScoreMatchOverwritesCache(t *testing.T) {
	svc, _, _ := newTestService()
	id := submitRequest(t, svc, 750, 5000, 12)

	h1, err := svc.CheckScoreMatch(lender, id, 700)
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	h2, err := svc.CheckScoreMatch(lender, id, 700)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if h1 == h2 {
		t.Fatal("recompute should mint a fresh handle")
	}

	cached, ok := svc.GetComparisonResult(id, 700, lender)
	if !ok || cached != h2 {
		t.Fatalf("cache = (%q, %v), want latest handle %q", cached, ok, h2)
	}

	// Distinct principals keep distinct entries.
	if _, ok := svc.GetComparisonResult(id, 700, stranger); ok {
		t.Fatal("stranger should have no cached result")
	}
}

func TestSubmitOfferValidation(t *testing.T) {
	svc, _, _ := newTestService()
	id := submitRequest(t, svc, 750, 5000, 12)

	if _, err := svc.SubmitLenderOffer(lender, 42, 5000, 500, 12); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("missing request: err = %v", err)
	}
	if _, err := svc.SubmitLenderOffer(lender, id, 0, 500, 12); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: err = %v", err)
	}
	if _, err := svc.SubmitLenderOffer(lender, id, 5000, 0, 12); !errors.Is(err, ErrInvalidAPR) {
		t.Fatalf("apr=0: err = %v", err)
	}
	if _, err := svc.SubmitLenderOffer(lender, id, 5000, 10001, 12); !errors.Is(err, ErrInvalidAPR) {
		t.Fatalf("apr=10001: err = %v", err)
	}
	if _, err := svc.SubmitLenderOffer(lender, id, 5000, 500, 121); !errors.Is(err, ErrInvalidTerm) {
		t.Fatalf("term=121: err = %v", err)
	}

	// Boundary APRs succeed.
	if _, err := svc.SubmitLenderOffer(lender, id, 5000, 1, 12); err != nil {
		t.Fatalf("apr=1: %v", err)
	}
	if _, err := svc.SubmitLenderOffer(lender, id, 5000, 10000, 12); err != nil {
		t.Fatalf("apr=10000: %v", err)
	}
}

func TestAcceptCopiesOfferIntoLoan(t *testing.T) {
	svc, _, sink := newTestService()
	reqID := submitRequest(t, svc, 750, 5000, 12)

	offerID, err := svc.SubmitLenderOffer(lender, reqID, 4500, 650, 24)
	if err != nil {
		t.Fatalf("SubmitLenderOffer: %v", err)
	}
	loanID, err := svc.AcceptLoanOffer(borrower, offerID)
	if err != nil {
		t.Fatalf("AcceptLoanOffer: %v", err)
	}

	loan, err := svc.GetLoan(loanID)
	if err != nil {
		t.Fatalf("GetLoan: %v", err)
	}
	if loan.Borrower != borrower || loan.Lender != lender {
		t.Fatalf("loan parties: %+v", loan)
	}
	if loan.Amount != 4500 || loan.APRBps != 650 || loan.TermMonths != 24 {
		t.Fatalf("loan terms not copied from offer: %+v", loan)
	}
	if !loan.IsActive || loan.IsRepaid {
		t.Fatalf("loan flags: %+v", loan)
	}
	if loan.StartTime.IsZero() {
		t.Fatal("loan start time not stamped")
	}

	req, _ := svc.GetBorrowerRequest(reqID)
	offer, _ := svc.GetLenderOffer(offerID)
	if req.IsActive || offer.IsActive {
		t.Fatal("request and accepted offer must both close")
	}
	if c := svc.Counts(); c.Loans != 1 {
		t.Fatalf("loan count = %d, want 1", c.Loans)
	}

	want := []string{models.EventRequestCreated, models.EventOfferCreated, models.EventLoanCreated}
	if len(sink.kinds) != len(want) {
		t.Fatalf("events = %v", sink.kinds)
	}
	for i, k := range want {
		if sink.kinds[i] != k {
			t.Fatalf("event[%d] = %s, want %s", i, sink.kinds[i], k)
		}
	}
}

func TestAcceptAuthorization(t *testing.T) {
	svc, _, _ := newTestService()
	reqID := submitRequest(t, svc, 750, 5000, 12)
	offerID, err := svc.SubmitLenderOffer(lender, reqID, 5000, 500, 12)
	if err != nil {
		t.Fatalf("SubmitLenderOffer: %v", err)
	}

	if _, err := svc.AcceptLoanOffer(lender, offerID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("lender accept: err = %v, want ErrNotAuthorized", err)
	}
	if _, err := svc.AcceptLoanOffer(stranger, offerID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("stranger accept: err = %v, want ErrNotAuthorized", err)
	}

	// The failed attempts changed nothing.
	offer, _ := svc.GetLenderOffer(offerID)
	if !offer.IsActive {
		t.Fatal("offer closed by unauthorized accept")
	}
}

func TestAcceptMutualExclusion(t *testing.T) {
	svc, _, _ := newTestService()
	reqID := submitRequest(t, svc, 750, 5000, 12)

	offerA, err := svc.SubmitLenderOffer(lender, reqID, 5000, 500, 12)
	if err != nil {
		t.Fatalf("offer A: %v", err)
	}
	offerB, err := svc.SubmitLenderOffer(stranger, reqID, 5000, 450, 12)
	if err != nil {
		t.Fatalf("offer B: %v", err)
	}

	if _, err := svc.AcceptLoanOffer(borrower, offerA); err != nil {
		t.Fatalf("accept A: %v", err)
	}
	// The request's own re-validated flag blocks the second acceptance.
	if _, err := svc.AcceptLoanOffer(borrower, offerB); !errors.Is(err, ErrInactiveRequest) {
		t.Fatalf("accept B: err = %v, want ErrInactiveRequest", err)
	}

	// Sibling offers are not bulk-deactivated when the request closes.
	b, _ := svc.GetLenderOffer(offerB)
	if !b.IsActive {
		t.Fatal("sibling offer must stay active")
	}
	if c := svc.Counts(); c.Loans != 1 {
		t.Fatalf("loan count = %d, want 1", c.Loans)
	}
}

func TestAcceptInvalidAndInactiveOffer(t *testing.T) {
	svc, _, _ := newTestService()
	reqID := submitRequest(t, svc, 750, 5000, 12)
	offerID, err := svc.SubmitLenderOffer(lender, reqID, 5000, 500, 12)
	if err != nil {
		t.Fatalf("SubmitLenderOffer: %v", err)
	}

	if _, err := svc.AcceptLoanOffer(borrower, 42); !errors.Is(err, ErrInvalidOffer) {
		t.Fatalf("err = %v, want ErrInvalidOffer", err)
	}

	if _, err := svc.AcceptLoanOffer(borrower, offerID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	// Accepting the same offer twice fails on the offer flag, giving at most
	// one loan per offer.
	if _, err := svc.AcceptLoanOffer(borrower, offerID); !errors.Is(err, ErrInactiveOffer) {
		t.Fatalf("err = %v, want ErrInactiveOffer", err)
	}
}

func TestQueryFacadeNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.GetBorrowerRequest(0); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("request: err = %v", err)
	}
	if _, err := svc.GetLenderOffer(0); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("offer: err = %v", err)
	}
	if _, err := svc.GetLoan(0); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("loan: err = %v", err)
	}
}
