package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var principal = common.HexToAddress("0xAbcDef1234567890aBcdEF1234567890abCDef12")

func TestMintParseRoundTrip(t *testing.T) {
	m := NewJWTManager("ctc", "marketplace", "secret")

	tok, err := m.Mint(principal, time.Minute)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	got, err := m.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != principal {
		t.Fatalf("principal = %s, want %s", got.Hex(), principal.Hex())
	}
}

func TestParseRejectsForeignTokens(t *testing.T) {
	m := NewJWTManager("ctc", "marketplace", "secret")

	cases := map[string]*JWTManager{
		"wrong secret":   NewJWTManager("ctc", "marketplace", "other"),
		"wrong issuer":   NewJWTManager("someone-else", "marketplace", "secret"),
		"wrong audience": NewJWTManager("ctc", "other-app", "secret"),
	}
	for name, minting := range cases {
		t.Run(name, func(t *testing.T) {
			tok, err := minting.Mint(principal, time.Minute)
			if err != nil {
				t.Fatalf("Mint: %v", err)
			}
			if _, err := m.Parse(tok); err == nil {
				t.Fatal("Parse accepted a foreign token")
			}
		})
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m := NewJWTManager("ctc", "marketplace", "secret")
	tok, err := m.Mint(principal, -time.Minute)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if _, err := m.Parse(tok); err == nil {
		t.Fatal("Parse accepted an expired token")
	}
}

func TestRequirePrincipalMiddleware(t *testing.T) {
	m := NewJWTManager("ctc", "marketplace", "secret")

	var seen common.Address
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := Principal(r.Context())
		if !ok {
			t.Fatal("principal missing from context")
		}
		seen = p
	})
	handler := RequirePrincipal(m)(next)

	// No token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d", rec.Code)
	}

	// Garbage token.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer nonsense")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d", rec.Code)
	}

	// Valid token.
	tok, err := m.Mint(principal, time.Minute)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d", rec.Code)
	}
	if seen != principal {
		t.Fatalf("context principal = %s", seen.Hex())
	}
}
