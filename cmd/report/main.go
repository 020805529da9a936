package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/MiriamFinn/cipher-trust-connect/internal/report"
)

func main() {
	apiURL := flag.String("api", "http://localhost:8080", "marketplace api base url")
	out := flag.String("out", "marketplace_report.html", "output html file")
	flag.Parse()

	snap, err := fetchSnapshot(*apiURL)
	if err != nil {
		log.Fatalf("fetch snapshot failed: %v", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("create output failed: %v", err)
	}
	defer f.Close()

	if err := report.Render(f, snap); err != nil {
		log.Fatalf("render failed: %v", err)
	}
	log.Printf("wrote %s (requests=%d offers=%d loans=%d)", *out, snap.Requests, snap.Offers, snap.Loans)
}

func fetchSnapshot(apiURL string) (report.Snapshot, error) {
	var snap report.Snapshot

	var counts struct {
		Requests uint64 `json:"requests"`
		Offers   uint64 `json:"offers"`
		Loans    uint64 `json:"loans"`
	}
	if err := getJSON(apiURL+"/market/stats", &counts); err != nil {
		return snap, err
	}
	snap.Requests = counts.Requests
	snap.Offers = counts.Offers
	snap.Loans = counts.Loans

	for id := uint64(0); id < counts.Offers; id++ {
		var offer struct {
			ID        uint64 `json:"id"`
			RequestID uint64 `json:"requestId"`
			Amount    int64  `json:"amount"`
			APRBps    int64  `json:"aprBps"`
			IsActive  bool   `json:"isActive"`
		}
		if err := getJSON(fmt.Sprintf("%s/market/offers/%d", apiURL, id), &offer); err != nil {
			return snap, err
		}
		snap.OfferPoints = append(snap.OfferPoints, report.OfferPoint{
			OfferID:   offer.ID,
			RequestID: offer.RequestID,
			Amount:    offer.Amount,
			APRBps:    offer.APRBps,
			Active:    offer.IsActive,
		})
	}
	return snap, nil
}

func getJSON(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
