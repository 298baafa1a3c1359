package normalize

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ansel1/merry"

	"github.com/uidai-stress/internal/model"
)

func TestNormalizeState(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		// Spelling variants
		{name: "orissa to odisha", input: "Orissa", want: "Odisha"},
		{name: "chhatisgarh", input: "Chhatisgarh", want: "Chhattisgarh"},
		{name: "tamilnadu", input: "Tamilnadu", want: "Tamil Nadu"},
		{name: "westbengal joined", input: "Westbengal", want: "West Bengal"},
		{name: "west bengal double space", input: "West  Bengal", want: "West Bengal"},
		{name: "uttaranchal", input: "Uttaranchal", want: "Uttarakhand"},
		{name: "pondicherry", input: "Pondicherry", want: "Puducherry"},
		// Casing fixes
		{name: "lowercase andhra", input: "andhra Pradesh", want: "Andhra Pradesh"},
		{name: "lowercase andaman", input: "andaman and Nicobar Islands", want: "Andaman and Nicobar Islands"},
		// Ampersand forms
		{name: "jammu ampersand", input: "Jammu & Kashmir", want: "Jammu and Kashmir"},
		// Union territory merger
		{name: "dadra merger", input: "Daman & Diu", want: "Dadra and Nagar Haveli and Daman and Diu"},
		{name: "the-prefixed merged UT", input: "The Dadra and Nagar Haveli and Daman and Diu", want: "Dadra and Nagar Haveli and Daman and Diu"},
		// Misfiled district names
		{name: "jaipur misfiled", input: "Jaipur", want: "Rajasthan"},
		{name: "darbhanga misfiled", input: "Darbhanga", want: "Bihar"},
		// Pass-through
		{name: "canonical unchanged", input: "Kerala", want: "Kerala"},
		{name: "canonical not title cased", input: "Dadra and Nagar Haveli and Daman and Diu", want: "Dadra and Nagar Haveli and Daman and Diu"},
		{name: "whitespace trimmed", input: "  Bihar  ", want: "Bihar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.State(tt.input)
			if got != tt.want {
				t.Errorf("State(%q) = %q, want %q", tt.input, got, tt.want)
			}
			// Normalization must be idempotent.
			if again := n.State(got); again != tt.want {
				t.Errorf("State(State(%q)) = %q, want %q", tt.input, again, tt.want)
			}
		})
	}
}

func TestNormalizeDistrict(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercase", input: "raja annamalai puram", want: "Raja Annamalai Puram"},
		{name: "uppercase", input: "NORTH GOA", want: "North Goa"},
		{name: "internal whitespace collapsed", input: "  East   Godavari ", want: "East Godavari"},
		{name: "hyphenated", input: "24-parganas", want: "24-Parganas"},
		{name: "already canonical", input: "Pune", want: "Pune"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.District(tt.input)
			if got != tt.want {
				t.Errorf("District(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := n.District(got); again != tt.want {
				t.Errorf("District(District(%q)) = %q, want %q", tt.input, again, tt.want)
			}
		})
	}
}

func TestNormalizeRecordSentinel(t *testing.T) {
	n := NewNormalizer()
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		state   string
		distr   string
		pincode string
		wantErr bool
	}{
		{name: "clean row", state: "Odisha", distr: "Cuttack", pincode: "753001", wantErr: false},
		{name: "sentinel state", state: "100000", distr: "Cuttack", pincode: "753001", wantErr: true},
		{name: "sentinel district", state: "Odisha", distr: "100000", pincode: "753001", wantErr: true},
		{name: "sentinel pincode", state: "Odisha", distr: "Cuttack", pincode: "100000", wantErr: true},
		{name: "short pincode", state: "Odisha", distr: "Cuttack", pincode: "7530", wantErr: true},
		{name: "alpha pincode", state: "Odisha", distr: "Cuttack", pincode: "75A001", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := model.TransactionRecord{Date: date, State: tt.state, District: tt.distr, Pincode: tt.pincode}
			err := n.Record(&rec)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Record(%q/%q/%q): expected error, got nil", tt.state, tt.distr, tt.pincode)
				}
				if !merry.Is(err, ErrUnresolvedGeography) {
					t.Errorf("Record error = %v, want ErrUnresolvedGeography", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Record(%q/%q/%q): unexpected error %v", tt.state, tt.distr, tt.pincode, err)
			}
		})
	}
}

func TestNormalizeRecordCanonicalizes(t *testing.T) {
	n := NewNormalizer()
	rec := model.TransactionRecord{
		Date:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		State:    " Orissa ",
		District: "cuttack",
		Pincode:  " 753001 ",
	}
	if err := n.Record(&rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.State != "Odisha" {
		t.Errorf("state = %q, want Odisha", rec.State)
	}
	if rec.District != "Cuttack" {
		t.Errorf("district = %q, want Cuttack", rec.District)
	}
	if rec.Pincode != "753001" {
		t.Errorf("pincode = %q, want 753001", rec.Pincode)
	}
}

func TestAliasHitCounts(t *testing.T) {
	n := NewNormalizer()
	n.State("Orissa")
	n.State("Orissa")
	n.State("Kerala")

	hits := n.Hits()
	if hits["Orissa"] != 2 {
		t.Errorf("hits[Orissa] = %d, want 2", hits["Orissa"])
	}
	if _, ok := hits["Kerala"]; ok {
		t.Error("pass-through state must not be counted as an alias hit")
	}
}

func TestLoadOverlay(t *testing.T) {
	n := NewNormalizer()
	before := n.AliasCount()

	path := filepath.Join(t.TempDir(), "overlay.yaml")
	body := "states:\n  Bombay State: Maharashtra\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	added, err := n.LoadOverlay(path)
	if err != nil {
		t.Fatalf("LoadOverlay: %v", err)
	}
	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}
	if n.AliasCount() != before+1 {
		t.Errorf("alias count = %d, want %d", n.AliasCount(), before+1)
	}
	if got := n.State("Bombay State"); got != "Maharashtra" {
		t.Errorf("State(Bombay State) = %q, want Maharashtra", got)
	}
	// Builtin aliases survive the overlay.
	if got := n.State("Orissa"); got != "Odisha" {
		t.Errorf("State(Orissa) = %q, want Odisha", got)
	}
}

func TestValidPincode(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"753001", true},
		{"110001", true},
		{"100000", false}, // placeholder
		{"7530", false},
		{"7530011", false},
		{"75a001", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidPincode(tt.input); got != tt.want {
			t.Errorf("ValidPincode(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
