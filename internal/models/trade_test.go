package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCollectionBucketsKeepInsertionOrder(t *testing.T) {
	b := NewCollectionBuckets()
	for _, slug := range []Slug{"zebras", "apes", "moles"} {
		b.Put(&CollectionBucket{Slug: slug, TotalProfit: decimal.NewFromInt(1)})
	}
	// Re-putting an existing slug keeps its position
	b.Put(&CollectionBucket{Slug: "zebras", TotalProfit: decimal.NewFromInt(5)})

	slugs := b.Slugs()
	want := []Slug{"zebras", "apes", "moles"}
	for i := range want {
		if slugs[i] != want[i] {
			t.Errorf("Slugs()[%d] = %s, want %s", i, slugs[i], want[i])
		}
	}
	if got := b.TotalProfit().String(); got != "7" {
		t.Errorf("TotalProfit() = %s, want 7", got)
	}

	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	z, a, m := strings.Index(string(data), `"zebras"`), strings.Index(string(data), `"apes"`), strings.Index(string(data), `"moles"`)
	if !(z < a && a < m) {
		t.Errorf("Expected keys in insertion order, got %s", data)
	}

	var decoded CollectionBuckets
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Len() != 3 || decoded.Slugs()[0] != "zebras" {
		t.Errorf("Expected decoded order preserved, got %v", decoded.Slugs())
	}
	if bucket, _ := decoded.Get("zebras"); !bucket.TotalProfit.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected zebras profit 5, got %s", bucket.TotalProfit)
	}
}

func TestNilCollectionBuckets(t *testing.T) {
	var b *CollectionBuckets
	if b.Len() != 0 || b.TradeCount() != 0 || !b.TotalProfit().IsZero() {
		t.Error("Expected nil buckets to behave as empty")
	}
	if _, ok := b.Get("cats"); ok {
		t.Error("Expected Get on nil buckets to miss")
	}
}

func TestParseSummaryPolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    SummaryPolicy
		wantErr bool
	}{
		{"", SummaryPolicyAny, false},
		{"any", SummaryPolicyAny, false},
		{"signed", SummaryPolicySigned, false},
		{"SIGNED", "", true},
		{"best", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSummaryPolicy(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSummaryPolicy(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSummaryPolicy(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestAccountIs(t *testing.T) {
	var nilAccount *Account
	if nilAccount.Is("0xabc") {
		t.Error("nil account must not match")
	}
	if (&Account{}).Is("") {
		t.Error("empty address must not match")
	}
	if !(&Account{Address: "0xABC"}).Is("0xabc") {
		t.Error("address comparison must ignore case")
	}
}
