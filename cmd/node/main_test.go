package main

import (
	"testing"

	"github.com/andrea-athirat/corda/internal/nodecache"
)

func TestParseHash_empty(t *testing.T) {
	h, err := parseHash("")
	if err != nil {
		t.Fatalf("parseHash(\"\"): %v", err)
	}
	if h != (nodecache.Hash{}) {
		t.Errorf("parseHash(\"\") = %x, want zero hash", h)
	}
}

func TestParseHash_roundTrips(t *testing.T) {
	const hex64 = "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"
	h, err := parseHash(hex64)
	if err != nil {
		t.Fatalf("parseHash(%q): %v", hex64, err)
	}
	if h[0] != 0x01 || h[31] != 0x20 {
		t.Errorf("parseHash(%q) = %x, first/last byte mismatch", hex64, h)
	}
}

func TestParseHash_rejectsWrongLength(t *testing.T) {
	if _, err := parseHash("abcd"); err == nil {
		t.Fatal("expected error for a short hex string, got nil")
	}
}

func TestParseHash_rejectsNonHex(t *testing.T) {
	if _, err := parseHash("not-hex-at-all-zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"); err == nil {
		t.Fatal("expected error for a non-hex string, got nil")
	}
}
