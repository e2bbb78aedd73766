package queue

import "testing"

func TestTokenPrefixByChannel(t *testing.T) {
	if got := ViaApp.TokenPrefix(); got != "A" {
		t.Fatalf("app prefix = %q, want A", got)
	}
	if got := ViaWalkIn.TokenPrefix(); got != "W" {
		t.Fatalf("walk-in prefix = %q, want W", got)
	}
}

func TestTokenNumberDisplay(t *testing.T) {
	tests := []struct {
		via      BookedVia
		position int
		want     string
	}{
		{ViaWalkIn, 0, "W1"},
		{ViaWalkIn, 2, "W3"},
		{ViaApp, 0, "A1"},
		{ViaApp, 11, "A12"},
	}
	for _, tt := range tests {
		if got := TokenNumber(tt.via, tt.position); got != tt.want {
			t.Fatalf("TokenNumber(%s, %d) = %q, want %q", tt.via, tt.position, got, tt.want)
		}
	}
}

func TestBookedViaValid(t *testing.T) {
	if !ViaApp.Valid() || !ViaWalkIn.Valid() {
		t.Fatal("expected known channels to be valid")
	}
	if BookedVia("Phone").Valid() {
		t.Fatal("expected unknown channel to be invalid")
	}
}
