package customerid

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123-456.7890", "1234567890"},
		{"1234567890", "1234567890"},
		{" 123 456 7890 ", "1234567890"},
		{"customers/123-456-7890", "1234567890"},
		{"abc", ""},
		{"", ""},
		{"١٢٣", ""},
	}
	for _, tt := range tests {
		got := Sanitize(tt.in)
		if got != tt.want {
			t.Fatalf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if again := Sanitize(got); again != got {
			t.Fatalf("Sanitize not idempotent for %q: %q then %q", tt.in, got, again)
		}
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1234567890", "123****890"},
		{"123456", "123****456"},
		{"12345678901234", "123****234"},
		{"12345", "****"},
		{"", "****"},
	}
	for _, tt := range tests {
		if got := Mask(tt.in); got != tt.want {
			t.Fatalf("Mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValid(t *testing.T) {
	if !Valid("1234567890") {
		t.Fatal("expected ten digits to be valid")
	}
	for _, id := range []string{"123456789", "123-456-7890", "12345678901"} {
		if Valid(id) {
			t.Fatalf("Valid(%q) = true", id)
		}
	}
}
