package credential

import (
	"errors"
	"testing"
)

func TestFallback(t *testing.T) {
	calls := 0
	lookup := func(key string) (string, error) {
		calls++
		if key == KeyIngestAPIKey {
			return "from-keyring", nil
		}
		return "", errors.New("locked")
	}

	tests := []struct {
		name    string
		value   string
		key     string
		want    string
		wantErr bool
	}{
		{"config wins", "from-config", KeyIngestAPIKey, "from-config", false},
		{"keyring fills gap", "", KeyIngestAPIKey, "from-keyring", false},
		{"keyring error", "", KeyJWTSecret, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Fallback(tt.value, tt.key, lookup)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Fatalf("Fallback = %q, %v", got, err)
			}
		})
	}
	if calls != 2 {
		t.Fatalf("expected 2 keyring lookups, got %d", calls)
	}
}
