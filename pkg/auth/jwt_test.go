package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssuer_RoundTrip(t *testing.T) {
	iss := NewIssuer("secret", time.Hour)

	token, err := iss.GenerateToken("alice")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := iss.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() err = %v", err)
	}
	if claims.DisplayName != "alice" {
		t.Errorf("DisplayName = %q, want alice", claims.DisplayName)
	}
}

func TestIssuer_Rejects(t *testing.T) {
	iss := NewIssuer("secret", time.Hour)
	good, _ := iss.GenerateToken("alice")

	expired := NewIssuer("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _ := expired.GenerateToken("alice")

	other, _ := NewIssuer("other", time.Hour).GenerateToken("alice")
	blank, _ := iss.GenerateToken("  ")

	tests := map[string]string{
		"WrongKey":  other,
		"Expired":   old,
		"Garbage":   "not-a-token",
		"Tampered":  good + "x",
		"BlankName": blank,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := iss.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		target  string
		want    string
		wantErr error
	}{
		{"Bearer", "Bearer abc", "/ws", "abc", nil},
		{"RawHeader", "abc", "/ws", "abc", nil},
		{"Query", "", "/ws?token=xyz", "xyz", nil},
		{"HeaderWins", "Bearer abc", "/ws?token=xyz", "abc", nil},
		{"Missing", "", "/ws", "", ErrNoToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.target, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := TokenFromRequest(r)
			if !errors.Is(err, tt.wantErr) || got != tt.want {
				t.Errorf("TokenFromRequest() = %q, %v; want %q, %v", got, err, tt.want, tt.wantErr)
			}
		})
	}
}
