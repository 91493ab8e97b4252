package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	token, err := Issue("m1", RoleMember, "Ada", "checkin-core", "secret", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !token.ExpiresAt.After(time.Now()) {
		t.Fatal("expiry should be in the future")
	}

	claims, err := Parse(token.Value, "secret", "checkin-core")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "m1" || claims.Role != RoleMember || claims.DisplayName != "Ada" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	token, err := Issue("m1", RoleMember, "", "checkin-core", "secret", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(token.Value, "other-secret", "checkin-core"); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestParseRejectsIssuerMismatch(t *testing.T) {
	token, err := Issue("m1", RoleFacilitator, "", "other-issuer", "secret", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(token.Value, "secret", "checkin-core"); err == nil {
		t.Fatal("expected issuer mismatch error")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := Issue("m1", RoleMember, "", "checkin-core", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(token.Value, "secret", "checkin-core"); err == nil {
		t.Fatal("expected expiry error")
	}
}
