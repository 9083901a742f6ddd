package audit

import "testing"

func TestParseFullMethod(t *testing.T) {
	tests := []struct {
		method   string
		verb     string
		resource string
	}{
		{"/authguard.v1.IdentityService/GetIdentity", "get", "identity"},
		{"/authguard.v1.IdentityService/WhoAmI", "whoami", "identity"},
		{"/authguard.v1.RateLimitService/GetStatus", "get", "rateLimit"},
		{"/authguard.v1.RateLimitService/BlockKey", "block", "rateLimit"},
		{"/authguard.v1.RateLimitService/UnblockKey", "unblock", "rateLimit"},
		{"/authguard.v1.SessionService/RevokeSession", "revoke", "session"},
		{"/authguard.v1.SessionService/ListSessions", "list", "session"},
		{"/authguard.v1.UserService/UnknownMethod", "unknownmethod", "user"},
		{"/authguard.v1.Service/Get", "get", "unknown"},
		{"SomeService/SomeMethod", "somemethod", "unknown"},
		{"invalid-format", "unknown", "unknown"},
	}
	for _, tt := range tests {
		got := ParseFullMethod(tt.method)
		if got.Verb != tt.verb || got.Resource != tt.resource {
			t.Errorf("ParseFullMethod(%q) = %+v, want verb=%q resource=%q", tt.method, got, tt.verb, tt.resource)
		}
	}
}

func TestSkip(t *testing.T) {
	if !Skip("/grpc.health.v1.Health/Check") {
		t.Error("health checks should be skipped")
	}
	if Skip("/authguard.v1.IdentityService/WhoAmI") {
		t.Error("service methods should be audited")
	}
}
