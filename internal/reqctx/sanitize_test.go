package reqctx

import "testing"

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		`<script>alert("x")</script>`: "&lt;script&gt;alert(&quot;x&quot;)&lt;&#x2F;script&gt;",
		"O'Brien":                     "O&#x27;Brien",
		"  plain name  ":              "plain name",
		"a & b":                       "a & b",
	}
	for in, want := range tests {
		if got := Sanitize(in); got != want {
			t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	valid := []string{"a@b.co", "first.last+tag@example.org", "x@sub.domain.io"}
	invalid := []string{"", "plain", "a@b", "@b.co", "a@.", "a b@c.de", "a@b c.de"}
	for _, e := range valid {
		if !ValidateEmail(e) {
			t.Errorf("ValidateEmail(%q) = false, want true", e)
		}
	}
	for _, e := range invalid {
		if ValidateEmail(e) {
			t.Errorf("ValidateEmail(%q) = true, want false", e)
		}
	}
}
