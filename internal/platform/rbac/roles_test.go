package rbac

import "testing"

func TestParse(t *testing.T) {
	tests := map[string]Role{
		"admin":   RoleAdmin,
		" Editor": RoleEditor,
		"reader":  RoleRegular,
		"user":    RoleRegular,
		"":        RoleRegular,
		"auditor": Role("auditor"),
	}
	for in, want := range tests {
		if got := Parse(in); got != want {
			t.Errorf("Parse(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAllowed(t *testing.T) {
	if !Allowed(RoleRegular, nil) {
		t.Error("empty allowed set should admit every role")
	}
	if Allowed(RoleRegular, []Role{RoleAdmin}) {
		t.Error("regular should not be allowed on an admin-only route")
	}
	if !Allowed(RoleAdmin, []Role{RoleAdmin}) {
		t.Error("admin should be allowed on an admin-only route")
	}
	if !Allowed(RoleEditor, []Role{RoleEditor, RoleAdmin}) {
		t.Error("editor should be allowed on an editor route")
	}
}

func TestCanAccessOwned(t *testing.T) {
	if !CanAccessOwned(RoleAdmin, "a", "b") {
		t.Error("admin should access others' resources")
	}
	if !CanAccessOwned(RoleRegular, "a", "a") {
		t.Error("owner should access own resource")
	}
	if CanAccessOwned(RoleEditor, "a", "b") {
		t.Error("editor should not access others' resources")
	}
	if CanAccessOwned(RoleRegular, "", "") {
		t.Error("anonymous caller should not match an empty owner")
	}
}
