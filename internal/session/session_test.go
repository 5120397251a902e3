package session

import (
	"testing"

	"linoslms.org/internal/records"
)

func TestLoginLogoutCycle(t *testing.T) {
	m := NewManager()
	if _, _, ok := m.Current(); ok {
		t.Fatal("fresh manager should be unauthenticated")
	}

	m.Login(records.User{ID: "USR-1", Name: "Admin", Role: records.RoleAdministrator}, "tok-1")
	user, token, ok := m.Current()
	if !ok || user.ID != "USR-1" || token != "tok-1" {
		t.Fatalf("unexpected session: %+v %q %v", user, token, ok)
	}

	m.Logout()
	if _, _, ok := m.Current(); ok {
		t.Fatal("logout should reset to unauthenticated")
	}
}

func TestUpdateUserShallowMerge(t *testing.T) {
	m := NewManager()
	m.Login(records.User{ID: "USR-1", Name: "Admin", Email: "admin@linoslms.com", Role: records.RoleAdministrator}, "tok")

	name := "Renamed"
	m.UpdateUser(records.UserUpdate{Name: &name})

	user, _, _ := m.Current()
	if user.Name != "Renamed" {
		t.Fatalf("name not merged: %s", user.Name)
	}
	if user.Email != "admin@linoslms.com" || user.Role != records.RoleAdministrator {
		t.Fatalf("unrelated fields changed: %+v", user)
	}
}

func TestUpdateUserWithoutSessionIsNoop(t *testing.T) {
	m := NewManager()
	name := "Ghost"
	m.UpdateUser(records.UserUpdate{Name: &name})
	if _, _, ok := m.Current(); ok {
		t.Fatal("no session should exist")
	}
}

func TestCurrentReturnsCopy(t *testing.T) {
	m := NewManager()
	m.Login(records.User{ID: "USR-1", Name: "Admin"}, "tok")
	user, _, _ := m.Current()
	user.Name = "Mutated"
	again, _, _ := m.Current()
	if again.Name != "Admin" {
		t.Fatalf("session state leaked through returned copy: %s", again.Name)
	}
}
