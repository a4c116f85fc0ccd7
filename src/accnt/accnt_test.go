package accnt

import "testing"

func TestAddTicksAccumulatesUserns(t *testing.T) {
	a := &Accnt_t{}
	a.AddTicks(5)
	user, sys := a.Fetch()
	if user != 5*TickNs {
		t.Fatalf("Userns = %d, want %d", user, 5*TickNs)
	}
	if sys != 0 {
		t.Fatalf("Sysns = %d, want 0", sys)
	}
}

func TestAddMergesCounters(t *testing.T) {
	parent := &Accnt_t{}
	child := &Accnt_t{Userns: 10, Sysns: 20}
	parent.AddTicks(1)
	parent.Add(child)
	user, sys := parent.Fetch()
	if user != TickNs+10 {
		t.Fatalf("Userns = %d, want %d", user, TickNs+10)
	}
	if sys != 20 {
		t.Fatalf("Sysns = %d, want 20", sys)
	}
}

func TestSystaddTracksSystemTime(t *testing.T) {
	a := &Accnt_t{}
	a.Systadd(500)
	_, sys := a.Fetch()
	if sys != 500 {
		t.Fatalf("Sysns = %d, want 500", sys)
	}
}
