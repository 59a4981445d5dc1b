package invalidation

import (
	"testing"
	"time"
)

func valid() Event {
	return Event{
		Version: 1,
		Op:      "update",
		EventID: "evt-1",
		TS:      time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
		Source:  "admin",
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := valid().Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Event){
		"wrong version": func(e *Event) { e.Version = 2 },
		"unknown op":    func(e *Event) { e.Op = "upsert" },
		"no event id":   func(e *Event) { e.EventID = "  " },
		"zero ts":       func(e *Event) { e.TS = time.Time{} },
	}
	for name, mutate := range cases {
		e := valid()
		mutate(&e)
		if err := e.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
