package events_test

import (
	"testing"

	"github.com/safeguard/fraudledger/foundation/events"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func TestEvents(t *testing.T) {
	t.Log("Given the need to fan out ledger events.")
	{
		evts := events.New()

		a := evts.Acquire("a")
		b := evts.Acquire("b")

		evts.Send("state: seal: MINING: appended")

		for _, ch := range []<-chan string{a, b} {
			if msg := <-ch; msg != "state: seal: MINING: appended" {
				t.Fatalf("\t%s\tShould deliver the event to every receiver: %q", failed, msg)
			}
		}
		t.Logf("\t%s\tShould deliver the event to every receiver.", success)

		for i := 0; i < 500; i++ {
			evts.Send("flood")
		}
		t.Logf("\t%s\tShould not block on a slow receiver.", success)

		if err := evts.Release("a"); err != nil {
			t.Fatalf("\t%s\tShould release a receiver: %v", failed, err)
		}
		if err := evts.Release("a"); err == nil {
			t.Fatalf("\t%s\tShould fail to release a receiver twice.", failed)
		}
		t.Logf("\t%s\tShould release a receiver once.", success)

		evts.Shutdown()
		if evts.Count() != 0 {
			t.Fatalf("\t%s\tShould remove every receiver on shutdown.", failed)
		}

		if _, open := <-evts.Acquire("c"); open {
			t.Fatalf("\t%s\tShould hand out a closed channel after shutdown.", failed)
		}
		t.Logf("\t%s\tShould hand out a closed channel after shutdown.", success)
	}
}
