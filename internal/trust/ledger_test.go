package trust

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/talgya/statecraft/internal/faction"
)

var ledgerEpoch = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func testLedger(baseline BaselineFunc) (*Ledger, *time.Time) {
	l := NewLedger(NewMemoryStore(), baseline, nil)
	now := ledgerEpoch
	l.Now = func() time.Time { return now }
	return l, &now
}

func near(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func TestInitializeSeedsFromBaseline(t *testing.T) {
	l, _ := testLedger(func(a, b faction.ID) (float64, error) { return 0.9, nil })

	ev, err := l.Initialize("north", "south")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	// 0.5 + (0.9-0.5)*0.2 = 0.58.
	near(t, "seed a->b", ev.ATrustB, 0.58)
	near(t, "seed b->a", ev.BTrustA, 0.58)
	near(t, "baseline", ev.BaselineCompatibility, 0.9)
	if len(ev.History) != 1 {
		t.Fatalf("history length = %d, want 1", len(ev.History))
	}
}

func TestInitializeIdempotent(t *testing.T) {
	calls := 0
	l, _ := testLedger(func(a, b faction.ID) (float64, error) {
		calls++
		return 0.2, nil
	})

	first, err := l.Initialize("north", "south")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	// Reversed order resolves to the same pair.
	second, err := l.Initialize("south", "north")
	if err != nil {
		t.Fatalf("Initialize again: %v", err)
	}
	if calls != 1 {
		t.Fatalf("baseline evaluated %d times, want 1", calls)
	}
	near(t, "stable seed", second.ATrustB, first.ATrustB)
}

func TestKeyForCanonical(t *testing.T) {
	k1, a1, b1 := KeyFor("south", "north")
	k2, a2, b2 := KeyFor("north", "south")
	if k1 != k2 {
		t.Fatalf("keys differ: %q vs %q", k1, k2)
	}
	if a1 != "north" || b1 != "south" || a2 != a1 || b2 != b1 {
		t.Fatalf("canonical order broken: %s/%s and %s/%s", a1, b1, a2, b2)
	}
}

func TestRecordBetrayalAsymmetric(t *testing.T) {
	l, _ := testLedger(nil)

	ev, err := l.RecordInteraction(Interaction{
		Kind:        KindBetrayal,
		Initiator:   "betrayer",
		Target:      "victim",
		TrustImpact: -0.9,
		Severity:    1,
	})
	if err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}

	// Impact is bounded at 0.2 per event. "betrayer" sorts before "victim",
	// so the victim's trust is BTrustA: 0.5 - 0.2 = 0.3. The betrayer's own
	// trust moves by half: 0.5 - 0.1 = 0.4.
	if ev.FactionA != "betrayer" || ev.FactionB != "victim" {
		t.Fatalf("canonical pair = %s/%s", ev.FactionA, ev.FactionB)
	}
	near(t, "victim trusts betrayer", ev.BTrustA, 0.3)
	near(t, "betrayer trusts victim", ev.ATrustB, 0.4)
	near(t, "low watermark", ev.LowTrust, 0.3)
	if ev.Category() != CategoryLowTrust {
		t.Fatalf("category = %s, want %s", ev.Category(), CategoryLowTrust)
	}
}

func TestRecordPositiveBounded(t *testing.T) {
	l, _ := testLedger(nil)

	ev, err := l.RecordInteraction(Interaction{
		Kind:        KindTreatySigned,
		Initiator:   "alpha",
		Target:      "omega",
		TrustImpact: 1,
	})
	if err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}
	// Target omega gets the full bounded step, initiator alpha half of it.
	near(t, "omega trusts alpha", ev.TrustToward("omega"), 0.7)
	near(t, "alpha trusts omega", ev.TrustToward("alpha"), 0.6)
	near(t, "peak", ev.PeakTrust, 0.7)
}

func TestRecordClampsAtFloor(t *testing.T) {
	l, now := testLedger(nil)

	for i := 0; i < 6; i++ {
		*now = now.Add(time.Hour)
		_, err := l.RecordInteraction(Interaction{
			Kind:        KindTreatyViolated,
			Initiator:   "alpha",
			Target:      "omega",
			TrustImpact: -1,
		})
		if err != nil {
			t.Fatalf("RecordInteraction #%d: %v", i, err)
		}
	}
	ev, err := l.Evolution("alpha", "omega")
	if err != nil {
		t.Fatalf("Evolution: %v", err)
	}
	if ev.ATrustB < 0 || ev.BTrustA < 0 {
		t.Fatalf("trust went negative: %v / %v", ev.ATrustB, ev.BTrustA)
	}
	near(t, "floor", ev.TrustToward("omega"), 0)
}

func TestRecordConcurrentSamePair(t *testing.T) {
	l, _ := testLedger(nil)

	// Two simultaneous events on the same pair: the read-modify-write must
	// be serialized so neither event's trust effect is lost.
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.RecordInteraction(Interaction{
				Kind:        KindTreatyViolated,
				Initiator:   "alpha",
				Target:      "omega",
				TrustImpact: -0.9,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("RecordInteraction: %v", err)
		}
	}

	ev, err := l.Evolution("alpha", "omega")
	if err != nil {
		t.Fatalf("Evolution: %v", err)
	}
	// 0.5 minus two full bounded steps.
	near(t, "omega trusts alpha", ev.TrustToward("omega"), 0.1)
	if len(ev.History) != 3 {
		t.Fatalf("history length = %d, want seed plus two samples", len(ev.History))
	}
}

func TestRecordValidation(t *testing.T) {
	l, _ := testLedger(nil)

	cases := []struct {
		name string
		rec  Interaction
	}{
		{"unknown kind", Interaction{Kind: "sabotage", Initiator: "a", Target: "b"}},
		{"self interaction", Interaction{Kind: KindBetrayal, Initiator: "a", Target: "a"}},
		{"missing target", Interaction{Kind: KindBetrayal, Initiator: "a"}},
		{"trust impact out of range", Interaction{Kind: KindBetrayal, Initiator: "a", Target: "b", TrustImpact: -1.5}},
		{"reputation out of range", Interaction{Kind: KindBetrayal, Initiator: "a", Target: "b", ReputationImpact: 2}},
		{"severity out of range", Interaction{Kind: KindBetrayal, Initiator: "a", Target: "b", Severity: 1.2}},
	}
	for _, tc := range cases {
		if _, err := l.RecordInteraction(tc.rec); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: err = %v, want ErrValidation", tc.name, err)
		}
	}
}

func TestDeriveTension(t *testing.T) {
	rec := Interaction{Kind: KindBetrayal, TrustImpact: -0.9}
	// |−0.9| * 2.0 clamps to 1.
	near(t, "betrayal tension", rec.deriveTension(), 1)

	rec = Interaction{Kind: KindTradeAgreement, TrustImpact: 0.4}
	near(t, "trade tension", rec.deriveTension(), -0.2)
}

func TestVolatilityNeedsAWindow(t *testing.T) {
	l, now := testLedger(nil)

	impacts := []float64{0.2, -0.2, 0.2, -0.2, 0.2}
	var ev Evolution
	for i, impact := range impacts {
		*now = now.Add(24 * time.Hour)
		var err error
		ev, err = l.RecordInteraction(Interaction{
			Kind:        KindBorderIncident,
			Initiator:   "alpha",
			Target:      "omega",
			TrustImpact: impact,
		})
		if err != nil {
			t.Fatalf("RecordInteraction #%d: %v", i, err)
		}
		if i < 3 && ev.Volatility != 0 {
			t.Fatalf("volatility %v before the window filled", ev.Volatility)
		}
	}
	if ev.Volatility <= 0 {
		t.Fatalf("oscillating trust should register volatility, got %v", ev.Volatility)
	}
}

func TestCategoryBands(t *testing.T) {
	cases := []struct {
		mean float64
		want Category
	}{
		{0.95, CategoryAbsoluteTrust},
		{0.75, CategoryHighTrust},
		{0.55, CategoryModerateTrust},
		{0.35, CategoryLowTrust},
		{0.15, CategoryDistrust},
		{0.05, CategoryDeepMistrust},
	}
	for _, tc := range cases {
		ev := Evolution{ATrustB: tc.mean, BTrustA: tc.mean}
		if got := ev.Category(); got != tc.want {
			t.Fatalf("mean %v: category = %s, want %s", tc.mean, got, tc.want)
		}
	}
}

func TestInteractionHistoryOrdered(t *testing.T) {
	l, now := testLedger(nil)

	for i := 0; i < 3; i++ {
		*now = now.Add(time.Hour)
		if _, err := l.RecordInteraction(Interaction{
			Kind:        KindCulturalExchange,
			Initiator:   "alpha",
			Target:      "omega",
			TrustImpact: 0.1,
		}); err != nil {
			t.Fatalf("RecordInteraction: %v", err)
		}
	}
	recs, err := l.Store.Interactions("omega", "alpha")
	if err != nil {
		t.Fatalf("Interactions: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("interactions = %d, want 3", len(recs))
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].At.Before(recs[i-1].At) {
			t.Fatalf("history out of order at %d", i)
		}
		if recs[i].ID == "" || recs[i].ID == recs[i-1].ID {
			t.Fatalf("interaction ids not unique")
		}
	}
}
