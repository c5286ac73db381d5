package executor

import "testing"

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewBreaker()
	fp := "fingerprint-a"

	for i := 0; i < circuitBreakerThreshold-1; i++ {
		b.RecordFailure(fp)
		if b.IsOpen(fp) {
			t.Fatalf("breaker opened early after %d failures", i+1)
		}
	}

	b.RecordFailure(fp)
	if !b.IsOpen(fp) {
		t.Fatalf("expected breaker open after %d consecutive failures", circuitBreakerThreshold)
	}
}

func TestBreakerResetsOnSuccess(t *testing.T) {
	b := NewBreaker()
	fp := "fingerprint-b"

	for i := 0; i < circuitBreakerThreshold; i++ {
		b.RecordFailure(fp)
	}
	if !b.IsOpen(fp) {
		t.Fatalf("expected breaker open before reset")
	}

	b.RecordSuccess(fp)
	if b.IsOpen(fp) {
		t.Fatalf("expected breaker closed after a success resets the counter")
	}
}

func TestBreakerFingerprintsAreIndependent(t *testing.T) {
	b := NewBreaker()
	for i := 0; i < circuitBreakerThreshold; i++ {
		b.RecordFailure("fp-1")
	}
	if b.IsOpen("fp-2") {
		t.Fatalf("unrelated fingerprint must not be affected")
	}
}
