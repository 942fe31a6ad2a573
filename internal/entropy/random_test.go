package entropy

import "testing"

func TestSeededDeterministic(t *testing.T) {
	a := Seeded(12345)
	b := Seeded(12345)

	for i := 0; i < 20; i++ {
		gotA := a.IntN(100000)
		gotB := b.IntN(100000)
		if gotA != gotB {
			t.Fatalf("expected deterministic sequence, mismatch at %d: %d != %d", i, gotA, gotB)
		}
	}
}

func TestSeedWordChangesWithSalt(t *testing.T) {
	if seedWord(99, "a") == seedWord(99, "b") {
		t.Fatalf("expected different seed words for different salts")
	}
}

func TestNilClientFallsBackToCrypto(t *testing.T) {
	var c *Client
	if c.Enabled() {
		t.Fatal("nil client must not report enabled")
	}
	for i := 0; i < 100; i++ {
		f := c.Float64()
		if f < 0 || f >= 1 {
			t.Fatalf("Float64 out of range: %v", f)
		}
		n := c.IntN(3)
		if n < 0 || n >= 3 {
			t.Fatalf("IntN out of range: %d", n)
		}
	}
}

func TestSystemSourceWithoutKey(t *testing.T) {
	src := System("")
	if v := Uniform(src, 0.5, 1.0); v < 0.5 || v >= 1.0 {
		t.Fatalf("Uniform out of range: %v", v)
	}
}
