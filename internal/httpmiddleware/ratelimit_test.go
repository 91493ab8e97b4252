package httpmiddleware

import "testing"

func TestTokenBucketAllowsBurstThenRejects(t *testing.T) {
	l := NewSimpleTokenBucket(3, 3)
	for i := 0; i < 3; i++ {
		if !l.allow("1.2.3.4") {
			t.Fatalf("request %d within capacity rejected", i)
		}
	}
	if l.allow("1.2.3.4") {
		t.Fatal("request over capacity allowed")
	}
	// Other clients have their own bucket.
	if !l.allow("5.6.7.8") {
		t.Fatal("fresh client rejected")
	}
}
