package propmap

import "testing"

func TestSetGetIntRoundTrip(t *testing.T) {
	t.Parallel()

	m := New()
	if err := m.SetInt("length", 42, Replace); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	v, code := m.Int("length", 0)
	if code != ErrNone {
		t.Fatalf("Int: code=%v", code)
	}
	if v != 42 {
		t.Errorf("Int: got %d, want 42", v)
	}
}

func TestAppendSequence(t *testing.T) {
	t.Parallel()

	m := New()
	for i := int64(0); i < 5; i++ {
		if err := m.SetInt("xs", i, Append); err != nil {
			t.Fatalf("SetInt append %d: %v", i, err)
		}
	}
	if n := m.NumElements("xs"); n != 5 {
		t.Fatalf("NumElements: got %d, want 5", n)
	}
	for i := int64(0); i < 5; i++ {
		v, code := m.Int("xs", int(i))
		if code != ErrNone || v != i {
			t.Errorf("Int(xs,%d): got (%d,%v), want (%d,ErrNone)", i, v, code, i)
		}
	}
}

func TestReplaceOverwritesArray(t *testing.T) {
	t.Parallel()

	m := New()
	_ = m.SetInt("k", 1, Append)
	_ = m.SetInt("k", 2, Append)
	_ = m.SetInt("k", 99, Replace)
	if n := m.NumElements("k"); n != 1 {
		t.Fatalf("NumElements after Replace: got %d, want 1", n)
	}
	v, _ := m.Int("k", 0)
	if v != 99 {
		t.Errorf("Int after Replace: got %d, want 99", v)
	}
}

func TestWrongTypeDoesNotMutate(t *testing.T) {
	t.Parallel()

	m := New()
	_ = m.SetInt("k", 1, Replace)
	before := m.NumElements("k")
	if _, code := m.Float("k", 0); code != ErrType {
		t.Fatalf("Float on int key: code=%v, want ErrType", code)
	}
	if err := m.SetFloat("k", 2.5, Append); err == nil {
		t.Fatal("SetFloat append onto int key: expected error")
	}
	if after := m.NumElements("k"); after != before {
		t.Errorf("mutation occurred after failed type-mismatched write: before=%d after=%d", before, after)
	}
}

func TestUnsetAndIndexErrors(t *testing.T) {
	t.Parallel()

	m := New()
	if _, code := m.Int("missing", 0); code != ErrUnset {
		t.Errorf("Int(missing): code=%v, want ErrUnset", code)
	}
	_ = m.SetInt("k", 1, Replace)
	if _, code := m.Int("k", 5); code != ErrIndex {
		t.Errorf("Int(k,5): code=%v, want ErrIndex", code)
	}
	if n := m.NumElements("missing"); n != -1 {
		t.Errorf("NumElements(missing): got %d, want -1", n)
	}
}

func TestKeyValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		key   string
		valid bool
	}{
		{"a", true},
		{"_a", true},
		{"a1_b2", true},
		{"1a", false},
		{"a-b", false},
		{"", false},
		{"a b", false},
	}
	for _, c := range cases {
		if got := ValidKey(c.key); got != c.valid {
			t.Errorf("ValidKey(%q) = %v, want %v", c.key, got, c.valid)
		}
		m := New()
		err := m.SetInt(c.key, 1, Replace)
		if c.valid && err != nil {
			t.Errorf("SetInt(%q): unexpected error %v", c.key, err)
		}
		if !c.valid && err == nil {
			t.Errorf("SetInt(%q): expected error for invalid key", c.key)
		}
	}
}

func TestMapErrorShortCircuitsReads(t *testing.T) {
	t.Parallel()

	m := New()
	_ = m.SetInt("k", 1, Replace)
	m.SetError("boom")
	if !m.HasError() {
		t.Fatal("HasError: got false after SetError")
	}
	if _, code := m.Int("k", 0); code != ErrMapError {
		t.Errorf("Int after SetError: code=%v, want ErrMapError", code)
	}
	msg, has := m.Error()
	if !has || msg != "boom" {
		t.Errorf("Error(): got (%q,%v), want (boom,true)", msg, has)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	m := New()
	_ = m.SetInt("k", 1, Append)
	_ = m.SetInt("k", 2, Append)

	c := m.Clone()
	if err := c.SetInt("k", 3, Append); err != nil {
		t.Fatalf("SetInt on clone: %v", err)
	}

	if n := m.NumElements("k"); n != 2 {
		t.Errorf("original mutated by clone write: NumElements=%d, want 2", n)
	}
	if n := c.NumElements("k"); n != 3 {
		t.Errorf("clone did not record its own append: NumElements=%d, want 3", n)
	}
}

func TestDeleteKey(t *testing.T) {
	t.Parallel()

	m := New()
	_ = m.SetInt("k", 1, Replace)
	if !m.DeleteKey("k") {
		t.Fatal("DeleteKey: expected true for existing key")
	}
	if m.DeleteKey("k") {
		t.Fatal("DeleteKey: expected false for already-deleted key")
	}
	if n := m.NumElements("k"); n != -1 {
		t.Errorf("NumElements after delete: got %d, want -1", n)
	}
}

func TestBulkIntArrayIsAtomic(t *testing.T) {
	t.Parallel()

	m := New()
	if err := m.SetIntArray("xs", []int64{1, 2, 3}); err != nil {
		t.Fatalf("SetIntArray: %v", err)
	}
	got, code := m.IntArray("xs")
	if code != ErrNone {
		t.Fatalf("IntArray: code=%v", code)
	}
	want := []int64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("IntArray: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("IntArray[%d]: got %d, want %d", i, got[i], want[i])
		}
	}
}
