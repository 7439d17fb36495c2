package compute

import "testing"

func TestWorkgroups(t *testing.T) {
	cases := []struct {
		n, size, want uint32
	}{
		{0, 64, 0},
		{1, 64, 1},
		{64, 64, 1},
		{65, 64, 2},
		{256, 64, 4},
		{1000, 256, 4},
		// size 0 falls back to the default workgroup size.
		{256, 0, 1},
		{257, 0, 2},
	}
	for _, c := range cases {
		if got := Workgroups(c.n, c.size); got != c.want {
			t.Errorf("Workgroups(%d, %d) = %d, want %d", c.n, c.size, got, c.want)
		}
	}
}

func TestBytesRoundtrip(t *testing.T) {
	in := []float32{1.5, -2.25, 0, 3e6}
	raw := ToBytes(in)
	if len(raw) != len(in)*4 {
		t.Fatalf("ToBytes length %d, want %d", len(raw), len(in)*4)
	}
	out := FromBytes[float32](raw)
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("element %d: got %g, want %g", i, out[i], in[i])
		}
	}
}
