package util

import "testing"

func TestRoundupRounddown(t *testing.T) {
	specs := []struct {
		v, b, up, down int
	}{
		{0, 4096, 0, 0},
		{1, 4096, 4096, 0},
		{4096, 4096, 4096, 4096},
		{4097, 4096, 8192, 4096},
		{511, 512, 512, 0},
	}

	for i, spec := range specs {
		if g := Roundup(spec.v, spec.b); g != spec.up {
			t.Errorf("[spec %d] Roundup(%d, %d) = %d, want %d", i, spec.v, spec.b, g, spec.up)
		}
		if g := Rounddown(spec.v, spec.b); g != spec.down {
			t.Errorf("[spec %d] Rounddown(%d, %d) = %d, want %d", i, spec.v, spec.b, g, spec.down)
		}
	}
}

func TestReadWriteN(t *testing.T) {
	buf := make([]uint8, 16)
	Writen16(buf, 0, 0xBEEF)
	if g := Readn16(buf, 0); g != 0xBEEF {
		t.Errorf("Readn16 = %#x, want 0xBEEF", g)
	}
	Writen32(buf, 2, 0xDEADBEEF)
	if g := Readn32(buf, 2); g != 0xDEADBEEF {
		t.Errorf("Readn32 = %#x, want 0xDEADBEEF", g)
	}
	Writen64(buf, 8, 0x0123456789ABCDEF)
	if g := Readn64(buf, 8); g != 0x0123456789ABCDEF {
		t.Errorf("Readn64 = %#x, want 0x0123456789ABCDEF", g)
	}
}

func TestCeildiv(t *testing.T) {
	specs := []struct{ a, b, want int }{
		{0, 512, 0},
		{1, 512, 1},
		{512, 512, 1},
		{513, 512, 2},
	}
	for i, spec := range specs {
		if g := Ceildiv(spec.a, spec.b); g != spec.want {
			t.Errorf("[spec %d] Ceildiv(%d, %d) = %d, want %d", i, spec.a, spec.b, g, spec.want)
		}
	}
}
