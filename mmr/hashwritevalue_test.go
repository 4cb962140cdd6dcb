package mmr

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func decodeHex(t *testing.T, s string) []byte {
	v, err := hex.DecodeString(s)
	if err != nil {
		t.Errorf("could not hex decode %s", s)
	}
	return v
}

func TestCountBytes(t *testing.T) {

	type args struct {
		width int
		count uint64
	}
	tests := []struct {
		name string
		args args
		want []byte
	}{
		{
			"ff00000000000001 at 32 bytes", args{32, 0xff00000000000001},
			decodeHex(t, "000000000000000000000000000000000000000000000000ff00000000000001"),
		},
		{
			"1 at 32 bytes", args{32, 1},
			decodeHex(t, "0000000000000000000000000000000000000000000000000000000000000001"),
		},
		{
			"4 at 8 bytes", args{8, 4}, decodeHex(t, "0000000000000004"),
		},
		{
			"narrow widths keep the low order bytes", args{2, 0x0102030405060708}, decodeHex(t, "0708"),
		},
	}

	for _, tt := range tests {

		t.Run(tt.name, func(t *testing.T) {
			got := CountBytes(tt.args.width, tt.args.count)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got %x, want %x", got, tt.want)
			}
		})
	}
}
