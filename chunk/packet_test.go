package chunk

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	golden := []struct {
		name string
		pkt  Packet
	}{
		{
			name: "init only",
			pkt: Packet{
				SourcePort: 2000, DestPort: 9899, VerifTag: 0,
				Chunks: []Raw{EncodeInit(Init{
					InitiateTag: 0xdeadbeef, AdvertisedRwnd: 131072,
					OutboundStreams: 10, InboundStreams: 10, InitialTSN: 42,
				})},
			},
		},
		{
			name: "init ack with cookie",
			pkt: Packet{
				SourcePort: 9899, DestPort: 2000, VerifTag: 7,
				Chunks: []Raw{EncodeInitAck(Init{
					InitiateTag: 1, AdvertisedRwnd: 2, OutboundStreams: 3,
					InboundStreams: 4, InitialTSN: 5, Cookie: []byte("opaque-cookie"),
				})},
			},
		},
		{
			name: "two data chunks",
			pkt: Packet{
				SourcePort: 1, DestPort: 2, VerifTag: 0xcafebabe,
				Chunks: []Raw{
					EncodeData(Data{TSN: 1, Stream: 0, SSN: 0, PPID: 53, Flags: FlagBegin, Data: []byte("hel")}),
					EncodeData(Data{TSN: 2, Stream: 0, SSN: 0, PPID: 53, Flags: FlagEnd, Data: []byte("lo")}),
				},
			},
		},
		{
			name: "sack with gaps and dups",
			pkt: Packet{
				SourcePort: 1, DestPort: 2, VerifTag: 9,
				Chunks: []Raw{EncodeSack(Sack{
					CumTSNAck: 10, Rwnd: 4096,
					GapBlocks:     []GapBlock{{Start: 2, End: 2}, {Start: 4, End: 5}},
					DuplicateTSNs: []uint32{11, 12},
				})},
			},
		},
	}

	for _, g := range golden {
		raw := Encode(g.pkt)
		if len(raw)%4 != 0 {
			t.Errorf("%s: encoded length %d not a multiple of 4", g.name, len(raw))
		}

		got, err := Decode(raw)
		if err != nil {
			t.Fatalf("%s: decode: %v", g.name, err)
		}
		if got.SourcePort != g.pkt.SourcePort || got.DestPort != g.pkt.DestPort || got.VerifTag != g.pkt.VerifTag {
			t.Errorf("%s: header mismatch: got %+v", g.name, got)
		}
		if len(got.Chunks) != len(g.pkt.Chunks) {
			t.Fatalf("%s: got %d chunks, want %d", g.name, len(got.Chunks), len(g.pkt.Chunks))
		}
		for i, c := range got.Chunks {
			want := g.pkt.Chunks[i]
			if c.Type != want.Type || c.Flags != want.Flags || !bytes.Equal(c.Value, want.Value) {
				t.Errorf("%s: chunk %d mismatch: got %+v, want %+v", g.name, i, c, want)
			}
		}
	}
}

func TestDecodeBadChecksum(t *testing.T) {
	pkt := Packet{SourcePort: 1, DestPort: 2, VerifTag: 3}
	raw := Encode(pkt)
	raw[8] ^= 0xff

	_, err := Decode(raw)
	if err != ErrBadChecksum {
		t.Fatalf("got %v, want ErrBadChecksum", err)
	}
}

func TestDecodeTooShort(t *testing.T) {
	for _, n := range []int{0, 1, 11} {
		if _, err := Decode(make([]byte, n)); err != ErrInvalidPacket {
			t.Errorf("len %d: got %v, want ErrInvalidPacket", n, err)
		}
	}
}

func TestDecodeChunkLengthOverrun(t *testing.T) {
	pkt := Packet{SourcePort: 1, DestPort: 2, VerifTag: 3,
		Chunks: []Raw{{Type: TypeData, Value: make([]byte, 20)}}}
	raw := Encode(pkt)

	// Claim a chunk length that extends past the packet, then
	// re-stamp the checksum so decoding fails on the TLV check
	// rather than on the CRC.
	raw[headerLen+2] = 0xff
	raw[headerLen+3] = 0xff
	binary.LittleEndian.PutUint32(raw[8:12], checksum(raw))

	if _, err := Decode(raw); err != ErrInvalidPacket {
		t.Fatalf("got %v, want ErrInvalidPacket", err)
	}
}
