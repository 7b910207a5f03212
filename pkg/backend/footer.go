package backend

import "encoding/binary"

// footerThreshold is the minimum ciphertext size at which an index
// footer is worth writing (5 MiB + per-block overhead for 80 blocks).
// Below it, random access falls back to full-stream decryption and the
// footer is omitted entirely.
const footerThreshold = 5_242_880 + 80*28

// footerTransform forwards every byte written to it unchanged, then
// appends an index footer recording block boundaries (seeded from the
// replication blocklist) once the stream completes — this is what lets
// a later reader seek to an arbitrary encryption block without
// replaying the whole object.
type footerTransform struct {
	next      transform
	blocklist []byte
	written   int64
}

func newFooterTransform(next transform, blocklist []byte) *footerTransform {
	return &footerTransform{next: next, blocklist: append([]byte(nil), blocklist...)}
}

func (f *footerTransform) Write(p []byte) (int, error) {
	n, err := f.next.Write(p)
	f.written += int64(n)
	return n, err
}

func (f *footerTransform) Close() error {
	footer := f.buildFooter()
	if len(footer) > 0 {
		if _, err := f.next.Write(footer); err != nil {
			return err
		}
	}
	return f.next.Close()
}

// buildFooter encodes each block's size (one byte per
// encryptionBlockSize-sized block, copied from blocklist) followed by
// an 8-byte little-endian block count, so a reader can locate the
// footer from the end of the object (its length is count+8).
func (f *footerTransform) buildFooter() []byte {
	if len(f.blocklist) == 0 {
		return nil
	}
	footer := make([]byte, 0, len(f.blocklist)+8)
	footer = append(footer, f.blocklist...)
	length := make([]byte, 8)
	binary.LittleEndian.PutUint64(length, uint64(len(f.blocklist)))
	footer = append(footer, length...)
	return footer
}
