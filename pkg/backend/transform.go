package backend

import (
	"hash"
	"io"

	sha256 "github.com/minio/sha256-simd"
	"golang.org/x/crypto/chacha20"
)

// transform is an io.WriteCloser that forwards (possibly rewritten)
// bytes to the next stage and finalizes itself on Close before closing
// that stage, the way spec §4.7 composes the writer pipeline.
type transform interface {
	io.Writer
	Close() error
}

// sizeProbe counts the bytes that reach the sink and is always the
// innermost-but-one stage (§4.7 step 4).
type sizeProbe struct {
	next transform
	n    int64
}

func newSizeProbe(next transform) *sizeProbe { return &sizeProbe{next: next} }

func (s *sizeProbe) Write(p []byte) (int, error) {
	n, err := s.next.Write(p)
	s.n += int64(n)
	return n, err
}

func (s *sizeProbe) Close() error { return s.next.Close() }

// Size returns the total number of bytes observed.
func (s *sizeProbe) Size() int64 { return s.n }

// hashingTransform computes a running SHA-256 over everything written
// to it before forwarding downstream unchanged (§4.7 step 3, "observing
// final ciphertext" — it always sits after the optional encryption
// stage).
type hashingTransform struct {
	next transform
	h    hash.Hash
	sum  string
}

func newHashingTransform(next transform) *hashingTransform {
	return &hashingTransform{next: next, h: sha256.New()}
}

func (h *hashingTransform) Write(p []byte) (int, error) {
	h.h.Write(p)
	return h.next.Write(p)
}

func (h *hashingTransform) Close() error {
	h.sum = fmtHex(h.h.Sum(nil))
	return h.next.Close()
}

// Sum returns the finalized hex digest. Valid only after Close.
func (h *hashingTransform) Sum() string { return h.sum }

func fmtHex(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}

// encryptionBlockSize is the per-block framing period for the ChaCha20
// transformer: at every blockSize boundary the cipher's block counter
// is set to that block's fixed starting value (block k starts at
// counter k*blockSize/64), which is what makes a footer-recorded
// blocklist useful for random access (decryption can reseek to any
// block boundary without replaying the whole stream).
const encryptionBlockSize = 32 * 1024

// chachaTransform encrypts everything written to it with ChaCha20
// before forwarding downstream, setting its block counter to the next
// block's starting value every encryptionBlockSize bytes (§4.7 step 2).
type chachaTransform struct {
	next    transform
	key     [32]byte
	nonce   [12]byte
	cipher  *chacha20.Cipher
	counter uint32
	inBlock int
}

func newChachaTransform(next transform, key []byte) (*chachaTransform, error) {
	t := &chachaTransform{next: next}
	copy(t.key[:], key)
	c, err := chacha20.NewUnauthenticatedCipher(t.key[:], t.nonce[:])
	if err != nil {
		return nil, err
	}
	t.cipher = c
	return t, nil
}

func (t *chachaTransform) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		remaining := encryptionBlockSize - t.inBlock
		chunk := p
		if len(chunk) > remaining {
			chunk = chunk[:remaining]
		}

		out := make([]byte, len(chunk))
		t.cipher.XORKeyStream(out, chunk)
		n, err := t.next.Write(out)
		written += n
		if err != nil {
			return written, err
		}

		t.inBlock += len(chunk)
		p = p[len(chunk):]

		if t.inBlock == encryptionBlockSize {
			t.counter += encryptionBlockSize / 64
			t.cipher.SetCounter(t.counter)
			t.inBlock = 0
		}
	}
	return written, nil
}

func (t *chachaTransform) Close() error { return t.next.Close() }
