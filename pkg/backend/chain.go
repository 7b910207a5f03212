package backend

import "github.com/storj-thirdparty/dataproxy/pkg/model"

// builtChain is the assembled writer-pipeline transform along with
// handles onto the two always-present observing stages, whose final
// values are read back into the Location once the chain is closed.
type builtChain struct {
	head  transform
	hash  *hashingTransform
	probe *sizeProbe
}

// buildChain composes the writer pipeline in the order spec'd by
// §4.7: footer (optional) -> compression (optional) -> encryption
// (optional) -> hashing (always) -> size probe (always) -> sink.
// Each optional stage is gated on the matching Location flag, the
// footer additionally on blocklist being non-empty and the object's
// raw content length (Location.RawContentLen) reaching footerThreshold.
func buildChain(sink transform, loc *model.Location, blocklist []byte) (*builtChain, error) {
	probe := newSizeProbe(sink)
	hashT := newHashingTransform(probe)

	var head transform = hashT

	if loc.IsEncrypted {
		chacha, err := newChachaTransform(head, loc.EncryptionKey)
		if err != nil {
			return nil, err
		}
		head = chacha
	}

	if loc.IsCompressed {
		head = newCompressionTransform(head)
	}

	if len(blocklist) > 0 && loc.RawContentLen >= footerThreshold {
		head = newFooterTransform(head, blocklist)
	}

	return &builtChain{head: head, hash: hashT, probe: probe}, nil
}
