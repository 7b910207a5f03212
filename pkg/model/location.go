package model

// Location is the physical placement of an Object's bytes on one
// proxy's backend. An Object may exist with no Location at all, which
// marks it a replication candidate.
type Location struct {
	Bucket         string
	Path           string
	RawContentLen  int64
	DiskContentLen int64
	DiskHash       string // hex SHA-256 of the bytes written to disk; empty until the writer pipeline finishes
	EncryptionKey  []byte // nil means the object is stored unencrypted
	IsCompressed   bool
	IsEncrypted    bool
	IsPartialSync  bool
	OwningEndpoint ID
}

// HasDiskHash reports whether the writer pipeline has recorded a final
// digest for this location.
func (l *Location) HasDiskHash() bool {
	return l != nil && l.DiskHash != ""
}
