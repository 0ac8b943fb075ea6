package dedupe

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// hashChunkSize bounds how much content is held in memory while hashing.
const hashChunkSize = 64 * 1024

// HashLength is the number of hex characters in a content hash.
const HashLength = md5.Size * 2

// ContentHash returns the lowercase hex MD5 digest of everything read from r.
// If r is an io.Seeker it is rewound first, so the digest always covers the
// complete content regardless of where the caller left the read position.
func ContentHash(r io.Reader) (string, error) {
	if s, ok := r.(io.Seeker); ok {
		if _, err := s.Seek(0, io.SeekStart); err != nil {
			return "", fmt.Errorf("%w: rewinding content: %v", ErrHashing, err)
		}
	}

	h := md5.New()
	buf := make([]byte, hashChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrHashing, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// TextHash returns the content hash of text. Go strings are UTF-8, so this is
// the digest of the text's UTF-8 encoding.
func TextHash(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// rewindable returns content as an io.ReadSeeker. Content that cannot seek is
// spooled to a temporary file; the returned cleanup func closes and removes it
// and must always be called.
func rewindable(content io.Reader) (io.ReadSeeker, func(), error) {
	if rs, ok := content.(io.ReadSeeker); ok {
		return rs, func() {}, nil
	}

	tmp, err := os.CreateTemp("", "dedupe-spool-*")
	if err != nil {
		return nil, nil, fmt.Errorf("creating spool file: %w", err)
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(tmp, content, buf); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("%w: spooling content: %v", ErrHashing, err)
	}
	return tmp, cleanup, nil
}
