package encryption

import (
	"bytes"
	"fmt"
	"io"

	"hadiqa-go/internal/hq"
)

// testHeader is prepended to data by TestSealer to make sealed output
// clearly different from plaintext while remaining deterministic and reversible.
var testHeader = []byte("HQSEAL\x00\x00")

// TestSealer is a simple, deterministic sealer for testing.
// It prepends a fixed 8-byte header and the passphrase length during Seal and
// checks both during Open. It requires no crypto.
type TestSealer struct{}

var _ hq.Sealer = (*TestSealer)(nil)

// NewTestSealer creates a new TestSealer.
func NewTestSealer() *TestSealer {
	return &TestSealer{}
}

func (s *TestSealer) Seal(passphrase string, r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := w.Write([]byte{byte(len(passphrase))}); err != nil {
		return fmt.Errorf("writing passphrase marker: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (s *TestSealer) Open(passphrase string, r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader)+1)
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header[:len(testHeader)], testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if header[len(testHeader)] != byte(len(passphrase)) {
		return fmt.Errorf("wrong passphrase")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
