package encryption

import (
	"fmt"
	"io"

	"filippo.io/age"

	"hadiqa-go/internal/hq"
)

// AgeSealer implements hq.Sealer using filippo.io/age scrypt-based
// passphrase encryption.
type AgeSealer struct {
	workFactor int
}

var _ hq.Sealer = (*AgeSealer)(nil)

// NewAgeSealer creates a new AgeSealer. workFactor is the scrypt log2 cost;
// zero keeps age's default.
func NewAgeSealer(workFactor int) *AgeSealer {
	return &AgeSealer{workFactor: workFactor}
}

// Seal reads plaintext from r and writes age-encrypted ciphertext to w.
func (s *AgeSealer) Seal(passphrase string, r io.Reader, w io.Writer) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase is required")
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}
	if s.workFactor > 0 {
		recipient.SetWorkFactor(s.workFactor)
	}

	encWriter, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}

	if _, err := io.Copy(encWriter, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}

	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}

	return nil
}

// Open reads age-encrypted ciphertext from r and writes plaintext to w.
func (s *AgeSealer) Open(passphrase string, r io.Reader, w io.Writer) error {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt identity: %w", err)
	}

	decReader, err := age.Decrypt(r, identity)
	if err != nil {
		return fmt.Errorf("creating decrypted reader: %w", err)
	}

	if _, err := io.Copy(w, decReader); err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}

	return nil
}
