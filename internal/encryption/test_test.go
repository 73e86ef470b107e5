package encryption

import (
	"bytes"
	"testing"

	"hadiqa-go/internal/config"
)

func TestTestSealer_SealOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "simple text", input: []byte("hello world")},
		{name: "empty", input: []byte{}},
		{name: "binary data", input: []byte{0x00, 0xff, 0x01, 0xfe}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := NewTestSealer()

			var sealed bytes.Buffer
			if err := s.Seal("pw", bytes.NewReader(tt.input), &sealed); err != nil {
				t.Fatalf("Seal() error = %v", err)
			}
			if !bytes.HasPrefix(sealed.Bytes(), testHeader) {
				t.Error("sealed output missing test header")
			}

			var opened bytes.Buffer
			if err := s.Open("pw", bytes.NewReader(sealed.Bytes()), &opened); err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if !bytes.Equal(opened.Bytes(), tt.input) {
				t.Errorf("round-trip = %q, want %q", opened.Bytes(), tt.input)
			}
		})
	}
}

func TestTestSealer_Open_Errors(t *testing.T) {
	t.Parallel()

	s := NewTestSealer()

	t.Run("invalid header", func(t *testing.T) {
		var out bytes.Buffer
		if err := s.Open("pw", bytes.NewReader([]byte("XXXXXXXXXdata")), &out); err == nil {
			t.Error("Open() should reject an invalid header")
		}
	})

	t.Run("truncated input", func(t *testing.T) {
		var out bytes.Buffer
		if err := s.Open("pw", bytes.NewReader([]byte("HQ")), &out); err == nil {
			t.Error("Open() should reject truncated input")
		}
	})

	t.Run("wrong passphrase", func(t *testing.T) {
		var sealed, out bytes.Buffer
		_ = s.Seal("pw", bytes.NewReader([]byte("x")), &sealed)
		if err := s.Open("longer-pw", &sealed, &out); err == nil {
			t.Error("Open() should reject a different passphrase")
		}
	})
}

func TestNewSealerFromConfig(t *testing.T) {
	tests := []struct {
		typ     string
		want    string
		wantErr bool
	}{
		{typ: "", want: "*encryption.AgeSealer"},
		{typ: "age", want: "*encryption.AgeSealer"},
		{typ: "test", want: "*encryption.TestSealer"},
		{typ: "rot13", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			got, err := NewSealerFromConfig(config.EncryptionConfig{Type: tt.typ})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			switch got.(type) {
			case *AgeSealer:
				if tt.want != "*encryption.AgeSealer" {
					t.Errorf("got %T, want %s", got, tt.want)
				}
			case *TestSealer:
				if tt.want != "*encryption.TestSealer" {
					t.Errorf("got %T, want %s", got, tt.want)
				}
			}
		})
	}
}
