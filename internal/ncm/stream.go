package ncm

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

var (
	flacHeader = []byte("fLaC")
	id3Header  = []byte("ID3")
	mpegSyncs  = [][]byte{{0xFF, 0xFB}, {0xFF, 0xFA}}
)

// DecryptStream copies src to dst, unmasking every byte with ks. The keystream
// index follows the absolute payload position, so chunkSize does not change
// the output.
func DecryptStream(dst io.Writer, src io.Reader, ks Keystream, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = ChunkSize
	}
	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			ks.XOR(chunk, written)
			if _, werr := dst.Write(chunk); werr != nil {
				return written, fmt.Errorf("%w: write payload: %w", ErrIO, werr)
			}
			written += int64(n)
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, fmt.Errorf("%w: read payload: %w", ErrIO, err)
		}
	}
}

// VerifyHeader checks the leading bytes of a decrypted stream against the
// signature of format.
func VerifyHeader(header []byte, format string) bool {
	switch format {
	case FormatFLAC:
		return bytes.HasPrefix(header, flacHeader)
	case FormatMP3:
		if bytes.HasPrefix(header, id3Header) {
			return true
		}
		for _, sync := range mpegSyncs {
			if bytes.HasPrefix(header, sync) {
				return true
			}
		}
	}
	return false
}

// VerifyFile reads the first bytes of path and checks them with VerifyHeader.
func VerifyFile(path, format string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer func() {
		_ = f.Close()
	}()

	header := make([]byte, 4)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	if !VerifyHeader(header[:n], format) {
		return fmt.Errorf("%w: unexpected %s header % x", ErrVerification, format, header[:n])
	}
	return nil
}
