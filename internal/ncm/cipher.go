package ncm

import (
	"crypto/aes"
	"encoding/base64"
	"fmt"
	"unicode/utf8"
)

// AESDecryptECB decrypts ciphertext block by block and strips the trailing padding.
func AESDecryptECB(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPadding, err)
	}
	blockSize := block.BlockSize()

	dataSize := len(ciphertext)
	if dataSize == 0 || dataSize%blockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext size %d", ErrPadding, dataSize)
	}
	plaintext := make([]byte, dataSize)

	for start := 0; start < dataSize; start += blockSize {
		end := start + blockSize
		block.Decrypt(plaintext[start:end], ciphertext[start:end])
	}

	return unpad(plaintext, blockSize)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	size := len(data)
	if size == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrPadding)
	}
	pad := int(data[size-1])
	if pad == 0 || pad > blockSize || pad > size {
		return nil, fmt.Errorf("%w: padding byte %d", ErrPadding, pad)
	}
	return data[:size-pad], nil
}

func xorMask(data []byte, mask byte) []byte {
	out := make([]byte, len(data))
	for i := range data {
		out[i] = data[i] ^ mask
	}
	return out
}

// RecoverKey unwraps the key block into the per-file key material.
func RecoverKey(block []byte) ([]byte, error) {
	data, err := AESDecryptECB(coreKey[:], xorMask(block, keyMask))
	if err != nil {
		return nil, err
	}
	// 跳过 `neteasecloudmusic` 17个字符
	if len(data) <= keyPrefixSize {
		return nil, fmt.Errorf("%w: key block too short", ErrPadding)
	}
	return data[keyPrefixSize:], nil
}

// unwrapMeta returns the JSON text carried by a metadata block.
func unwrapMeta(block []byte) ([]byte, error) {
	if len(block) < metaPrefixSize {
		return nil, fmt.Errorf("%w: unexpected meta size %d", ErrMetadata, len(block))
	}
	data := xorMask(block, metaMask)
	// 跳过 `163 key(Don't modify):` 22个字符
	raw, err := base64.StdEncoding.DecodeString(string(data[metaPrefixSize:]))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetadata, err)
	}
	raw, err = AESDecryptECB(metaKey[:], raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetadata, err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: not utf-8", ErrMetadata)
	}
	// 跳过 `music:` 6个字符
	if len(raw) < musicPrefixSize {
		return nil, fmt.Errorf("%w: unexpected meta format", ErrMetadata)
	}
	return raw[musicPrefixSize:], nil
}
