package ncm

import "fmt"

// Keystream is the fixed 256-byte mask applied cyclically to the audio payload.
// It is a value type: every copy is independent.
type Keystream [KeystreamSize]byte

// NewKeystream derives the table from the key material. Unlike RC4 it does not
// advance any state per output byte, the table is computed once and reused.
func NewKeystream(key []byte) (Keystream, error) {
	var ks Keystream
	keySize := len(key)
	if keySize == 0 {
		return ks, fmt.Errorf("%w: empty key material", ErrPadding)
	}

	// 1. 初始化
	var box [KeystreamSize]byte
	for i := 0; i < KeystreamSize; i++ {
		box[i] = byte(i)
	}
	// 2. 打乱
	for i, j := 0, 0; i < KeystreamSize; i++ {
		j = (j + int(box[i]) + int(key[i%keySize])) & 0xFF
		box[i], box[j] = box[j], box[i]
	}
	// 3. 生成流密钥
	for i := 0; i < KeystreamSize; i++ {
		k1 := (i + 1) & 0xFF
		k2 := (k1 + int(box[k1])) & 0xFF
		ks[i] = box[(int(box[k1])+int(box[k2]))&0xFF]
	}
	return ks, nil
}

// XOR masks buf in place. offset is the absolute payload position of buf[0].
func (ks *Keystream) XOR(buf []byte, offset int64) {
	base := int(offset & 0xFF)
	for i := range buf {
		buf[i] ^= ks[(base+i)&0xFF]
	}
}
