package ncm

import (
	"bytes"
	"crypto/aes"
	"encoding/base64"
	"encoding/binary"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var testKey = []byte("123456789012345678901234567890123456789012345678901E7fT49x7dof9OKCgg9cdvhEuezy3iZCL1nFvBFd1T4uSktAJKmwZXsijPbijliionVUXXg9plTbXEclAE9Lb")

func pkcs7(data []byte) []byte {
	pad := aes.BlockSize - len(data)%aes.BlockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(pad)}, pad)...)
}

// encryptECB encrypts already padded plaintext.
func encryptECB(t *testing.T, key, plain []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	require.Zero(t, len(plain)%aes.BlockSize)

	out := make([]byte, len(plain))
	for i := 0; i < len(plain); i += aes.BlockSize {
		block.Encrypt(out[i:i+aes.BlockSize], plain[i:i+aes.BlockSize])
	}
	return out
}

func encodeKeyBlock(t *testing.T, key []byte) []byte {
	t.Helper()
	plain := pkcs7(append([]byte("neteasecloudmusic"), key...))
	return xorMask(encryptECB(t, coreKey[:], plain), keyMask)
}

func encodeMetaBlock(t *testing.T, text string) []byte {
	t.Helper()
	enc := encryptECB(t, metaKey[:], pkcs7([]byte("music:"+text)))
	wrapped := "163 key(Don't modify):" + base64.StdEncoding.EncodeToString(enc)
	return xorMask([]byte(wrapped), metaMask)
}

type fixture struct {
	key        []byte
	keyBlock   []byte // overrides key when set
	meta       string
	metaBlock  []byte // overrides meta when set
	image      []byte
	imagePad   int
	audio      []byte
	rawPayload bool // store audio unmasked
}

func putUint32(buf *bytes.Buffer, v int) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func buildNCM(t *testing.T, fx fixture) []byte {
	t.Helper()
	key := fx.key
	if key == nil {
		key = testKey
	}
	keyBlock := fx.keyBlock
	if keyBlock == nil {
		keyBlock = encodeKeyBlock(t, key)
	}
	metaBlock := fx.metaBlock
	if metaBlock == nil && fx.meta != "" {
		metaBlock = encodeMetaBlock(t, fx.meta)
	}

	var buf bytes.Buffer
	buf.Write(MagicHeader[:])
	buf.Write([]byte{0x01, 0x70})
	putUint32(&buf, len(keyBlock))
	buf.Write(keyBlock)
	putUint32(&buf, len(metaBlock))
	buf.Write(metaBlock)
	buf.Write([]byte{0, 0, 0, 0, 0})
	putUint32(&buf, len(fx.image)+fx.imagePad)
	putUint32(&buf, len(fx.image))
	buf.Write(fx.image)
	buf.Write(bytes.Repeat([]byte{0xEE}, fx.imagePad))

	payload := append([]byte{}, fx.audio...)
	if !fx.rawPayload {
		ks, err := NewKeystream(key)
		require.NoError(t, err)
		ks.XOR(payload, 0)
	}
	buf.Write(payload)
	return buf.Bytes()
}

func writeNCM(t *testing.T, dir, name string, fx fixture) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buildNCM(t, fx), 0644))
	return path
}

func mp3Audio(size int) []byte {
	audio := make([]byte, size)
	copy(audio, "ID3")
	for i := 3; i < size; i++ {
		audio[i] = byte(i * 7)
	}
	return audio
}

func flacAudio(size int) []byte {
	audio := make([]byte, size)
	copy(audio, "fLaC")
	for i := 4; i < size; i++ {
		audio[i] = byte(i * 13)
	}
	return audio
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}
