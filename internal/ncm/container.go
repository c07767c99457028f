package ncm

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Section is a length-prefixed block of the container.
type Section struct {
	Offset int64
	Data   []byte
}

// Container is a parsed view over an ncm file. After parsing, the underlying
// reader sits at the first byte of the audio payload.
type Container struct {
	KeyBlock   Section
	MetaBlock  Section
	Image      Section
	ImageSpace uint32
	// AudioOffset is where the audio payload starts.
	AudioOffset int64

	reader *bufio.Reader
}

// Payload returns the remaining audio payload. It may be consumed only once.
func (c *Container) Payload() io.Reader {
	return c.reader
}

// HasMeta reports whether the container carries a metadata block.
func (c *Container) HasMeta() bool {
	return len(c.MetaBlock.Data) > 0
}

type containerReader struct {
	r   *bufio.Reader
	pos int64
}

func readErr(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated container at %s", ErrFormat, what)
	}
	return fmt.Errorf("%w: read %s: %w", ErrIO, what, err)
}

func (cr *containerReader) skip(what string, size int) error {
	n, err := cr.r.Discard(size)
	cr.pos += int64(n)
	if err != nil {
		return readErr(what, err)
	}
	return nil
}

// readBytes grows its buffer with the data actually read, so a forged length
// prefix costs no more memory than the file holds.
func (cr *containerReader) readBytes(what string, size uint32) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.CopyN(&buf, cr.r, int64(size))
	cr.pos += n
	if err != nil {
		return nil, readErr(what, err)
	}
	return buf.Bytes(), nil
}

func (cr *containerReader) readUint32(what string) (uint32, error) {
	var buf [LeadingSize]byte
	n, err := io.ReadFull(cr.r, buf[:])
	cr.pos += int64(n)
	if err != nil {
		return 0, readErr(what, err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (cr *containerReader) readSection(what string, size uint32) (Section, error) {
	sec := Section{Offset: cr.pos}
	if size == 0 {
		return sec, nil
	}
	data, err := cr.readBytes(what, size)
	if err != nil {
		return sec, err
	}
	sec.Data = data
	return sec, nil
}

// ParseContainer verifies the magic header and reads every section in front of
// the audio payload.
func ParseContainer(r io.Reader) (*Container, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, BufferSize)
	}
	cr := &containerReader{r: br}

	magic := make([]byte, MagicHeaderSize)
	n, err := io.ReadFull(br, magic)
	cr.pos += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: not ncm file", ErrFormat)
		}
		return nil, fmt.Errorf("%w: read magic header: %w", ErrIO, err)
	}
	if !bytes.Equal(magic, MagicHeader[:]) {
		return nil, fmt.Errorf("%w: not ncm file", ErrFormat)
	}

	c := &Container{reader: br}
	if err = cr.skip("reserved", reservedAfterMagic); err != nil {
		return nil, err
	}

	size, err := cr.readUint32("key size")
	if err != nil {
		return nil, err
	}
	if c.KeyBlock, err = cr.readSection("key block", size); err != nil {
		return nil, err
	}

	size, err = cr.readUint32("meta size")
	if err != nil {
		return nil, err
	}
	if c.MetaBlock, err = cr.readSection("meta block", size); err != nil {
		return nil, err
	}

	if err = cr.skip("reserved", reservedAfterMeta); err != nil {
		return nil, err
	}

	if c.ImageSpace, err = cr.readUint32("image space"); err != nil {
		return nil, err
	}
	size, err = cr.readUint32("image size")
	if err != nil {
		return nil, err
	}
	if c.Image, err = cr.readSection("image", size); err != nil {
		return nil, err
	}
	if c.ImageSpace > size {
		if err = cr.skip("image padding", int(c.ImageSpace-size)); err != nil {
			return nil, err
		}
	}

	c.AudioOffset = cr.pos
	return c, nil
}
