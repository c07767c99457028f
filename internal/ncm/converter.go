package ncm

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jdxj/ncmconv/internal/cover"
)

// Cover statuses reported for a converted file.
const (
	CoverNone     = "None"
	CoverFailed   = "Failed"
	coverEmbedded = "Embedded"
)

// CoverSource looks up cover art by track id.
type CoverSource interface {
	Fetch(ctx context.Context, musicID int64) ([]byte, error)
}

// TagWriter embeds metadata and an optional picture into a finished output file.
type TagWriter interface {
	Write(path string, meta *Meta, pic *cover.Image) error
}

// Output describes a successfully converted file.
type Output struct {
	Input string
	Path  string
	Meta  *Meta
	Size  int64
	// Cover is one of CoverNone, CoverFailed, "WxH" or "Embedded WxH".
	Cover string
}

// Converter turns ncm files into plain audio files. A Converter holds no
// per-file state and may be shared by concurrent Convert calls.
type Converter struct {
	// OutputDir is where results are written. Empty means next to the input.
	OutputDir string
	ChunkSize int

	Cover CoverSource
	Tags  TagWriter
	Log   *logrus.Entry
}

func (c *Converter) logger() *logrus.Entry {
	if c.Log != nil {
		return c.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// Convert runs the whole pipeline for one input file.
func (c *Converter) Convert(ctx context.Context, input string) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fn := &fncm{
		conv:  c,
		ctx:   ctx,
		input: input,
		log:   c.logger().WithField("file", filepath.Base(input)),
		cover: CoverNone,
	}
	return fn.run()
}

// fncm carries the state of one conversion. Every step is a no-op once err is set.
type fncm struct {
	conv  *Converter
	ctx   context.Context
	input string
	log   *logrus.Entry

	ncm       *os.File
	container *Container
	keystream Keystream
	meta      *Meta

	tmpName  string
	fileName string
	size     int64
	cover    string

	err error
}

// run 主流程
func (fn *fncm) run() (*Output, error) {
	fn.openNCM()
	fn.parseContainer()
	fn.deriveKeystream()
	fn.decryptMeta()
	fn.saveMusic()
	fn.verify()
	fn.finalize()
	fn.close()
	if fn.err != nil {
		fn.cleanup()
		return nil, fn.err
	}

	fn.embedMeta()
	fn.log.WithField("output", fn.fileName).Debugf("converted %d bytes", fn.size)
	return &Output{
		Input: fn.input,
		Path:  fn.fileName,
		Meta:  fn.meta,
		Size:  fn.size,
		Cover: fn.cover,
	}, nil
}

func (fn *fncm) openNCM() {
	fn.ncm, fn.err = os.Open(fn.input)
	if fn.err != nil {
		fn.err = fmt.Errorf("%w: %w", ErrIO, fn.err)
	}
}

func (fn *fncm) close() {
	if fn.ncm != nil {
		_ = fn.ncm.Close()
	}
}

func (fn *fncm) cleanup() {
	if fn.tmpName == "" {
		return
	}
	if err := os.Remove(fn.tmpName); err != nil && !os.IsNotExist(err) {
		fn.log.WithError(err).Warnf("failed removing partial output %s", fn.tmpName)
	}
}

func (fn *fncm) parseContainer() {
	if fn.err != nil {
		return
	}
	fn.container, fn.err = ParseContainer(bufio.NewReaderSize(fn.ncm, BufferSize))
}

func (fn *fncm) deriveKeystream() {
	if fn.err != nil {
		return
	}

	key, err := RecoverKey(fn.container.KeyBlock.Data)
	if err != nil {
		fn.err = err
		return
	}
	fn.keystream, fn.err = NewKeystream(key)
	for i := range key {
		key[i] = 0
	}
}

func (fn *fncm) decryptMeta() {
	if fn.err != nil {
		return
	}

	if !fn.container.HasMeta() {
		fn.meta = DefaultMeta(fn.stem())
		fn.log.Debug("no metadata block, using defaults")
		return
	}
	fn.meta, fn.err = DecodeMeta(fn.container.MetaBlock.Data)
}

func (fn *fncm) stem() string {
	base := filepath.Base(fn.input)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (fn *fncm) outputDir() string {
	if fn.conv.OutputDir != "" {
		return fn.conv.OutputDir
	}
	return filepath.Dir(fn.input)
}

func (fn *fncm) saveMusic() {
	if fn.err != nil {
		return
	}

	dir := fn.outputDir()
	fn.fileName = filepath.Join(dir, fmt.Sprintf("%s.%s", fn.stem(), fn.meta.MustFormat()))
	fn.tmpName = filepath.Join(dir, fmt.Sprintf(".%s.%s.part", fn.stem(), uuid.NewString()))

	f, err := os.OpenFile(fn.tmpName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		fn.tmpName = ""
		fn.err = fmt.Errorf("%w: %w", ErrIO, err)
		return
	}
	writer := bufio.NewWriterSize(f, BufferSize)

	fn.size, fn.err = DecryptStream(writer, fn.container.Payload(), fn.keystream, fn.conv.ChunkSize)
	if err = writer.Flush(); err != nil && fn.err == nil {
		fn.err = fmt.Errorf("%w: %w", ErrIO, err)
	}
	if err = f.Sync(); err != nil && fn.err == nil {
		fn.err = fmt.Errorf("%w: %w", ErrIO, err)
	}
	if err = f.Close(); err != nil && fn.err == nil {
		fn.err = fmt.Errorf("%w: %w", ErrIO, err)
	}
}

func (fn *fncm) verify() {
	if fn.err != nil {
		return
	}
	fn.err = VerifyFile(fn.tmpName, fn.meta.MustFormat())
}

func (fn *fncm) finalize() {
	if fn.err != nil {
		return
	}
	if err := os.Rename(fn.tmpName, fn.fileName); err != nil {
		fn.err = fmt.Errorf("%w: %w", ErrIO, err)
		return
	}
	fn.tmpName = ""
}

// embedMeta never fails the conversion, problems only downgrade the cover status.
func (fn *fncm) embedMeta() {
	if fn.conv.Tags == nil {
		return
	}

	var (
		data        []byte
		embedded    bool
		fetchFailed bool
		pic         *cover.Image
		err         error
	)
	if id := int64(fn.meta.MusicID); id != 0 && fn.conv.Cover != nil {
		data, err = fn.conv.Cover.Fetch(fn.ctx, id)
		if err != nil {
			fn.log.WithError(err).Warn("failed fetching cover, falling back to embedded image")
			fetchFailed = true
			data = nil
		}
	}
	if len(data) == 0 && len(fn.container.Image.Data) > 0 {
		data = fn.container.Image.Data
		embedded = true
	}
	if len(data) == 0 && fetchFailed {
		fn.cover = CoverFailed
	}

	if len(data) > 0 {
		pic, err = cover.Probe(data)
		if err != nil {
			fn.log.WithError(err).Warn("unusable cover image")
			fn.cover = CoverFailed
		} else if embedded {
			fn.cover = fmt.Sprintf("%s %dx%d", coverEmbedded, pic.Width, pic.Height)
		} else {
			fn.cover = fmt.Sprintf("%dx%d", pic.Width, pic.Height)
		}
	}

	if err = fn.conv.Tags.Write(fn.fileName, fn.meta, pic); err != nil {
		fn.log.WithError(err).Warn("failed embedding tags")
		fn.cover = CoverFailed
	}
}
