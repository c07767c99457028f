package tagger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bogem/id3v2"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"

	"github.com/jdxj/ncmconv/internal/cover"
	"github.com/jdxj/ncmconv/internal/ncm"
)

var ErrUnsupportedFormat = errors.New("unsupported format")

const coverDescription = "Front cover"

// Writer embeds title, artist, album and at most one front cover picture.
type Writer struct{}

func New() *Writer {
	return &Writer{}
}

func (w *Writer) Write(path string, meta *ncm.Meta, pic *cover.Image) error {
	switch format := meta.MustFormat(); format {
	case ncm.FormatMP3:
		return w.writeMp3(path, meta, pic)
	case ncm.FormatFLAC:
		return w.writeFlac(path, meta, pic)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func (w *Writer) writeMp3(path string, meta *ncm.Meta, pic *cover.Image) error {
	mp3File, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer func() {
		_ = mp3File.Close()
	}()

	mp3File.SetDefaultEncoding(id3v2.EncodingUTF8)
	mp3File.SetTitle(meta.MustMusicName())
	mp3File.SetArtist(meta.MustArtist())
	mp3File.SetAlbum(meta.MustAlbum())

	if pic != nil {
		mp3File.DeleteFrames(mp3File.CommonID("Attached picture"))
		mp3File.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    pic.MIME,
			PictureType: id3v2.PTFrontCover,
			Description: coverDescription,
			Picture:     pic.Data,
		})
	}
	return mp3File.Save()
}

func (w *Writer) writeFlac(path string, meta *ncm.Meta, pic *cover.Image) error {
	flacFile, err := flac.ParseFile(path)
	if err != nil {
		return err
	}

	var (
		vcIndex = -1
		vc      *flacvorbis.MetaDataBlockVorbisComment
		blocks  = make([]*flac.MetaDataBlock, 0, len(flacFile.Meta)+1)
	)
	for _, block := range flacFile.Meta {
		switch block.Type {
		case flac.VorbisComment:
			vc, err = flacvorbis.ParseFromMetaDataBlock(*block)
			if err != nil {
				return err
			}
			vcIndex = len(blocks)
		case flac.Picture:
			if pic != nil {
				continue
			}
		}
		blocks = append(blocks, block)
	}

	if vc == nil {
		vc = flacvorbis.New()
	}
	vc.Comments = withoutFields(vc.Comments, flacvorbis.FIELD_TITLE, flacvorbis.FIELD_ARTIST, flacvorbis.FIELD_ALBUM)
	_ = vc.Add(flacvorbis.FIELD_TITLE, meta.MustMusicName())
	_ = vc.Add(flacvorbis.FIELD_ARTIST, meta.MustArtist())
	_ = vc.Add(flacvorbis.FIELD_ALBUM, meta.MustAlbum())
	mdb := vc.Marshal()
	if vcIndex >= 0 {
		blocks[vcIndex] = &mdb
	} else {
		blocks = append(blocks, &mdb)
	}

	if pic != nil {
		p, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, coverDescription, pic.Data, pic.MIME)
		if err != nil {
			return err
		}
		pmdb := p.Marshal()
		blocks = append(blocks, &pmdb)
	}

	flacFile.Meta = blocks
	return flacFile.Save(path)
}

// withoutFields drops vorbis comments ("KEY=value") whose key is in fields.
func withoutFields(comments []string, fields ...string) []string {
	kept := comments[:0]
	for _, c := range comments {
		drop := false
		for _, f := range fields {
			if len(c) > len(f) && c[len(f)] == '=' && strings.EqualFold(c[:len(f)], f) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, c)
		}
	}
	return kept
}
