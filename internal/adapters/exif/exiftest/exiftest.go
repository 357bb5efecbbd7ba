// Package exiftest builds small JPEG and TIFF files carrying EXIF GPS and
// capture-time tags, for tests of the verification pipeline.
package exiftest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"github.com/samirrijal/civicconnect/internal/core/domain"
)

// Options selects which tags end up in the EXIF block. A nil GPS omits the
// GPS IFD and an empty DateTimeOriginal omits the Exif IFD.
type Options struct {
	GPS              *domain.RawGPS
	DateTimeOriginal string
}

const (
	tagMake             = 0x010F
	tagExifIFDPointer   = 0x8769
	tagGPSIFDPointer    = 0x8825
	tagDateTimeOriginal = 0x9003
	tagGPSLatitudeRef   = 0x0001
	tagGPSLatitude      = 0x0002
	tagGPSLongitudeRef  = 0x0003
	tagGPSLongitude     = 0x0004

	typeASCII     = 2
	typeLong      = 4
	typeRational  = 5
	typeSRational = 10
)

var order = binary.LittleEndian

// GPSAt returns the GPS block for a decimal coordinate, with seconds kept
// to a thousandth.
func GPSAt(lat, lng float64) *domain.RawGPS {
	latRef, lngRef := "N", "E"
	if lat < 0 {
		latRef, lat = "S", -lat
	}
	if lng < 0 {
		lngRef, lng = "W", -lng
	}
	return &domain.RawGPS{
		Latitude:     toDMS(lat),
		LatitudeRef:  latRef,
		Longitude:    toDMS(lng),
		LongitudeRef: lngRef,
	}
}

func toDMS(v float64) domain.Sexagesimal {
	deg := math.Floor(v)
	minF := (v - deg) * 60
	mins := math.Floor(minF)
	sec := math.Round((minF - mins) * 60 * 1000)
	return domain.Sexagesimal{
		Degrees: domain.Rational{Num: int64(deg), Den: 1},
		Minutes: domain.Rational{Num: int64(mins), Den: 1},
		Seconds: domain.Rational{Num: int64(sec), Den: 1000},
	}
}

// JPEG returns a tiny valid JPEG image with an APP1 EXIF segment.
func JPEG(opts Options) []byte {
	plain := PlainJPEG()
	payload := append([]byte("Exif\x00\x00"), TIFF(opts)...)

	var seg bytes.Buffer
	seg.Write([]byte{0xFF, 0xE1})
	_ = binary.Write(&seg, binary.BigEndian, uint16(len(payload)+2))
	seg.Write(payload)

	out := make([]byte, 0, len(plain)+seg.Len())
	out = append(out, plain[:2]...) // SOI
	out = append(out, seg.Bytes()...)
	return append(out, plain[2:]...)
}

// PlainJPEG returns a tiny valid JPEG image without any EXIF segment.
func PlainJPEG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 90, G: 90, B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}

type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	value []byte
}

// TIFF returns the little-endian TIFF structure that forms an EXIF payload.
func TIFF(opts Options) []byte {
	ifd0 := []entry{ascii(tagMake, "civicconnect")}
	if opts.DateTimeOriginal != "" {
		ifd0 = append(ifd0, entry{tag: tagExifIFDPointer, typ: typeLong, count: 1})
	}
	if opts.GPS != nil {
		ifd0 = append(ifd0, entry{tag: tagGPSIFDPointer, typ: typeLong, count: 1})
	}

	// Layout: header | IFD0 | Exif IFD | GPS IFD.
	next := uint32(8 + len(encodeIFD(0, ifd0)))

	var exifIFD, gpsIFD []byte
	if opts.DateTimeOriginal != "" {
		setPointer(ifd0, tagExifIFDPointer, next)
		exifIFD = encodeIFD(next, []entry{ascii(tagDateTimeOriginal, opts.DateTimeOriginal)})
		next += uint32(len(exifIFD))
	}
	if opts.GPS != nil {
		setPointer(ifd0, tagGPSIFDPointer, next)
		gpsIFD = encodeIFD(next, []entry{
			ascii(tagGPSLatitudeRef, opts.GPS.LatitudeRef),
			rationals(tagGPSLatitude, opts.GPS.Latitude),
			ascii(tagGPSLongitudeRef, opts.GPS.LongitudeRef),
			rationals(tagGPSLongitude, opts.GPS.Longitude),
		})
	}

	var buf bytes.Buffer
	buf.WriteString("II")
	_ = binary.Write(&buf, order, uint16(42))
	_ = binary.Write(&buf, order, uint32(8))
	buf.Write(encodeIFD(8, ifd0))
	buf.Write(exifIFD)
	buf.Write(gpsIFD)
	return buf.Bytes()
}

func setPointer(entries []entry, tag uint16, offset uint32) {
	for i := range entries {
		if entries[i].tag == tag {
			entries[i].value = order.AppendUint32(nil, offset)
		}
	}
}

func ascii(tag uint16, s string) entry {
	v := append([]byte(s), 0)
	return entry{tag: tag, typ: typeASCII, count: uint32(len(v)), value: v}
}

func rationals(tag uint16, dms domain.Sexagesimal) entry {
	parts := []domain.Rational{dms.Degrees, dms.Minutes, dms.Seconds}
	typ := uint16(typeRational)
	for _, p := range parts {
		if p.Num < 0 || p.Den < 0 {
			typ = typeSRational
		}
	}
	var v []byte
	for _, p := range parts {
		v = order.AppendUint32(v, uint32(int32(p.Num)))
		v = order.AppendUint32(v, uint32(int32(p.Den)))
	}
	return entry{tag: tag, typ: typ, count: 3, value: v}
}

// encodeIFD serialises one IFD starting at offset start, followed by the
// values that do not fit in the 4-byte entry slot.
func encodeIFD(start uint32, entries []entry) []byte {
	head := 2 + 12*len(entries) + 4
	var dir, data bytes.Buffer

	_ = binary.Write(&dir, order, uint16(len(entries)))
	for _, e := range entries {
		_ = binary.Write(&dir, order, e.tag)
		_ = binary.Write(&dir, order, e.typ)
		_ = binary.Write(&dir, order, e.count)

		value := e.value
		if value == nil {
			value = make([]byte, 4)
		}
		if len(value) <= 4 {
			slot := make([]byte, 4)
			copy(slot, value)
			dir.Write(slot)
			continue
		}
		_ = binary.Write(&dir, order, start+uint32(head)+uint32(data.Len()))
		data.Write(value)
		if data.Len()%2 == 1 {
			data.WriteByte(0)
		}
	}
	_ = binary.Write(&dir, order, uint32(0)) // no next IFD

	return append(dir.Bytes(), data.Bytes()...)
}
