// Package s3m loads Scream Tracker 3 modules via parapointers (16-byte
// aligned file offsets stored as little-endian words), per spec §4.5
// item 5. Pattern rows are a tagged byte stream; this loader decodes them
// eagerly into the common GridData shape rather than re-parsing the byte
// stream on every playback tick.
package s3m

import (
	"fmt"

	"github.com/trackerplay/oxdz/format"
	"github.com/trackerplay/oxdz/module"
	"github.com/trackerplay/oxdz/oxdzerr"
)

func init() {
	format.Register(&Loader{})
}

// Loader parses the "SCRM" signature Scream Tracker 3 writes at 0x2c,
// gated on the type byte at 0x1d being 16.
type Loader struct{}

func (l *Loader) Name() string { return "Scream Tracker 3" }

func (l *Loader) Probe(b []byte, hint string) (format.ProbeInfo, error) {
	if len(b) < 256 {
		return format.ProbeInfo{}, oxdzerr.Formatf("file too short (%d)", len(b))
	}
	typ := b[0x1d]
	magic := string(b[0x2c : 0x2c+4])
	if typ != 16 || magic != "SCRM" {
		return format.ProbeInfo{}, oxdzerr.Formatf("bad magic %q", magic)
	}
	return format.ProbeInfo{Format: module.FormatS3M, Title: readPaddedString(b, 0, 28)}, nil
}

func (l *Loader) Load(b []byte, info format.ProbeInfo) (*module.Module, error) {
	if info.Format != module.FormatS3M {
		return nil, oxdzerr.Formatf("unsupported format")
	}

	songName := readPaddedString(b, 0, 28)
	ordNum := int(le16(b, 0x20))
	insNum := int(le16(b, 0x22))
	patNum := int(le16(b, 0x24))
	cwtV := int(le16(b, 0x28))
	ffi := int(le16(b, 0x2a))

	if 0x40+32 > len(b) {
		return nil, oxdzerr.Formatf("truncated channel settings")
	}
	chSettings := b[0x40 : 0x40+32]

	if 0x60+ordNum > len(b) {
		return nil, oxdzerr.Formatf("truncated orders")
	}
	orders := append([]byte(nil), b[0x60:0x60+ordNum]...)

	ofs := 0x60 + ordNum
	insPP := make([]int, insNum)
	for i := 0; i < insNum; i++ {
		if ofs+2 > len(b) {
			return nil, oxdzerr.Formatf("truncated instrument parapointer table")
		}
		insPP[i] = int(le16(b, ofs)) * 16
		ofs += 2
	}

	patPP := make([]int, patNum)
	for i := 0; i < patNum; i++ {
		if ofs+2 > len(b) {
			return nil, oxdzerr.Formatf("truncated pattern parapointer table")
		}
		patPP[i] = int(le16(b, ofs)) * 16
		ofs += 2
	}

	numChn := 0
	for i := 0; i < 32; i++ {
		if chSettings[i] == 0xff {
			continue
		}
		numChn = i
	}
	numChn++
	if numChn < 1 {
		numChn = 1
	}

	gd := module.NewGridData(songName, numChn)
	instruments := make([]module.Instrument, insNum)
	samples := make([]module.Sample, insNum)
	for i := 0; i < insNum; i++ {
		pp := insPP[i]
		if pp == 0 || pp+0x50 > len(b) {
			instruments[i] = &module.AmigaInstrument{SampleIndex: i + 1}
			samples[i] = module.Sample{Number: i + 1}
			continue
		}
		ityp := b[pp]
		memseg := int(le16(b, pp+0x0e)) | int(b[pp+0x0d])<<16
		length := int(le32lohi(b, pp+0x10))
		loopBeg := int(le32lohi(b, pp+0x14))
		loopEnd := int(le32lohi(b, pp+0x18))
		vol := int(b[pp+0x1c])
		flags := int(b[pp+0x1f])
		c2spd := int(le32lohi(b, pp+0x20))
		name := readPaddedString(b, pp+0x30, 28)

		instruments[i] = &module.AmigaInstrument{
			Name:         name,
			SizeWords:    length / 2,
			Volume:       vol,
			RepeatOffset: loopBeg,
			RepeatLength: loopEnd - loopBeg,
			SampleIndex:  i + 1,
		}

		s := module.Sample{
			Number:    i + 1,
			Name:      name,
			Frames:    length,
			Rate:      c2spd,
			LoopStart: loopBeg,
			LoopEnd:   loopEnd,
		}
		if ityp == 1 && length > 0 {
			if flags&0x04 != 0 {
				s.Type = module.Sample16
			} else {
				s.Type = module.Sample8
			}
		}
		if loopEnd > loopBeg {
			s.HasLoop = true
		}

		sampleOfs := memseg << 4
		sampleSize := length
		if flags&0x04 != 0 {
			sampleSize *= 2
		}
		end := sampleOfs + sampleSize
		if end > len(b) {
			end = len(b)
		}
		if s.Type != module.SampleEmpty && end > sampleOfs {
			s.Store(b[sampleOfs:end])
			if ffi != 1 {
				s.ToSigned()
			}
		} else {
			s.Store(nil)
		}
		samples[i] = s
	}
	gd.SetInstruments(instruments)

	for p := 0; p < patNum; p++ {
		pp := patPP[p]
		if pp == 0 || pp+2 > len(b) {
			gd.AddPattern(64)
			continue
		}
		plen := int(le16(b, pp))
		end := pp + 2 + plen
		if end > len(b) {
			end = len(b)
		}
		decodeRows(gd, b[pp+2:end], numChn)
	}
	gd.SetOrders(orders)
	gd.NormalizeOrders()

	verMajor := (cwtV & 0xf00) >> 8
	verMinor := cwtV & 0x0ff
	var creator string
	switch cwtV >> 12 {
	case 1:
		creator = fmt.Sprintf("Scream Tracker %d.%02x", verMajor, verMinor)
	case 2:
		creator = fmt.Sprintf("Imago Orpheus %d.%02x", verMajor, verMinor)
	case 3:
		switch cwtV {
		case 0x3216:
			creator = "Impulse Tracker 2.14v3"
		case 0x3217:
			creator = "Impulse Tracker 2.14v5"
		default:
			creator = fmt.Sprintf("Impulse Tracker %d.%02x", verMajor, verMinor)
		}
	case 4:
		if cwtV != 0x4100 {
			creator = fmt.Sprintf("Schism Tracker %d.%02x", verMajor, verMinor)
		} else {
			creator = "BeRoTracker 1.00"
		}
	case 5:
		creator = fmt.Sprintf("OpenMPT %d.%02x", verMajor, verMinor)
	case 6:
		creator = fmt.Sprintf("BeRoTracker %d.%02x", verMajor, verMinor)
	default:
		creator = fmt.Sprintf("unknown (%d.%02x)", verMajor, verMinor)
	}

	globalVol := int(b[0x30])
	initialSpeed := int(b[0x31])
	initialTempo := int(b[0x32])

	m := &module.Module{
		Format:       module.FormatS3M,
		Description:  "Scream Tracker 3 S3M",
		Creator:      creator,
		Channels:     numChn,
		PlayerID:     "st3",
		InitialSpeed: initialSpeed,
		InitialTempo: initialTempo,
		GlobalVolume: globalVol,
		Samples:      samples,
		Data:         gd,
	}
	return m, nil
}

// decodeRows unpacks an S3M pattern's tagged byte stream into 64 dense
// rows and appends them to gd as one new pattern.
func decodeRows(gd *module.GridData, b []byte, numChn int) {
	pi := gd.AddPattern(64)
	i := 0
	for row := 0; row < 64; row++ {
		for i < len(b) {
			tag := b[i]
			i++
			if tag == 0 {
				break
			}
			chn := int(tag & 0x1f)

			var note, ins, vol int
			var cmd, param byte
			vol = module.NoNoteVolume

			if tag&0x20 != 0 {
				if i+2 > len(b) {
					break
				}
				noteByte := b[i]
				insByte := b[i+1]
				i += 2
				switch noteByte {
				case 0xff:
					note = 0
				case 0xfe:
					note = module.NoteKeyOff
				default:
					octave := int(noteByte >> 4)
					semitone := int(noteByte & 0x0f)
					note = 48 + (octave-3)*12 + semitone
				}
				ins = int(insByte)
			}
			if tag&0x40 != 0 {
				if i+1 > len(b) {
					break
				}
				vol = int(b[i])
				i++
			}
			if tag&0x80 != 0 {
				if i+2 > len(b) {
					break
				}
				cmd = b[i]
				param = b[i+1]
				i += 2
			}

			if chn < numChn {
				gd.SetEventAt(pi, row, chn, module.Event{
					Note:       note,
					Instrument: ins,
					Volume:     vol,
					Effect:     cmd,
					Param:      param,
				})
			}
		}
	}
}

func readPaddedString(b []byte, ofs, n int) string {
	if ofs+n > len(b) {
		n = len(b) - ofs
	}
	if n <= 0 {
		return ""
	}
	raw := b[ofs : ofs+n]
	end := len(raw)
	for end > 0 && raw[end-1] == 0 {
		end--
	}
	out := make([]byte, 0, end)
	for _, c := range raw[:end] {
		if c == 0 {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

func le16(b []byte, ofs int) uint16 {
	return uint16(b[ofs]) | uint16(b[ofs+1])<<8
}

func le32lohi(b []byte, ofs int) uint32 {
	lo := uint32(le16(b, ofs))
	hi := uint32(le16(b, ofs+2))
	return (hi << 16) | lo
}
