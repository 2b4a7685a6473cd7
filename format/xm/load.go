// Package xm loads FastTracker 2 modules, per spec §4.5 item 6: a
// structured 60-byte-preamble header, variable-row-count patterns packed
// with a per-event tag byte, and richer instruments carrying volume/pan
// envelopes, autovibrato and a 96-entry note-to-sample map.
package xm

import (
	"fmt"

	"github.com/trackerplay/oxdz/format"
	"github.com/trackerplay/oxdz/module"
	"github.com/trackerplay/oxdz/oxdzerr"
)

func init() {
	format.Register(&Loader{})
}

// Loader parses the "Extended Module: " signature FastTracker 2 writes at
// offset 0.
type Loader struct{}

func (l *Loader) Name() string { return "FastTracker 2 XM" }

func (l *Loader) Probe(b []byte, hint string) (format.ProbeInfo, error) {
	if len(b) < 60 {
		return format.ProbeInfo{}, oxdzerr.Formatf("file too short (%d)", len(b))
	}
	if string(b[0:17]) != "Extended Module: " {
		return format.ProbeInfo{}, oxdzerr.Formatf("bad magic")
	}
	return format.ProbeInfo{Format: module.FormatXM, Title: readPaddedString(b, 17, 20)}, nil
}

func (l *Loader) Load(b []byte, info format.ProbeInfo) (*module.Module, error) {
	if info.Format != module.FormatXM {
		return nil, oxdzerr.Formatf("unsupported format")
	}
	if len(b) < 80 {
		return nil, oxdzerr.Formatf("file too short (%d)", len(b))
	}

	songName := readPaddedString(b, 17, 20)
	progName := readPaddedString(b, 38, 20)
	ver := le16(b, 58)

	headerSize := int(le32(b, 60))
	songLen := int(le16(b, 64))
	restart := int(le16(b, 66))
	chn := int(le16(b, 68))
	antPtn := int(le16(b, 70))
	antInstrs := int(le16(b, 72))
	flags := le16(b, 74)
	defTempo := int(le16(b, 76))
	defSpeed := int(le16(b, 78))

	tabLen := songLen
	if tabLen > 256 {
		tabLen = 256
	}
	if 80+tabLen > len(b) {
		return nil, oxdzerr.Formatf("truncated order table")
	}
	orders := append([]byte(nil), b[80:80+tabLen]...)

	ofs := 60 + headerSize
	if headerSize < 20 || ofs > len(b) {
		return nil, oxdzerr.Formatf("invalid header size %d", headerSize)
	}

	gd := module.NewGridData(songName, chn)

	for p := 0; p < antPtn; p++ {
		if ofs+9 > len(b) {
			return nil, oxdzerr.Formatf("truncated pattern header %d", p)
		}
		phSize := int(le32(b, ofs))
		packType := b[ofs+4]
		_ = packType
		rows := int(le16(b, ofs+5))
		dataSize := int(le16(b, ofs+7))
		if phSize < 9 {
			phSize = 9
		}

		dataStart := ofs + phSize
		dataEnd := dataStart + dataSize
		if dataEnd > len(b) {
			return nil, oxdzerr.Formatf("truncated pattern data %d", p)
		}

		if rows == 0 {
			rows = 64
		}
		pi := gd.AddPattern(rows)
		decodePattern(gd, pi, b[dataStart:dataEnd], rows, chn)

		ofs = dataEnd
	}

	var samples []module.Sample
	instruments := make([]module.Instrument, antInstrs)

	for ins := 0; ins < antInstrs; ins++ {
		if ofs+29 > len(b) {
			return nil, oxdzerr.Formatf("truncated instrument header %d", ins)
		}
		instrSize := int(le32(b, ofs))
		name := readPaddedString(b, ofs+4, 22)
		numSamp := int(le16(b, ofs+27))

		xi := &module.XMInstrument{Name: name}
		for i := range xi.SampleMap {
			xi.SampleMap[i] = -1
		}

		var sampHdrSize int
		var ta [96]byte
		if numSamp > 0 {
			if ofs+239+2 > len(b) {
				return nil, oxdzerr.Formatf("truncated extended instrument header %d", ins)
			}
			sampHdrSize = int(le32(b, ofs+29))
			copy(ta[:], b[ofs+33:ofs+33+96])

			var volPts, panPts [12]module.EnvPoint
			for i := 0; i < 12; i++ {
				volPts[i] = module.EnvPoint{X: int(le16(b, ofs+129+i*4)), Y: int(le16(b, ofs+129+i*4+2))}
				panPts[i] = module.EnvPoint{X: int(le16(b, ofs+177+i*4)), Y: int(le16(b, ofs+177+i*4+2))}
			}
			numVolPts := int(b[ofs+225])
			numPanPts := int(b[ofs+226])
			if numVolPts > 12 {
				numVolPts = 12
			}
			if numPanPts > 12 {
				numPanPts = 12
			}
			volSustain := int(b[ofs+227])
			volLoopStart := int(b[ofs+228])
			volLoopEnd := int(b[ofs+229])
			panSustain := int(b[ofs+230])
			panLoopStart := int(b[ofs+231])
			panLoopEnd := int(b[ofs+232])
			volType := b[ofs+233]
			panType := b[ofs+234]
			vibType := int(b[ofs+235])
			vibSweep := int(b[ofs+236])
			vibDepth := int(b[ofs+237])
			vibRate := int(b[ofs+238])
			fadeOut := int(le16(b, ofs+239))

			xi.VolEnv = module.Envelope{
				Points:    volPts[:numVolPts],
				Sustain:   volSustain,
				LoopStart: volLoopStart,
				LoopEnd:   volLoopEnd,
				Flags:     volType,
			}
			xi.PanEnv = module.Envelope{
				Points:    panPts[:numPanPts],
				Sustain:   panSustain,
				LoopStart: panLoopStart,
				LoopEnd:   panLoopEnd,
				Flags:     panType,
			}
			xi.FadeOut = fadeOut
			xi.Vibrato = module.AutoVibrato{Type: vibType, Sweep: vibSweep, Depth: vibDepth, Rate: vibRate}
		}
		if sampHdrSize <= 0 {
			sampHdrSize = 40
		}

		base := len(samples)
		xi.Samples = make([]module.XMSampleMapping, numSamp)

		samplesOfs := ofs + instrSize
		type sampHdr struct {
			length, loopStart, loopLen int
			volume, fineTune           int
			typ                        byte
			pan, relNote               int
			name                       string
		}
		hdrs := make([]sampHdr, numSamp)
		for s := 0; s < numSamp; s++ {
			so := samplesOfs + s*sampHdrSize
			if so+18 > len(b) {
				return nil, oxdzerr.Formatf("truncated sample header %d of instrument %d", s, ins)
			}
			hdrs[s] = sampHdr{
				length:    int(le32(b, so)),
				loopStart: int(le32(b, so+4)),
				loopLen:   int(le32(b, so+8)),
				volume:    int(b[so+12]),
				fineTune:  int(int8(b[so+13])),
				typ:       b[so+14],
				pan:       int(b[so+15]),
				relNote:   int(int8(b[so+16])),
				name:      readPaddedString(b, so+18, 22),
			}
		}

		dataOfs := samplesOfs + numSamp*sampHdrSize
		for s := 0; s < numSamp; s++ {
			h := hdrs[s]
			is16 := h.typ&0x10 != 0
			loopType := h.typ & 0x03

			rawLen := h.length
			frames := rawLen
			if is16 {
				frames /= 2
			}
			loopStart := h.loopStart
			loopLen := h.loopLen
			if is16 {
				loopStart /= 2
				loopLen /= 2
			}

			samp := module.Sample{
				Number:    base + s + 1,
				Name:      h.name,
				Frames:    frames,
				Rate:      8363,
				HasLoop:   loopType != 0,
				LoopStart: loopStart,
				LoopEnd:   loopStart + loopLen,
				Bidi:      loopType == 2,
			}
			if rawLen > 0 {
				if is16 {
					samp.Type = module.Sample16
				} else {
					samp.Type = module.Sample8
				}
			}

			end := dataOfs + rawLen
			if end > len(b) {
				end = len(b)
			}
			if samp.Type != module.SampleEmpty && end > dataOfs {
				samp.Store(decodeDelta(b[dataOfs:end], is16))
			} else {
				samp.Store(nil)
			}
			samples = append(samples, samp)
			dataOfs += rawLen

			xi.Samples[s] = module.XMSampleMapping{
				SampleIndex: base + s,
				RelNote:     h.relNote,
				FineTune:    h.fineTune,
				Pan:         h.pan,
			}
		}

		for n := 0; n < 96; n++ {
			if int(ta[n]) < numSamp {
				xi.SampleMap[n] = base + int(ta[n])
			}
		}

		instruments[ins] = xi
		ofs += instrSize
	}

	gd.SetInstruments(instruments)
	gd.SetOrders(orders)
	gd.SetRestartPos(restart)
	gd.NormalizeOrders()

	m := &module.Module{
		Format:       module.FormatXM,
		Description:  fmt.Sprintf("FastTracker %d.%02x module", ver>>8, ver&0xff),
		Creator:      progName,
		Channels:     chn,
		PlayerID:     "ft2",
		InitialSpeed: defSpeed,
		InitialTempo: defTempo,
		GlobalVolume: 64,
		LinearFreq:   flags&1 != 0,
		Samples:      samples,
		Data:         gd,
	}
	return m, nil
}

// decodePattern unpacks one XM pattern's per-event tag-byte stream into
// rows*chn dense cells. A tag byte with bit 0x80 set selects which of the
// five fields (note, instrument, volume, effect type, effect param) follow
// it; without the high bit the byte itself is the note and all five fields
// are present unconditionally.
func decodePattern(gd *module.GridData, pi int, b []byte, rows, chn int) {
	i := 0
	for r := 0; r < rows; r++ {
		for c := 0; c < chn; c++ {
			if i >= len(b) {
				return
			}
			tag := b[i]
			i++

			var note, instr, vol int
			var cmd, param byte
			vol = module.NoNoteVolume

			if tag&0x80 != 0 {
				if tag&0x01 != 0 && i < len(b) {
					note = int(b[i])
					i++
				}
				if tag&0x02 != 0 && i < len(b) {
					instr = int(b[i])
					i++
				}
				if tag&0x04 != 0 && i < len(b) {
					vol = int(b[i])
					i++
				}
				if tag&0x08 != 0 && i < len(b) {
					cmd = b[i]
					i++
				}
				if tag&0x10 != 0 && i < len(b) {
					param = b[i]
					i++
				}
			} else {
				note = int(tag)
				if i+3 < len(b) {
					instr = int(b[i])
					vol = int(b[i+1])
					cmd = b[i+2]
					param = b[i+3]
				}
				i += 4
			}

			if note == 97 {
				note = module.NoteKeyOff
			}

			gd.SetEventAt(pi, r, c, module.Event{
				Note:       note,
				Instrument: instr,
				Volume:     vol,
				Effect:     cmd,
				Param:      param,
			})
		}
	}
}

// decodeDelta reverses XM's delta-encoded sample storage: each stored value
// is the difference from the previous decoded frame, with an implicit zero
// predecessor for the first frame.
func decodeDelta(raw []byte, is16 bool) []byte {
	out := make([]byte, len(raw))
	if is16 {
		var prev int16
		for i := 0; i+1 < len(raw); i += 2 {
			d := int16(uint16(raw[i]) | uint16(raw[i+1])<<8)
			prev += d
			out[i] = byte(uint16(prev))
			out[i+1] = byte(uint16(prev) >> 8)
		}
		return out
	}
	var prev int8
	for i := 0; i < len(raw); i++ {
		prev += int8(raw[i])
		out[i] = byte(prev)
	}
	return out
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
	for end > 0 && (raw[end-1] == 0 || raw[end-1] == ' ') {
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

func le32(b []byte, ofs int) uint32 {
	return uint32(b[ofs]) | uint32(b[ofs+1])<<8 | uint32(b[ofs+2])<<16 | uint32(b[ofs+3])<<24
}
