// Package fest loads His Master's Noise modules, per spec §4.5.2 and
// §4.7.7: a 4-channel M.K.-shaped module whose "Mupp" instruments don't
// carry sample data of their own but instead repurpose one raw pattern's
// 1024 bytes as a wavetable of 32 chip waveforms of 32 bytes each.
package fest

import (
	"fmt"

	"github.com/trackerplay/oxdz/format"
	"github.com/trackerplay/oxdz/module"
	"github.com/trackerplay/oxdz/oxdzerr"
	"github.com/trackerplay/oxdz/period"
)

func init() {
	format.Register(&Loader{})
}

// Loader parses the "FEST" magic His Master's Noise writes at the same
// offset (1080) as the M.K. family, but the instrument/sample layout
// diverges enough (Mupp wavetable instruments) to warrant its own loader
// rather than a special case inside mk.
type Loader struct{}

func (l *Loader) Name() string { return "His Master's Noise" }

func (l *Loader) Probe(b []byte, hint string) (format.ProbeInfo, error) {
	if len(b) < 1084 {
		return format.ProbeInfo{}, oxdzerr.Formatf("file too short (%d)", len(b))
	}
	if string(b[1080:1084]) != "FEST" {
		return format.ProbeInfo{}, oxdzerr.Formatf("bad magic")
	}
	return format.ProbeInfo{Format: module.FormatFEST, Title: readPaddedString(b, 0, 20)}, nil
}

func (l *Loader) Load(b []byte, info format.ProbeInfo) (*module.Module, error) {
	if info.Format != module.FormatFEST {
		return nil, oxdzerr.Formatf("unsupported format")
	}

	songName := readPaddedString(b, 0, 20)
	const chn = 4

	type rawIns struct {
		name                   string
		size, finetune, volume int
		repeat, replen         int
	}
	ins := make([]rawIns, 31)
	for i := 0; i < 31; i++ {
		ofs := 20 + i*30
		if ofs+30 > len(b) {
			return nil, oxdzerr.Formatf("truncated instrument table")
		}
		ins[i] = rawIns{
			name:     readPaddedString(b, ofs, 22),
			size:     int(be16(b, ofs+22)),
			finetune: int(int8(b[ofs+24])),
			volume:   int(b[ofs+25]),
			repeat:   int(be16(b, ofs+26)),
			replen:   int(be16(b, ofs+28)),
		}
	}

	songLength := int(b[950])
	restart := int(b[951])
	if 952+128 > len(b) {
		return nil, oxdzerr.Formatf("truncated order table")
	}
	orders := append([]byte(nil), b[952:952+128]...)

	pat := 0
	n := songLength
	if n > 128 {
		n = 128
	}
	for _, o := range orders[:n] {
		if int(o) > pat {
			pat = int(o)
		}
	}
	pat++

	patStart := 1084
	patBytes := 256 * chn * pat
	if patStart+patBytes > len(b) {
		return nil, oxdzerr.Formatf("truncated pattern data")
	}
	patData := b[patStart : patStart+patBytes]

	gd := module.NewGridData(songName, chn)
	instruments := make([]module.Instrument, 31)
	for i := range instruments {
		instruments[i] = &module.AmigaInstrument{
			Name:         ins[i].name,
			SizeWords:    ins[i].size,
			FineTune:     ins[i].finetune,
			Volume:       ins[i].volume,
			RepeatOffset: ins[i].repeat,
			RepeatLength: ins[i].replen,
			SampleIndex:  i + 1,
		}
	}
	gd.SetInstruments(instruments)

	for p := 0; p < pat; p++ {
		pi := gd.AddPattern(64)
		for r := 0; r < 64; r++ {
			for c := 0; c < chn; c++ {
				ofs := p*256*chn + r*4*chn + c*4
				cell := patData[ofs : ofs+4]
				prd := (int(cell[0]&0x0f) << 8) | int(cell[1])
				insNum := int(cell[0]&0xf0) | int(cell[2]&0xf0>>4)
				cmd := int(cell[2] & 0x0f)
				cmdlo := int(cell[3])

				note := 0
				if prd != 0 {
					note = period.PeriodToNoteAll(prd)
				}
				gd.SetEventAt(pi, r, c, module.Event{
					Note:       note,
					Instrument: insNum,
					Volume:     module.NoNoteVolume,
					Effect:     byte(cmd),
					Param:      byte(cmdlo),
				})
			}
		}
	}
	gd.SetOrders(orders)
	gd.SetRestartPos(restart)
	gd.NormalizeOrders()

	ofs := patStart + patBytes
	samples := make([]module.Sample, 31)
	for i := 0; i < 31; i++ {
		// A "Mupp" instrument borrows one of the module's own raw patterns
		// as a 28-waveform x 32-sample wavetable chip instrument instead of
		// carrying PCM data after the pattern block, so its size and data
		// come from the pattern area, not the sample area that follows it.
		if len(ins[i].name) >= 5 && ins[i].name[:4] == "Mupp" {
			patNum := int(ins[i].name[4])
			muppOfs := 1084 + 1024*patNum
			// The whole 1024-byte block (32 waveforms of 32 bytes) is kept in
			// Data so the frame player can index into it at 32*waveform_index
			// per tick; Frames reports only the nominal 28 waveforms' worth,
			// matching the tracker's own declared instrument length.
			const blockSize = 32 * 32
			end := muppOfs + blockSize
			if end > len(b) {
				end = len(b)
			}
			s := module.Sample{
				Number:     i + 1,
				FileOffset: muppOfs,
				Frames:     28 * 32,
				Rate:       finetuneRate(ins[i].finetune),
				Name:       fmt.Sprintf("Mupp @%d", patNum),
			}
			if end > muppOfs {
				s.Type = module.Sample8
				s.Store(b[muppOfs:end])
			} else {
				s.Store(nil)
			}
			samples[i] = s
			continue
		}

		size := ins[i].size * 2
		s := module.Sample{
			Number:     i + 1,
			FileOffset: ofs,
			Frames:     size,
			Rate:       finetuneRate(ins[i].finetune),
			Name:       ins[i].name,
		}
		if size > 0 {
			s.Type = module.Sample8
		}
		if size > 0 && ins[i].replen > 1 {
			s.HasLoop = true
			s.LoopStart = ins[i].repeat * 2
			s.LoopEnd = (ins[i].repeat + ins[i].replen) * 2
		}
		end := ofs + size
		if end > len(b) {
			end = len(b)
		}
		if end > ofs {
			s.Store(b[ofs:end])
		} else {
			s.Store(nil)
		}
		samples[i] = s
		ofs += size
	}

	m := &module.Module{
		Format:       module.FormatFEST,
		Description:  "FEST module",
		Creator:      "His Master's NoiseTracker",
		Channels:     chn,
		PlayerID:     "hmn",
		InitialSpeed: 6,
		InitialTempo: 125,
		GlobalVolume: 64,
		Samples:      samples,
		Data:         gd,
	}
	return m, nil
}

// finetuneRate maps an Amiga finetune nibble to a C4/C3 playback rate in Hz.
func finetuneRate(finetune int) int {
	rates := [16]int{
		8287, 8363, 8440, 8517, 8594, 8671, 8748, 8825,
		7895, 7941, 8017, 8106, 8181, 8190, 8258, 8271,
	}
	idx := finetune
	if idx < 0 {
		idx += 16
	}
	if idx < 0 || idx >= 16 {
		return 8363
	}
	return rates[idx]
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
	return string(raw[:end])
}

func be16(b []byte, ofs int) uint16 {
	return uint16(b[ofs])<<8 | uint16(b[ofs+1])
}
