// Package mk loads 4/6/8/variable-channel Amiga "M.K." family modules
// (Protracker and its many compatible dialects), per spec §4.5 item 1 and
// the fingerprinting pass of §4.6.
package mk

import (
	"strings"

	"github.com/trackerplay/oxdz/format"
	"github.com/trackerplay/oxdz/module"
	"github.com/trackerplay/oxdz/oxdzerr"
	"github.com/trackerplay/oxdz/period"
)

func init() {
	format.Register(&Loader{})
}

// Loader parses the M.K./xCHN/xxCH/FLT magic family.
type Loader struct{}

func (l *Loader) Name() string { return "Amiga Protracker/compatible" }

func (l *Loader) Probe(b []byte, hint string) (format.ProbeInfo, error) {
	if len(b) < 1084 {
		return format.ProbeInfo{}, oxdzerr.Formatf("file too short (%d)", len(b))
	}
	magic := string(b[1080:1084])

	switch {
	case magic == "M.K." || magic == "M!K!" || magic == "M&K!" || magic == "NSMS",
		magic == "6CHN" || magic == "8CHN",
		magic == "FLT4" || magic == "FLT8":
		return format.ProbeInfo{Format: module.FormatMOD, Title: readPaddedString(b, 0, 20)}, nil
	}

	if len(magic) == 4 && magic[2] == 'C' && magic[3] == 'H' && isDigit(magic[0]) && isDigit(magic[1]) {
		return format.ProbeInfo{Format: module.FormatMOD, Title: readPaddedString(b, 0, 20)}, nil
	}

	return format.ProbeInfo{}, oxdzerr.Formatf("bad magic %q", magic)
}

func (l *Loader) Load(b []byte, info format.ProbeInfo) (*module.Module, error) {
	if info.Format != module.FormatMOD {
		return nil, oxdzerr.Formatf("unsupported format")
	}
	if len(b) < 1084 {
		return nil, oxdzerr.Formatf("file too short (%d)", len(b))
	}

	songName := readPaddedString(b, 0, 20)

	type rawIns struct {
		name                      string
		size, finetune, volume    int
		repeat, replen            int
	}
	ins := make([]rawIns, 31)
	smpSize := 0
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
		smpSize += ins[i].size * 2
	}

	songLength := int(b[950])
	restart := int(b[951])
	if 952+128 > len(b) {
		return nil, oxdzerr.Formatf("truncated order table")
	}
	orders := append([]byte(nil), b[952:952+128]...)
	magic := string(b[1080:1084])

	chn := channelsFromMagic(magic)

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

	trackerID := Unknown
	dataSize := 1084 + 256*pat*chn + smpSize

	if dataSize+4 < len(b) && string(b[dataSize:dataSize+4]) == "FLEX" {
		trackerID = FlexTrax
	}

	if magic == "M.K." && dataSize+1024*pat == len(b) {
		chn = 8
		trackerID = ModsGrave
	}

	patStart := 1084
	patBytes := 256 * chn * pat
	if patStart+patBytes > len(b) {
		return nil, oxdzerr.Formatf("truncated pattern data")
	}
	patData := b[patStart : patStart+patBytes]

	// raw[p][r][c] holds the unconverted period/cmd cells the fingerprinter
	// needs; it is discarded after Identify runs.
	raw := make([]rawEvent, pat*64*4)
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

				if c < 4 {
					raw[p*256+r*4+c] = rawEvent{period: prd, ins: insNum, cmd: cmd, cmdlo: cmdlo}
				}

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

	if trackerID == Unknown {
		fpIns := make([]fpInstrument, len(ins))
		for i, v := range ins {
			fpIns[i] = fpInstrument{name: v.name, volume: v.volume, size: v.size, replen: v.replen}
		}
		trackerID = Identify(fpData{
			magic:       magic,
			restart:     restart,
			numPatterns: pat,
			channels:    chn,
			instruments: fpIns,
			cells: func(p, r, c int) rawEvent {
				return raw[p*256+r*4+c]
			},
		})
	}

	creator := trackerID.String()
	playerID := trackerID.PlayerID()

	if playerID == "pt2" || playerID == "nt" {
		if chn > 8 {
			playerID = "ft2"
		} else if chn > 4 {
			playerID = "ft"
		}
	}

	m := &module.Module{
		Format:       module.FormatMOD,
		Description:  magic + " module",
		Creator:      creator,
		Channels:     chn,
		PlayerID:     playerID,
		InitialSpeed: 6,
		InitialTempo: 125,
		GlobalVolume: 64,
		Samples:      samples,
		Data:         gd,
	}
	return m, nil
}

// finetuneRate maps an Amiga finetune nibble to a C4/C3 playback rate in Hz
// from a fixed 16-entry table indexed by the nibble (negative values wrap
// to 8..15); values outside -16..15 give 8363.
func finetuneRate(finetune int) int {
	// Looked up rather than computed with math.Pow per sample to avoid
	// floating point drift across the 16 possible finetunes.
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

func channelsFromMagic(magic string) int {
	if magic == "FLT8" {
		return 8
	}
	if len(magic) == 4 && isDigit(magic[0]) && isDigit(magic[1]) && magic[2:] == "CH" {
		return int(magic[0]-'0')*10 + int(magic[1]-'0')
	}
	if len(magic) == 4 && isDigit(magic[0]) && magic[1:] == "CHN" {
		return int(magic[0] - '0')
	}
	return 4
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
	return strings.TrimRight(string(raw[:end]), " \x00")
}

func be16(b []byte, ofs int) uint16 {
	return uint16(b[ofs])<<8 | uint16(b[ofs+1])
}
