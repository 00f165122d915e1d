package domain

import "errors"

var ErrUnknownMode = errors.New("unknown mode")

// Mode is the media type of a session.
type Mode string

const (
	ModeText  Mode = "text"
	ModeAudio Mode = "audio"
	ModeVideo Mode = "video"
)

// DefaultMode is used when a client omits the mode or sends an unknown one.
const DefaultMode = ModeVideo

var modeRank = map[Mode]int{
	ModeText:  0,
	ModeAudio: 1,
	ModeVideo: 2,
}

func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if _, ok := modeRank[m]; !ok {
		return "", ErrUnknownMode
	}
	return m, nil
}

// Richer reports whether m carries more media than other (text < audio < video).
func (m Mode) Richer(other Mode) bool {
	a, okA := modeRank[m]
	b, okB := modeRank[other]
	return okA && okB && a > b
}

func (m Mode) Valid() bool {
	_, ok := modeRank[m]
	return ok
}
