// Package statusbar renders poll outcomes as a single status item and
// writes it in the line formats understood by common status bars.
package statusbar

import (
	"fmt"
	"math"
	"strconv"

	"github.com/marcus/stbar/internal/poller"
)

// Label is the fixed text every state starts with.
const Label = "Syncthing"

// Icon names the glyph shown in front of the label.
type Icon string

const (
	IconWarning Icon = "warning"
	IconError   Icon = "error"
	IconEdit    Icon = "edit"
	IconSync    Icon = "sync"
	IconCheck   Icon = "check"
)

// Tone is the background emphasis of the item.
type Tone int

const (
	ToneNone Tone = iota
	ToneWarning
	ToneError
)

func (t Tone) String() string {
	switch t {
	case ToneWarning:
		return "warning"
	case ToneError:
		return "error"
	default:
		return "none"
	}
}

// Item is one rendered status.
type Item struct {
	Mode    poller.Mode `json:"-"`
	State   string      `json:"state"`
	Icon    Icon        `json:"icon"`
	Text    string      `json:"text"`
	Tooltip string      `json:"tooltip"`
	Tone    Tone        `json:"-"`
	// Spin asks animated renderers to spin the icon.
	Spin bool `json:"spin"`
}

// Render maps an outcome to one of the fixed status states.
func Render(o poller.Outcome) Item {
	item := Item{Mode: o.Mode, State: o.Mode.String(), Text: Label}

	switch o.Mode {
	case poller.ModeNoKey:
		item.Icon = IconWarning
		item.Tooltip = "No API Key configured"

	case poller.ModeError:
		item.Icon = IconError
		item.Text = Label + ": Error"
		item.Tooltip = "Lost connection to Syncthing"
		if o.Err != nil {
			item.Tooltip += ": " + o.Err.Error()
		}
		item.Tone = ToneError

	case poller.ModePendingEdit:
		item.Icon = IconEdit
		item.Tooltip = "Changes pending sync"
		item.Tone = ToneWarning

	case poller.ModeSyncing:
		item.Icon = IconSync
		item.Spin = true
		item.Tooltip = fmt.Sprintf("Syncing - In: %s, Out: %s",
			FormatBytes(o.Totals.InBytes), FormatBytes(o.Totals.OutBytes))
		item.Tone = ToneWarning

	default:
		item.Icon = IconCheck
		item.Tooltip = fmt.Sprintf("Synced - In: %s, Out: %s",
			FormatBytes(o.Totals.InBytes), FormatBytes(o.Totals.OutBytes))
	}
	return item
}

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes renders a byte count in 1024-based units with at most two
// decimals, e.g. "1.5 KB" or "0 B".
func FormatBytes(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	v := float64(bytes)
	i := 0
	for v >= 1024 && i < len(byteUnits)-1 {
		v /= 1024
		i++
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + " " + byteUnits[i]
}
