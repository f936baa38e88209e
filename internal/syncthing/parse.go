package syncthing

import (
	"github.com/tidwall/gjson"
)

// Totals are the daemon-wide byte counters.
type Totals struct {
	InBytes  int64
	OutBytes int64
}

// ParseTotals reads byte counters from a connections or device stats body.
// The connections endpoint nests them under "total"; other shapes are read
// from the root. Missing fields read as zero.
func ParseTotals(body []byte) Totals {
	if !gjson.ValidBytes(body) {
		return Totals{}
	}
	root := gjson.ParseBytes(body)
	total := root.Get("total")
	if !total.IsObject() {
		total = root
	}
	return Totals{
		InBytes:  firstNonZero(total.Get("inBytesTotal").Int(), total.Get("receivedBytes").Int()),
		OutBytes: firstNonZero(total.Get("outBytesTotal").Int(), total.Get("sentBytes").Int()),
	}
}

// ParseIncomplete reports whether a completion or folder stats body shows
// data still waiting to sync. A "completion" percentage wins when present;
// otherwise any child object with needBytes or needDeletes counts.
func ParseIncomplete(body []byte) bool {
	if !gjson.ValidBytes(body) {
		return false
	}
	root := gjson.ParseBytes(body)
	if completion := root.Get("completion"); completion.Exists() {
		return completion.Float() < 100
	}
	if !root.IsObject() {
		return false
	}

	incomplete := false
	root.ForEach(func(_, folder gjson.Result) bool {
		if !folder.IsObject() {
			return true
		}
		if folder.Get("needBytes").Int() > 0 || folder.Get("needDeletes").Int() > 0 {
			incomplete = true
			return false
		}
		return true
	})
	return incomplete
}

func firstNonZero(vals ...int64) int64 {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
