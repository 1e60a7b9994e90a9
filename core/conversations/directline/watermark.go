package directline

import (
	"strconv"
	"strings"
)

// startWatermark marks a conversation nothing has been read from yet.
const startWatermark = ""

// deriveWatermark returns the position right after the activity with the
// given id. Activity ids look like "<conversation>|<sequence>"; the sequence
// is returned without leading zeros.
func deriveWatermark(activityID string) string {
	sequence := activityID
	if _, after, found := strings.Cut(activityID, "|"); found {
		sequence = after
	}

	sequence = strings.TrimLeft(sequence, "0")
	if sequence == "" {
		return "0"
	}
	return sequence
}

// advanceWatermark never moves the cursor backwards when both positions are
// numeric.
func advanceWatermark(current, next string) string {
	currentSeq, err := strconv.ParseUint(current, 10, 64)
	if err != nil {
		return next
	}
	nextSeq, err := strconv.ParseUint(next, 10, 64)
	if err != nil {
		return next
	}
	if nextSeq < currentSeq {
		return current
	}
	return next
}
