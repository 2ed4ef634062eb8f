package monitor

import "fmt"

const (
	goodTagName   = "Good"
	rejectTagName = "Reject"
)

// refreshCounters keeps the hourly good/reject production displays current.
// The counter tags are optional; a device without them just never resolves
// the ids.
func (m *Monitor) refreshCounters() {
	if m.goodTagID == 0 {
		if tag, err := m.store.TagByName(goodTagName); err == nil && tag != nil {
			m.goodTagID = tag.ID
		}
	} else {
		n, err := m.store.EventHourCount(m.goodTagID)
		if err != nil {
			m.logError("counting good parts", err)
		} else if n != m.goodCount {
			m.goodCount = n
			m.notifier.SetGoodRate(fmt.Sprintf("%d/hour", n))
		}
	}

	if m.rejectTagID == 0 {
		if tag, err := m.store.TagByName(rejectTagName); err == nil && tag != nil {
			m.rejectTagID = tag.ID
		}
	} else {
		n, err := m.store.EventHourCount(m.rejectTagID)
		if err != nil {
			m.logError("counting rejects", err)
		} else if n != m.rejectCount {
			m.rejectCount = n
			m.notifier.SetRejectRate(fmt.Sprintf("%d/hour", n))
		}
	}
}
