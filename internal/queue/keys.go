package queue

import "fmt"

// Key shapes for the appointments table. Appointment items and the
// per-session position counters share one partition per clinic-day, so an
// allocation transaction touches a single partition.

func DayPartitionKey(clinicID, date string) string {
	return fmt.Sprintf("CLINIC#%s#DATE#%s", clinicID, date)
}

// SlotSortKey zero-pads the slot index so lexicographic item order matches
// numeric slot order when querying a day's queue.
func SlotSortKey(slotIndex int) string {
	return fmt.Sprintf("SLOT#%06d", slotIndex)
}

func CounterSortKey(sessionIndex int) string {
	return fmt.Sprintf("COUNTER#SESSION#%d", sessionIndex)
}
