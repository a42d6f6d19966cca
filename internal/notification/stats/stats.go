// Package stats folds delivery attempts into the counters stored on an alert.
package stats

import "github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"

// Reduce counts attempts. Simulated sends count as sent. Pending is always
// zero because Dispatch returns only settled attempts.
func Reduce(attempts []models.DeliveryAttempt) models.DeliveryStats {
	s := models.DeliveryStats{Total: len(attempts)}
	for _, a := range attempts {
		if a.Success {
			s.Sent++
		} else {
			s.Failed++
		}
	}
	return s
}

// ByChannel reduces the attempts of each channel separately.
func ByChannel(attempts []models.DeliveryAttempt) map[models.Channel]models.DeliveryStats {
	grouped := make(map[models.Channel][]models.DeliveryAttempt)
	for _, a := range attempts {
		grouped[a.Channel] = append(grouped[a.Channel], a)
	}
	out := make(map[models.Channel]models.DeliveryStats, len(grouped))
	for c, as := range grouped {
		out[c] = Reduce(as)
	}
	return out
}

// FinalStatus decides the status an alert lands in after dispatch: failed
// when there were attempts and none succeeded, sent otherwise.
func FinalStatus(s models.DeliveryStats) models.AlertStatus {
	if s.Total > 0 && s.Sent == 0 {
		return models.AlertStatusFailed
	}
	return models.AlertStatusSent
}
