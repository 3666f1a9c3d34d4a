package scheduler

import (
	"context"
	"time"

	"medcontrol/internal/registry"
	"medcontrol/pkg/models"

	"go.uber.org/zap"
)

// AlarmEvent is the event name listening clients subscribe to.
const AlarmEvent = "disparar_alarme"

// DeviceLookup resolves the connection currently registered for a user.
type DeviceLookup interface {
	Lookup(userID int64) (registry.Conn, bool)
}

// Recorder receives the outcome of every tick.
type Recorder interface {
	RecordTick(ctx context.Context, at time.Time, result DispatchResult) error
}

type DispatchResult struct {
	Delivered int `json:"delivered"`
	Lost      int `json:"lost"`
	Failed    int `json:"failed"`
}

// Dispatcher hands matched alarms to their owner's connection. Delivery is
// at most once: a user without a registered connection, or a send that fails,
// loses that occurrence for good.
type Dispatcher struct {
	devices DeviceLookup
	logger  *zap.Logger
}

func NewDispatcher(devices DeviceLookup, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		devices: devices,
		logger:  logger,
	}
}

// Dispatch delivers alarms in the given order.
func (d *Dispatcher) Dispatch(ctx context.Context, alarms []models.DueAlarm) DispatchResult {
	var result DispatchResult

	for _, due := range alarms {
		userID := due.Alarm.UserID

		conn, ok := d.devices.Lookup(userID)
		if !ok {
			result.Lost++
			d.logger.Info("User offline, alarm lost",
				zap.Int64("user_id", userID),
				zap.Int64("alarm_id", due.Alarm.ID),
				zap.String("medication", due.Medication.Name),
			)
			continue
		}

		payload := due.Payload()
		if err := conn.Send(ctx, AlarmEvent, payload); err != nil {
			result.Failed++
			d.logger.Warn("Alarm delivery failed",
				zap.Int64("user_id", userID),
				zap.Int64("alarm_id", due.Alarm.ID),
				zap.String("conn_id", conn.ID()),
				zap.Error(err),
			)
			continue
		}

		result.Delivered++
		d.logger.Info("Alarm delivered",
			zap.Int64("user_id", userID),
			zap.Int64("alarm_id", due.Alarm.ID),
			zap.String("conn_id", conn.ID()),
			zap.String("payload", payload),
		)
	}

	return result
}
