package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// EntityStateMeasurement is the measurement entity state points go to.
const EntityStateMeasurement = "entity_state"

// Field names by value type. InfluxDB fixes a field's type on first write,
// so each Go type gets its own field.
const (
	fieldNumber = "value"
	fieldBool   = "state"
	fieldText   = "text"
)

// EntityStatePoint builds the point for one entity state. It returns nil
// for values with no field mapping, including nil (unknown state).
//
// Parameters:
//   - device: Appliance device name
//   - uniqueID: Entity unique id, e.g. "fridge_0001_Test_Number"
//   - kind: Entity kind, e.g. "number"
//   - value: Decoded state (float64, bool or string)
//   - ts: Observation time
func EntityStatePoint(device, uniqueID, kind string, value any, ts time.Time) *write.Point {
	fields := make(map[string]interface{}, 1)
	switch v := value.(type) {
	case float64:
		fields[fieldNumber] = v
	case int:
		fields[fieldNumber] = float64(v)
	case bool:
		fields[fieldBool] = v
	case string:
		fields[fieldText] = v
	default:
		return nil
	}

	return write.NewPoint(
		EntityStateMeasurement,
		map[string]string{
			"device": device,
			"entity": uniqueID,
			"kind":   kind,
		},
		fields,
		ts,
	)
}

// WriteEntityState records an entity state change. The write is
// non-blocking; points are batched and sent asynchronously.
func (c *Client) WriteEntityState(device, uniqueID, kind string, value any) {
	if !c.IsConnected() {
		return
	}
	if p := EntityStatePoint(device, uniqueID, kind, value, time.Now()); p != nil {
		c.writeAPI.WritePoint(p)
	}
}
