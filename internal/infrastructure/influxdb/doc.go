// Package influxdb records appliance entity state in InfluxDB.
//
// It wraps influxdb-client-go v2 with connection management, a
// non-blocking batched write API and health checks. Each entity state
// change becomes one point in the "entity_state" measurement, tagged by
// device, entity unique id and entity kind.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	registry.SetStateSink(client)
//
// Writes are batched according to batch_size and flush_interval. Async
// write errors are delivered to the callback set with SetOnError.
package influxdb
