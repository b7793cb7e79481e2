// Package mqtt connects the bridge to the broker the appliance adapters
// publish on.
//
// Appliances appear under a namespace (default "geappliances"):
//
//	geappliances/<device>                      presence
//	geappliances/<device>/erd/0x0001/value     reported value, hex payload
//	geappliances/<device>/erd/0x0001/write     value to send, hex payload
//
// The client wraps paho.mqtt.golang with reconnect handling, subscription
// restoration after a reconnect, and a retained online/offline status on
// <namespace>-bridge/status backed by a Last Will.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllDevices(), 1,
//	    func(topic string, payload []byte) error {
//	        info, err := client.Topics().Parse(topic)
//	        ...
//	    })
package mqtt
