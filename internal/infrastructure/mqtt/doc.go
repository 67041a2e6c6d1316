// Package mqtt connects procwarden to an MQTT broker.
//
// Lifecycle events are published under {prefix}/process/{pid}/{type}, the
// supervised count is kept as a retained message on {prefix}/process/count,
// and remote commands are received on {prefix}/command/+. A retained
// online/offline status with a last will lives on {prefix}/system/status.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.PublishJSON(topics.ProcessEvent(pid, "process.started"), evt, false)
package mqtt
