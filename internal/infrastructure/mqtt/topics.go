package mqtt

import (
	"fmt"
	"strings"

	"github.com/nerrad567/geappliances-bridge/internal/erd"
)

// DefaultNamespace is the topic root used when none is configured.
const DefaultNamespace = "geappliances"

// Topic path segments.
const (
	segmentERD   = "erd"
	segmentValue = "value"
	segmentWrite = "write"

	presenceParts = 2
	erdParts      = 5
)

// Topics builds and parses appliance topics under one namespace.
//
//	topics := mqtt.Topics{Namespace: "geappliances"}
//	topics.ERDValue("fridge", 0x0092)
//	// Returns: "geappliances/fridge/erd/0x0092/value"
type Topics struct {
	Namespace string
}

func (t Topics) root() string {
	if t.Namespace == "" {
		return DefaultNamespace
	}
	return t.Namespace
}

// Device returns the presence topic of a device.
func (t Topics) Device(device string) string {
	return t.root() + "/" + device
}

// ERDValue returns the topic a device reports an ERD value on.
func (t Topics) ERDValue(device string, id erd.ID) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", t.root(), device, segmentERD, id, segmentValue)
}

// ERDWrite returns the topic the bridge sends an ERD value on.
func (t Topics) ERDWrite(device string, id erd.ID) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", t.root(), device, segmentERD, id, segmentWrite)
}

// AllDevices returns the wildcard covering every appliance topic.
func (t Topics) AllDevices() string {
	return t.root() + "/#"
}

// BridgeStatus returns the retained status topic of the bridge itself. It
// sits outside the namespace so it never looks like a device.
func (t Topics) BridgeStatus() string {
	return t.root() + "-bridge/status"
}

// TopicKind says what an appliance topic carries.
type TopicKind int

// Topic kinds.
const (
	TopicPresence TopicKind = iota
	TopicValue
	TopicWrite
)

// TopicInfo is a parsed appliance topic.
type TopicInfo struct {
	Kind   TopicKind
	Device string
	ERD    erd.ID
}

// Parse splits an appliance topic. Write topics parse successfully so
// callers can recognise and skip their own echoes.
func (t Topics) Parse(topic string) (TopicInfo, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < presenceParts || parts[0] != t.root() || parts[1] == "" {
		return TopicInfo{}, fmt.Errorf("%w: %q", ErrUnrecognisedTopic, topic)
	}

	info := TopicInfo{Device: parts[1]}
	switch {
	case len(parts) == presenceParts:
		info.Kind = TopicPresence
		return info, nil
	case len(parts) == erdParts && parts[2] == segmentERD:
		id, err := erd.ParseID(parts[3])
		if err != nil {
			return TopicInfo{}, fmt.Errorf("%w: %q: %w", ErrUnrecognisedTopic, topic, err)
		}
		info.ERD = id
		switch parts[4] {
		case segmentValue:
			info.Kind = TopicValue
			return info, nil
		case segmentWrite:
			info.Kind = TopicWrite
			return info, nil
		}
	}
	return TopicInfo{}, fmt.Errorf("%w: %q", ErrUnrecognisedTopic, topic)
}
