package models

import (
	"fmt"
	"regexp"
)

// Topic segments: {team-id}/{device-serial}/{direction}/{entity}.

const (
	DirClientRequest  = "client_request"
	DirClientResponse = "client_response"
	DirServerRequest  = "server_request"
	DirServerResponse = "server_response"
)

const (
	EntityDevice         = "device"
	EntityTag            = "tag"
	EntityProduct        = "product"
	EntityUser           = "user"
	EntityDowntimeReason = "downtimereason"
	EntityTagData        = "tagdata"
	EntityHeartbeat      = "heartbeat"
	EntityResync         = "resync"
)

type Topic struct {
	TeamID    string
	Serial    string
	Direction string
	Entity    string
}

var topicRegexp = regexp.MustCompile(`^([\w-]+)/([\w-]+)/([\w]+)/([\w]+)$`)

// ParseTopic splits a topic path into its four segments.
func ParseTopic(topic string) (Topic, error) {
	res := topicRegexp.FindStringSubmatch(topic)
	if res == nil {
		return Topic{}, fmt.Errorf("topic %q does not match {team}/{serial}/{direction}/{entity}", topic)
	}
	return Topic{
		TeamID:    res[1],
		Serial:    res[2],
		Direction: res[3],
		Entity:    res[4],
	}, nil
}

func (t Topic) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", t.TeamID, t.Serial, t.Direction, t.Entity)
}
