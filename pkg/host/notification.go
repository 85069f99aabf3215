package host

import (
	"github.com/fgrzl/json/polymorphic"
	"github.com/fgrzl/messaging"
	"github.com/fgrzl/obskit/pkg/api"
	"github.com/google/uuid"
)

func init() {
	polymorphic.Register(func() *TopicNotification { return &TopicNotification{} })
}

// TopicNotification announces appended entries so peer hosts can fan the
// change out to their own subscribers.
type TopicNotification struct {
	HostID      uuid.UUID        `json:"host_id"`
	TopicStatus *api.TopicStatus `json:"topic_status"`
}

func (obj *TopicNotification) GetDiscriminator() string {
	return "obskit://api/v1/topic_notification"
}

func (obj *TopicNotification) GetRoute() messaging.Route {
	return GetTopicNotificationRoute(obj.HostID, obj.TopicStatus.Topic)
}

func GetTopicNotificationRoute(hostID uuid.UUID, topic string) messaging.Route {
	inboxID := uuid.NewSHA1(hostID, []byte(topic))
	return messaging.NewInboxRoute("obskit", "topic_notification", &inboxID)
}
