package workflow

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
	"github.com/kaspidesk/stocks_backend/config"
)

// ImportPubSubPayload is the message body for queued offer imports. The
// job row in the database is the source of truth; the message only tells
// a worker to go look at it sooner than the poll loop would.
type ImportPubSubPayload struct {
	JobId     int    `json:"job_id"`
	CompanyId int    `json:"company_id"`
	FileId    string `json:"file_id"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func importTopicName() string {
	name := strings.TrimSpace(os.Getenv("OFFER_IMPORT_TOPIC"))
	if name == "" {
		name = "offer-import"
	}
	return name
}

// PublishOfferImport nudges a worker about a freshly enqueued job. Failing
// to publish is not fatal anywhere it is called; the dispatcher's poll
// loop picks the job up regardless.
func PublishOfferImport(ctx context.Context, jobId int, companyId int, fileId string) error {
	topicName := importTopicName()

	client, err := config.GetPubSubClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if config.ImportCreateTopicEnabled() {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	payload := ImportPubSubPayload{
		JobId:     jobId,
		CompanyId: companyId,
		FileId:    fileId,
	}
	data, _ := json.Marshal(payload)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// ImportPushHandler handles Pub/Sub push delivery. Always 204: a malformed
// or duplicate message must be acked, never redelivered forever.
func ImportPushHandler(d *ImportDispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.ImportPushEndpointEnabled() {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload ImportPubSubPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}
		if payload.JobId == 0 {
			c.Status(204)
			return
		}

		_ = d.ProcessJobById(c.Request.Context(), payload.JobId)
		c.Status(204)
	}
}

// RunPubSubReceiver pulls import messages until the context is cancelled.
// Used by the standalone worker when push delivery is not configured.
func RunPubSubReceiver(ctx context.Context, d *ImportDispatcher) error {
	client, err := config.GetPubSubClient(ctx)
	if err != nil {
		return err
	}

	topic, err := config.CreateTopicIfNotExists(client, importTopicName())
	if err != nil {
		return err
	}

	subName := strings.TrimSpace(os.Getenv("OFFER_IMPORT_SUBSCRIPTION"))
	if subName == "" {
		subName = importTopicName() + "-worker"
	}
	sub, err := config.CreateSubscriptionIfNotExists(client, subName, topic)
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
		var payload ImportPubSubPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.JobId == 0 {
			msg.Ack()
			return
		}
		if err := d.ProcessJobById(msgCtx, payload.JobId); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}
